package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the typed application configuration, resolved from an
// optional .env file overlaid with process environment variables.
type Config struct {
	AppName string
	Env     string // "development" or "production"
	Listen  string

	DBDriver   string // sqlite | postgres | mysql
	DBPath     string // sqlite file
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	SessionCookieName string
	SessionTTL        time.Duration
	CSRFCookieName    string
	CSRFHeaderName    string

	RateLimitPerWindow int
	RateLimitWindow    time.Duration
	MaxLoginAttempts   int
	LoginCooldown      time.Duration

	VerifyTokenTTL time.Duration
	ResetTokenTTL  time.Duration
	MFATokenTTL    time.Duration

	TOTPIssuer string

	UploadDir string

	EnableHTTPS           bool
	EnableSecurityHeaders bool
	HSTSEnabled           bool
	FrontendOrigin        string
	CORSOrigins           []string

	NotifierKind string // console | smtp
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	SweepInterval time.Duration
}

// IsProduction reports whether cookies must carry the secure flag.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.EnableHTTPS
}

// Load reads configuration from envPath (ignored when absent) and the
// process environment.
func Load(envPath string) (*Config, error) {
	k := koanf.New(".")
	if envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			if err := k.Load(file.Provider(envPath), dotenv.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", envPath, err)
			}
		}
	}
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{
		AppName: getString(k, "APP_NAME", "auth-api"),
		Env:     getString(k, "APP_ENV", "development"),
		Listen:  getString(k, "LISTEN_ADDR", ":8000"),

		DBDriver:   getString(k, "DB_DRIVER", "sqlite"),
		DBPath:     getString(k, "DB_PATH", "auth.db"),
		DBHost:     getString(k, "DB_HOST", "localhost"),
		DBPort:     getInt(k, "DB_PORT", 5432),
		DBUser:     getString(k, "DB_USER", "postgres"),
		DBPassword: getString(k, "DB_PASSWORD", "postgres"),
		DBName:     getString(k, "DB_NAME", "auth"),

		SessionCookieName: getString(k, "SESSION_COOKIE_NAME", "session_id"),
		SessionTTL:        getDuration(k, "SESSION_TTL", 120*time.Minute),
		CSRFCookieName:    getString(k, "CSRF_COOKIE_NAME", "csrf_token"),
		CSRFHeaderName:    getString(k, "CSRF_HEADER_NAME", "X-CSRF-Token"),

		RateLimitPerWindow: getInt(k, "RATE_LIMIT_PER_MINUTE", 120),
		RateLimitWindow:    getDuration(k, "RATE_LIMIT_WINDOW", time.Minute),
		MaxLoginAttempts:   getInt(k, "MAX_LOGIN_ATTEMPTS", 5),
		LoginCooldown:      getDuration(k, "LOGIN_COOLDOWN", 15*time.Minute),

		VerifyTokenTTL: getDuration(k, "VERIFY_TOKEN_TTL", 60*time.Minute),
		ResetTokenTTL:  getDuration(k, "RESET_TOKEN_TTL", 30*time.Minute),
		MFATokenTTL:    getDuration(k, "MFA_TOKEN_TTL", 5*time.Minute),

		TOTPIssuer: getString(k, "TOTP_ISSUER", "PolyLab"),

		UploadDir: getString(k, "UPLOAD_DIR", "uploads"),

		EnableHTTPS:           getBool(k, "ENABLE_HTTPS", false),
		EnableSecurityHeaders: getBool(k, "ENABLE_SECURITY_HEADERS", true),
		HSTSEnabled:           getBool(k, "HSTS_ENABLED", false),
		FrontendOrigin:        getString(k, "FRONTEND_ORIGIN", "http://localhost:5173"),

		NotifierKind: getString(k, "NOTIFIER", "console"),
		SMTPHost:     getString(k, "SMTP_HOST", ""),
		SMTPPort:     getInt(k, "SMTP_PORT", 587),
		SMTPUsername: getString(k, "SMTP_USERNAME", ""),
		SMTPPassword: getString(k, "SMTP_PASSWORD", ""),
		SMTPFrom:     getString(k, "SMTP_FROM", "no-reply@polylab.dev"),

		SweepInterval: getDuration(k, "SWEEP_INTERVAL", 10*time.Minute),
	}

	origins := getString(k, "CORS_ORIGINS", cfg.FrontendOrigin)
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}
	return cfg, nil
}

func getString(k *koanf.Koanf, key, def string) string {
	if v := k.String(key); v != "" {
		return v
	}
	return def
}

// getInt honours an explicitly configured zero; only an absent key
// falls back to the default.
func getInt(k *koanf.Koanf, key string, def int) int {
	if !k.Exists(key) {
		return def
	}
	return k.Int(key)
}

func getBool(k *koanf.Koanf, key string, def bool) bool {
	if !k.Exists(key) {
		return def
	}
	return k.Bool(key)
}

func getDuration(k *koanf.Koanf, key string, def time.Duration) time.Duration {
	if !k.Exists(key) {
		return def
	}
	if d, err := time.ParseDuration(k.String(key)); err == nil {
		return d
	}
	return def
}
