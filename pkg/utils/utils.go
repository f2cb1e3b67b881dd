package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RandomToken returns a URL-safe opaque value with byteLen bytes of
// entropy (32 bytes = 256 bits for tokens and session IDs).
func RandomToken(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GetClientIP resolves the client address, honouring proxy headers.
func GetClientIP(c *fiber.Ctx) string {
	if xff := c.Get("X-Forwarded-For"); len(xff) > 0 {
		if comma := strings.IndexByte(xff, ','); comma > 0 {
			return strings.TrimSpace(xff[:comma])
		}
		return strings.TrimSpace(xff)
	}
	if xri := c.Get("X-Real-IP"); len(xri) > 0 {
		return strings.TrimSpace(xri)
	}
	return c.IP()
}

// SessionCookie builds the session transport cookie: HTTP-only,
// same-site-lax, secure outside development, scoped to root.
func SessionCookie(name, value string, maxAge int, secure bool) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

// CSRFCookie must stay readable by client script so the value can be
// echoed back in the request header.
func CSRFCookie(name, value string, secure bool) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HTTPOnly: false,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}

// ExpiredCookie clears a cookie on the client.
func ExpiredCookie(name string) *fiber.Cookie {
	return &fiber.Cookie{
		Name:   name,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	}
}

// ValidateEmail checks format and length constraints without regex.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email cannot be empty")
	}
	if len(email) > 254 {
		return errors.New("email too long")
	}

	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.IndexByte(email[at+1:], '@') != -1 {
		return errors.New("invalid email address")
	}

	local, domain := email[:at], email[at+1:]
	if len(local) > 64 {
		return errors.New("local part too long")
	}
	for i := 0; i < len(local); i++ {
		c := local[i]
		if !(isAlphaNum(c) || c == '.' || c == '_' || c == '%' || c == '+' || c == '-') {
			return errors.New("invalid character in local part")
		}
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return errors.New("missing TLD")
	}
	for _, label := range labels {
		if label == "" || len(label) > 63 {
			return errors.New("invalid domain label")
		}
		for i := 0; i < len(label); i++ {
			if !(isAlphaNum(label[i]) || label[i] == '-') {
				return errors.New("invalid character in domain")
			}
		}
	}
	if tld := labels[len(labels)-1]; len(tld) < 2 {
		return errors.New("invalid TLD length")
	}
	return nil
}

func isAlphaNum(c byte) bool {
	return (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9')
}
