package auth

import (
	"context"
	"embed"
	"io/fs"
	"log"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/template/html/v2"
	"go.uber.org/zap"

	"github.com/oarkflow/squealx"
	"github.com/oarkflow/squealx/drivers/sqlite"

	"github.com/polylab/auth/pkg/config"
	"github.com/polylab/auth/pkg/contracts"
	"github.com/polylab/auth/pkg/http/middlewares"
	"github.com/polylab/auth/pkg/http/routes"
	"github.com/polylab/auth/pkg/libs"
	"github.com/polylab/auth/pkg/objects"
	"github.com/polylab/auth/pkg/storage"
)

//go:embed views
var Assets embed.FS

type Plugin struct {
	App      *fiber.App
	Prefix   string
	Config   *config.Config
	DB       *squealx.DB
	Storage  contracts.Storage
	Notifier contracts.Notifier
	Logger   *zap.Logger
}

type Option func(*Plugin)

func WithPrefix(prefix string) Option {
	return func(p *Plugin) { p.Prefix = prefix }
}

func WithApp(app *fiber.App) Option {
	return func(p *Plugin) { p.App = app }
}

func WithConfig(cfg *config.Config) Option {
	return func(p *Plugin) { p.Config = cfg }
}

func WithDB(db *squealx.DB) Option {
	return func(p *Plugin) { p.DB = db }
}

// WithStorage bypasses the database entirely; useful for tests.
func WithStorage(store contracts.Storage) Option {
	return func(p *Plugin) { p.Storage = store }
}

func WithNotifier(n contracts.Notifier) Option {
	return func(p *Plugin) { p.Notifier = n }
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Plugin) { p.Logger = logger }
}

// Register wires storage, the manager and the route tree onto the app.
func (p *Plugin) Register() {
	cfg := p.Config
	if cfg == nil {
		loaded, err := config.Load(".env")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}
	objects.Config = cfg

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store := p.Storage
	if store == nil {
		db := p.DB
		if db == nil {
			sqliteDB, err := sqlite.Open(cfg.DBPath, "sqlite")
			if err != nil {
				log.Fatalf("failed to open database: %v", err)
			}
			db = sqliteDB
		}
		dbStore, err := storage.NewDatabaseStorage(db)
		if err != nil {
			log.Fatalf("failed to initialize storage: %v", err)
		}
		store = dbStore
	}

	manager := libs.NewManager(store, cfg, logger)
	if p.Notifier != nil {
		manager.SetNotifier(p.Notifier)
	}
	objects.Manager = manager

	if p.App != nil {
		if len(cfg.CORSOrigins) > 0 {
			p.App.Use(cors.New(cors.Config{
				AllowOrigins:     strings.Join(cfg.CORSOrigins, ","),
				AllowHeaders:     "Content-Type, " + cfg.CSRFHeaderName,
				AllowCredentials: true,
			}))
		}
		p.App.Use(middlewares.RateLimit)
		p.App.Use(middlewares.SecurityHeaders)
		p.App.Use(middlewares.CSRFProtectWithPrefix(p.Prefix))
		routes.Setup(p.Prefix, p.App)
		protected := p.App.Group(p.Prefix, middlewares.Verify)
		routes.ProtectedRoutes(protected)
		routes.AdminRoutes(protected)
	}
}

func (p *Plugin) Init() {
}

func (p *Plugin) Name() string {
	return "Auth"
}

func (p *Plugin) DependsOn() []string {
	return []string{"Database"}
}

func (p *Plugin) Close() error {
	return nil
}

// StartSweeper launches the background purge of expired sessions and
// tokens. Call after Register.
func (p *Plugin) StartSweeper(ctx context.Context) {
	objects.Manager.StartSweeper(ctx)
}

func NewPluginWithOptions(opts ...Option) *Plugin {
	plugin := &Plugin{Prefix: "/"}
	for _, opt := range opts {
		opt(plugin)
	}
	if objects.ViewEngine == nil {
		views, err := fs.Sub(Assets, "views")
		if err != nil {
			log.Fatalf("failed to mount views: %v", err)
		}
		engine := html.NewFileSystem(http.FS(views), ".html")
		objects.ViewEngine = engine
	}
	if objects.Layout == "" {
		objects.Layout = "layouts/main"
	}
	return plugin
}
