package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gookit/color"
	"go.uber.org/zap"

	"github.com/oarkflow/squealx"
	"github.com/oarkflow/squealx/connection"

	auth "github.com/polylab/auth"
	"github.com/polylab/auth/pkg/config"
	"github.com/polylab/auth/pkg/libs"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		color.Red.Println("Error loading configuration: " + err.Error())
		os.Exit(1)
	}

	var logger *zap.Logger
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	opts := []auth.Option{
		auth.WithPrefix("/"),
		auth.WithConfig(cfg),
		auth.WithLogger(logger),
	}
	if cfg.DBDriver != "sqlite" {
		db, _, err := connection.FromConfig(squealx.Config{
			Driver:   cfg.DBDriver,
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			Username: cfg.DBUser,
			Password: cfg.DBPassword,
			Database: cfg.DBName,
		})
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		opts = append(opts, auth.WithDB(db))
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ErrorHandler: libs.ErrorHandler,
		ViewsLayout:  "layouts/main",
	})

	authPlugin := auth.NewPluginWithOptions(append(opts, auth.WithApp(app))...)
	authPlugin.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	authPlugin.StartSweeper(ctx)

	go func() {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", cfg.Listen))
	if err := app.Listen(cfg.Listen); err != nil {
		log.Fatal(err)
	}
}
