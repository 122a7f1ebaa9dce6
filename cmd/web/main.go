package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-invoice/cmd/web/config"
	"github.com/goliatone/go-router"
	"github.com/joho/godotenv"
)

func main() {
	ctx := context.Background()

	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("failed to load .env: %v", err)
	}

	cfg, err := config.FromEnv(os.Getenv)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	appLogger := NewZapLogger(os.Stdout, cfg.Server.Debug, "go-invoice")
	defer appLogger.Sync()

	app, err := NewApp(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("failed to create app: %v", err)
	}
	defer app.Close()

	srv, err := buildServer(cfg)
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}
	app.SetupRoutes(srv.Router())

	app.Scheduler.Start()

	addr := cfg.Addr()
	go func() {
		appLogger.Infof("starting server on http://%s", addr)
		appLogger.Infof("invoice API: http://%s%s/invoices", addr, cfg.Server.APIBase)
		if err := srv.Serve(addr); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Infof("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorf("shutdown error: %v", err)
	}
}

func buildServer(cfg config.Config) (router.Server[*fiber.App], error) {
	viewCfg := router.NewSimpleViewConfig(cfg.Server.ViewsDir).
		WithExt(".html").
		WithReload(cfg.Server.Debug).
		WithDebug(cfg.Server.Debug).
		WithFunctions(templateFunctions())

	engine, err := router.InitializeViewEngine(viewCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize view engine: %w", err)
	}

	return router.NewFiberAdapter(fiberAppInitializer(engine)), nil
}

func fiberAppInitializer(engine fiber.Views) func(*fiber.App) *fiber.App {
	return func(*fiber.App) *fiber.App {
		fiberApp := fiber.New(fiber.Config{
			AppName:           "Invoices",
			PassLocalsToViews: true,
			Views:             engine,
		})

		fiberApp.Use(recover.New())
		fiberApp.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
		}))

		return fiberApp
	}
}

func templateFunctions() map[string]any {
	return map[string]any{
		"to_json": func(data any) string {
			payload, err := json.Marshal(data)
			if err != nil {
				return ""
			}
			return string(payload)
		},
	}
}
