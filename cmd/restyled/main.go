package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/headline-restyler/internal/app"
	"github.com/tjfontaine/headline-restyler/internal/auth"
	"github.com/tjfontaine/headline-restyler/internal/config"
	"github.com/tjfontaine/headline-restyler/internal/handler"
	"github.com/tjfontaine/headline-restyler/internal/server"
	"github.com/tjfontaine/headline-restyler/internal/telemetry"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to config.yaml")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: app.ParseLogLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, logger)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize restyler: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close resources", slog.String("error", err.Error()))
		}
	}()

	var authenticator *auth.Authenticator
	if len(cfg.Auth.APIKeys) > 0 {
		authenticator, err = auth.NewAuthenticator(cfg.Auth.APIKeys, auth.DefaultCacheTTL)
		if err != nil {
			log.Fatalf("Failed to configure auth: %v", err)
		}
		defer authenticator.Close()
	}

	srv := server.New(server.Options{
		Port:          cfg.Server.Port,
		Timeout:       cfg.Server.Timeout,
		CORSOrigins:   cfg.Server.CORSOrigins,
		Authenticator: authenticator,
		PublicPaths:   []string{handler.HealthPath},
		ServiceName:   cfg.Telemetry.ServiceName,
	}, logger)

	handler.New(a.Service, handler.Options{
		Store:    a.Store,
		Defaults: cfg.Transform.RequestDefaults(),
		Logger:   logger,
	}).Routes(srv.Router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	case <-sigChan:
	}

	logger.Info("Shutdown signal received, stopping server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("Server shutdown complete")
}
