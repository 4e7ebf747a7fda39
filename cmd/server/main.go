// Package main is the entry point for the sdmox trigger API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"sdmox/internal/app"
	"sdmox/internal/config"
	"sdmox/internal/domain/auth"
	v1 "sdmox/internal/infrastructure/http/v1"
	"sdmox/internal/infrastructure/http/v1/handlers"
	"sdmox/pkg/logger"
)

func main() {
	configPath := pflag.String("config", "", "path to YAML settings (defaults to $SDMOX_CONFIG)")
	pflag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       settings.Log.Level,
		Development: settings.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting sdmox server")

	a, err := app.New(ctx, settings, log)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer a.Close()

	checks := map[string]handlers.Check{
		"amqp": a.Publisher.Ping,
	}
	routerCfg := v1.RouterConfig{
		Logger:   log,
		Service:  a.Service,
		Checks:   checks,
		Gatherer: a.Gatherer,
	}
	if a.Journal != nil {
		routerCfg.Journal = a.Journal
		checks["database"] = a.Pool.Ping
	}

	// --- JWT ---
	if settings.HTTP.JWTSecret != "" {
		routerCfg.Validator = auth.NewJWTService(auth.DefaultJWTConfig(settings.HTTP.JWTSecret))
		log.Info("bearer authentication enabled")
	} else {
		log.Warn("JWT secret not set, API is unauthenticated")
	}

	router := v1.NewRouter(routerCfg)

	// --- HTTP Server ---
	port := settings.HTTP.Port
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // covers a full verification run
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
