package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/automaxprocs/maxprocs"

	"dazzlodocs/internal/config"
	"dazzlodocs/internal/http/server"
	"dazzlodocs/internal/infra/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	cfg := config.Load()
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	logging.SetLogLevel(cfg.Logger.Level)

	// maxprocs.Set only fails on an invalid GOMAXPROCS env value, the runtime
	// default is fine then.
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logging.Info(fmt.Sprintf(format, args...))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := newService(ctx, cfg)
	if err != nil {
		logging.Error("Failed to start service", "error", err)
		os.Exit(1)
	}

	app := server.New(svc.deps(cfg))

	idleConnsClosed := make(chan struct{})
	startServer(app, cfg, idleConnsClosed, svc.Close)
	<-idleConnsClosed
}

// startServer starts the Fiber app and blocks until SIGINT or SIGTERM. The
// shutdown hook runs once after the listener is closed.
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}, onShutdown func()) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			logging.Error("Server error", "error", err)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint
	signal.Stop(sigint)

	logging.Warn("Shutdown signal received, closing server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}
	if onShutdown != nil {
		onShutdown()
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
}
