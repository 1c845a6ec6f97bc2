package main

import (
	"context"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"dazzlodocs/internal/auth"
	"dazzlodocs/internal/config"
)

func TestStartServer_GracefulShutdownOnSignal(t *testing.T) {
	app := fiber.New()
	var cfg config.Config
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = ":0"

	closed := 0
	idleConnsClosed := make(chan struct{})
	go startServer(app, cfg, idleConnsClosed, func() { closed++ })

	time.Sleep(100 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("failed to send SIGTERM: %v", err)
	}

	select {
	case <-idleConnsClosed:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for graceful shutdown")
	}
	if closed != 1 {
		t.Fatalf("expected shutdown hook to run once, ran %d times", closed)
	}
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.PDF.Engine = config.EngineRod
	cfg.PDF.UserDataDir = t.TempDir()
	cfg.Output.Dir = filepath.Join(t.TempDir(), "out")
	return cfg
}

func TestNewService_RodEngine(t *testing.T) {
	cfg := testConfig(t)
	svc, err := newService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newService: %v", err)
	}
	defer svc.Close()

	if svc.converter == nil || svc.engine == nil {
		t.Fatalf("expected converter and engine to be built")
	}
	if !svc.ready.Load() {
		t.Fatalf("rod engine should report ready")
	}
	if _, ok := svc.authorizer.(*auth.SharedSecret); !ok {
		t.Fatalf("expected shared secret authorizer, got %T", svc.authorizer)
	}
	if svc.cache != nil {
		t.Fatalf("cache should be disabled by default")
	}

	d := svc.deps(cfg)
	if d.Converter == nil || d.Ready == nil || d.Version != Version {
		t.Fatalf("unexpected deps: %+v", d)
	}
	if d.EngineStats != nil {
		t.Fatalf("rod engine exposes no stats")
	}

	// Close is idempotent.
	svc.Close()
	svc.Close()
}

func TestNewService_BadAuthConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Letterhead.Auth.Mode = "ldap"
	if _, err := newService(context.Background(), cfg); err == nil {
		t.Fatalf("expected authorizer error")
	}
}

func TestNewService_CacheUnavailableIsNotFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.PDFCacheEnabled = true
	cfg.Cache.RedisHost = "127.0.0.1:1"
	svc, err := newService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newService: %v", err)
	}
	defer svc.Close()
	if svc.cache != nil {
		t.Fatalf("expected cache to be disabled when redis is down")
	}
}
