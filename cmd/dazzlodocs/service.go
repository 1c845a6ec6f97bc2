package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"dazzlodocs/internal/auth"
	"dazzlodocs/internal/cache"
	"dazzlodocs/internal/config"
	"dazzlodocs/internal/converter"
	"dazzlodocs/internal/domain"
	"dazzlodocs/internal/http/server"
	"dazzlodocs/internal/infra/chrome"
	"dazzlodocs/internal/infra/logging"
	"dazzlodocs/internal/infra/rod"
	"dazzlodocs/internal/letterhead"
)

// service owns the process-wide render engine and the collaborators built
// around it.
type service struct {
	engine     domain.Engine
	stats      func() any
	authorizer auth.Authorizer
	cache      *cache.PDFCache
	converter  *converter.Converter

	ready     atomic.Bool
	closeOnce sync.Once
}

func newService(ctx context.Context, cfg config.Config) (*service, error) {
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	s := &service{}
	if err := s.startEngine(ctx, cfg); err != nil {
		return nil, err
	}

	authz, err := auth.New(ctx, cfg)
	if err != nil {
		_ = s.engine.Close()
		return nil, fmt.Errorf("letterhead authorizer: %w", err)
	}
	s.authorizer = authz

	pc, err := cache.Open(ctx, cfg)
	if err != nil {
		logging.Warn("PDF cache disabled", "error", err)
	}
	s.cache = pc

	letterheads := letterhead.NewGenerator(letterhead.DirLogos{Dir: cfg.Letterhead.AssetDir})
	s.converter = converter.New(s.engine, s.authorizer, letterheads,
		converter.SettingsFromConfig(cfg), converter.WithCache(pc))

	logging.Info("Service initialised",
		"engine", cfg.PDF.Engine,
		"auth_mode", cfg.Letterhead.Auth.Mode,
		"pdf_cache", pc != nil,
		"max_pages", cfg.PDF.MaxPages)
	return s, nil
}

// startEngine creates the shared engine. Chrome is warmed up in the
// background; rod launches on first use.
func (s *service) startEngine(ctx context.Context, cfg config.Config) error {
	switch cfg.PDF.Engine {
	case config.EngineRod:
		e, err := rod.New(rod.OptionsFromConfig(cfg))
		if err != nil {
			return fmt.Errorf("rod engine: %w", err)
		}
		s.engine = e
		s.ready.Store(true)
	default:
		b, err := chrome.NewBrowser(chrome.OptionsFromConfig(cfg))
		if err != nil {
			return fmt.Errorf("chrome engine: %w", err)
		}
		s.engine = b
		s.stats = func() any { return b.Stats() }
		go func() {
			if err := b.Warmup(ctx, cfg.PDF.NavigationTimeout); err != nil {
				logging.Warn("Chrome warm-up failed, starting on first request", "error", err)
			}
			s.ready.Store(true)
		}()
	}
	return nil
}

func (s *service) deps(cfg config.Config) server.Deps {
	return server.Deps{
		Config:      cfg,
		Converter:   s.converter,
		EngineStats: s.stats,
		Ready:       s.ready.Load,
		Version:     Version,
	}
}

// Close releases the engine and backing stores exactly once.
func (s *service) Close() {
	s.closeOnce.Do(func() {
		if s.engine != nil {
			if err := s.engine.Close(); err != nil {
				logging.Warn("Failed to close render engine", "error", err)
			}
		}
		if err := s.cache.Close(); err != nil {
			logging.Warn("Failed to close PDF cache", "error", err)
		}
		if c, ok := s.authorizer.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logging.Warn("Failed to close token store", "error", err)
			}
		}
	})
}
