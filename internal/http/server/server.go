package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"dazzlodocs/internal/config"
	"dazzlodocs/internal/http/handlers"
	"dazzlodocs/internal/http/middleware"
	"dazzlodocs/internal/infra/logging"
)

// Deps are the collaborators of the HTTP app. Converter may be nil, in which
// case conversions answer 503.
type Deps struct {
	Config      config.Config
	Converter   handlers.Converter
	EngineStats func() any
	Ready       func() bool
	Version     string
}

// New creates the fiber app with middleware, routes and JSON errors.
func New(d Deps) *fiber.App {
	cfg := d.Config
	fc := fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	}
	if cfg.Server.BodyLimitMB > 0 {
		fc.BodyLimit = cfg.Server.BodyLimitMB << 20
	}
	app := fiber.New(fc)

	middleware.Register(app, cfg, d.Ready)

	opts := []handlers.Option{}
	if d.Version != "" {
		opts = append(opts, handlers.WithVersion(d.Version))
	}
	if d.EngineStats != nil {
		opts = append(opts, handlers.WithEngineStats(d.EngineStats))
	}
	handlers.New(cfg, d.Converter, opts...).Register(app)

	app.Get("/monitor", monitor.New(monitor.Config{Title: "dazzlodocs"}))

	// Missing files fall through to the JSON 404 below.
	if cfg.Server.PublicDir != "" {
		app.Static("/", cfg.Server.PublicDir, fiber.Static{Index: "index.html"})
	}

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := handlers.StatusFor(err)
	msg := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		msg = fe.Message
	} else if code < fiber.StatusInternalServerError {
		msg = err.Error()
	}

	logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": msg,
		},
	})
}
