package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"
	"github.com/rs/xid"

	"dazzlodocs/internal/config"
	"dazzlodocs/internal/infra/logging"
)

// ErrInvalidAPIKey signals that the provided API key is not configured.
var ErrInvalidAPIKey = errors.New("invalid api key")

// Paths behind the API key gate and the rate limiter.
var protectedPrefixes = []string{"/convert", "/download", "/engine", "/monitor"}

func protected(path string) bool {
	for _, p := range protectedPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Register attaches global middleware. ready backs the /readyz probe and
// may be nil.
func Register(app *fiber.App, cfg config.Config, ready func() bool) {
	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		ReadinessProbe: func(c *fiber.Ctx) bool {
			return ready == nil || ready()
		},
	}))

	app.Use(requestLogger())

	if len(cfg.Auth.APIKeys) > 0 {
		app.Use(apiKeyAuth(cfg.Auth.APIKeys))
	}
	if cfg.RateLimiter.Enabled {
		app.Use(rateLimiter(cfg, newRateLimitStore(cfg)))
	}
}

func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = c.GetRespHeader("X-Request-ID")
		}
		logging.Info("Incoming request", "method", c.Method(), "path", c.Path(), "request_id", requestID)
		return c.Next()
	}
}

// apiKeyAuth requires X-API-Key on protected paths.
func apiKeyAuth(keys []string) fiber.Handler {
	allowed := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			allowed = append(allowed, []byte(k))
		}
	}
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:X-API-Key",
		ContextKey: "api_key",
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			for _, k := range allowed {
				if subtle.ConstantTimeCompare([]byte(key), k) == 1 {
					return true, nil
				}
			}
			return false, ErrInvalidAPIKey
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !protected(c.Path())
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Keyauth can call ErrorHandler with a nil error.
			if err == nil {
				err = fiber.ErrUnauthorized
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    fiber.StatusUnauthorized,
					"message": err.Error(),
				},
			})
		},
	})
}

// newRateLimitStore prefers Redis and falls back to memory.
func newRateLimitStore(cfg config.Config) (store fiber.Storage) {
	store = memoryStorage.New()
	if cfg.Cache.RedisHost == "" {
		return store
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Redis limiter store init panicked, falling back to memory", "panic", r)
		}
	}()
	store = redisStorage.New(redisStorage.Config{
		Addrs:    []string{cfg.Cache.RedisHost},
		Database: cfg.Cache.RateLimitDB,
	})
	logging.Info("Using Redis for rate limiting", "addr", cfg.Cache.RedisHost, "db", cfg.Cache.RateLimitDB)
	return store
}

// clientKey identifies the caller by API key when one was validated, and
// by address and user agent otherwise.
func clientKey(c *fiber.Ctx) string {
	if key, ok := c.Locals("api_key").(string); ok && key != "" {
		sum := sha256.Sum256([]byte("key:" + key))
		return hex.EncodeToString(sum[:])
	}
	sum := sha256.Sum256([]byte(c.IP() + c.Get("User-Agent")))
	return hex.EncodeToString(sum[:])
}

// rateLimiter limits conversion traffic per client.
func rateLimiter(cfg config.Config, store fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               cfg.RateLimiter.Max,
		Expiration:        cfg.RateLimiter.Interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           store,
		KeyGenerator:      clientKey,
		Next: func(c *fiber.Ctx) bool {
			return !strings.HasPrefix(c.Path(), "/convert")
		},
		LimitReached: func(c *fiber.Ctx) error {
			logging.Warn("Rate limit exceeded", "client", clientKey(c), "path", c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    fiber.StatusTooManyRequests,
					"message": "Too Many Requests",
				},
			})
		},
	})
}
