// Package cache stores rendered PDFs in Redis so identical conversions skip
// the browser.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"dazzlodocs/internal/config"
	"dazzlodocs/internal/domain"
	"dazzlodocs/internal/infra/logging"
)

const (
	keyPrefix  = "pdfcache:"
	defaultTTL = time.Minute
	opTimeout  = time.Second
)

// PDFCache is a best-effort PDF cache. Redis failures are logged and
// treated as misses.
type PDFCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New wraps an existing client. A non-positive ttl means one minute.
func New(rdb *redis.Client, ttl time.Duration) *PDFCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &PDFCache{rdb: rdb, ttl: ttl}
}

// Open connects to the configured Redis database. It returns nil, nil when
// the cache is disabled.
func Open(ctx context.Context, cfg config.Config) (*PDFCache, error) {
	if !cfg.Cache.PDFCacheEnabled {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Cache.RedisHost,
		DB:   cfg.Cache.PDFCacheDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Cache.RedisHost, err)
	}
	return New(rdb, cfg.Cache.PDFCacheTTL), nil
}

// Key derives the cache key from the enriched document and print settings.
func Key(html string, p domain.PrintParams) string {
	h := sha256.New()
	h.Write([]byte(html))
	for _, f := range []float64{p.PaperWidth, p.PaperHeight, p.MarginTop, p.MarginRight, p.MarginBottom, p.MarginLeft, p.Scale} {
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatFloat(f, 'f', 4, 64)))
	}
	h.Write([]byte{0})
	h.Write([]byte(p.HeaderTemplate))
	h.Write([]byte{0})
	h.Write([]byte(p.FooterTemplate))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached PDF for key.
func (c *PDFCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logging.Warn("Redis read failed", "error", err)
		return nil, false
	}
	logging.Info("PDF cache hit", "key", key)
	return data, true
}

// Set stores data under key for the cache TTL.
func (c *PDFCache) Set(ctx context.Context, key string, data []byte) {
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logging.Warn("Redis write failed", "error", err)
	}
}

func (c *PDFCache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
