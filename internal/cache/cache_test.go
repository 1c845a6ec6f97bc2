package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dazzlodocs/internal/config"
	"dazzlodocs/internal/domain"
)

func newTestCache(t *testing.T, ttl time.Duration) (*PDFCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, ttl), mr
}

func TestGetSet(t *testing.T) {
	c, mr := newTestCache(t, 2*time.Minute)
	ctx := context.Background()

	_, ok := c.Get(ctx, "pdfcache:missing")
	assert.False(t, ok)

	c.Set(ctx, "pdfcache:k", []byte("%PDF-1.4"))
	data, ok := c.Get(ctx, "pdfcache:k")
	require.True(t, ok)
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, 2*time.Minute, mr.TTL("pdfcache:k"))

	mr.FastForward(3 * time.Minute)
	_, ok = c.Get(ctx, "pdfcache:k")
	assert.False(t, ok)
}

func TestDefaultTTL(t *testing.T) {
	c, mr := newTestCache(t, 0)
	c.Set(context.Background(), "k", []byte("x"))
	assert.Equal(t, time.Minute, mr.TTL("k"))
}

func TestRedisDownIsAMiss(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	mr.Close()

	c.Set(context.Background(), "k", []byte("x"))
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestNilCache(t *testing.T) {
	var c *PDFCache
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
	c.Set(context.Background(), "k", nil)
	assert.NoError(t, c.Close())
}

func TestKey(t *testing.T) {
	p := domain.PrintParams{PaperWidth: 8.27, PaperHeight: 11.69, Scale: 1}
	k1 := Key("<p>a</p>", p)
	assert.Equal(t, k1, Key("<p>a</p>", p))
	assert.Contains(t, k1, "pdfcache:")

	assert.NotEqual(t, k1, Key("<p>b</p>", p))

	landscape := p
	landscape.PaperWidth, landscape.PaperHeight = p.PaperHeight, p.PaperWidth
	assert.NotEqual(t, k1, Key("<p>a</p>", landscape))

	withHeader := p
	withHeader.HeaderTemplate = "<div>h</div>"
	assert.NotEqual(t, k1, Key("<p>a</p>", withHeader))
}

func TestOpen(t *testing.T) {
	cfg := config.Default()
	c, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, c)

	mr := miniredis.RunT(t)
	cfg.Cache.PDFCacheEnabled = true
	cfg.Cache.RedisHost = mr.Addr()
	c, err = Open(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.NoError(t, c.Close())

	mr.Close()
	_, err = Open(context.Background(), cfg)
	assert.Error(t, err)
}
