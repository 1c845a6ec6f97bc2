package auth

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dazzlodocs/internal/config"
)

func TestSharedSecret(t *testing.T) {
	a := NewSharedSecret("102005")
	ctx := context.Background()

	ok, err := a.Authorize(ctx, "102005")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, token := range []string{"", "wrong", "1020050", "10200"} {
		ok, err := a.Authorize(ctx, token)
		require.NoError(t, err)
		assert.False(t, ok, "token %q", token)
	}

	ok, _ = NewSharedSecret("").Authorize(ctx, "")
	assert.False(t, ok, "empty secret must reject everything")
}

func TestJWT_IssueAndAuthorize(t *testing.T) {
	j := NewJWT([]byte("k3y"), "dazzlodocs")
	token, err := j.Issue("ops", time.Minute)
	require.NoError(t, err)

	ok, err := j.Authorize(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, ok)

	claims, err := j.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
}

func TestJWT_Rejects(t *testing.T) {
	j := NewJWT([]byte("k3y"), "dazzlodocs")
	ctx := context.Background()

	expired, err := j.Issue("ops", -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewJWT([]byte("other"), "dazzlodocs").Issue("ops", time.Minute)
	require.NoError(t, err)

	otherIssuer, err := NewJWT([]byte("k3y"), "someone-else").Issue("ops", time.Minute)
	require.NoError(t, err)

	wrongScope, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Scope: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "dazzlodocs",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("k3y"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Scope:            LetterheadScope,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "dazzlodocs"},
	}).SignedString([]byte("k3y"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"expired":      expired,
		"other key":    otherKey,
		"other issuer": otherIssuer,
		"wrong scope":  wrongScope,
		"no expiry":    noExpiry,
	} {
		ok, err := j.Authorize(ctx, token)
		require.NoError(t, err, name)
		assert.False(t, ok, name)
	}
}

func TestTokenStore(t *testing.T) {
	s := NewTokenStore()
	ctx := context.Background()

	_, err := s.Authorize(ctx, "a")
	assert.ErrorIs(t, err, ErrTokenStoreNotReady)
	assert.False(t, s.Ready())

	s.Replace([]string{"a", "b"})
	assert.True(t, s.Ready())
	for token, want := range map[string]bool{"a": true, "b": true, "c": false, "": false} {
		ok, err := s.Authorize(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, want, ok, "token %q", token)
	}

	s.Replace([]string{"c"})
	ok, _ := s.Authorize(ctx, "a")
	assert.False(t, ok)
	ok, _ = s.Authorize(ctx, "c")
	assert.True(t, ok)

	assert.Error(t, s.Load(ctx))
	assert.NoError(t, s.Close())
}

func TestAuthorizerFunc(t *testing.T) {
	var a Authorizer = AuthorizerFunc(func(_ context.Context, token string) (bool, error) {
		return token == "x", nil
	})
	ok, err := a.Authorize(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	a, err := New(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &SharedSecret{}, a)

	cfg.Letterhead.Auth.Mode = config.AuthModeJWT
	cfg.Letterhead.Auth.JWTSecret = "k"
	a, err = New(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &JWT{}, a)

	cfg.Letterhead.Auth.Mode = config.AuthModePostgres
	cfg.Letterhead.Auth.Postgres = config.PostgresConfig{Host: "localhost", Database: "d", User: "u", Table: "tokens; DROP TABLE x"}
	_, err = New(ctx, cfg)
	assert.ErrorContains(t, err, "invalid token table name")

	cfg.Letterhead.Auth.Mode = "ldap"
	_, err = New(ctx, cfg)
	assert.Error(t, err)
}

func TestPostgresDSN_BuildsURL(t *testing.T) {
	dsn, err := postgresDSN(config.PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		Database: "dazzlodocs",
		User:     "user",
		Password: "p@ss word",
		SSLMode:  "disable",
	})
	assert.NoError(t, err)

	u, err := url.Parse(dsn)
	assert.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "localhost:5432", u.Host)
	assert.Equal(t, "/dazzlodocs", u.Path)
	assert.Equal(t, "user", u.User.Username())
	pw, ok := u.User.Password()
	assert.True(t, ok)
	assert.Equal(t, "p@ss word", pw)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
}

func TestPostgresDSN_HostForms(t *testing.T) {
	base := config.PostgresConfig{Database: "db", User: "u"}

	for host, want := range map[string]string{
		"db.internal":      "db.internal:5432",
		"db.internal:6543": "db.internal:6543",
		"::1":              "[::1]:5432",
		"[::1]":            "[::1]:5432",
		"[::1]:6000":       "[::1]:6000",
	} {
		cfg := base
		cfg.Host = host
		dsn, err := postgresDSN(cfg)
		require.NoError(t, err, host)
		u, err := url.Parse(dsn)
		require.NoError(t, err, host)
		assert.Equal(t, want, u.Host, host)
	}
}

func TestPostgresDSN_Passthrough(t *testing.T) {
	raw := "postgres://u:p@localhost:5432/db?sslmode=disable"
	dsn, err := postgresDSN(config.PostgresConfig{Host: raw})
	assert.NoError(t, err)
	assert.Equal(t, raw, dsn)
}

func TestPostgresDSN_MissingFields(t *testing.T) {
	for _, cfg := range []config.PostgresConfig{
		{},
		{Host: "h"},
		{Host: "h", Database: "d"},
	} {
		_, err := postgresDSN(cfg)
		assert.Error(t, err)
	}
}
