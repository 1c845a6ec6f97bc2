// Package auth verifies the access token that unlocks letterheads.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"

	"dazzlodocs/internal/config"
)

// Authorizer decides whether token may use letterheads. A false result
// with a nil error is a rejected token; an error means the check itself
// could not run.
type Authorizer interface {
	Authorize(ctx context.Context, token string) (bool, error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, token string) (bool, error)

func (f AuthorizerFunc) Authorize(ctx context.Context, token string) (bool, error) {
	return f(ctx, token)
}

// SharedSecret accepts exactly one configured token.
type SharedSecret struct {
	secret []byte
}

func NewSharedSecret(secret string) *SharedSecret {
	return &SharedSecret{secret: []byte(secret)}
}

func (s *SharedSecret) Authorize(_ context.Context, token string) (bool, error) {
	if token == "" || len(s.secret) == 0 {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(token), s.secret) == 1, nil
}

// New builds the authorizer selected by letterhead.auth.mode. The postgres
// store keeps refreshing until ctx is done.
func New(ctx context.Context, cfg config.Config) (Authorizer, error) {
	a := cfg.Letterhead.Auth
	switch a.Mode {
	case config.AuthModeSecret, "":
		return NewSharedSecret(a.Secret), nil
	case config.AuthModeJWT:
		return NewJWT([]byte(a.JWTSecret), a.JWTIssuer), nil
	case config.AuthModePostgres:
		store, err := OpenTokenStore(a.Postgres)
		if err != nil {
			return nil, err
		}
		if err := store.Load(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		go store.RefreshPeriodically(ctx, a.Postgres.RefreshInterval)
		return store, nil
	}
	return nil, fmt.Errorf("unsupported letterhead auth mode %q", a.Mode)
}
