package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"dazzlodocs/internal/config"
	"dazzlodocs/internal/infra/logging"
)

// ErrTokenStoreNotReady signals that the token cache has not been loaded yet.
// This can happen during startup when the DB isn't ready.
var ErrTokenStoreNotReady = errors.New("token store not ready")

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const defaultTokenTable = "letterhead_tokens"

// TokenStore authorizes against a Postgres table of letterhead tokens. The
// table is cached in memory as SHA-256 digests and reloaded periodically.
type TokenStore struct {
	db    *sql.DB
	table string

	mu     sync.RWMutex
	hashes map[string]struct{}
}

// NewTokenStore returns a store with no database, fed through Replace.
func NewTokenStore() *TokenStore {
	return &TokenStore{table: defaultTokenTable}
}

// OpenTokenStore connects to Postgres and ensures the token table exists.
func OpenTokenStore(cfg config.PostgresConfig) (*TokenStore, error) {
	table := cfg.Table
	if table == "" {
		table = defaultTokenTable
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid token table name %q", table)
	}
	dsn, err := postgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// This is a small, low-throughput control plane table.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping token store: %w", err)
	}

	s := &TokenStore{db: db, table: table}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *TokenStore) ensureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
			token TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			expires_at TIMESTAMPTZ,
			comment TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_` + s.table + `_expires_at ON ` + s.table + ` (expires_at);`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure token schema: %w", err)
		}
	}
	return nil
}

// Load reads every unexpired token into the cache.
func (s *TokenStore) Load(ctx context.Context) error {
	if s.db == nil {
		return errors.New("token store has no database")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT token FROM `+s.table+` WHERE expires_at IS NULL OR expires_at > now();`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	s.Replace(tokens)
	return nil
}

// Replace swaps the cached token set.
func (s *TokenStore) Replace(tokens []string) {
	hashes := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		hashes[hashToken(t)] = struct{}{}
	}
	s.mu.Lock()
	s.hashes = hashes
	s.mu.Unlock()
}

// Ready reports whether the cache has been loaded at least once.
func (s *TokenStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hashes != nil
}

func (s *TokenStore) Authorize(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hashes == nil {
		return false, ErrTokenStoreNotReady
	}
	if token == "" {
		return false, nil
	}
	_, ok := s.hashes[hashToken(token)]
	return ok, nil
}

// RefreshPeriodically reloads the cache every interval until ctx is done.
func (s *TokenStore) RefreshPeriodically(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Load(ctx); err != nil {
				logging.Error("Failed to reload letterhead tokens", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *TokenStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func postgresPort(cfg config.PostgresConfig) int {
	if cfg.Port != 0 {
		return cfg.Port
	}
	return 5432
}

func postgresDSN(cfg config.PostgresConfig) (string, error) {
	if strings.HasPrefix(cfg.Host, "postgres://") || strings.HasPrefix(cfg.Host, "postgresql://") {
		return cfg.Host, nil
	}
	if cfg.Host == "" {
		return "", fmt.Errorf("postgres host is empty")
	}
	if cfg.Database == "" {
		return "", fmt.Errorf("postgres database is empty")
	}
	if cfg.User == "" {
		return "", fmt.Errorf("postgres user is empty")
	}

	hostPort := cfg.Host
	port := postgresPort(cfg)
	// Handle IPv6 or explicit host:port strings.
	switch {
	case strings.HasPrefix(hostPort, "["):
		if !strings.Contains(hostPort, "]:") {
			hostPort = fmt.Sprintf("%s:%d", hostPort, port)
		}
	case strings.Count(hostPort, ":") >= 2:
		hostPort = fmt.Sprintf("[%s]:%d", hostPort, port)
	case !strings.Contains(hostPort, ":"):
		hostPort = fmt.Sprintf("%s:%d", hostPort, port)
	}

	u := &url.URL{Scheme: "postgres", Host: hostPort, Path: "/" + cfg.Database}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}
	q := u.Query()
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
