// Package cache is the content-addressed result cache for analysis
// stages. Keys are derived from the inputs that produced a result, so
// identical document batches hit the same entry regardless of order.
// The cache is advisory: a broken backend degrades every lookup to a
// miss and never fails a stage.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store is the raw cache backend. Get returns (nil, nil) on a miss or
// an expired entry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

// Key builds a cache key from a stage name and the document texts that
// feed it. Texts are sorted before hashing so batch order does not
// change the key.
func Key(stage string, texts []string) string {
	sorted := make([]string, len(texts))
	copy(sorted, texts)
	sort.Strings(sorted)
	return KeyParams(stage, sorted...)
}

// KeyParams builds a cache key from a stage name and explicit scalar
// parameters, hashed in the given order.
func KeyParams(stage string, params ...string) string {
	h := sha256.New()
	h.Write([]byte(stage))
	for _, p := range params {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return stage + ":" + hex.EncodeToString(h.Sum(nil))
}

type Stats struct {
	Entries int64
	Expired int64
}

// SQLite is a sqlite-backed Store sharing the driver setup of the
// relational store.
type SQLite struct {
	db  *sqlx.DB
	now func() time.Time
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	created_at TEXT NOT NULL,
	expires_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
`

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func (c *SQLite) Close() error { return c.db.Close() }

func (c *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var row struct {
		Payload   []byte `db:"payload"`
		ExpiresAt string `db:"expires_at"`
	}
	err := c.db.GetContext(ctx, &row,
		`SELECT payload, expires_at FROM cache_entries WHERE key = ?`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}
	expires, err := time.Parse(time.RFC3339Nano, row.ExpiresAt)
	if err != nil || !c.now().Before(expires) {
		return nil, nil
	}
	return row.Payload, nil
}

func (c *SQLite) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	now := c.now()
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (key, payload, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		key, payload, now.Format(time.RFC3339Nano), now.Add(ttl).Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *SQLite) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := c.db.GetContext(ctx, &s.Entries, `SELECT COUNT(*) FROM cache_entries`); err != nil {
		return s, fmt.Errorf("cache stats: %w", err)
	}
	cutoff := c.now().Format(time.RFC3339Nano)
	if err := c.db.GetContext(ctx, &s.Expired,
		`SELECT COUNT(*) FROM cache_entries WHERE expires_at <= ?`, cutoff); err != nil {
		return s, fmt.Errorf("cache stats: %w", err)
	}
	return s, nil
}

// Clear removes every entry. PurgeExpired removes only entries past
// their deadline; run opportunistically from the CLI.
func (c *SQLite) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	return err
}

func (c *SQLite) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`, c.now().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
