// Package cache stores compiled modules in SQLite, keyed by the content
// they were compiled from.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	_ "modernc.org/sqlite"

	"github.com/chazu/flowscript/compiler"
)

// ErrMiss indicates the key has no entry.
var ErrMiss = errors.New("cache miss")

// Entry is one cached compilation.
type Entry struct {
	Module   []byte // encoded module
	Warnings []compiler.Warning
	BuildID  string // build that produced the entry
	Created  time.Time
}

// Cache is a compile cache backed by a SQLite database. It is safe for
// concurrent use.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Key identifies a compilation: the source text, the fingerprint of the
// function library it was resolved against, and the entry procedure name.
func Key(source []byte, fingerprint, entry string) string {
	h := sha256.New()
	h.Write(source)
	h.Write([]byte{0})
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write([]byte(entry))
	return hex.EncodeToString(h.Sum(nil))
}

// Open opens or creates the cache database at path. The path ":memory:"
// gives a private in-memory cache.
func Open(path string) (*Cache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	if path == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS modules (
		key      TEXT PRIMARY KEY,
		module   BLOB NOT NULL,
		warnings BLOB,
		build_id TEXT NOT NULL,
		created  INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	return &Cache{db: db, path: path}, nil
}

// Path returns the database path.
func (c *Cache) Path() string { return c.path }

// Close closes the database.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns the entry for key, or ErrMiss.
func (c *Cache) Get(ctx context.Context, key string) (*Entry, error) {
	var (
		e        Entry
		warnings []byte
		created  int64
	)
	err := c.db.QueryRowContext(ctx,
		"SELECT module, warnings, build_id, created FROM modules WHERE key = ?", key,
	).Scan(&e.Module, &warnings, &e.BuildID, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("querying cache: %w", err)
	}
	if len(warnings) > 0 {
		if err := cbor.Unmarshal(warnings, &e.Warnings); err != nil {
			return nil, fmt.Errorf("decoding warnings: %w", err)
		}
	}
	e.Created = time.Unix(0, created)
	return &e, nil
}

// Put stores e under key, replacing any previous entry. A zero Created is
// set to the current time.
func (c *Cache) Put(ctx context.Context, key string, e *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var warnings []byte
	if len(e.Warnings) > 0 {
		var err error
		if warnings, err = cbor.Marshal(e.Warnings); err != nil {
			return fmt.Errorf("encoding warnings: %w", err)
		}
	}
	created := e.Created
	if created.IsZero() {
		created = time.Now()
	}
	_, err := c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO modules (key, module, warnings, build_id, created) VALUES (?, ?, ?, ?, ?)",
		key, e.Module, warnings, e.BuildID, created.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving module: %w", err)
	}
	return nil
}

// Len returns the number of entries.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM modules").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting modules: %w", err)
	}
	return n, nil
}

// Prune deletes entries created before cutoff and returns how many were
// removed.
func (c *Cache) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.ExecContext(ctx, "DELETE FROM modules WHERE created < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return res.RowsAffected()
}
