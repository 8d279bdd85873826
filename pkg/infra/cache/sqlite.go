package cache

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/interfaces"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	key TEXT PRIMARY KEY,
	stored_at TEXT NOT NULL,
	data BLOB NOT NULL
);
`

// SQLiteStore keeps entries in a single SQLite database
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ interfaces.CacheStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create cache directory", goerr.V("path", path))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open cache database", goerr.V("path", path))
	}

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		sqliteSchema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, goerr.Wrap(err, "failed to initialize cache database", goerr.V("path", path))
		}
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the entry stored under key
func (s *SQLiteStore) Load(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	var (
		storedAt string
		data     []byte
	)
	err := s.db.QueryRowContext(ctx, "SELECT stored_at, data FROM entries WHERE key = ?", key).Scan(&storedAt, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, goerr.Wrap(err, "failed to query cache entry", goerr.V("key", key))
	}

	t, err := time.Parse(time.RFC3339Nano, storedAt)
	if err != nil {
		return nil, time.Time{}, false, goerr.Wrap(err, "malformed cache timestamp", goerr.V("key", key))
	}
	return data, t, true, nil
}

// Store writes data under key, replacing any previous entry
func (s *SQLiteStore) Store(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO entries (key, stored_at, data) VALUES (?, ?, ?)",
		key, s.now().UTC().Format(time.RFC3339Nano), data,
	)
	if err != nil {
		return goerr.Wrap(err, "failed to store cache entry", goerr.V("key", key))
	}
	return nil
}

// Invalidate removes every entry whose key starts with prefix
func (s *SQLiteStore) Invalidate(ctx context.Context, prefix string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM entries WHERE substr(key, 1, length(?)) = ?`,
		prefix, prefix,
	); err != nil {
		return goerr.Wrap(err, "failed to invalidate cache entries", goerr.V("prefix", prefix))
	}
	return nil
}
