// Package cache persists built timelines between runs.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/interfaces"
)

type fileEntry struct {
	Key      string    `json:"key"`
	StoredAt time.Time `json:"stored_at"`
	Data     []byte    `json:"data"`
}

// FileStore keeps one JSON file per key in a directory
type FileStore struct {
	dir string
	now func() time.Time

	// serializes writers within the process; files are replaced atomically
	mu sync.Mutex
}

var _ interfaces.CacheStore = (*FileStore)(nil)

// NewFileStore creates dir if needed and returns a store writing into it
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create cache directory", goerr.V("dir", dir))
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".json")
}

// Load returns the entry stored under key
func (s *FileStore) Load(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	entry, err := readEntry(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, time.Time{}, false, nil
		}
		return nil, time.Time{}, false, goerr.Wrap(err, "failed to read cache entry", goerr.V("key", key))
	}
	if entry.Key != key {
		// digest collision or foreign file
		return nil, time.Time{}, false, nil
	}
	return entry.Data, entry.StoredAt, true, nil
}

func readEntry(path string) (*fileEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry fileEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, goerr.Wrap(err, "malformed cache file", goerr.V("path", path))
	}
	return &entry, nil
}

// Store writes data under key, replacing any previous entry
func (s *FileStore) Store(ctx context.Context, key string, data []byte) error {
	raw, err := json.Marshal(&fileEntry{Key: key, StoredAt: s.now(), Data: data})
	if err != nil {
		return goerr.Wrap(err, "failed to encode cache entry", goerr.V("key", key))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".entry-*")
	if err != nil {
		return goerr.Wrap(err, "failed to create cache file", goerr.V("dir", s.dir))
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return goerr.Wrap(err, "failed to write cache file", goerr.V("key", key))
	}
	if err := tmp.Close(); err != nil {
		return goerr.Wrap(err, "failed to close cache file", goerr.V("key", key))
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return goerr.Wrap(err, "failed to replace cache file", goerr.V("key", key))
	}
	return nil
}

// Invalidate removes every entry whose key starts with prefix
func (s *FileStore) Invalidate(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return goerr.Wrap(err, "failed to list cache files", goerr.V("dir", s.dir))
	}

	removed := 0
	for _, path := range files {
		entry, err := readEntry(path)
		if err != nil {
			ctxlog.From(ctx).Warn("Skipping unreadable cache file", "path", path, "error", err)
			continue
		}
		if !strings.HasPrefix(entry.Key, prefix) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return goerr.Wrap(err, "failed to remove cache file", goerr.V("path", path))
		}
		removed++
	}

	ctxlog.From(ctx).Debug("Invalidated cache entries", "prefix", prefix, "removed", removed)
	return nil
}
