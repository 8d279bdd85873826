package cache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/reltrace/pkg/domain/interfaces"
	"github.com/m-mizutani/reltrace/pkg/infra/cache"
)

func stores(t *testing.T) map[string]func(t *testing.T) interfaces.CacheStore {
	return map[string]func(t *testing.T) interfaces.CacheStore{
		"file": func(t *testing.T) interfaces.CacheStore {
			store, err := cache.NewFileStore(filepath.Join(t.TempDir(), "entries"))
			gt.NoError(t, err)
			return store
		},
		"sqlite": func(t *testing.T) interfaces.CacheStore {
			store, err := cache.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
			gt.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("missing key", func(t *testing.T) {
				store := newStore(t)
				_, _, ok, err := store.Load(ctx, "sot/repo:since=all")
				gt.NoError(t, err)
				gt.Equal(t, ok, false)
			})

			t.Run("store and load", func(t *testing.T) {
				store := newStore(t)
				before := time.Now().Add(-time.Second)

				gt.NoError(t, store.Store(ctx, "sot/repo:since=all", []byte(`{"owner":"sot"}`)))
				data, storedAt, ok, err := store.Load(ctx, "sot/repo:since=all")
				gt.NoError(t, err)
				gt.True(t, ok)
				gt.Equal(t, string(data), `{"owner":"sot"}`)
				gt.True(t, storedAt.After(before))
			})

			t.Run("store replaces", func(t *testing.T) {
				store := newStore(t)
				gt.NoError(t, store.Store(ctx, "k", []byte("one")))
				gt.NoError(t, store.Store(ctx, "k", []byte("two")))

				data, _, ok, err := store.Load(ctx, "k")
				gt.NoError(t, err)
				gt.True(t, ok)
				gt.Equal(t, string(data), "two")
			})

			t.Run("invalidate by prefix", func(t *testing.T) {
				store := newStore(t)
				for _, key := range []string{"sot/a:since=all", "sot/a:since=3", "sot/ab:since=all"} {
					gt.NoError(t, store.Store(ctx, key, []byte("x")))
				}

				gt.NoError(t, store.Invalidate(ctx, "sot/a:"))

				_, _, ok, err := store.Load(ctx, "sot/a:since=all")
				gt.NoError(t, err)
				gt.Equal(t, ok, false)
				_, _, ok, err = store.Load(ctx, "sot/a:since=3")
				gt.NoError(t, err)
				gt.Equal(t, ok, false)
				_, _, ok, err = store.Load(ctx, "sot/ab:since=all")
				gt.NoError(t, err)
				gt.True(t, ok)
			})
		})
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := cache.NewFileStore(dir)
	gt.NoError(t, err)
	gt.NoError(t, store.Store(ctx, "sot/repo:since=all", []byte("payload")))

	reopened, err := cache.NewFileStore(dir)
	gt.NoError(t, err)
	data, _, ok, err := reopened.Load(ctx, "sot/repo:since=all")
	gt.NoError(t, err)
	gt.True(t, ok)
	gt.Equal(t, string(data), "payload")

	// no temporary files left behind
	files, err := os.ReadDir(dir)
	gt.NoError(t, err)
	gt.Equal(t, len(files), 1)
}

func TestFileStore_SkipsForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := cache.NewFileStore(dir)
	gt.NoError(t, err)
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("not json"), 0o644))
	gt.NoError(t, store.Store(ctx, "sot/repo:since=all", []byte("x")))

	gt.NoError(t, store.Invalidate(ctx, "sot/repo:"))
	_, _, ok, err := store.Load(ctx, "sot/repo:since=all")
	gt.NoError(t, err)
	gt.Equal(t, ok, false)
}
