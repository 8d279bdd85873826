package manifest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
	"github.com/m-mizutani/reltrace/pkg/domain/types"
	"github.com/m-mizutani/reltrace/pkg/infra/manifest"
)

func newResolver() *manifest.Resolver {
	return manifest.NewResolver(
		map[string]model.VersionManifest{
			"flight": {"Quaternion": "3.5.1", "Chandra.Time": "4.0"},
		},
		map[string]map[string]model.VersionManifest{
			"ska3-core": {
				"2024.1": {"numpy": "1.26", "astropy": "5.3"},
			},
			"ska3-flight": {
				"2024.1": {"Quaternion": "3.5.1", "numpy": "1.26.4"},
			},
		},
	)
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	r := newResolver()

	t.Run("named manifest", func(t *testing.T) {
		m, err := r.Resolve(ctx, "flight", nil)
		gt.NoError(t, err)
		gt.Equal(t, m, model.VersionManifest{"Quaternion": "3.5.1", "Chandra.Time": "4.0"})

		// callers may modify the result
		m["Quaternion"] = "0"
		again, err := r.Resolve(ctx, "flight", nil)
		gt.NoError(t, err)
		gt.Equal(t, again["Quaternion"], "3.5.1")
	})

	t.Run("JSON file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "final.json")
		gt.NoError(t, os.WriteFile(path, []byte(`{"A": "1.0", "B": "2.0"}`), 0o644))

		m, err := r.Resolve(ctx, path, nil)
		gt.NoError(t, err)
		gt.Equal(t, m, model.VersionManifest{"A": "1.0", "B": "2.0"})
	})

	t.Run("TOML file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "final.toml")
		gt.NoError(t, os.WriteFile(path, []byte("A = \"1.0\"\n\"Chandra.Time\" = \"4.1\"\n"), 0o644))

		m, err := r.Resolve(ctx, path, nil)
		gt.NoError(t, err)
		gt.Equal(t, m, model.VersionManifest{"A": "1.0", "Chandra.Time": "4.1"})
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.json")
		gt.NoError(t, os.WriteFile(path, []byte(`["not", "a", "table"]`), 0o644))

		_, err := r.Resolve(ctx, path, nil)
		gt.True(t, errors.Is(err, types.ErrUnresolvableManifest))
	})

	t.Run("unresolvable reference", func(t *testing.T) {
		_, err := r.Resolve(ctx, "no-such-manifest", nil)
		gt.True(t, errors.Is(err, types.ErrUnresolvableManifest))

		_, err = r.Resolve(ctx, " ", nil)
		gt.True(t, errors.Is(err, types.ErrUnresolvableManifest))
	})

	t.Run("meta packages are merged", func(t *testing.T) {
		m, err := r.Resolve(ctx, "2024.1", []string{"ska3-core", "ska3-flight"})
		gt.NoError(t, err)
		gt.Equal(t, m, model.VersionManifest{"numpy": "1.26.4", "astropy": "5.3", "Quaternion": "3.5.1"})
	})

	t.Run("unknown meta package version", func(t *testing.T) {
		_, err := r.Resolve(ctx, "2023.9", []string{"ska3-core"})
		gt.True(t, errors.Is(err, types.ErrUnresolvableManifest))

		_, err = r.Resolve(ctx, "2024.1", []string{"ska3-unknown"})
		gt.True(t, errors.Is(err, types.ErrUnresolvableManifest))
	})
}
