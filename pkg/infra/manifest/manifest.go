// Package manifest resolves version manifest references given on the command line.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
	"github.com/m-mizutani/reltrace/pkg/domain/types"
	"github.com/pelletier/go-toml/v2"
)

// Resolver turns a manifest reference into a VersionManifest. A reference is a named
// manifest, a JSON or TOML file, or with meta packages the version of those meta packages.
type Resolver struct {
	manifests    map[string]model.VersionManifest
	metaPackages map[string]map[string]model.VersionManifest
}

// NewResolver creates a resolver over named manifests and meta package manifests
// (meta package name to version to manifest)
func NewResolver(manifests map[string]model.VersionManifest, metaPackages map[string]map[string]model.VersionManifest) *Resolver {
	return &Resolver{
		manifests:    manifests,
		metaPackages: metaPackages,
	}
}

// Resolve returns the manifest named by ref. With metaPackages, ref is a version of each
// meta package and their manifests are merged; a package listed by several meta packages
// takes the version of the last one.
func (r *Resolver) Resolve(ctx context.Context, ref string, metaPackages []string) (model.VersionManifest, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, goerr.Wrap(types.ErrUnresolvableManifest, "empty manifest reference")
	}

	if len(metaPackages) > 0 {
		return r.resolveMeta(ctx, ref, metaPackages)
	}

	if m, ok := r.manifests[ref]; ok {
		ctxlog.From(ctx).Debug("Resolved named manifest", "ref", ref, "packages", len(m))
		return maps.Clone(m), nil
	}

	m, err := ReadFile(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, goerr.Wrap(types.ErrUnresolvableManifest, "manifest is neither a known name nor a file",
				goerr.V("ref", ref),
				goerr.V("known", slices.Sorted(maps.Keys(r.manifests))),
			)
		}
		return nil, err
	}
	ctxlog.From(ctx).Debug("Resolved manifest file", "path", ref, "packages", len(m))
	return m, nil
}

func (r *Resolver) resolveMeta(ctx context.Context, version string, metaPackages []string) (model.VersionManifest, error) {
	merged := model.VersionManifest{}
	for _, meta := range metaPackages {
		versions, ok := r.metaPackages[meta]
		if !ok {
			return nil, goerr.Wrap(types.ErrUnresolvableManifest, "unknown meta package", goerr.V("meta_package", meta))
		}
		m, ok := versions[version]
		if !ok {
			return nil, goerr.Wrap(types.ErrUnresolvableManifest, "unknown meta package version",
				goerr.V("meta_package", meta),
				goerr.V("version", version),
				goerr.V("known", slices.Sorted(maps.Keys(versions))),
			)
		}
		maps.Copy(merged, m)
		ctxlog.From(ctx).Debug("Resolved meta package manifest", "meta_package", meta, "version", version, "packages", len(m))
	}
	return merged, nil
}

// ReadFile reads a manifest file. Files ending in .toml are TOML, anything else JSON; both
// hold a flat table of package names to version strings.
func ReadFile(path string) (model.VersionManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read manifest file", goerr.V("path", path))
	}

	var m model.VersionManifest
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(raw, &m)
	} else {
		err = json.Unmarshal(raw, &m)
	}
	if err != nil {
		return nil, goerr.Wrap(types.ErrUnresolvableManifest, "malformed manifest file",
			goerr.V("path", path),
			goerr.V("reason", err.Error()),
		)
	}
	if m == nil {
		m = model.VersionManifest{}
	}
	return m, nil
}
