package config

import (
	"errors"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// FileConfig is the TOML configuration file
type FileConfig struct {
	// Owner is the default owner of packages without an explicit repository
	Owner         string                                      `toml:"owner"`
	Organizations []string                                    `toml:"organizations"`
	Repositories  []string                                    `toml:"repositories"`
	Packages      map[string]string                           `toml:"packages"`
	Manifests     map[string]model.VersionManifest            `toml:"manifests"`
	MetaPackages  map[string]map[string]model.VersionManifest `toml:"meta_packages"`
}

// File holds the path of the configuration file
type File struct {
	Path string
}

// Flags returns CLI flags for the configuration file
func (c *File) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to TOML configuration file",
			Value:       "reltrace.toml",
			Destination: &c.Path,
			Sources:     cli.EnvVars("RELTRACE_CONFIG"),
		},
	}
}

// Load reads the configuration file. A missing file yields an empty configuration.
func (c *File) Load() (*FileConfig, error) {
	cfg := &FileConfig{
		Packages:     map[string]string{},
		Manifests:    map[string]model.VersionManifest{},
		MetaPackages: map[string]map[string]model.VersionManifest{},
	}
	if c.Path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", c.Path))
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", c.Path))
	}
	return cfg, nil
}
