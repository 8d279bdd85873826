package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/interfaces"
	"github.com/m-mizutani/reltrace/pkg/infra/cache"
	"github.com/urfave/cli/v3"
)

// Cache holds timeline cache configuration
type Cache struct {
	Dir      string
	Backend  string
	TTL      time.Duration
	Disabled bool
}

// Flags returns CLI flags for cache configuration
func (c *Cache) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "cache-dir",
			Usage:       "Cache directory (default: user cache directory)",
			Destination: &c.Dir,
			Sources:     cli.EnvVars("RELTRACE_CACHE_DIR"),
		},
		&cli.StringFlag{
			Name:        "cache-backend",
			Usage:       "Cache backend (file, sqlite)",
			Value:       "file",
			Destination: &c.Backend,
			Sources:     cli.EnvVars("RELTRACE_CACHE_BACKEND"),
		},
		&cli.DurationFlag{
			Name:        "cache-ttl",
			Usage:       "Maximum age of cached timelines, 0 keeps them until the repository changes",
			Destination: &c.TTL,
			Sources:     cli.EnvVars("RELTRACE_CACHE_TTL"),
		},
		&cli.BoolFlag{
			Name:        "no-cache",
			Usage:       "Disable the timeline cache",
			Destination: &c.Disabled,
			Sources:     cli.EnvVars("RELTRACE_NO_CACHE"),
		},
	}
}

// Store opens the configured cache. It returns nil when caching is disabled.
func (c *Cache) Store() (interfaces.CacheStore, error) {
	if c.Disabled {
		return nil, nil
	}

	dir := c.Dir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to find user cache directory")
		}
		dir = filepath.Join(base, "reltrace")
	}

	switch c.Backend {
	case "", "file":
		store, err := cache.NewFileStore(filepath.Join(dir, "timelines"))
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sqlite":
		store, err := cache.NewSQLiteStore(filepath.Join(dir, "timelines.db"))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, goerr.New("unknown cache backend", goerr.V("backend", c.Backend))
	}
}
