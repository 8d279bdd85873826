package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

// Fetch holds timeline fetch configuration
type Fetch struct {
	Since          string
	Strategy       string
	Workers        int
	MaxPages       int
	IncludeCommits bool
	Refresh        bool
}

// Flags returns CLI flags for fetch configuration
func (c *Fetch) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "since",
			Usage:       "Releases to include: a count, a release tag (exclusive, prefix with tag: for numeric tags), or empty for all",
			Destination: &c.Since,
			Sources:     cli.EnvVars("RELTRACE_SINCE"),
		},
		&cli.StringFlag{
			Name:        "strategy",
			Usage:       "Commit window strategy (history, compare)",
			Value:       string(model.StrategyHistory),
			Destination: &c.Strategy,
			Sources:     cli.EnvVars("RELTRACE_STRATEGY"),
		},
		&cli.IntFlag{
			Name:        "workers",
			Usage:       "Repositories fetched concurrently",
			Value:       4,
			Destination: &c.Workers,
			Sources:     cli.EnvVars("RELTRACE_WORKERS"),
		},
		&cli.IntFlag{
			Name:        "max-pages",
			Usage:       "Maximum pages per paginated collection, 0 for no limit",
			Destination: &c.MaxPages,
			Sources:     cli.EnvVars("RELTRACE_MAX_PAGES"),
		},
		&cli.BoolFlag{
			Name:        "include-commits",
			Usage:       "Include commit lists in release windows",
			Destination: &c.IncludeCommits,
			Sources:     cli.EnvVars("RELTRACE_INCLUDE_COMMITS"),
		},
		&cli.BoolFlag{
			Name:        "refresh",
			Usage:       "Ignore cached timelines",
			Destination: &c.Refresh,
			Sources:     cli.EnvVars("RELTRACE_REFRESH"),
		},
	}
}

// Options returns the fetch options of a timeline
func (c *Fetch) Options() (model.FetchOptions, error) {
	strategy := model.Strategy(c.Strategy)
	switch strategy {
	case "":
		strategy = model.StrategyHistory
	case model.StrategyHistory, model.StrategyCompare:
	default:
		return model.FetchOptions{}, goerr.New("unknown strategy", goerr.V("strategy", c.Strategy))
	}

	return model.FetchOptions{
		Since:          model.ParseSince(c.Since),
		Strategy:       strategy,
		IncludeCommits: c.IncludeCommits,
		Refresh:        c.Refresh,
	}, nil
}
