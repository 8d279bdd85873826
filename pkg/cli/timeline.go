package cli

import (
	"context"
	"io"
	"slices"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/reltrace/pkg/cli/config"
	"github.com/m-mizutani/reltrace/pkg/domain/interfaces"
	"github.com/m-mizutani/reltrace/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// timelineFlags groups the configuration every timeline-building command needs
type timelineFlags struct {
	github config.GitHub
	cache  config.Cache
	fetch  config.Fetch
	file   config.File
}

func (f *timelineFlags) flags() []cli.Flag {
	return slices.Concat(f.github.Flags(), f.cache.Flags(), f.fetch.Flags(), f.file.Flags())
}

// build creates the timeline use case. The returned cleanup closes the cache.
func (f *timelineFlags) build(ctx context.Context) (interfaces.RepositoryAPI, interfaces.TimelineUseCase, func(), error) {
	api, err := f.github.NewClient(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := f.cache.Store()
	if err != nil {
		return nil, nil, nil, err
	}

	opts := []usecase.TimelineOption{
		usecase.WithWorkers(f.fetch.Workers),
		usecase.WithMaxPages(f.fetch.MaxPages),
	}
	cleanup := func() {}
	if store != nil {
		opts = append(opts, usecase.WithCache(store, f.cache.TTL))
		if closer, ok := store.(io.Closer); ok {
			cleanup = func() {
				if err := closer.Close(); err != nil {
					ctxlog.From(ctx).Warn("Failed to close cache", "error", err)
				}
			}
		}
	}

	return api, usecase.NewTimeline(api, opts...), cleanup, nil
}
