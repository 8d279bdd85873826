package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/interfaces"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
	"github.com/m-mizutani/reltrace/pkg/domain/types"
	"github.com/m-mizutani/reltrace/pkg/utils/paginate"
	"golang.org/x/sync/errgroup"
)

// FetchAll fetches repositories with a bounded number of workers. A repository that
// fails is logged and listed in the result's failures; the others proceed. A stalled
// pagination cursor is listed as a fatal failure. Cancelling
// ctx aborts the whole batch and discards partial results.
func (uc *timelineUseCase) FetchAll(ctx context.Context, fullNames []string, opts model.FetchOptions) (*model.BatchResult, error) {
	runID := uuid.NewString()
	logger := ctxlog.From(ctx).With("run_id", runID)
	ctx = ctxlog.With(ctx, logger)

	logger.Info("Fetching repositories", "count", len(fullNames), "workers", uc.workers)

	infos := make([]*model.RepositoryInfo, len(fullNames))
	failures := make([]*model.RepositoryFailure, len(fullNames))

	var g errgroup.Group
	g.SetLimit(uc.workers)
	for i, fullName := range fullNames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			info, err := uc.Fetch(ctx, fullName, opts)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("Failed to fetch repository", "repository", fullName, "error", err)
				failures[i] = &model.RepositoryFailure{
					Repository: fullName,
					Error:      err.Error(),
					Fatal:      errors.Is(err, types.ErrStalledPagination),
				}
				return nil
			}
			infos[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, goerr.Wrap(err, "batch fetch aborted", goerr.V("run_id", runID))
	}

	result := &model.BatchResult{
		RunID:        runID,
		Time:         uc.now(),
		Repositories: []*model.RepositoryInfo{},
	}
	for i := range fullNames {
		if infos[i] != nil {
			result.Repositories = append(result.Repositories, infos[i])
		}
		if failures[i] != nil {
			result.Failures = append(result.Failures, *failures[i])
		}
	}

	logger.Info("Fetched repositories",
		"succeeded", len(result.Repositories),
		"failed", len(result.Failures),
	)

	return result, nil
}

// ExpandRepositories returns repos followed by every repository of orgs, duplicates
// removed. Explicit entries are validated as owner/name.
func ExpandRepositories(ctx context.Context, api interfaces.RepositoryAPI, orgs, repos []string, opts ...paginate.Option) ([]string, error) {
	seen := make(map[string]struct{})
	var names []string
	add := func(fullName string) {
		if _, ok := seen[fullName]; ok {
			return
		}
		seen[fullName] = struct{}{}
		names = append(names, fullName)
	}

	for _, repo := range repos {
		if _, _, err := model.SplitRepository(repo); err != nil {
			return nil, err
		}
		add(repo)
	}

	for _, org := range orgs {
		fetch := func(ctx context.Context, cursor string) (model.Page[string], error) {
			return api.ListOrganizationRepositories(ctx, org, cursor)
		}
		orgRepos, err := paginate.Traverse(ctx, fetch, "", paginate.Forward, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list organization repositories", goerr.V("org", org))
		}
		ctxlog.From(ctx).Debug("Listed organization repositories", "org", org, "count", len(orgRepos))
		for _, repo := range orgRepos {
			add(repo)
		}
	}

	return names, nil
}
