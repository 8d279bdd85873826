package usecase

import (
	"context"
	"slices"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/interfaces"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
	"github.com/m-mizutani/reltrace/pkg/utils/paginate"
	"golang.org/x/sync/errgroup"
)

type timelineUseCase struct {
	api      interfaces.RepositoryAPI
	cache    interfaces.CacheStore
	cacheTTL time.Duration
	workers  int
	maxPages int
	now      func() time.Time
}

// TimelineOption is a functional option for the timeline use case
type TimelineOption func(*timelineUseCase)

// WithCache stores built timelines in store. Entries older than ttl are rebuilt; a zero
// ttl keeps entries until the repository is pushed or updated.
func WithCache(store interfaces.CacheStore, ttl time.Duration) TimelineOption {
	return func(uc *timelineUseCase) {
		uc.cache = store
		uc.cacheTTL = ttl
	}
}

// WithWorkers sets the number of repositories fetched concurrently by FetchAll
func WithWorkers(n int) TimelineOption {
	return func(uc *timelineUseCase) {
		if n > 0 {
			uc.workers = n
		}
	}
}

// WithMaxPages bounds every paginated traversal. Zero means no limit.
func WithMaxPages(n int) TimelineOption {
	return func(uc *timelineUseCase) {
		uc.maxPages = n
	}
}

// WithClock replaces the clock used for FetchedAt
func WithClock(now func() time.Time) TimelineOption {
	return func(uc *timelineUseCase) {
		uc.now = now
	}
}

// NewTimeline creates a new instance of TimelineUseCase
func NewTimeline(api interfaces.RepositoryAPI, opts ...TimelineOption) interfaces.TimelineUseCase {
	uc := &timelineUseCase{
		api:     api,
		workers: 4,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Fetch builds the RepositoryInfo of fullName, from cache when a current snapshot exists
func (uc *timelineUseCase) Fetch(ctx context.Context, fullName string, opts model.FetchOptions) (*model.RepositoryInfo, error) {
	owner, name, err := model.SplitRepository(fullName)
	if err != nil {
		return nil, err
	}

	logger := ctxlog.From(ctx).With("repository", fullName)
	ctx = ctxlog.With(ctx, logger)

	compute := func(ctx context.Context) (*model.RepositoryInfo, error) {
		return uc.build(ctx, owner, name, opts)
	}
	if uc.cache == nil || opts.Refresh {
		return compute(ctx)
	}

	isStale := func(ctx context.Context, cached *model.RepositoryInfo) (bool, error) {
		last, err := uc.api.LastUpdated(ctx, owner, name)
		if err != nil {
			return false, goerr.Wrap(err, "failed to get last update")
		}
		return last.IsNewerThan(cached), nil
	}

	return getOrCompute(ctx, uc.cache, opts.CacheKey(fullName), uc.cacheTTL, isStale, compute)
}

// Invalidate drops cached snapshots of fullName built with any options
func (uc *timelineUseCase) Invalidate(ctx context.Context, fullName string) error {
	if uc.cache == nil {
		return nil
	}
	if _, _, err := model.SplitRepository(fullName); err != nil {
		return err
	}
	if err := uc.cache.Invalidate(ctx, model.CacheKeyPrefix(fullName)); err != nil {
		return goerr.Wrap(err, "failed to invalidate cache", goerr.V("repository", fullName))
	}
	ctxlog.From(ctx).Info("Invalidated cached timeline", "repository", fullName)
	return nil
}

func (uc *timelineUseCase) build(ctx context.Context, owner, name string, opts model.FetchOptions) (*model.RepositoryInfo, error) {
	logger := ctxlog.From(ctx)
	logger.Info("Fetching repository timeline",
		"since", opts.Since.String(),
		"strategy", opts.Strategy,
	)

	meta, err := uc.api.GetRepository(ctx, owner, name)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get repository")
	}

	src := &rangeSource{api: uc.api, owner: owner, name: name, maxPages: uc.maxPages}

	// the three collections are independent; each one is paginated sequentially
	var (
		rawReleases []model.RawRelease
		prs         []model.PullRequest
		history     []model.Commit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rawReleases, err = paginate.Traverse(gctx, func(ctx context.Context, cursor string) (model.Page[model.RawRelease], error) {
			return uc.api.ListReleases(ctx, owner, name, cursor)
		}, "", paginate.Forward, src.pageOptions()...)
		if err != nil {
			return goerr.Wrap(err, "failed to list releases")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		prs, err = paginate.Traverse(gctx, func(ctx context.Context, cursor string) (model.Page[model.PullRequest], error) {
			return uc.api.ListPullRequests(ctx, owner, name, cursor)
		}, "", paginate.Backward, src.pageOptions()...)
		if err != nil {
			return goerr.Wrap(err, "failed to list pull requests")
		}
		return nil
	})
	if opts.Strategy != model.StrategyCompare {
		g.Go(func() error {
			var err error
			history, err = src.History(gctx, meta.DefaultBranch)
			if err != nil {
				return goerr.Wrap(err, "failed to list commits", goerr.V("branch", meta.DefaultBranch))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	releases, err := BuildReleaseSet(ctx, rawReleases)
	if err != nil {
		return nil, err
	}

	var windows []model.ReleaseWindow
	if opts.Strategy == model.StrategyCompare {
		windows, err = PartitionCompare(ctx, src, releases, meta.DefaultBranch, opts.Since)
	} else {
		windows, err = PartitionHistory(ctx, history, releases, opts.Since)
	}
	if err != nil {
		return nil, err
	}

	info := &model.RepositoryInfo{
		Owner:         owner,
		Name:          name,
		DefaultBranch: meta.DefaultBranch,
		PushedAt:      meta.PushedAt,
		UpdatedAt:     meta.UpdatedAt,
		FetchedAt:     uc.now(),
		BranchCount:   meta.BranchCount,
		IssueCount:    meta.IssueCount,
	}

	for i := range windows {
		merges, warnings := AttributeMerges(ctx, windows[i].Commits, prs)
		windows[i].Merges = merges
		if windows[i].Merges == nil {
			windows[i].Merges = []model.Merge{}
		}
		for _, w := range warnings {
			info.Diagnostics = append(info.Diagnostics, w.String())
		}
	}

	info.Commits = len(windows[0].Commits)
	info.Merges = len(windows[0].Merges)
	if len(releases) > 0 {
		info.LastTag = releases[0].TagName
		info.LastTagDate = releases[0].PublishedAt
	}

	if !opts.IncludeCommits {
		for i := range windows {
			windows[i].Commits = nil
		}
	}
	info.Releases = windows

	info.OpenPullRequests = openPullRequests(prs)
	info.OpenPRCount = len(info.OpenPullRequests)

	logger.Info("Built repository timeline",
		"releases", len(releases),
		"windows", len(windows),
		"pull_requests", len(prs),
		"unreleased_merges", info.Merges,
	)

	return info, nil
}

func openPullRequests(prs []model.PullRequest) []model.PullRequestSummary {
	out := []model.PullRequestSummary{}
	for _, pr := range prs {
		if pr.State != model.PullRequestOpen {
			continue
		}
		out = append(out, model.PullRequestSummary{
			Number:       pr.Number,
			URL:          pr.URL,
			Title:        pr.Title,
			CommitCount:  pr.CommitCount,
			LastCommitAt: pr.LastCommitAt,
		})
	}
	slices.SortFunc(out, func(a, b model.PullRequestSummary) int {
		return b.Number - a.Number
	})
	return out
}

// rangeSource serves commit ranges of one repository from a RepositoryAPI
type rangeSource struct {
	api      interfaces.RepositoryAPI
	owner    string
	name     string
	maxPages int
}

func (s *rangeSource) pageOptions() []paginate.Option {
	return []paginate.Option{paginate.WithMaxPages(s.maxPages)}
}

func (s *rangeSource) History(ctx context.Context, ref string) ([]model.Commit, error) {
	return paginate.Traverse(ctx, func(ctx context.Context, cursor string) (model.Page[model.Commit], error) {
		return s.api.ListCommits(ctx, s.owner, s.name, ref, cursor)
	}, "", paginate.Forward, s.pageOptions()...)
}

func (s *rangeSource) Compare(ctx context.Context, base, head string) ([]model.Commit, error) {
	commits, err := paginate.Traverse(ctx, func(ctx context.Context, cursor string) (model.Page[model.Commit], error) {
		return s.api.CompareCommits(ctx, s.owner, s.name, base, head, cursor)
	}, "", paginate.Forward, s.pageOptions()...)
	if err != nil {
		return nil, err
	}
	slices.Reverse(commits)
	return commits, nil
}

func (s *rangeSource) Status(ctx context.Context, base, head string) (model.CompareStatus, error) {
	return s.api.CompareStatus(ctx, s.owner, s.name, base, head)
}
