package usecase

import (
	"context"
	"slices"

	"github.com/Masterminds/semver/v3"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
	"github.com/m-mizutani/reltrace/pkg/domain/types"
)

// CommitRangeSource provides the commit ranges needed by PartitionCompare. History and
// Compare return commits newest first.
type CommitRangeSource interface {
	// History returns every commit reachable from ref
	History(ctx context.Context, ref string) ([]model.Commit, error)

	// Compare returns the commits reachable from head and not from base
	Compare(ctx context.Context, base, head string) ([]model.Commit, error)

	// Status returns how head relates to base
	Status(ctx context.Context, base, head string) (model.CompareStatus, error)
}

// PartitionHistory splits a linear default-branch history (newest first) into release
// windows. Window 0 holds unreleased commits; a release window starts at its release
// commit and runs until the next older release commit. Releases whose commit is not in
// the history get no window.
func PartitionHistory(ctx context.Context, commits []model.Commit, releases []model.Release, since model.Since) ([]model.ReleaseWindow, error) {
	logger := ctxlog.From(ctx)

	lb, err := newLookBack(releases, since)
	if err != nil {
		return nil, err
	}

	releases = distinctReleases(ctx, releases)
	byHash := make(map[string]model.Release, len(releases))
	for _, r := range releases {
		byHash[r.CommitHash] = r
	}

	windows := []model.ReleaseWindow{{}}
	var current *semver.Version
	for _, c := range commits {
		if r, ok := byHash[c.Hash]; ok {
			if current != nil && !r.Version.LessThan(current) {
				// history order disagrees with version order; keep the commit in the
				// open window so windows stay strictly descending
				logger.Warn("Release is out of version order in history",
					"tag", r.TagName,
					"open_window", windows[len(windows)-1].ReleaseTag,
				)
			} else {
				windows = append(windows, newReleaseWindow(r))
				current = r.Version
			}
		}
		last := &windows[len(windows)-1]
		last.Commits = append(last.Commits, c)
	}

	if len(windows)-1 < len(releases) {
		logger.Debug("Some releases are not on the default branch history",
			"releases", len(releases),
			"windows", len(windows)-1,
		)
	}

	return lb.windows(windows, releases), nil
}

// PartitionCompare builds the same windows as PartitionHistory by comparing release tags
// instead of walking the whole history. Releases not contained in the default branch get
// no window. A release opens a window only if it contains every lower version, which is
// the history rule that skips releases out of version order. Only the windows kept by
// since are fetched: one comparison per window against the next older window, the
// oldest through its own history.
func PartitionCompare(ctx context.Context, src CommitRangeSource, releases []model.Release, defaultBranch string, since model.Since) ([]model.ReleaseWindow, error) {
	lb, err := newLookBack(releases, since)
	if err != nil {
		return nil, err
	}

	releases = distinctReleases(ctx, releases)
	chain, err := releaseChain(ctx, src, releases, defaultBranch)
	if err != nil {
		return nil, err
	}

	windows := []model.ReleaseWindow{{}}
	for _, r := range chain {
		windows = append(windows, newReleaseWindow(r))
	}
	windows = lb.windows(windows, releases)

	bases := make(map[string]string, len(chain)+1)
	if len(chain) > 0 {
		bases[""] = chain[0].TagName
	}
	for i := 0; i+1 < len(chain); i++ {
		bases[chain[i].TagName] = chain[i+1].TagName
	}

	for i := range windows {
		head := windows[i].ReleaseTag
		if head == "" {
			head = defaultBranch
		}

		var commits []model.Commit
		if base, ok := bases[windows[i].ReleaseTag]; ok {
			commits, err = src.Compare(ctx, base, head)
		} else {
			commits, err = src.History(ctx, head)
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to fetch window commits", goerr.V("head", head))
		}
		windows[i].Commits = commits
	}

	return windows, nil
}

// releaseChain returns the releases that open a window, newest first. releases must be
// distinct and sorted newest first.
func releaseChain(ctx context.Context, src CommitRangeSource, releases []model.Release, defaultBranch string) ([]model.Release, error) {
	logger := ctxlog.From(ctx)

	var (
		chain  []model.Release
		newest *model.Release // latest in history among the lower versions seen so far
	)
	for i := len(releases) - 1; i >= 0; i-- {
		r := releases[i]
		onBranch, err := src.Status(ctx, r.TagName, defaultBranch)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to compare release with default branch", goerr.V("tag", r.TagName))
		}
		if !onBranch.Contains() {
			logger.Debug("Release is not on the default branch history",
				"tag", r.TagName,
				"status", onBranch,
			)
			continue
		}

		if newest != nil {
			status, err := src.Status(ctx, newest.TagName, r.TagName)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to compare releases",
					goerr.V("base", newest.TagName),
					goerr.V("head", r.TagName),
				)
			}
			if status != model.CompareAhead {
				logger.Warn("Release is out of version order in history",
					"tag", r.TagName,
					"newer_in_history", newest.TagName,
				)
				continue
			}
		}
		newest = &releases[i]
		chain = append(chain, r)
	}

	slices.Reverse(chain)
	return chain, nil
}

func newReleaseWindow(r model.Release) model.ReleaseWindow {
	return model.ReleaseWindow{
		ReleaseTag:        r.TagName,
		ReleaseCommitHash: r.CommitHash,
		ReleaseDate:       r.PublishedAt,
	}
}

// distinctReleases keeps the highest version of releases sharing a commit. releases must
// be sorted newest first.
func distinctReleases(ctx context.Context, releases []model.Release) []model.Release {
	seen := make(map[string]string, len(releases))
	out := make([]model.Release, 0, len(releases))
	for _, r := range releases {
		if tag, ok := seen[r.CommitHash]; ok {
			ctxlog.From(ctx).Debug("Release shares its commit with a newer release",
				"tag", r.TagName,
				"kept", tag,
				"commit", r.CommitHash,
			)
			continue
		}
		seen[r.CommitHash] = r.TagName
		out = append(out, r)
	}
	return out
}

// lookBack is a Since resolved against a release set
type lookBack struct {
	kind      model.SinceKind
	count     int
	newerThan *semver.Version
}

func newLookBack(releases []model.Release, since model.Since) (*lookBack, error) {
	lb := &lookBack{kind: since.Kind, count: since.Count}
	if since.Kind != model.SinceKindTag {
		return lb, nil
	}

	tags := make([]string, len(releases))
	for i, r := range releases {
		if r.TagName == since.Tag {
			lb.newerThan = r.Version
			return lb, nil
		}
		tags[i] = r.TagName
	}
	return nil, goerr.Wrap(types.ErrUnknownSinceTag, "since must be a release count or a known release tag",
		goerr.V("since", since.Tag),
		goerr.V("releases", tags),
	)
}

// releases returns the releases kept. releases must be sorted newest first.
func (lb *lookBack) releases(releases []model.Release) []model.Release {
	switch lb.kind {
	case model.SinceKindCount:
		if lb.count < len(releases) {
			return releases[:lb.count]
		}
	case model.SinceKindTag:
		var kept []model.Release
		for _, r := range releases {
			if r.Version.GreaterThan(lb.newerThan) {
				kept = append(kept, r)
			}
		}
		return kept
	}
	return releases
}

// windows truncates windows: a count keeps the unreleased window plus that many
// releases, a tag keeps windows of releases strictly newer than the tag.
func (lb *lookBack) windows(windows []model.ReleaseWindow, releases []model.Release) []model.ReleaseWindow {
	switch lb.kind {
	case model.SinceKindCount:
		if lb.count+1 < len(windows) {
			return windows[:lb.count+1]
		}
	case model.SinceKindTag:
		kept := make(map[string]bool)
		for _, r := range lb.releases(releases) {
			kept[r.TagName] = true
		}
		out := []model.ReleaseWindow{windows[0]}
		for _, w := range windows[1:] {
			if kept[w.ReleaseTag] {
				out = append(out, w)
			}
		}
		return out
	}
	return windows
}
