package interfaces

import (
	"context"

	"github.com/m-mizutani/reltrace/pkg/domain/model"
)

// RepositoryAPI is the page-level view of the hosting API used to reconstruct release
// timelines. Cursors are opaque; an empty cursor requests the first page.
type RepositoryAPI interface {
	// GetRepository returns repository metadata and counters
	GetRepository(ctx context.Context, owner, repo string) (*model.RepositoryMeta, error)

	// LastUpdated returns the push/update timestamps used to invalidate snapshots
	LastUpdated(ctx context.Context, owner, repo string) (*model.RepositoryLastUpdate, error)

	// ListCommits returns a page of the history reachable from ref, newest first.
	// Pages advance forward.
	ListCommits(ctx context.Context, owner, repo, ref, cursor string) (model.Page[model.Commit], error)

	// CompareCommits returns a page of commits reachable from head but not from base,
	// oldest first. Pages advance forward.
	CompareCommits(ctx context.Context, owner, repo, base, head, cursor string) (model.Page[model.Commit], error)

	// CompareStatus returns how head relates to base without listing commits
	CompareStatus(ctx context.Context, owner, repo, base, head string) (model.CompareStatus, error)

	// ListPullRequests returns a page of pull requests of every state, newest first.
	// Pages advance backward (StartCursor/HasPreviousPage).
	ListPullRequests(ctx context.Context, owner, repo, cursor string) (model.Page[model.PullRequest], error)

	// ListReleases returns a page of releases with their tag reference chains.
	// Pages advance forward.
	ListReleases(ctx context.Context, owner, repo, cursor string) (model.Page[model.RawRelease], error)

	// ListOrganizationRepositories returns a page of full names (owner/name) of the
	// non-archived source repositories of an organization. Pages advance forward.
	ListOrganizationRepositories(ctx context.Context, org, cursor string) (model.Page[string], error)
}
