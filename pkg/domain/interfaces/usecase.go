package interfaces

import (
	"context"

	"github.com/m-mizutani/reltrace/pkg/domain/model"
)

// WebhookUseCase defines the interface for webhook event processing
type WebhookUseCase interface {
	// ProcessEvent processes a webhook event
	ProcessEvent(ctx context.Context, event *model.WebhookEvent) error
}

// TimelineUseCase builds release timelines of repositories
type TimelineUseCase interface {
	// Fetch builds the RepositoryInfo of one repository (owner/name)
	Fetch(ctx context.Context, fullName string, opts model.FetchOptions) (*model.RepositoryInfo, error)

	// FetchAll builds several repositories concurrently. Failures of single
	// repositories are reported in the result, not returned as error.
	FetchAll(ctx context.Context, fullNames []string, opts model.FetchOptions) (*model.BatchResult, error)

	// Invalidate drops cached snapshots of a repository
	Invalidate(ctx context.Context, fullName string) error
}

// ChangelogUseCase renders the merges between two manifests
type ChangelogUseCase interface {
	// Generate fetches the repositories of updated packages and diffs the manifests
	Generate(ctx context.Context, initial, final model.VersionManifest) (*model.ChangeSummary, error)
}
