package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/interfaces"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
	"github.com/m-mizutani/reltrace/pkg/utils/async"
)

const defaultRefetchTimeout = 5 * time.Minute

type webhookUseCase struct {
	timeline       interfaces.TimelineUseCase
	refetch        *model.FetchOptions
	refetchTimeout time.Duration
}

// WebhookOption is a functional option for the webhook use case
type WebhookOption func(*webhookUseCase)

// WithRefetch rebuilds the timeline of a repository in the background after its cache
// entries are invalidated
func WithRefetch(opts model.FetchOptions) WebhookOption {
	return func(uc *webhookUseCase) {
		uc.refetch = &opts
	}
}

// WithRefetchTimeout bounds a background refetch
func WithRefetchTimeout(d time.Duration) WebhookOption {
	return func(uc *webhookUseCase) {
		uc.refetchTimeout = d
	}
}

// NewWebhook creates a new instance of WebhookUseCase
func NewWebhook(timeline interfaces.TimelineUseCase, opts ...WebhookOption) *webhookUseCase {
	uc := &webhookUseCase{
		timeline:       timeline,
		refetchTimeout: defaultRefetchTimeout,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ProcessEvent invalidates the cached timeline of the event's repository when the event
// can change it
func (uc *webhookUseCase) ProcessEvent(ctx context.Context, event *model.WebhookEvent) error {
	logger := ctxlog.From(ctx)

	logger.Info("Processing webhook event",
		"id", event.ID,
		"type", event.Type,
		"action", event.Action,
		"repository", event.Repository,
		"sender", event.Sender,
		"supported", event.IsSupportedEvent(),
	)

	if !event.IsSupportedEvent() {
		logger.Debug("Ignoring event",
			"type", event.Type,
			"action", event.Action,
		)
		return nil
	}
	if !event.TouchesDefaultBranch() {
		logger.Debug("Ignoring push to non-default branch", "ref", event.Ref)
		return nil
	}

	if err := uc.timeline.Invalidate(ctx, event.Repository); err != nil {
		return goerr.Wrap(err, "failed to invalidate timeline",
			goerr.V("event_id", event.ID),
			goerr.V("repository", event.Repository),
		)
	}

	if uc.refetch != nil {
		opts := *uc.refetch
		repository := event.Repository
		async.Dispatch(ctx, func(ctx context.Context) error {
			if _, err := uc.timeline.Fetch(ctx, repository, opts); err != nil {
				return goerr.Wrap(err, "failed to refetch timeline", goerr.V("repository", repository))
			}
			ctxlog.From(ctx).Info("Refetched timeline", "repository", repository)
			return nil
		}, async.WithTask("refetch"), async.WithTimeout(uc.refetchTimeout))
	}

	return nil
}
