package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
	"github.com/m-mizutani/reltrace/pkg/usecase"
)

func TestWebhookUseCase_ProcessEvent(t *testing.T) {
	tests := []struct {
		name           string
		event          *model.WebhookEvent
		wantInvalidate bool
	}{
		{
			name: "merged pull request",
			event: &model.WebhookEvent{
				ID:         "test-delivery-1",
				Type:       model.EventTypePullRequest,
				Action:     "closed",
				Repository: "test/repo",
				Sender:     "testuser",
				ReceivedAt: time.Now(),
			},
			wantInvalidate: true,
		},
		{
			name: "published release",
			event: &model.WebhookEvent{
				ID:         "test-delivery-2",
				Type:       model.EventTypeRelease,
				Action:     "published",
				Repository: "test/repo",
			},
			wantInvalidate: true,
		},
		{
			name: "push to default branch",
			event: &model.WebhookEvent{
				ID:            "test-delivery-3",
				Type:          model.EventTypePush,
				Ref:           "refs/heads/main",
				DefaultBranch: "main",
				Repository:    "test/repo",
			},
			wantInvalidate: true,
		},
		{
			name: "push to feature branch",
			event: &model.WebhookEvent{
				ID:            "test-delivery-4",
				Type:          model.EventTypePush,
				Ref:           "refs/heads/feature",
				DefaultBranch: "main",
				Repository:    "test/repo",
			},
			wantInvalidate: false,
		},
		{
			name: "opened pull request",
			event: &model.WebhookEvent{
				ID:         "test-delivery-5",
				Type:       model.EventTypePullRequest,
				Action:     "opened",
				Repository: "test/repo",
			},
			wantInvalidate: false,
		},
		{
			name: "unknown event type",
			event: &model.WebhookEvent{
				ID:         "test-delivery-6",
				Type:       model.EventTypeUnknown,
				Action:     "unknown",
				Repository: "test/repo",
			},
			wantInvalidate: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timeline := &timelineMock{}
			uc := usecase.NewWebhook(timeline)

			gt.NoError(t, uc.ProcessEvent(context.Background(), tt.event))
			if tt.wantInvalidate {
				gt.Equal(t, timeline.invalidated, []string{"test/repo"})
			} else {
				gt.Equal(t, len(timeline.invalidated), 0)
			}
		})
	}
}

func TestWebhookUseCase_Refetch(t *testing.T) {
	fetched := make(chan model.FetchOptions, 1)
	timeline := &timelineMock{
		fetchFunc: func(ctx context.Context, fullName string, opts model.FetchOptions) (*model.RepositoryInfo, error) {
			fetched <- opts
			return &model.RepositoryInfo{}, nil
		},
	}
	opts := model.FetchOptions{Since: model.SinceCount(5)}
	uc := usecase.NewWebhook(timeline, usecase.WithRefetch(opts))

	gt.NoError(t, uc.ProcessEvent(context.Background(), &model.WebhookEvent{
		Type:       model.EventTypeRelease,
		Action:     "released",
		Repository: "test/repo",
	}))

	select {
	case got := <-fetched:
		gt.Equal(t, got.Since.Count, 5)
	case <-time.After(time.Second):
		t.Fatal("refetch was not dispatched")
	}
}

func TestWebhookUseCase_InvalidateError(t *testing.T) {
	timeline := &timelineMock{
		invalidateFunc: func(ctx context.Context, fullName string) error {
			return errors.New("disk full")
		},
	}
	uc := usecase.NewWebhook(timeline)

	err := uc.ProcessEvent(context.Background(), &model.WebhookEvent{
		Type:       model.EventTypeRelease,
		Action:     "deleted",
		Repository: "test/repo",
	})
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("failed to invalidate timeline")
}
