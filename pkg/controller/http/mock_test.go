package http_test

import (
	"context"
	"sync"

	"github.com/m-mizutani/reltrace/pkg/domain/model"
)

type webhookMock struct {
	mu     sync.Mutex
	events []*model.WebhookEvent
	err    error
}

func (m *webhookMock) ProcessEvent(ctx context.Context, event *model.WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

type timelineMock struct {
	fetchFunc func(ctx context.Context, fullName string, opts model.FetchOptions) (*model.RepositoryInfo, error)
}

func (m *timelineMock) Fetch(ctx context.Context, fullName string, opts model.FetchOptions) (*model.RepositoryInfo, error) {
	return m.fetchFunc(ctx, fullName, opts)
}

func (m *timelineMock) FetchAll(ctx context.Context, fullNames []string, opts model.FetchOptions) (*model.BatchResult, error) {
	result := &model.BatchResult{}
	for _, name := range fullNames {
		info, err := m.Fetch(ctx, name, opts)
		if err != nil {
			result.Failures = append(result.Failures, model.RepositoryFailure{Repository: name, Error: err.Error()})
			continue
		}
		result.Repositories = append(result.Repositories, info)
	}
	return result, nil
}

func (m *timelineMock) Invalidate(ctx context.Context, fullName string) error {
	return nil
}

type changelogMock struct {
	generateFunc func(ctx context.Context, initial, final model.VersionManifest) (*model.ChangeSummary, error)
}

func (m *changelogMock) Generate(ctx context.Context, initial, final model.VersionManifest) (*model.ChangeSummary, error) {
	return m.generateFunc(ctx, initial, final)
}
