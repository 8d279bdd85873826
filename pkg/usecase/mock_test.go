package usecase_test

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/reltrace/pkg/domain/model"
)

// apiMock serves fixed collections page by page. Unset Func fields fall back to the
// collections.
type apiMock struct {
	mu sync.Mutex

	meta       model.RepositoryMeta
	lastUpdate model.RepositoryLastUpdate
	commits    []model.Commit // newest first
	prs        []model.PullRequest
	releases   []model.RawRelease
	orgRepos   map[string][]string
	pageSize   int

	lastUpdatedFunc func(ctx context.Context, owner, repo string) (*model.RepositoryLastUpdate, error)
	listCommitsFunc func(ctx context.Context, owner, repo, ref, cursor string) (model.Page[model.Commit], error)

	calls map[string]int
}

func (m *apiMock) count(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

func (m *apiMock) callCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *apiMock) size() int {
	if m.pageSize <= 0 {
		return 2
	}
	return m.pageSize
}

func (m *apiMock) GetRepository(ctx context.Context, owner, repo string) (*model.RepositoryMeta, error) {
	m.count("GetRepository")
	meta := m.meta
	return &meta, nil
}

func (m *apiMock) LastUpdated(ctx context.Context, owner, repo string) (*model.RepositoryLastUpdate, error) {
	m.count("LastUpdated")
	if m.lastUpdatedFunc != nil {
		return m.lastUpdatedFunc(ctx, owner, repo)
	}
	u := m.lastUpdate
	return &u, nil
}

func (m *apiMock) ListCommits(ctx context.Context, owner, repo, ref, cursor string) (model.Page[model.Commit], error) {
	m.count("ListCommits")
	if m.listCommitsFunc != nil {
		return m.listCommitsFunc(ctx, owner, repo, ref, cursor)
	}
	return forwardPage(m.commitsFrom(ref), cursor, m.size()), nil
}

func (m *apiMock) CompareCommits(ctx context.Context, owner, repo, base, head, cursor string) (model.Page[model.Commit], error) {
	m.count("CompareCommits")
	headCommits := m.commitsFrom(head)
	baseCommits := m.commitsFrom(base)
	exclude := make(map[string]bool, len(baseCommits))
	for _, c := range baseCommits {
		exclude[c.Hash] = true
	}
	var diff []model.Commit
	for i := len(headCommits) - 1; i >= 0; i-- {
		if !exclude[headCommits[i].Hash] {
			diff = append(diff, headCommits[i])
		}
	}
	return forwardPage(diff, cursor, m.size()), nil
}

func (m *apiMock) CompareStatus(ctx context.Context, owner, repo, base, head string) (model.CompareStatus, error) {
	m.count("CompareStatus")
	baseSet := hashSet(m.commitsFrom(base))
	headSet := hashSet(m.commitsFrom(head))
	baseInHead := subset(baseSet, headSet)
	headInBase := subset(headSet, baseSet)
	switch {
	case baseInHead && headInBase:
		return model.CompareIdentical, nil
	case baseInHead:
		return model.CompareAhead, nil
	case headInBase:
		return model.CompareBehind, nil
	default:
		return model.CompareDiverged, nil
	}
}

func hashSet(commits []model.Commit) map[string]bool {
	set := make(map[string]bool, len(commits))
	for _, c := range commits {
		set[c.Hash] = true
	}
	return set
}

func subset(a, b map[string]bool) bool {
	for h := range a {
		if !b[h] {
			return false
		}
	}
	return true
}

func (m *apiMock) ListPullRequests(ctx context.Context, owner, repo, cursor string) (model.Page[model.PullRequest], error) {
	m.count("ListPullRequests")
	end := len(m.prs)
	if cursor != "" {
		end, _ = strconv.Atoi(cursor)
	}
	start := max(0, end-m.size())
	return model.Page[model.PullRequest]{
		Nodes: m.prs[start:end],
		PageInfo: model.PageInfo{
			StartCursor:     strconv.Itoa(start),
			HasPreviousPage: start > 0,
		},
	}, nil
}

func (m *apiMock) ListReleases(ctx context.Context, owner, repo, cursor string) (model.Page[model.RawRelease], error) {
	m.count("ListReleases")
	return forwardPage(m.releases, cursor, m.size()), nil
}

func (m *apiMock) ListOrganizationRepositories(ctx context.Context, org, cursor string) (model.Page[string], error) {
	m.count("ListOrganizationRepositories")
	return forwardPage(m.orgRepos[org], cursor, m.size()), nil
}

func forwardPage[T any](nodes []T, cursor string, size int) model.Page[T] {
	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(cursor)
	}
	end := min(len(nodes), start+size)
	return model.Page[T]{
		Nodes: nodes[start:end],
		PageInfo: model.PageInfo{
			EndCursor:   strconv.Itoa(end),
			HasNextPage: end < len(nodes),
		},
	}
}

// commitsFrom resolves ref against the linear history: a release tag or a commit hash
// starts at that commit, anything else is treated as the branch head. A release whose
// commit is off the history only reaches its own commit.
func (m *apiMock) commitsFrom(ref string) []model.Commit {
	hash := ref
	tagged := false
	for _, r := range m.releases {
		if r.TagName == ref && r.Tag != nil {
			hash = r.Tag.Hash
			tagged = true
		}
	}
	for i, c := range m.commits {
		if c.Hash == hash {
			return m.commits[i:]
		}
	}
	if tagged {
		return []model.Commit{{Hash: hash}}
	}
	return m.commits
}

func history(hashes ...string) []model.Commit {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	commits := make([]model.Commit, len(hashes))
	for i, h := range hashes {
		commits[i] = model.Commit{
			Hash:       h,
			Message:    "commit " + h,
			AuthoredAt: base.Add(time.Duration(len(hashes)-i) * time.Hour),
		}
	}
	return commits
}

func rawRelease(tag, hash string) model.RawRelease {
	return model.RawRelease{
		TagName:     tag,
		Tag:         &model.TagRef{Kind: model.TagKindCommit, Hash: hash},
		PublishedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func intPtr(n int) *int { return &n }

// memoryCache is an in-memory CacheStore
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	times   map[string]time.Time
	stores  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		entries: make(map[string][]byte),
		times:   make(map[string]time.Time),
	}
}

func (c *memoryCache) Load(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	return data, c.times[key], ok, nil
}

func (c *memoryCache) Store(ctx context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	c.times[key] = time.Now()
	c.stores++
	return nil
}

func (c *memoryCache) Invalidate(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			delete(c.times, key)
		}
	}
	return nil
}

func (c *memoryCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// timelineMock implements interfaces.TimelineUseCase with hooks
type timelineMock struct {
	mu sync.Mutex

	fetchFunc      func(ctx context.Context, fullName string, opts model.FetchOptions) (*model.RepositoryInfo, error)
	fetchAllFunc   func(ctx context.Context, fullNames []string, opts model.FetchOptions) (*model.BatchResult, error)
	invalidateFunc func(ctx context.Context, fullName string) error

	invalidated []string
	fetchAllOps []model.FetchOptions
}

func (m *timelineMock) Fetch(ctx context.Context, fullName string, opts model.FetchOptions) (*model.RepositoryInfo, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, fullName, opts)
	}
	return &model.RepositoryInfo{}, nil
}

func (m *timelineMock) FetchAll(ctx context.Context, fullNames []string, opts model.FetchOptions) (*model.BatchResult, error) {
	m.mu.Lock()
	m.fetchAllOps = append(m.fetchAllOps, opts)
	m.mu.Unlock()
	if m.fetchAllFunc != nil {
		return m.fetchAllFunc(ctx, fullNames, opts)
	}
	return &model.BatchResult{}, nil
}

func (m *timelineMock) Invalidate(ctx context.Context, fullName string) error {
	m.mu.Lock()
	m.invalidated = append(m.invalidated, fullName)
	m.mu.Unlock()
	if m.invalidateFunc != nil {
		return m.invalidateFunc(ctx, fullName)
	}
	return nil
}
