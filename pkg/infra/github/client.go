package github

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/interfaces"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
	"github.com/m-mizutani/reltrace/pkg/domain/types"
	"github.com/m-mizutani/reltrace/pkg/utils/paginate"
)

const (
	perPage = 100

	// tagChainDepth bounds annotated tag chains. Deeper chains are cut and fail resolution.
	tagChainDepth = 10

	defaultTimeout = 30 * time.Second
)

type client struct {
	gh *github.Client
}

type options struct {
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
}

// Option configures the GitHub client
type Option func(*options)

// WithBaseURL points the client to another API root, e.g. GitHub Enterprise or a test server
func WithBaseURL(u string) Option {
	return func(o *options) {
		o.baseURL = u
	}
}

// WithTimeout sets the timeout of every API call
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithTransport replaces the base HTTP transport
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		timeout:   defaultTimeout,
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) apply(gh *github.Client) (*github.Client, error) {
	if o.baseURL == "" {
		return gh, nil
	}
	u, err := url.Parse(strings.TrimSuffix(o.baseURL, "/") + "/")
	if err != nil {
		return nil, goerr.Wrap(err, "invalid GitHub API base URL", goerr.V("url", o.baseURL))
	}
	gh.BaseURL = u
	return gh, nil
}

// NewClient creates a new GitHub client authenticated by a personal access token. An
// empty token makes unauthenticated calls.
func NewClient(token string, opts ...Option) (interfaces.RepositoryAPI, error) {
	o := newOptions(opts)

	gh := github.NewClient(&http.Client{Transport: o.transport, Timeout: o.timeout})
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	gh, err := o.apply(gh)
	if err != nil {
		return nil, err
	}
	return &client{gh: gh}, nil
}

// NewAppClient creates a new GitHub client with App installation authentication
func NewAppClient(appID, installationID int64, privateKey []byte, opts ...Option) (interfaces.RepositoryAPI, error) {
	o := newOptions(opts)

	itr, err := ghinstallation.New(o.transport, appID, installationID, privateKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub App transport",
			goerr.V("app_id", appID),
			goerr.V("installation_id", installationID),
		)
	}
	if o.baseURL != "" {
		itr.BaseURL = strings.TrimSuffix(o.baseURL, "/")
	}

	gh, err := o.apply(github.NewClient(&http.Client{Transport: itr, Timeout: o.timeout}))
	if err != nil {
		return nil, err
	}
	return &client{gh: gh}, nil
}

func pageNumber(cursor string) (int, error) {
	if cursor == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(cursor)
	if err != nil || n < 1 {
		return 0, goerr.New("invalid page cursor", goerr.V("cursor", cursor))
	}
	return n, nil
}

func nextCursor(resp *github.Response) (bool, string) {
	if resp == nil || resp.NextPage == 0 {
		return false, ""
	}
	return true, strconv.Itoa(resp.NextPage)
}

func forwardInfo(resp *github.Response) model.PageInfo {
	hasMore, next := nextCursor(resp)
	return model.PageInfo{HasNextPage: hasMore, EndCursor: next}
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

// GetRepository returns repository metadata with branch and open issue counters
func (c *client) GetRepository(ctx context.Context, owner, repo string) (*model.RepositoryMeta, error) {
	r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		if isNotFound(err) {
			return nil, goerr.Wrap(types.ErrRepositoryNotFound, "failed to get repository",
				goerr.V("owner", owner), goerr.V("repo", repo), goerr.V("cause", err.Error()))
		}
		return nil, goerr.Wrap(err, "failed to get repository", goerr.V("owner", owner), goerr.V("repo", repo))
	}
	if r.GetDefaultBranch() == "" {
		return nil, goerr.New("repository has no default branch", goerr.V("owner", owner), goerr.V("repo", repo))
	}

	branches, err := paginate.Traverse(ctx, func(ctx context.Context, cursor string) (model.Page[string], error) {
		return c.listBranches(ctx, owner, repo, cursor)
	}, "", paginate.Forward)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list branches", goerr.V("owner", owner), goerr.V("repo", repo))
	}

	issues, err := paginate.Traverse(ctx, func(ctx context.Context, cursor string) (model.Page[int], error) {
		return c.listOpenIssues(ctx, owner, repo, cursor)
	}, "", paginate.Forward)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list issues", goerr.V("owner", owner), goerr.V("repo", repo))
	}

	return &model.RepositoryMeta{
		DefaultBranch: r.GetDefaultBranch(),
		PushedAt:      r.GetPushedAt().Time,
		UpdatedAt:     r.GetUpdatedAt().Time,
		BranchCount:   len(branches),
		IssueCount:    len(issues),
	}, nil
}

func (c *client) listBranches(ctx context.Context, owner, repo, cursor string) (model.Page[string], error) {
	page, err := pageNumber(cursor)
	if err != nil {
		return model.Page[string]{}, err
	}
	branches, resp, err := c.gh.Repositories.ListBranches(ctx, owner, repo, &github.BranchListOptions{
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	})
	if err != nil {
		return model.Page[string]{}, err
	}

	names := make([]string, 0, len(branches))
	for _, b := range branches {
		names = append(names, b.GetName())
	}
	return model.Page[string]{Nodes: names, PageInfo: forwardInfo(resp)}, nil
}

// listOpenIssues returns numbers of open issues, pull requests excluded
func (c *client) listOpenIssues(ctx context.Context, owner, repo, cursor string) (model.Page[int], error) {
	page, err := pageNumber(cursor)
	if err != nil {
		return model.Page[int]{}, err
	}
	issues, resp, err := c.gh.Issues.ListByRepo(ctx, owner, repo, &github.IssueListByRepoOptions{
		State:       "open",
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	})
	if err != nil {
		return model.Page[int]{}, err
	}

	numbers := make([]int, 0, len(issues))
	for _, issue := range issues {
		if issue.IsPullRequest() {
			continue
		}
		numbers = append(numbers, issue.GetNumber())
	}
	return model.Page[int]{Nodes: numbers, PageInfo: forwardInfo(resp)}, nil
}

// ListOrganizationRepositories returns full names of the source repositories of org
func (c *client) ListOrganizationRepositories(ctx context.Context, org, cursor string) (model.Page[string], error) {
	page, err := pageNumber(cursor)
	if err != nil {
		return model.Page[string]{}, err
	}
	repos, resp, err := c.gh.Repositories.ListByOrg(ctx, org, &github.RepositoryListByOrgOptions{
		Type:        "sources",
		Sort:        "full_name",
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	})
	if err != nil {
		return model.Page[string]{}, goerr.Wrap(err, "failed to list organization repositories", goerr.V("org", org))
	}

	names := make([]string, 0, len(repos))
	for _, r := range repos {
		if r.GetArchived() || r.GetFullName() == "" {
			continue
		}
		names = append(names, r.GetFullName())
	}
	return model.Page[string]{Nodes: names, PageInfo: forwardInfo(resp)}, nil
}

// LastUpdated returns the push and update timestamps of the repository
func (c *client) LastUpdated(ctx context.Context, owner, repo string) (*model.RepositoryLastUpdate, error) {
	r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get repository", goerr.V("owner", owner), goerr.V("repo", repo))
	}
	return &model.RepositoryLastUpdate{
		PushedAt:  r.GetPushedAt().Time,
		UpdatedAt: r.GetUpdatedAt().Time,
	}, nil
}

// ListCommits returns a page of the history of ref, newest first
func (c *client) ListCommits(ctx context.Context, owner, repo, ref, cursor string) (model.Page[model.Commit], error) {
	page, err := pageNumber(cursor)
	if err != nil {
		return model.Page[model.Commit]{}, err
	}

	commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, repo, &github.CommitsListOptions{
		SHA:         ref,
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	})
	if err != nil {
		return model.Page[model.Commit]{}, goerr.Wrap(err, "failed to list commits",
			goerr.V("owner", owner),
			goerr.V("repo", repo),
			goerr.V("ref", ref),
			goerr.V("page", page),
		)
	}

	nodes, err := toCommits(commits)
	if err != nil {
		return model.Page[model.Commit]{}, err
	}
	return model.Page[model.Commit]{Nodes: nodes, PageInfo: forwardInfo(resp)}, nil
}

// CompareCommits returns a page of commits in head and not in base, oldest first
func (c *client) CompareCommits(ctx context.Context, owner, repo, base, head, cursor string) (model.Page[model.Commit], error) {
	page, err := pageNumber(cursor)
	if err != nil {
		return model.Page[model.Commit]{}, err
	}

	cmp, resp, err := c.gh.Repositories.CompareCommits(ctx, owner, repo, base, head, &github.ListOptions{
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		return model.Page[model.Commit]{}, goerr.Wrap(err, "failed to compare commits",
			goerr.V("owner", owner),
			goerr.V("repo", repo),
			goerr.V("base", base),
			goerr.V("head", head),
			goerr.V("page", page),
		)
	}

	nodes, err := toCommits(cmp.Commits)
	if err != nil {
		return model.Page[model.Commit]{}, err
	}
	return model.Page[model.Commit]{Nodes: nodes, PageInfo: forwardInfo(resp)}, nil
}

// CompareStatus returns the comparison status of head against base
func (c *client) CompareStatus(ctx context.Context, owner, repo, base, head string) (model.CompareStatus, error) {
	cmp, _, err := c.gh.Repositories.CompareCommits(ctx, owner, repo, base, head, &github.ListOptions{PerPage: 1})
	if err != nil {
		return "", goerr.Wrap(err, "failed to compare commits",
			goerr.V("owner", owner),
			goerr.V("repo", repo),
			goerr.V("base", base),
			goerr.V("head", head),
		)
	}

	switch s := model.CompareStatus(cmp.GetStatus()); s {
	case model.CompareAhead, model.CompareBehind, model.CompareIdentical, model.CompareDiverged:
		return s, nil
	default:
		return "", goerr.New("unknown comparison status",
			goerr.V("status", s),
			goerr.V("base", base),
			goerr.V("head", head),
		)
	}
}

func toCommits(commits []*github.RepositoryCommit) ([]model.Commit, error) {
	out := make([]model.Commit, 0, len(commits))
	for _, c := range commits {
		if c.GetSHA() == "" {
			return nil, goerr.New("commit without SHA in response")
		}
		out = append(out, model.Commit{
			Hash:        c.GetSHA(),
			Message:     c.GetCommit().GetMessage(),
			AuthoredAt:  c.GetCommit().GetAuthor().GetDate().Time,
			AuthorLogin: c.GetAuthor().GetLogin(),
		})
	}
	return out, nil
}

// ListPullRequests returns a page of pull requests of every state, newest first. The
// REST API pages newest first, so the following page is reported as the previous one.
func (c *client) ListPullRequests(ctx context.Context, owner, repo, cursor string) (model.Page[model.PullRequest], error) {
	page, err := pageNumber(cursor)
	if err != nil {
		return model.Page[model.PullRequest]{}, err
	}

	prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
		State:       "all",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	})
	if err != nil {
		return model.Page[model.PullRequest]{}, goerr.Wrap(err, "failed to list pull requests",
			goerr.V("owner", owner),
			goerr.V("repo", repo),
			goerr.V("page", page),
		)
	}

	nodes := make([]model.PullRequest, 0, len(prs))
	for _, pr := range prs {
		if pr.GetNumber() == 0 {
			return model.Page[model.PullRequest]{}, goerr.New("pull request without number in response")
		}

		node := toPullRequest(pr)
		if node.State == model.PullRequestOpen {
			// commit counts are only reported by the single pull request endpoint
			detail, _, err := c.gh.PullRequests.Get(ctx, owner, repo, pr.GetNumber())
			if err != nil {
				return model.Page[model.PullRequest]{}, goerr.Wrap(err, "failed to get pull request",
					goerr.V("owner", owner),
					goerr.V("repo", repo),
					goerr.V("number", pr.GetNumber()),
				)
			}
			node.CommitCount = detail.GetCommits()
		}
		nodes = append(nodes, node)
	}

	hasMore, next := nextCursor(resp)
	return model.Page[model.PullRequest]{
		Nodes:    nodes,
		PageInfo: model.PageInfo{HasPreviousPage: hasMore, StartCursor: next},
	}, nil
}

func toPullRequest(pr *github.PullRequest) model.PullRequest {
	state := model.PullRequestClosed
	switch {
	case pr.MergedAt != nil:
		state = model.PullRequestMerged
	case pr.GetState() == "open":
		state = model.PullRequestOpen
	}

	out := model.PullRequest{
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Author:       pr.GetUser().GetLogin(),
		URL:          pr.GetHTMLURL(),
		State:        state,
		HeadRef:      pr.GetHead().GetRef(),
		BaseRef:      pr.GetBase().GetRef(),
		CommitCount:  pr.GetCommits(),
		LastCommitAt: pr.GetUpdatedAt().Time,
	}
	if state == model.PullRequestMerged {
		out.MergeCommitHash = pr.GetMergeCommitSHA()
	}
	return out
}

// ListReleases returns a page of releases. Tag chains are only resolved for published
// releases.
func (c *client) ListReleases(ctx context.Context, owner, repo, cursor string) (model.Page[model.RawRelease], error) {
	page, err := pageNumber(cursor)
	if err != nil {
		return model.Page[model.RawRelease]{}, err
	}

	releases, resp, err := c.gh.Repositories.ListReleases(ctx, owner, repo, &github.ListOptions{
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		return model.Page[model.RawRelease]{}, goerr.Wrap(err, "failed to list releases",
			goerr.V("owner", owner),
			goerr.V("repo", repo),
			goerr.V("page", page),
		)
	}

	nodes := make([]model.RawRelease, 0, len(releases))
	for _, r := range releases {
		if r.GetTagName() == "" {
			return model.Page[model.RawRelease]{}, goerr.New("release without tag name in response",
				goerr.V("release_id", r.GetID()))
		}

		raw := model.RawRelease{
			TagName:      r.GetTagName(),
			IsDraft:      r.GetDraft(),
			IsPrerelease: r.GetPrerelease(),
			PublishedAt:  r.GetPublishedAt().Time,
		}
		if !raw.IsDraft && !raw.IsPrerelease {
			raw.Tag, err = c.tagRef(ctx, owner, repo, raw.TagName)
			if err != nil {
				return model.Page[model.RawRelease]{}, err
			}
		}
		nodes = append(nodes, raw)
	}

	return model.Page[model.RawRelease]{Nodes: nodes, PageInfo: forwardInfo(resp)}, nil
}

// tagRef fetches the reference chain of tag down to its commit. A missing tag yields a
// nil chain.
func (c *client) tagRef(ctx context.Context, owner, repo, tag string) (*model.TagRef, error) {
	ref, _, err := c.gh.Git.GetRef(ctx, owner, repo, "tags/"+tag)
	if err != nil {
		if isNotFound(err) {
			ctxlog.From(ctx).Warn("Release tag not found", "owner", owner, "repo", repo, "tag", tag)
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get tag ref", goerr.V("owner", owner), goerr.V("repo", repo), goerr.V("tag", tag))
	}

	kind, sha := ref.GetObject().GetType(), ref.GetObject().GetSHA()
	root := &model.TagRef{}
	node := root
	for depth := 0; ; depth++ {
		node.Kind = model.TagKind(kind)
		node.Hash = sha

		switch node.Kind {
		case model.TagKindCommit:
			commit, _, err := c.gh.Git.GetCommit(ctx, owner, repo, sha)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to get tagged commit", goerr.V("tag", tag), goerr.V("sha", sha))
			}
			node.CommittedAt = commit.GetCommitter().GetDate().Time
			return root, nil

		case model.TagKindTag:
			if depth >= tagChainDepth {
				// left without a target; resolution reports the chain as broken
				return root, nil
			}
			t, _, err := c.gh.Git.GetTag(ctx, owner, repo, sha)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to get annotated tag", goerr.V("tag", tag), goerr.V("sha", sha))
			}
			kind, sha = t.GetObject().GetType(), t.GetObject().GetSHA()
			node.Target = &model.TagRef{}
			node = node.Target

		default:
			return root, nil
		}
	}
}
