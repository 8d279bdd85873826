package model

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/types"
)

// RepositoryInfo is the reconciled snapshot of one repository
type RepositoryInfo struct {
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	DefaultBranch string    `json:"default_branch"`
	PushedAt      time.Time `json:"pushed_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	FetchedAt     time.Time `json:"fetched_at"`

	LastTag     string    `json:"last_tag"`
	LastTagDate time.Time `json:"last_tag_date"`

	// Commits and Merges count the unreleased window
	Commits int `json:"commits"`
	Merges  int `json:"merges"`

	Releases         []ReleaseWindow      `json:"release_info"`
	OpenPullRequests []PullRequestSummary `json:"pull_requests"`
	OpenPRCount      int                  `json:"n_pull_requests"`
	BranchCount      int                  `json:"branches"`
	IssueCount       int                  `json:"issues"`

	Diagnostics []string `json:"diagnostics,omitempty"`
}

// FullName returns owner/name
func (r *RepositoryInfo) FullName() string {
	return r.Owner + "/" + r.Name
}

// ReleaseTags returns the tags of all windows in order, the unreleased window included
func (r *RepositoryInfo) ReleaseTags() []string {
	tags := make([]string, len(r.Releases))
	for i, w := range r.Releases {
		tags[i] = w.ReleaseTag
	}
	return tags
}

// RepositoryLastUpdate holds the timestamps used to detect stale snapshots
type RepositoryLastUpdate struct {
	PushedAt  time.Time
	UpdatedAt time.Time
}

// IsNewerThan reports whether u has advanced past the snapshot of info
func (u *RepositoryLastUpdate) IsNewerThan(info *RepositoryInfo) bool {
	return u.PushedAt.After(info.PushedAt) || u.UpdatedAt.After(info.UpdatedAt)
}

// RepositoryMeta is repository-level metadata fetched alongside the history
type RepositoryMeta struct {
	DefaultBranch string
	PushedAt      time.Time
	UpdatedAt     time.Time
	BranchCount   int
	IssueCount    int
}

// RepositoryFailure records a repository whose fetch failed during a batch. Fatal marks
// failures that make the whole run unsuccessful, such as a stalled pagination cursor.
type RepositoryFailure struct {
	Repository string `json:"repository"`
	Error      string `json:"error"`
	Fatal      bool   `json:"fatal,omitempty"`
}

// FirstFatal returns the first fatal failure, or nil
func FirstFatal(failures []RepositoryFailure) *RepositoryFailure {
	for i := range failures {
		if failures[i].Fatal {
			return &failures[i]
		}
	}
	return nil
}

// BatchResult is the outcome of fetching several repositories
type BatchResult struct {
	RunID        string              `json:"run_id"`
	Time         time.Time           `json:"time"`
	Repositories []*RepositoryInfo   `json:"packages"`
	Failures     []RepositoryFailure `json:"failures,omitempty"`
}

// SplitRepository splits "owner/name" into its parts
func SplitRepository(fullName string) (string, string, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", goerr.Wrap(types.ErrInvalidRepository, "repository must be owner/name",
			goerr.V("repository", fullName))
	}
	return owner, name, nil
}
