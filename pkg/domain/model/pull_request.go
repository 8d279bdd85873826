package model

import "time"

// PullRequestState is the state of a pull request as reported by the hosting API
type PullRequestState string

const (
	PullRequestOpen   PullRequestState = "OPEN"
	PullRequestClosed PullRequestState = "CLOSED"
	PullRequestMerged PullRequestState = "MERGED"
)

// PullRequest is identified by Number, unique per repository
type PullRequest struct {
	Number          int
	Title           string
	Author          string
	URL             string
	MergeCommitHash string // empty unless merged
	State           PullRequestState
	HeadRef         string
	BaseRef         string
	CommitCount     int
	LastCommitAt    time.Time
}

// PullRequestSummary is the open pull request entry of a RepositoryInfo
type PullRequestSummary struct {
	Number       int       `json:"number"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	CommitCount  int       `json:"n_commits"`
	LastCommitAt time.Time `json:"last_commit_date"`
}
