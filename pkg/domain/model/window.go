package model

import "time"

// UnknownAuthor is the author of merges attributed from commit messages alone
const UnknownAuthor = "Unknown"

// Merge is a pull request merged into a release window
type Merge struct {
	PRNumber *int   `json:"pr_number"`
	Title    string `json:"title"`
	Branch   string `json:"branch"`
	Author   string `json:"author"`
}

// ReleaseWindow is the span of default-branch commits attributed to one release. The
// window with an empty ReleaseTag holds commits not yet released.
type ReleaseWindow struct {
	ReleaseTag        string    `json:"release_tag"`
	ReleaseCommitHash string    `json:"release_commit_sha,omitempty"`
	ReleaseDate       time.Time `json:"release_tag_date"`
	Commits           []Commit  `json:"commits,omitempty"`
	Merges            []Merge   `json:"merges"`
}

// IsUnreleased reports whether w is the synthetic window of unreleased commits
func (w *ReleaseWindow) IsUnreleased() bool {
	return w.ReleaseTag == ""
}
