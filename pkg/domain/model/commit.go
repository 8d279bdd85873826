package model

import "time"

// Commit is a commit on the default branch. Commits are immutable once fetched and are
// identified by Hash.
type Commit struct {
	Hash        string    `json:"sha"`
	Message     string    `json:"message"`
	AuthoredAt  time.Time `json:"date"`
	AuthorLogin string    `json:"author,omitempty"` // empty when the author has no account
}

// CompareStatus is the relation of a head ref to a base ref
type CompareStatus string

const (
	CompareAhead     CompareStatus = "ahead" // base is an ancestor of head
	CompareBehind    CompareStatus = "behind"
	CompareIdentical CompareStatus = "identical"
	CompareDiverged  CompareStatus = "diverged"
)

// Contains reports whether head reaches every commit of base
func (s CompareStatus) Contains() bool {
	return s == CompareAhead || s == CompareIdentical
}
