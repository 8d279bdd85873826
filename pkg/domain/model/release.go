package model

import (
	"time"

	"github.com/Masterminds/semver/v3"
)

// TagKind identifies the type of object a TagRef points to
type TagKind string

const (
	TagKindCommit TagKind = "commit"
	TagKindTag    TagKind = "tag"
)

// TagRef is a reference from a tag to a git object. Annotated tags point to another
// object through Target; the chain ends at a commit.
type TagRef struct {
	Kind        TagKind
	Hash        string
	CommittedAt time.Time // set on commit nodes only
	Target      *TagRef   // set on tag nodes only
}

// RawRelease is a release as returned by the hosting API, before filtering
type RawRelease struct {
	TagName      string
	IsDraft      bool
	IsPrerelease bool
	Tag          *TagRef
	PublishedAt  time.Time
}

// Release is a qualifying release resolved to the commit its tag points to
type Release struct {
	TagName     string          `json:"tag_name"`
	Version     *semver.Version `json:"-"`
	PublishedAt time.Time       `json:"published_at"`
	CommitHash  string          `json:"commit_sha"`
	CommitDate  time.Time       `json:"commit_date"`
}
