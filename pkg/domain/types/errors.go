package types

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors of the reconciliation engine. Callers match them with errors.Is;
// the concrete error returned is a goerr wrap carrying context values.
var (
	// ErrStalledPagination is returned when a page reports more results but the cursor
	// did not advance.
	ErrStalledPagination = goerr.New("pagination cursor did not advance")

	// ErrTooManyPages is returned when a traversal exceeds its page budget.
	ErrTooManyPages = goerr.New("pagination exceeded page limit")

	// ErrUnresolvableTag is returned when a tag reference chain does not end at a commit.
	ErrUnresolvableTag = goerr.New("tag does not resolve to a commit")

	// ErrUnknownSinceTag is returned when a look-back tag is not one of the known releases.
	ErrUnknownSinceTag = goerr.New("since tag is not a known release")

	// ErrMalformedVersion marks a release tag that is not a semantic version. It is
	// recoverable: the release is dropped.
	ErrMalformedVersion = goerr.New("malformed release version")

	// ErrUnresolvableManifest is returned when a manifest reference is neither a known
	// manifest key nor a readable JSON file.
	ErrUnresolvableManifest = goerr.New("unresolvable manifest reference")

	// ErrInvalidRepository is returned for repository names not of the form owner/name.
	ErrInvalidRepository = goerr.New("invalid repository name")

	// ErrRepositoryNotFound is returned when the hosting API does not know a repository.
	ErrRepositoryNotFound = goerr.New("repository not found")
)
