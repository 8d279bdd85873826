package model

// PageInfo is the cursor state reported with each page of a remote collection
type PageInfo struct {
	StartCursor     string
	EndCursor       string
	HasPreviousPage bool
	HasNextPage     bool
}

// Page is one page of a cursor-paginated remote collection
type Page[T any] struct {
	Nodes    []T
	PageInfo PageInfo
}
