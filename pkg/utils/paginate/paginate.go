// Package paginate traverses cursor-paginated remote collections.
package paginate

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
	"github.com/m-mizutani/reltrace/pkg/domain/types"
)

// Direction selects which page-info fields drive the traversal
type Direction int

const (
	// Forward follows EndCursor while HasNextPage is set
	Forward Direction = iota
	// Backward follows StartCursor while HasPreviousPage is set
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

func (d Direction) next(info model.PageInfo) (bool, string) {
	if d == Backward {
		return info.HasPreviousPage, info.StartCursor
	}
	return info.HasNextPage, info.EndCursor
}

// FetchFunc fetches the page at cursor
type FetchFunc[T any] func(ctx context.Context, cursor string) (model.Page[T], error)

type config struct {
	maxPages int
}

// Option configures a traversal
type Option func(*config)

// WithMaxPages aborts the traversal with types.ErrTooManyPages after n pages. Zero
// means no limit.
func WithMaxPages(n int) Option {
	return func(c *config) {
		c.maxPages = n
	}
}

// Traverse calls fetch repeatedly starting at start and returns the nodes of all pages
// in fetch order. Calls are strictly sequential since each one depends on the cursor
// of the previous page. A page that reports more results without advancing the cursor
// fails with types.ErrStalledPagination. On any error the accumulated nodes are
// discarded.
func Traverse[T any](ctx context.Context, fetch FetchFunc[T], start string, dir Direction, opts ...Option) ([]T, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	var nodes []T
	cursor := start
	for pages := 1; ; pages++ {
		if err := ctx.Err(); err != nil {
			return nil, goerr.Wrap(err, "pagination cancelled", goerr.V("cursor", cursor), goerr.V("pages", pages-1))
		}

		page, err := fetch(ctx, cursor)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to fetch page",
				goerr.V("cursor", cursor),
				goerr.V("page", pages),
				goerr.V("direction", dir.String()),
			)
		}
		nodes = append(nodes, page.Nodes...)

		hasMore, next := dir.next(page.PageInfo)
		if !hasMore {
			return nodes, nil
		}
		if next == cursor {
			return nil, goerr.Wrap(types.ErrStalledPagination, "page reported more results with an unchanged cursor",
				goerr.V("cursor", cursor),
				goerr.V("page", pages),
				goerr.V("direction", dir.String()),
			)
		}
		if cfg.maxPages > 0 && pages >= cfg.maxPages {
			return nil, goerr.Wrap(types.ErrTooManyPages, "pagination stopped",
				goerr.V("max_pages", cfg.maxPages),
				goerr.V("direction", dir.String()),
			)
		}
		cursor = next
	}
}
