package providers

import (
	"context"
	"fmt"
)

const DefaultMaxPages = 500

// PageFunc fetches one page and reports whether another one follows.
type PageFunc func(ctx context.Context, page int) (more bool, err error)

// CollectPages walks pages from 1 until fetch reports no more. A failure on
// the first page is returned; a later failure stops the walk and keeps
// what was already collected, reported through partial.
func CollectPages(ctx context.Context, maxPages int, fetch PageFunc) (pages int, partial error, err error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	for page := 1; page <= maxPages; page++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if page == 1 {
				return 0, nil, ctxErr
			}
			return page - 1, ctxErr, nil
		}
		more, fetchErr := fetch(ctx, page)
		if fetchErr != nil {
			if page == 1 {
				return 0, nil, fetchErr
			}
			return page - 1, fmt.Errorf("page %d: %w", page, fetchErr), nil
		}
		if !more {
			return page, nil, nil
		}
	}
	return maxPages, fmt.Errorf("stopped after %d pages", maxPages), nil
}
