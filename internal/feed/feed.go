// Package feed holds the HTTP clients for the two upstream sources:
// the tender-results API on etender.uzex.uz and the contractor rating
// API on reyting.mc.uz.
package feed

import (
	"context"

	"github.com/uzbuild/market-intel/internal/model"
	"github.com/uzbuild/market-intel/internal/normalize"
)

// Page is one page of raw records from a paginated feed.
type Page struct {
	Number  int
	Records []normalize.RawRecord
}

// Source is a paginated feed. Page numbers start at 1; a page past the
// end returns an empty Page, not an error.
type Source interface {
	Name() model.Source
	// TotalPages probes the feed for its page count. Zero means the
	// feed does not expose a count and the caller should page until
	// empty.
	TotalPages(ctx context.Context) (int, error)
	FetchPage(ctx context.Context, page int) (*Page, error)
}

var (
	_ Source = (*ETender)(nil)
	_ Source = (*Reyting)(nil)
)
