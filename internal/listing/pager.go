// Package listing enumerates a container page by page and folds flat blob
// keys into a file and directory view.
package listing

import (
	"context"

	"github.com/prn-tf/alexander-azblob/internal/domain"
	"github.com/prn-tf/alexander-azblob/internal/storage"
)

// Pager walks a paginated listing one request per Next call.
//
// Usage:
//
//	p := listing.NewPager(client, "photos/", 0)
//	for p.Next(ctx) {
//		for _, b := range p.Page().Blobs { ... }
//	}
//	if err := p.Err(); err != nil { ... }
type Pager struct {
	fetcher  storage.PageFetcher
	prefix   string
	pageSize int

	page   *domain.ListingPage
	marker string
	done   bool
	err    error
}

// NewPager creates a pager over keys starting with prefix. A pageSize of
// zero uses storage.DefaultPageSize.
func NewPager(fetcher storage.PageFetcher, prefix string, pageSize int) *Pager {
	return &Pager{
		fetcher:  fetcher,
		prefix:   prefix,
		pageSize: pageSize,
	}
}

// Next fetches the next page. It returns false once the last page has been
// consumed, on error, or when ctx is done.
func (p *Pager) Next(ctx context.Context) bool {
	if p.done || p.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		p.err = err
		return false
	}

	page, err := p.fetcher.ListBlobs(ctx, storage.ListInput{
		Prefix:     p.prefix,
		MaxResults: p.pageSize,
		Marker:     p.marker,
	})
	if err != nil {
		p.err = err
		p.page = nil
		return false
	}
	if page == nil {
		page = &domain.ListingPage{}
	}

	p.page = page
	p.marker = page.NextMarker
	if !page.HasMore() {
		p.done = true
	}
	return true
}

// Page returns the page fetched by the last successful Next.
func (p *Pager) Page() *domain.ListingPage {
	return p.page
}

// Err returns the error that stopped iteration, if any.
func (p *Pager) Err() error {
	return p.err
}

// Reset rewinds the pager to the first page.
func (p *Pager) Reset() {
	p.page = nil
	p.marker = ""
	p.done = false
	p.err = nil
}
