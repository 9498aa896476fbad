package listing

import (
	"context"
	"strings"

	"github.com/prn-tf/alexander-azblob/internal/domain"
	"github.com/prn-tf/alexander-azblob/internal/storage"
)

// Lister folds listing pages into entries. A Lister remembers the
// directories it has emitted, so one value must not be shared between
// listings; use NewLister per enumeration.
type Lister struct {
	prefix string
	deep   bool
	seen   map[string]struct{}
}

// NewLister creates a lister for keys under prefix. In deep mode every key
// is a file entry; otherwise keys below the next "/" collapse into one
// directory entry per distinct segment.
func NewLister(prefix string, deep bool) *Lister {
	return &Lister{
		prefix: prefix,
		deep:   deep,
		seen:   make(map[string]struct{}),
	}
}

// Fold converts one page into entries, in page order. Directories already
// emitted by an earlier page are skipped.
func (l *Lister) Fold(page *domain.ListingPage) []domain.Entry {
	if page == nil {
		return nil
	}

	entries := make([]domain.Entry, 0, len(page.Blobs))
	for _, item := range page.Blobs {
		if l.deep {
			entries = append(entries, domain.FileEntry(item))
			continue
		}

		rest := strings.TrimPrefix(item.Name, l.prefix)
		segment, _, nested := strings.Cut(rest, "/")
		if !nested {
			entries = append(entries, domain.FileEntry(item))
			continue
		}

		dir := l.prefix + segment
		if _, ok := l.seen[dir]; ok {
			continue
		}
		l.seen[dir] = struct{}{}
		entries = append(entries, domain.DirectoryEntry(dir))
	}

	return entries
}

// List enumerates every entry under dir, one request per page.
func List(ctx context.Context, fetcher storage.PageFetcher, dir string, deep bool, pageSize int) ([]domain.Entry, error) {
	prefix := storage.DirectoryPrefix(dir)
	pager := NewPager(fetcher, prefix, pageSize)
	lister := NewLister(prefix, deep)

	var entries []domain.Entry
	for pager.Next(ctx) {
		entries = append(entries, lister.Fold(pager.Page())...)
	}
	if err := pager.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
