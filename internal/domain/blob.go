// Package domain contains the core entities shared by the blob storage client.
package domain

import (
	"strings"
	"time"
)

// DefaultContentType is reported when the service returns no content type.
const DefaultContentType = "application/octet-stream"

// BlobProperties holds the metadata returned by a HEAD or GET on a blob.
type BlobProperties struct {
	// ContentLength is the blob size in bytes.
	ContentLength int64 `json:"content_length" yaml:"content_length"`

	// ContentType is the stored MIME type.
	ContentType string `json:"content_type" yaml:"content_type"`

	// LastModified is the last write time reported by the service.
	LastModified time.Time `json:"last_modified" yaml:"last_modified"`

	// ETag is the entity tag, quotes included.
	ETag string `json:"etag,omitempty" yaml:"etag,omitempty"`
}

// BlobItem is one entry of a listing page.
type BlobItem struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ContentType  string    `json:"content_type"`
}

// ListingPage is one page of a flat blob enumeration.
type ListingPage struct {
	// Blobs are returned in service order.
	Blobs []BlobItem

	// NextMarker is the continuation token; empty on the last page.
	NextMarker string
}

// HasMore reports whether another page can be requested.
func (p *ListingPage) HasMore() bool {
	return p != nil && p.NextMarker != ""
}

// EntryType distinguishes files from virtual directories in a listing.
type EntryType string

const (
	// EntryFile is a concrete blob.
	EntryFile EntryType = "file"

	// EntryDirectory is a virtual directory derived from a shared key prefix.
	EntryDirectory EntryType = "dir"
)

// Entry is one element of a hierarchical listing.
type Entry struct {
	Type         EntryType `json:"type" yaml:"type"`
	Path         string    `json:"path" yaml:"path"`
	Size         int64     `json:"size,omitempty" yaml:"size,omitempty"`
	LastModified time.Time `json:"last_modified,omitempty" yaml:"last_modified,omitempty"`
	ContentType  string    `json:"content_type,omitempty" yaml:"content_type,omitempty"`
}

// IsDir reports whether the entry is a virtual directory.
func (e Entry) IsDir() bool {
	return e.Type == EntryDirectory
}

// FileEntry converts a listing item into a file entry.
func FileEntry(item BlobItem) Entry {
	return Entry{
		Type:         EntryFile,
		Path:         item.Name,
		Size:         item.Size,
		LastModified: item.LastModified,
		ContentType:  item.ContentType,
	}
}

// DirectoryEntry returns a virtual directory entry for path.
func DirectoryEntry(path string) Entry {
	return Entry{
		Type: EntryDirectory,
		Path: strings.TrimSuffix(path, "/"),
	}
}
