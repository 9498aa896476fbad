// Package storage defines the collaborator surface of a remote blob container.
// Callers above this layer (the filesystem adapter, the CLI, the listing
// helpers) depend on these interfaces, never on a concrete client.
package storage

import (
	"context"

	"github.com/prn-tf/alexander-azblob/internal/domain"
)

// DefaultPageSize is the maxresults value used when a caller leaves it unset.
const DefaultPageSize = 5000

// ListInput contains the parameters of one listing request.
type ListInput struct {
	// Prefix restricts results to keys starting with it. Empty lists everything.
	Prefix string

	// MaxResults caps the page size. Zero means DefaultPageSize.
	MaxResults int

	// Marker continues a previous listing. Empty starts from the beginning.
	Marker string
}

// PageFetcher fetches one listing page per call.
type PageFetcher interface {
	ListBlobs(ctx context.Context, input ListInput) (*domain.ListingPage, error)
}

// AccessController reads and writes the container's anonymous access level.
type AccessController interface {
	GetContainerAccess(ctx context.Context) (domain.AccessLevel, error)
	SetContainerAccess(ctx context.Context, level domain.AccessLevel) error
}

// Backend defines the operations of a single remote container.
// Every operation issues exactly one request; paths are relative to the container.
type Backend interface {
	PageFetcher
	AccessController

	// PutBlob uploads data as a block blob, replacing any existing blob.
	PutBlob(ctx context.Context, path string, data []byte, contentType string) error

	// GetBlob downloads a blob.
	// Returns domain.ErrBlobNotFound if the blob does not exist.
	GetBlob(ctx context.Context, path string) ([]byte, *domain.BlobProperties, error)

	// DeleteBlob removes a blob. Deleting a missing blob succeeds.
	DeleteBlob(ctx context.Context, path string) error

	// GetBlobProperties fetches metadata without the body.
	// Returns domain.ErrBlobNotFound if the blob does not exist.
	GetBlobProperties(ctx context.Context, path string) (*domain.BlobProperties, error)

	// BlobExists reports whether a blob exists. Errors other than not-found
	// are returned unchanged.
	BlobExists(ctx context.Context, path string) (bool, error)

	// CopyBlob performs a server-side copy from src to dst.
	CopyBlob(ctx context.Context, src, dst string) error

	// BlobURL returns the unsigned URL of a blob.
	BlobURL(path string) string

	// ContainerURL returns the unsigned URL of the container.
	ContainerURL() string

	// Account returns the storage account name.
	Account() string

	// Container returns the container name.
	Container() string
}
