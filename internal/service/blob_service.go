// Package service provides the filesystem-style operations built on a blob container.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-azblob/internal/cache"
	"github.com/prn-tf/alexander-azblob/internal/domain"
	"github.com/prn-tf/alexander-azblob/internal/listing"
	"github.com/prn-tf/alexander-azblob/internal/storage"
)

// Visibility values.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Page sizes of the enumerating operations.
const (
	deleteDirectoryPageSize = 1000
	listContentsPageSize    = storage.DefaultPageSize
)

// BlobService exposes a container as a flat filesystem with virtual directories.
type BlobService struct {
	storage           storage.Backend
	access            *cache.AccessCache
	presign           *PresignService
	publicURL         string
	defaultVisibility string
	allowSetVis       bool
	logger            zerolog.Logger
}

// BlobServiceConfig contains the collaborators of a BlobService.
type BlobServiceConfig struct {
	Storage storage.Backend

	// Access answers visibility queries. Nil reports DefaultVisibility.
	Access *cache.AccessCache

	// Presign issues temporary URLs. Nil disables TemporaryURL.
	Presign *PresignService

	// PublicURL replaces the service URL in URL when set.
	PublicURL string

	// DefaultVisibility is "public" or "private". Defaults to private.
	DefaultVisibility string

	// AllowSetVisibility permits SetVisibility to change the container level.
	AllowSetVisibility bool

	Logger zerolog.Logger
}

// NewBlobService creates a new BlobService.
func NewBlobService(cfg BlobServiceConfig) *BlobService {
	defaultVisibility := cfg.DefaultVisibility
	if defaultVisibility != VisibilityPublic {
		defaultVisibility = VisibilityPrivate
	}

	return &BlobService{
		storage:           cfg.Storage,
		access:            cfg.Access,
		presign:           cfg.Presign,
		publicURL:         strings.TrimSuffix(cfg.PublicURL, "/"),
		defaultVisibility: defaultVisibility,
		allowSetVis:       cfg.AllowSetVisibility,
		logger:            cfg.Logger.With().Str("service", "blob").Logger(),
	}
}

// =============================================================================
// Existence
// =============================================================================

// FileExists reports whether a blob exists at path.
func (s *BlobService) FileExists(ctx context.Context, path string) (bool, error) {
	exists, err := s.storage.BlobExists(ctx, path)
	if err != nil {
		return false, newFileError("file-exists", path, ErrUnableToRetrieveMetadata, err, "")
	}
	return exists, nil
}

// DirectoryExists reports whether any blob lives under path.
func (s *BlobService) DirectoryExists(ctx context.Context, path string) (bool, error) {
	page, err := s.storage.ListBlobs(ctx, storage.ListInput{
		Prefix:     storage.DirectoryPrefix(path),
		MaxResults: 1,
	})
	if err != nil {
		return false, newFileError("directory-exists", path, ErrUnableToRetrieveMetadata, err, "")
	}
	return len(page.Blobs) > 0, nil
}

// =============================================================================
// Reading and Writing
// =============================================================================

// Write uploads data to path. An empty contentType is guessed from the extension.
func (s *BlobService) Write(ctx context.Context, path string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = GuessMimeType(path)
	}

	if err := s.storage.PutBlob(ctx, path, data, contentType); err != nil {
		return newFileError("write", path, ErrUnableToWriteFile, err, "")
	}

	s.logger.Debug().Str("path", path).Int("size", len(data)).Str("content_type", contentType).Msg("file written")
	return nil
}

// WriteStream uploads everything read from r to path.
func (s *BlobService) WriteStream(ctx context.Context, path string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return newFileError("write", path, ErrUnableToWriteFile, err, "")
	}
	return s.Write(ctx, path, data, contentType)
}

// Read downloads the blob at path.
func (s *BlobService) Read(ctx context.Context, path string) ([]byte, error) {
	data, _, err := s.storage.GetBlob(ctx, path)
	if err != nil {
		return nil, newFileError("read", path, ErrUnableToReadFile, err, "")
	}
	return data, nil
}

// ReadStream downloads the blob at path and returns it as a reader.
func (s *BlobService) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	data, err := s.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// =============================================================================
// Deleting
// =============================================================================

// Delete removes the blob at path. A missing blob is not an error.
func (s *BlobService) Delete(ctx context.Context, path string) error {
	if err := s.storage.DeleteBlob(ctx, path); err != nil {
		return newFileError("delete", path, ErrUnableToDeleteFile, err, "")
	}
	return nil
}

// DeleteDirectory removes every blob under path, one request per blob. The
// first failure stops the walk; blobs deleted before it stay deleted.
func (s *BlobService) DeleteDirectory(ctx context.Context, path string) error {
	prefix := storage.DirectoryPrefix(path)
	if prefix == "" {
		return newFileError("delete-directory", path, ErrUnableToDeleteFile, domain.ErrInvalidBlobPath, "refusing to delete the container root")
	}

	pager := listing.NewPager(s.storage, prefix, deleteDirectoryPageSize)
	deleted := 0
	for pager.Next(ctx) {
		for _, blob := range pager.Page().Blobs {
			if err := s.Delete(ctx, blob.Name); err != nil {
				return err
			}
			deleted++
		}
	}
	if err := pager.Err(); err != nil {
		return newFileError("delete-directory", path, ErrUnableToDeleteFile, err, "")
	}

	s.logger.Debug().Str("path", path).Int("deleted", deleted).Msg("directory deleted")
	return nil
}

// CreateDirectory is a no-op: directories exist only as key prefixes.
func (s *BlobService) CreateDirectory(_ context.Context, _ string) error {
	return nil
}

// =============================================================================
// Listing
// =============================================================================

// ListContents lists path. Shallow listings collapse nested keys into
// directory entries; deep listings return every blob.
func (s *BlobService) ListContents(ctx context.Context, path string, deep bool) ([]domain.Entry, error) {
	entries, err := listing.List(ctx, s.storage, path, deep, listContentsPageSize)
	if err != nil {
		return nil, newFileError("list", path, ErrUnableToListContents, err, "")
	}
	return entries, nil
}

// =============================================================================
// Copying and Moving
// =============================================================================

// Copy copies source to destination on the server side.
func (s *BlobService) Copy(ctx context.Context, source, destination string) error {
	if err := s.storage.CopyBlob(ctx, source, destination); err != nil {
		return newFileError("copy", destination, ErrUnableToCopyFile, err, "")
	}
	return nil
}

// Move copies source to destination, then deletes source.
func (s *BlobService) Move(ctx context.Context, source, destination string) error {
	if err := s.storage.CopyBlob(ctx, source, destination); err != nil {
		return newFileError("move", destination, ErrUnableToMoveFile, err, "")
	}
	if err := s.storage.DeleteBlob(ctx, source); err != nil {
		return newFileError("move", source, ErrUnableToMoveFile, err, "copied but source could not be deleted")
	}
	return nil
}

// =============================================================================
// Metadata
// =============================================================================

// Properties returns the metadata of the blob at path.
func (s *BlobService) Properties(ctx context.Context, path string) (*domain.BlobProperties, error) {
	props, err := s.storage.GetBlobProperties(ctx, path)
	if err != nil {
		return nil, newFileError("properties", path, ErrUnableToRetrieveMetadata, err, "")
	}
	return props, nil
}

// MimeType returns the stored content type, or a guess from the extension
// when the blob does not exist.
func (s *BlobService) MimeType(ctx context.Context, path string) (string, error) {
	props, err := s.storage.GetBlobProperties(ctx, path)
	if errors.Is(err, domain.ErrBlobNotFound) {
		return GuessMimeType(path), nil
	}
	if err != nil {
		return "", newFileError("mime-type", path, ErrUnableToRetrieveMetadata, err, "")
	}
	return props.ContentType, nil
}

// LastModified returns the last write time of the blob at path.
func (s *BlobService) LastModified(ctx context.Context, path string) (time.Time, error) {
	props, err := s.Properties(ctx, path)
	if err != nil {
		return time.Time{}, err
	}
	return props.LastModified, nil
}

// FileSize returns the size of the blob at path.
func (s *BlobService) FileSize(ctx context.Context, path string) (int64, error) {
	props, err := s.Properties(ctx, path)
	if err != nil {
		return 0, err
	}
	return props.ContentLength, nil
}

// =============================================================================
// Visibility
// =============================================================================

// Visibility reports "public" when the container allows anonymous blob
// reads and "private" otherwise. Access is container-wide, so path only
// labels errors.
func (s *BlobService) Visibility(ctx context.Context, path string) (string, error) {
	if s.access == nil {
		return s.defaultVisibility, nil
	}

	level, err := s.access.Get(ctx)
	if err != nil {
		return "", newFileError("visibility", path, ErrUnableToRetrieveMetadata, err, "")
	}
	if level.IsPublic() {
		return VisibilityPublic, nil
	}
	return VisibilityPrivate, nil
}

// SetVisibility maps "public" to blob-level anonymous access and "private"
// to none, for the whole container.
func (s *BlobService) SetVisibility(ctx context.Context, path, visibility string) error {
	var level domain.AccessLevel
	switch visibility {
	case VisibilityPublic:
		level = domain.AccessBlob
	case VisibilityPrivate:
		level = domain.AccessPrivate
	default:
		return newFileError("set-visibility", path, ErrInvalidVisibility, nil, visibility)
	}

	if !s.allowSetVis || s.access == nil {
		return newFileError("set-visibility", path, ErrVisibilityNotSupported, nil, "")
	}

	if err := s.access.Set(ctx, level); err != nil {
		return newFileError("set-visibility", path, ErrUnableToWriteFile, err, "")
	}

	s.logger.Info().Str("visibility", visibility).Str("level", string(level)).Msg("container visibility changed")
	return nil
}

// =============================================================================
// URLs
// =============================================================================

// URL returns the public URL of path.
func (s *BlobService) URL(path string) string {
	key := storage.NormalizeKey(path)
	if s.publicURL != "" {
		return s.publicURL + "/" + storage.EscapePath(key)
	}
	return s.storage.BlobURL(key)
}

// TemporaryURL returns a read-only signed URL for path valid for expiry.
func (s *BlobService) TemporaryURL(path string, expiry time.Duration) (string, error) {
	if s.presign == nil {
		return "", fmt.Errorf("temporary-url %s: %w: presign service not configured", path, ErrMissingRequiredParams)
	}
	return s.presign.SignedURL(path, expiry)
}

// reasonFor extracts the human-readable part of a backend error.
func reasonFor(err error) string {
	if errors.Is(err, domain.ErrBlobNotFound) {
		return "blob not found"
	}

	var storageErr *domain.StorageError
	if errors.As(err, &storageErr) && storageErr.Message != "" {
		return storageErr.Message
	}
	return err.Error()
}
