// Package azure implements storage.Backend against the Azure Blob Storage
// REST interface using Shared Key authentication.
package azure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/prn-tf/alexander-azblob/internal/auth"
	"github.com/prn-tf/alexander-azblob/internal/domain"
	"github.com/prn-tf/alexander-azblob/internal/storage"
)

// blobPath normalizes path and rejects the empty key.
func blobPath(op, path string) (string, error) {
	key := storage.NormalizeKey(path)
	if key == "" {
		return "", fmt.Errorf("%s: %w: empty path", op, domain.ErrInvalidBlobPath)
	}
	return key, nil
}

// PutBlob uploads data as a block blob.
func (c *Client) PutBlob(ctx context.Context, path string, data []byte, contentType string) error {
	key, err := blobPath("put", path)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = domain.DefaultContentType
	}

	resp, err := c.do(ctx, request{
		op:          "put",
		method:      http.MethodPut,
		blob:        key,
		headers:     map[string]string{auth.XMsBlobTypeHeader: auth.BlockBlob},
		body:        data,
		contentType: contentType,
	})
	if err != nil {
		return err
	}
	if !isSuccess(resp.StatusCode) {
		return c.remoteError("put", key, resp, false)
	}
	drain(resp)

	return nil
}

// GetBlob downloads a blob and the properties reported with it.
func (c *Client) GetBlob(ctx context.Context, path string) ([]byte, *domain.BlobProperties, error) {
	key, err := blobPath("get", path)
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.do(ctx, request{op: "get", method: http.MethodGet, blob: key})
	if err != nil {
		return nil, nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, nil, c.remoteError("get", key, resp, true)
	}
	defer drain(resp)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("get %s: read body: %w", key, err)
	}

	props := propertiesFromHeader(resp.Header)
	props.ContentLength = int64(len(data))

	return data, props, nil
}

// DeleteBlob removes a blob. A missing blob is not an error.
func (c *Client) DeleteBlob(ctx context.Context, path string) error {
	key, err := blobPath("delete", path)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, request{op: "delete", method: http.MethodDelete, blob: key})
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		drain(resp)
		return nil
	}
	if !isSuccess(resp.StatusCode) {
		return c.remoteError("delete", key, resp, false)
	}
	drain(resp)

	return nil
}

// GetBlobProperties issues a HEAD request for a blob.
func (c *Client) GetBlobProperties(ctx context.Context, path string) (*domain.BlobProperties, error) {
	key, err := blobPath("head", path)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, request{op: "head", method: http.MethodHead, blob: key})
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, c.remoteError("head", key, resp, true)
	}
	drain(resp)

	return propertiesFromHeader(resp.Header), nil
}

// BlobExists reports whether a blob exists. Only not-found maps to false.
func (c *Client) BlobExists(ctx context.Context, path string) (bool, error) {
	_, err := c.GetBlobProperties(ctx, path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrBlobNotFound):
		return false, nil
	default:
		return false, err
	}
}

// CopyBlob copies src to dst within the container on the server side.
func (c *Client) CopyBlob(ctx context.Context, src, dst string) error {
	srcKey, err := blobPath("copy", src)
	if err != nil {
		return err
	}
	dstKey, err := blobPath("copy", dst)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, request{
		op:      "copy",
		method:  http.MethodPut,
		blob:    dstKey,
		headers: map[string]string{auth.XMsCopySourceHeader: c.BlobURL(srcKey)},
	})
	if err != nil {
		return err
	}
	if !isSuccess(resp.StatusCode) {
		return c.remoteError("copy", dstKey, resp, false)
	}
	drain(resp)

	return nil
}

// propertiesFromHeader reads blob properties from response headers.
func propertiesFromHeader(h http.Header) *domain.BlobProperties {
	props := &domain.BlobProperties{
		ContentType: h.Get("Content-Type"),
		ETag:        h.Get("ETag"),
	}
	if props.ContentType == "" {
		props.ContentType = domain.DefaultContentType
	}
	if n, err := strconv.ParseInt(h.Get("Content-Length"), 10, 64); err == nil {
		props.ContentLength = n
	}
	if t, err := http.ParseTime(h.Get("Last-Modified")); err == nil {
		props.LastModified = t.UTC()
	}
	return props
}
