// Package azure implements storage.Backend against the Azure Blob Storage
// REST interface using Shared Key authentication.
package azure

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/prn-tf/alexander-azblob/internal/auth"
	"github.com/prn-tf/alexander-azblob/internal/domain"
	"github.com/prn-tf/alexander-azblob/internal/storage"
)

// emptySignedIdentifiers is sent when setting the access level; it clears
// stored access policies, which this client never manages.
const emptySignedIdentifiers = `<?xml version="1.0" encoding="utf-8"?><SignedIdentifiers />`

func aclQuery() url.Values {
	return url.Values{
		"restype": {"container"},
		"comp":    {"acl"},
	}
}

// GetContainerAccess reads the anonymous access level from the
// x-ms-blob-public-access response header. A missing header means private.
func (c *Client) GetContainerAccess(ctx context.Context) (domain.AccessLevel, error) {
	resp, err := c.do(ctx, request{
		op:     "get-acl",
		method: http.MethodGet,
		query:  aclQuery(),
	})
	if err != nil {
		return "", err
	}
	if !isSuccess(resp.StatusCode) {
		return "", c.remoteError("get-acl", c.container, resp, false)
	}
	drain(resp)

	level, err := domain.ParseAccessLevel(resp.Header.Get(auth.XMsBlobPublicAccessHeader))
	if err != nil {
		return "", fmt.Errorf("get-acl %s: %w", c.container, err)
	}
	return level, nil
}

// SetContainerAccess changes the anonymous access level. The header is
// omitted for private.
func (c *Client) SetContainerAccess(ctx context.Context, level domain.AccessLevel) error {
	if !level.Valid() {
		return fmt.Errorf("set-acl %s: %w: %q", c.container, domain.ErrInvalidAccessLevel, level)
	}

	headers := map[string]string{}
	if value := level.HeaderValue(); value != "" {
		headers[auth.XMsBlobPublicAccessHeader] = value
	}

	resp, err := c.do(ctx, request{
		op:          "set-acl",
		method:      http.MethodPut,
		query:       aclQuery(),
		headers:     headers,
		body:        []byte(emptySignedIdentifiers),
		contentType: "application/xml",
	})
	if err != nil {
		return err
	}
	if !isSuccess(resp.StatusCode) {
		return c.remoteError("set-acl", c.container, resp, false)
	}
	drain(resp)

	c.logger.Debug().Str("level", string(level)).Msg("container access level set")
	return nil
}

// CreateContainer creates the container. An existing container is not an error.
func (c *Client) CreateContainer(ctx context.Context) error {
	resp, err := c.do(ctx, request{
		op:     "create-container",
		method: http.MethodPut,
		query:  url.Values{"restype": {"container"}},
	})
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusConflict {
		drain(resp)
		return nil
	}
	if !isSuccess(resp.StatusCode) {
		return c.remoteError("create-container", c.container, resp, false)
	}
	drain(resp)

	return nil
}

// Ensure Client implements storage.Backend.
var _ storage.Backend = (*Client)(nil)
