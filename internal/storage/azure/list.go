// Package azure implements storage.Backend against the Azure Blob Storage
// REST interface using Shared Key authentication.
package azure

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/prn-tf/alexander-azblob/internal/domain"
	"github.com/prn-tf/alexander-azblob/internal/storage"
)

// enumerationResults is the List Blobs response document.
type enumerationResults struct {
	XMLName    xml.Name  `xml:"EnumerationResults"`
	Prefix     string    `xml:"Prefix"`
	Marker     string    `xml:"Marker"`
	MaxResults int       `xml:"MaxResults"`
	Blobs      []blobXML `xml:"Blobs>Blob"`
	NextMarker string    `xml:"NextMarker"`
}

type blobXML struct {
	Name       string            `xml:"Name"`
	Properties blobPropertiesXML `xml:"Properties"`
}

type blobPropertiesXML struct {
	LastModified  string `xml:"Last-Modified"`
	ETag          string `xml:"Etag"`
	ContentLength int64  `xml:"Content-Length"`
	ContentType   string `xml:"Content-Type"`
}

// listQuery builds the query of a List Blobs request. Every parameter is
// part of the signed canonical resource.
func listQuery(input storage.ListInput) url.Values {
	maxResults := input.MaxResults
	if maxResults <= 0 {
		maxResults = storage.DefaultPageSize
	}

	query := url.Values{}
	query.Set("restype", "container")
	query.Set("comp", "list")
	query.Set("maxresults", strconv.Itoa(maxResults))
	if input.Prefix != "" {
		query.Set("prefix", input.Prefix)
	}
	if input.Marker != "" {
		query.Set("marker", input.Marker)
	}
	return query
}

// ListBlobs fetches one page of the flat blob listing.
func (c *Client) ListBlobs(ctx context.Context, input storage.ListInput) (*domain.ListingPage, error) {
	input.Prefix = storage.NormalizeKey(input.Prefix)

	resp, err := c.do(ctx, request{
		op:     "list",
		method: http.MethodGet,
		query:  listQuery(input),
	})
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, c.remoteError("list", c.container, resp, false)
	}
	defer drain(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("list %s: read body: %w", c.container, err)
	}

	page := parseListing(body)
	c.logger.Debug().
		Str("prefix", input.Prefix).
		Int("blobs", len(page.Blobs)).
		Bool("more", page.HasMore()).
		Msg("listed page")

	return page, nil
}

// parseListing decodes a List Blobs body. An unparseable body yields an
// empty final page.
func parseListing(body []byte) *domain.ListingPage {
	var doc enumerationResults
	if err := xml.Unmarshal(body, &doc); err != nil {
		return &domain.ListingPage{}
	}

	page := &domain.ListingPage{
		Blobs:      make([]domain.BlobItem, 0, len(doc.Blobs)),
		NextMarker: doc.NextMarker,
	}

	for _, b := range doc.Blobs {
		item := domain.BlobItem{
			Name:        b.Name,
			Size:        b.Properties.ContentLength,
			ContentType: b.Properties.ContentType,
		}
		if item.ContentType == "" {
			item.ContentType = domain.DefaultContentType
		}
		if t, err := http.ParseTime(b.Properties.LastModified); err == nil {
			item.LastModified = t.UTC()
		}
		page.Blobs = append(page.Blobs, item)
	}

	return page
}
