// Package azure implements storage.Backend against the Azure Blob Storage
// REST interface using Shared Key authentication.
package azure

import (
	"bytes"
	"encoding/xml"
	"io"
	"net/http"
	"strings"

	"github.com/prn-tf/alexander-azblob/internal/auth"
	"github.com/prn-tf/alexander-azblob/internal/domain"
)

// maxErrorBody bounds how much of a failed response is kept as the message.
const maxErrorBody = 64 << 10

// remoteErrorBody is the service error document.
type remoteErrorBody struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

// parseRemoteError extracts the code and message of an error body. Bodies
// that are not XML are returned verbatim as the message.
func parseRemoteError(body []byte) (code, message string) {
	trimmed := bytes.TrimSpace(body)
	if !bytes.Contains(trimmed, []byte("<?xml")) && !bytes.HasPrefix(trimmed, []byte("<Error")) {
		return "", string(trimmed)
	}

	var doc remoteErrorBody
	if err := xml.Unmarshal(trimmed, &doc); err != nil {
		return "", string(trimmed)
	}

	return doc.Code, strings.TrimSpace(doc.Message)
}

// remoteError consumes a non-2xx response and classifies it. notFound marks
// operations on which a 404 means the blob is missing.
func (c *Client) remoteError(op, resource string, resp *http.Response, notFound bool) error {
	defer drain(resp)

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	code, message := parseRemoteError(body)
	if code == "" {
		code = resp.Header.Get(auth.XMsErrorCodeHeader)
	}

	c.logger.Debug().
		Str("op", op).
		Str("resource", resource).
		Int("status", resp.StatusCode).
		Str("code", code).
		Msg("remote error")

	return domain.NewStorageError(op, resource, resp.StatusCode, code, message, notFound)
}
