// Package auth implements Shared Key request signing and Shared Access
// Signature (SAS) tokens for the Azure Blob Storage REST interface.
package auth

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// =============================================================================
// Authorization Header Parsing
// =============================================================================

// GetAuthType determines the authentication type from a request.
func GetAuthType(r *http.Request) AuthType {
	authHeader := r.Header.Get(AuthorizationHeader)

	if authHeader != "" {
		if strings.HasPrefix(authHeader, SharedKeyScheme+" ") {
			return AuthTypeSharedKey
		}
		return AuthTypeUnknown
	}

	if r.URL.Query().Get(SASSignatureKey) != "" {
		return AuthTypeSAS
	}

	return AuthTypeAnonymous
}

// ParseSharedKey parses "SharedKey account:signature".
func ParseSharedKey(authHeader string) (account, signature string, err error) {
	rest, ok := strings.CutPrefix(authHeader, SharedKeyScheme+" ")
	if !ok {
		return "", "", ErrInvalidAuthorizationHeader
	}

	account, signature, ok = strings.Cut(strings.TrimSpace(rest), ":")
	if !ok || account == "" || signature == "" {
		return "", "", fmt.Errorf("%w: expected account:signature", ErrInvalidAuthorizationHeader)
	}

	return account, signature, nil
}

// GetRequestTime parses x-ms-date.
func GetRequestTime(r *http.Request) (time.Time, error) {
	value := r.Header.Get(XMsDateHeader)
	if value == "" {
		return time.Time{}, ErrMissingSecurityHeader
	}

	t, err := http.ParseTime(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid %s", ErrMissingSecurityHeader, XMsDateHeader)
	}

	return t, nil
}

// =============================================================================
// Request Reconstruction
// =============================================================================

// SplitResourcePath splits a path-style request path "/account/container/blob"
// into its parts. The blob part may contain slashes.
func SplitResourcePath(path string) (account, container, blob string) {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	switch len(parts) {
	case 3:
		return parts[0], parts[1], parts[2]
	case 2:
		return parts[0], parts[1], ""
	default:
		return parts[0], "", ""
	}
}

// SharedKeyRequestFromHTTP rebuilds the signed request description of an
// incoming path-style request. The blob path stays percent-encoded as it
// appeared on the wire.
func SharedKeyRequestFromHTTP(r *http.Request) SharedKeyRequest {
	_, container, blob := SplitResourcePath(r.URL.EscapedPath())

	var query url.Values
	if q := r.URL.Query(); len(q) > 0 {
		query = q
	}

	contentLength := r.ContentLength
	if contentLength < 0 {
		contentLength = 0
	}

	return SharedKeyRequest{
		Method:        r.Method,
		ContentLength: contentLength,
		ContentType:   r.Header.Get("Content-Type"),
		Headers:       r.Header,
		Container:     container,
		BlobPath:      blob,
		Query:         query,
	}
}
