// Package auth implements Shared Key request signing and Shared Access
// Signature (SAS) tokens for the Azure Blob Storage REST interface.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prn-tf/alexander-azblob/internal/domain"
)

// =============================================================================
// Credential Types
// =============================================================================

// Credentials hold a storage account name and its decoded account key.
// The zero value is not usable; build one with NewCredentials.
type Credentials struct {
	// AccountName is the storage account name.
	AccountName string

	key []byte
}

// NewCredentials validates the account name and decodes the base64 account key.
// Any problem is reported as domain.ErrInvalidConfiguration.
func NewCredentials(accountName, accountKey string) (Credentials, error) {
	if strings.TrimSpace(accountName) == "" {
		return Credentials{}, domain.ConfigError("account name is required")
	}
	if strings.TrimSpace(accountKey) == "" {
		return Credentials{}, domain.ConfigError("account key is required")
	}

	key, err := base64.StdEncoding.DecodeString(accountKey)
	if err != nil {
		return Credentials{}, domain.ConfigError("account key is not valid base64: %v", err)
	}

	return Credentials{AccountName: accountName, key: key}, nil
}

// computeHMAC signs data with the account key and returns the base64 digest.
func (c Credentials) computeHMAC(data string) string {
	return base64.StdEncoding.EncodeToString(hmacSHA256(c.key, []byte(data)))
}

// hmacSHA256 computes HMAC-SHA256.
func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// =============================================================================
// Shared Key Types
// =============================================================================

// SharedKeyRequest carries the parts of a request that take part in Shared
// Key signing. It includes x-ms-date, so a value describes exactly one request.
type SharedKeyRequest struct {
	// Method is the HTTP verb.
	Method string

	// ContentLength is the body length; zero is signed as the empty string.
	ContentLength int64

	// ContentType is the Content-Type header value, if any.
	ContentType string

	// Headers are the request headers; only x-ms-* names are signed.
	Headers http.Header

	// Container is the target container.
	Container string

	// BlobPath is the target blob exactly as escaped in the request URI; empty
	// for container operations.
	BlobPath string

	// Query holds container operation parameters such as restype and comp.
	Query url.Values
}

// =============================================================================
// SAS Types
// =============================================================================

// SASResource is the signed resource code (sr).
type SASResource string

const (
	// SASResourceBlob scopes a token to a single blob.
	SASResourceBlob SASResource = "b"

	// SASResourceContainer scopes a token to a container and every blob in it.
	SASResourceContainer SASResource = "c"
)

// SASValues describe a delegated grant.
type SASValues struct {
	// Permissions is a subset of "racwdl". Signing reorders it into that order.
	Permissions string

	// Start is optional; the zero time omits st.
	Start time.Time

	// Expiry is required.
	Expiry time.Time

	// Container is required.
	Container string

	// Blob narrows the grant to one blob; empty means container scope.
	Blob string

	// IPRange is an optional single address or "a.b.c.d-e.f.g.h" range.
	IPRange string

	// Protocol is "https" or "https,http". Defaults to https.
	Protocol string

	// Version is the signed API version. Defaults to the signer's version.
	Version string
}

// Resource returns the sr code for the grant's scope.
func (v SASValues) Resource() SASResource {
	if v.Blob == "" {
		return SASResourceContainer
	}
	return SASResourceBlob
}

// SASToken is a signed grant.
type SASToken struct {
	// Values are the normalized inputs that were signed.
	Values SASValues

	// Signature is the base64 HMAC over the SAS string-to-sign.
	Signature string
}

// =============================================================================
// Request Context Types
// =============================================================================

// AuthType represents the type of authentication used in a request.
type AuthType int

const (
	// AuthTypeUnknown indicates an unrecognized auth type.
	AuthTypeUnknown AuthType = iota

	// AuthTypeAnonymous indicates no authentication (public access).
	AuthTypeAnonymous

	// AuthTypeSharedKey indicates a SharedKey Authorization header.
	AuthTypeSharedKey

	// AuthTypeSAS indicates a Shared Access Signature in the query string.
	AuthTypeSAS
)

// String returns the string representation of the auth type.
func (at AuthType) String() string {
	switch at {
	case AuthTypeAnonymous:
		return "Anonymous"
	case AuthTypeSharedKey:
		return "SharedKey"
	case AuthTypeSAS:
		return "SAS"
	default:
		return "Unknown"
	}
}

// AuthContext is attached to a request by the middleware after authentication.
type AuthContext struct {
	// Account is the storage account the request addressed.
	Account string

	// AuthType is the type of authentication used.
	AuthType AuthType

	// Permissions holds the SAS permissions; empty for Shared Key.
	Permissions string

	// RequestTime is x-ms-date for Shared Key requests.
	RequestTime time.Time
}

// authContextKey is the context key for AuthContext.
type authContextKey struct{}

// AuthContextKey is the key used to store AuthContext in request context.
var AuthContextKey = authContextKey{}
