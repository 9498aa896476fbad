// Package auth implements Shared Key request signing and Shared Access
// Signature (SAS) tokens for the Azure Blob Storage REST interface.
package auth

import "time"

// =============================================================================
// Constants
// =============================================================================

const (
	// SharedKeyScheme is the authorization scheme for account-key signed requests.
	SharedKeyScheme = "SharedKey"

	// DefaultAPIVersion is sent in x-ms-version and signed into SAS tokens.
	DefaultAPIVersion = "2023-08-03"

	// DefaultServiceHost is the public blob endpoint suffix.
	DefaultServiceHost = "blob.core.windows.net"

	// SASTimeFormat is the ISO-8601 UTC format used for st and se.
	SASTimeFormat = "2006-01-02T15:04:05Z"

	// MaxSkewTime is the maximum allowed distance between x-ms-date and now.
	MaxSkewTime = 15 * time.Minute

	// CanonicalHeaderPrefix selects the headers that take part in Shared Key signing.
	CanonicalHeaderPrefix = "x-ms-"
)

// =============================================================================
// Header Constants
// =============================================================================

const (
	// AuthorizationHeader is the HTTP header for authorization.
	AuthorizationHeader = "Authorization"

	// XMsDateHeader carries the request time in RFC-1123 GMT.
	XMsDateHeader = "x-ms-date"

	// XMsVersionHeader carries the REST API version.
	XMsVersionHeader = "x-ms-version"

	// XMsClientRequestIDHeader correlates client and server logs.
	XMsClientRequestIDHeader = "x-ms-client-request-id"

	// XMsRequestIDHeader is the server-assigned request id.
	XMsRequestIDHeader = "x-ms-request-id"

	// XMsBlobTypeHeader selects the blob type on upload.
	XMsBlobTypeHeader = "x-ms-blob-type"

	// XMsCopySourceHeader names the source URL of a server-side copy.
	XMsCopySourceHeader = "x-ms-copy-source"

	// XMsCopyStatusHeader reports the state of a server-side copy.
	XMsCopyStatusHeader = "x-ms-copy-status"

	// XMsBlobPublicAccessHeader carries the container access level.
	XMsBlobPublicAccessHeader = "x-ms-blob-public-access"

	// XMsErrorCodeHeader mirrors the error code of a failed request.
	XMsErrorCodeHeader = "x-ms-error-code"

	// BlockBlob is the only blob type this client writes.
	BlockBlob = "BlockBlob"
)

// =============================================================================
// SAS Query Keys
// =============================================================================

const (
	SASPermissionsKey = "sp"
	SASStartKey       = "st"
	SASExpiryKey      = "se"
	SASProtocolKey    = "spr"
	SASVersionKey     = "sv"
	SASResourceKey    = "sr"
	SASIPRangeKey     = "sip"
	SASSignatureKey   = "sig"
)

// sasQueryOrder is the emission order of SAS query parameters; sig is appended last.
var sasQueryOrder = []string{
	SASPermissionsKey,
	SASStartKey,
	SASExpiryKey,
	SASProtocolKey,
	SASVersionKey,
	SASResourceKey,
	SASIPRangeKey,
}

// =============================================================================
// SAS Defaults
// =============================================================================

const (
	// DefaultSASProtocol restricts tokens to HTTPS unless told otherwise.
	DefaultSASProtocol = "https"

	// DefaultBlobPermissions is used when a blob grant names no permissions.
	DefaultBlobPermissions = "r"

	// DefaultContainerPermissions is used when a container grant names no permissions.
	DefaultContainerPermissions = "rl"

	// validPermissions lists every permission letter accepted in sp, in the
	// order the letters must appear.
	validPermissions = "racwdl"
)
