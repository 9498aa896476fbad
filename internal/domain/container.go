// Package domain contains the core entities shared by the blob storage client.
package domain

import "fmt"

// AccessLevel is the anonymous access level of a container.
type AccessLevel string

const (
	// AccessPrivate denies anonymous access. The service reports it by
	// omitting the x-ms-blob-public-access header.
	AccessPrivate AccessLevel = "private"

	// AccessBlob allows anonymous reads of individual blobs.
	AccessBlob AccessLevel = "blob"

	// AccessContainer allows anonymous reads and listing.
	AccessContainer AccessLevel = "container"
)

// ParseAccessLevel maps a x-ms-blob-public-access header value to an AccessLevel.
// An empty value is private.
func ParseAccessLevel(value string) (AccessLevel, error) {
	switch value {
	case "", string(AccessPrivate):
		return AccessPrivate, nil
	case string(AccessBlob):
		return AccessBlob, nil
	case string(AccessContainer):
		return AccessContainer, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAccessLevel, value)
	}
}

// HeaderValue returns the value to send in x-ms-blob-public-access, or ""
// when the header must be omitted.
func (l AccessLevel) HeaderValue() string {
	if l == AccessPrivate {
		return ""
	}
	return string(l)
}

// IsPublic reports whether anonymous blob reads are allowed.
func (l AccessLevel) IsPublic() bool {
	return l == AccessBlob || l == AccessContainer
}

// AllowsListing reports whether anonymous listing is allowed.
func (l AccessLevel) AllowsListing() bool {
	return l == AccessContainer
}

// Valid reports whether l is a known access level.
func (l AccessLevel) Valid() bool {
	switch l {
	case AccessPrivate, AccessBlob, AccessContainer:
		return true
	}
	return false
}
