// Package domain contains the core entities shared by the blob storage client.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors. Remote failures are reported through StorageError, which
// unwraps to one of these sentinels so callers can use errors.Is.

var (
	// ===========================================
	// Configuration Errors
	// ===========================================

	// ErrInvalidConfiguration indicates missing or malformed client settings.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ===========================================
	// Blob Errors
	// ===========================================

	// ErrBlobNotFound indicates the requested blob does not exist.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrInvalidBlobPath indicates an empty or otherwise unusable blob path.
	ErrInvalidBlobPath = errors.New("invalid blob path")

	// ===========================================
	// Remote Errors
	// ===========================================

	// ErrRemoteFailure indicates the service answered with a non-success status.
	ErrRemoteFailure = errors.New("remote storage request failed")

	// ===========================================
	// SAS Errors
	// ===========================================

	// ErrInvalidSAS indicates a SAS grant could not be issued or verified.
	ErrInvalidSAS = errors.New("invalid shared access signature")

	// ErrInvalidAccessLevel indicates an unknown container access level.
	ErrInvalidAccessLevel = errors.New("invalid container access level")
)

// Well-known service error codes.
const (
	ErrorCodeBlobNotFound      = "BlobNotFound"
	ErrorCodeContainerNotFound = "ContainerNotFound"
)

// StorageError describes a failed remote operation.
type StorageError struct {
	// Err is the underlying sentinel (ErrBlobNotFound or ErrRemoteFailure).
	Err error

	// Op names the client operation, e.g. "get", "list".
	Op string

	// Resource is the blob path or container the request targeted.
	Resource string

	// Code is the service error code, when the body carried one.
	Code string

	// Message is the service error message or the raw response body.
	Message string

	// StatusCode is the HTTP status of the response.
	StatusCode int
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s %s: %s (%d %s): %s", e.Op, e.Resource, e.Err.Error(), e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("%s %s: %s (%d): %s", e.Op, e.Resource, e.Err.Error(), e.StatusCode, msg)
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError builds a StorageError. Only operations addressing a single
// blob set notFound, which classifies a 404 as ErrBlobNotFound; elsewhere a
// 404 (for instance a missing container) stays a generic remote failure.
func NewStorageError(op, resource string, statusCode int, code, message string, notFound bool) *StorageError {
	err := ErrRemoteFailure
	if notFound && statusCode == http.StatusNotFound {
		err = ErrBlobNotFound
	}
	return &StorageError{
		Err:        err,
		Op:         op,
		Resource:   resource,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// IsNotFound reports whether err denotes a missing blob.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBlobNotFound)
}

// ConfigError wraps ErrInvalidConfiguration with the offending field.
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
