// Package service provides the filesystem-style operations built on a blob container.
package service

import (
	"errors"
	"fmt"
)

// Common service errors.
var (
	// File errors
	ErrUnableToWriteFile        = errors.New("unable to write file")
	ErrUnableToReadFile         = errors.New("unable to read file")
	ErrUnableToDeleteFile       = errors.New("unable to delete file")
	ErrUnableToCopyFile         = errors.New("unable to copy file")
	ErrUnableToMoveFile         = errors.New("unable to move file")
	ErrUnableToRetrieveMetadata = errors.New("unable to retrieve metadata")
	ErrUnableToListContents     = errors.New("unable to list contents")

	// Visibility errors
	ErrVisibilityNotSupported = errors.New("changing visibility is not enabled")
	ErrInvalidVisibility      = errors.New("invalid visibility: must be public or private")

	// Presigned URL errors
	ErrInvalidExpiration     = errors.New("invalid expiration: must be positive")
	ErrMissingRequiredParams = errors.New("missing required parameters")
)

// FileError reports a failed operation on one path. It unwraps to both the
// operation sentinel and the underlying cause.
type FileError struct {
	// Op is the operation, e.g. "write", "read".
	Op string

	// Path is the location the operation targeted.
	Path string

	// Reason is the service message or a short description.
	Reason string

	// Err is one of the sentinels above.
	Err error

	// Cause is the error returned by the backend, if any.
	Cause error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %s", e.Op, e.Path, e.Err, e.Reason)
}

// Unwrap returns the sentinel and the cause for errors.Is/errors.As.
func (e *FileError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// newFileError builds a FileError, taking the reason from cause when none is given.
func newFileError(op, path string, sentinel, cause error, reason string) *FileError {
	if reason == "" && cause != nil {
		reason = reasonFor(cause)
	}
	return &FileError{
		Op:     op,
		Path:   path,
		Reason: reason,
		Err:    sentinel,
		Cause:  cause,
	}
}
