// Package auth implements Shared Key request signing and Shared Access
// Signature (SAS) tokens for the Azure Blob Storage REST interface.
package auth

import (
	"errors"
	"net/http"
)

// Authentication and signature errors.
var (
	// ErrInvalidAuthorizationHeader indicates the Authorization header is malformed.
	ErrInvalidAuthorizationHeader = errors.New("invalid authorization header")

	// ErrSignatureDoesNotMatch indicates the calculated signature doesn't match.
	ErrSignatureDoesNotMatch = errors.New("server failed to authenticate the request: signature mismatch")

	// ErrMissingSecurityHeader indicates x-ms-date is missing or unparseable.
	ErrMissingSecurityHeader = errors.New("missing required security header")

	// ErrRequestTimeTooSkewed indicates the request time is too far from server time.
	ErrRequestTimeTooSkewed = errors.New("the request time is too far from the server time")

	// ErrAccessDenied indicates the request is not authorized.
	ErrAccessDenied = errors.New("access denied")

	// ErrUnknownAccount indicates the account named in the credentials does not exist.
	ErrUnknownAccount = errors.New("unknown storage account")

	// ErrSASExpired indicates the token's se is in the past.
	ErrSASExpired = errors.New("signed expiry time has passed")

	// ErrSASNotYetValid indicates the token's st is in the future.
	ErrSASNotYetValid = errors.New("signed start time is in the future")

	// ErrPermissionMismatch indicates the token does not grant the requested operation.
	ErrPermissionMismatch = errors.New("this request is not authorized to perform this operation using this permission")

	// ErrResourceNotFound is returned for anonymous requests against private containers.
	ErrResourceNotFound = errors.New("the specified resource does not exist")
)

// ErrorCode is a service error code as it appears in <Error><Code>.
type ErrorCode string

const (
	// ErrorAuthenticationFailed maps to HTTP 403
	ErrorAuthenticationFailed ErrorCode = "AuthenticationFailed"

	// ErrorAuthorizationPermissionMismatch maps to HTTP 403
	ErrorAuthorizationPermissionMismatch ErrorCode = "AuthorizationPermissionMismatch"

	// ErrorInvalidAuthenticationInfo maps to HTTP 400
	ErrorInvalidAuthenticationInfo ErrorCode = "InvalidAuthenticationInfo"

	// ErrorNoAuthenticationInformation maps to HTTP 401
	ErrorNoAuthenticationInformation ErrorCode = "NoAuthenticationInformation"

	// ErrorResourceNotFound maps to HTTP 404
	ErrorResourceNotFound ErrorCode = "ResourceNotFound"
)

// AuthError represents an authentication failure with a service error code.
type AuthError struct {
	// Code is the service error code.
	Code ErrorCode

	// Message is the error message.
	Message string

	// HTTPStatus is the HTTP status code.
	HTTPStatus int
}

func (e *AuthError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewAuthError classifies err into an AuthError.
func NewAuthError(err error) *AuthError {
	switch {
	case errors.Is(err, ErrInvalidAuthorizationHeader),
		errors.Is(err, ErrMissingSecurityHeader):
		return &AuthError{
			Code:       ErrorInvalidAuthenticationInfo,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadRequest,
		}

	case errors.Is(err, ErrPermissionMismatch):
		return &AuthError{
			Code:       ErrorAuthorizationPermissionMismatch,
			Message:    err.Error(),
			HTTPStatus: http.StatusForbidden,
		}

	case errors.Is(err, ErrResourceNotFound):
		return &AuthError{
			Code:       ErrorResourceNotFound,
			Message:    err.Error(),
			HTTPStatus: http.StatusNotFound,
		}

	case errors.Is(err, ErrAccessDenied):
		return &AuthError{
			Code:       ErrorNoAuthenticationInformation,
			Message:    err.Error(),
			HTTPStatus: http.StatusUnauthorized,
		}

	default:
		return &AuthError{
			Code:       ErrorAuthenticationFailed,
			Message:    err.Error(),
			HTTPStatus: http.StatusForbidden,
		}
	}
}
