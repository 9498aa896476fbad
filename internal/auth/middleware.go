// Package auth implements Shared Key request signing and Shared Access
// Signature (SAS) tokens for the Azure Blob Storage REST interface.
package auth

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prn-tf/alexander-azblob/internal/domain"
)

// AccountStore resolves account credentials for signature verification.
type AccountStore interface {
	// Credentials returns the credentials of account, or ErrUnknownAccount.
	Credentials(ctx context.Context, account string) (Credentials, error)
}

// ContainerACLChecker reports a container's anonymous access level.
type ContainerACLChecker interface {
	ContainerAccess(ctx context.Context, account, container string) (domain.AccessLevel, error)
}

// Config contains configuration for the auth middleware.
type Config struct {
	// SkipPaths are paths that skip authentication.
	SkipPaths []string

	// ACLChecker enables anonymous reads on public containers (optional).
	ACLChecker ContainerACLChecker

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns the default auth configuration.
func DefaultConfig() Config {
	return Config{
		SkipPaths: []string{"/health", "/metrics"},
		Now:       time.Now,
	}
}

func (c Config) now() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
}

// isReadOperation checks if the HTTP method is a read operation.
func isReadOperation(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// isListOperation reports whether r enumerates a container.
func isListOperation(r *http.Request) bool {
	return r.URL.Query().Get("comp") == "list"
}

// requiredPermission maps a request to the SAS permission letter it needs.
func requiredPermission(r *http.Request) byte {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		if isListOperation(r) {
			return 'l'
		}
		return 'r'
	case http.MethodDelete:
		return 'd'
	default:
		return 'w'
	}
}

// Middleware creates an authentication middleware for path-style requests.
func Middleware(store AccountStore, config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if r.URL.Path == path {
					next.ServeHTTP(w, r)
					return
				}
			}

			var (
				authCtx *AuthContext
				err     error
			)

			switch GetAuthType(r) {
			case AuthTypeAnonymous:
				err = handleAnonymous(r, config)
				if err == nil {
					authCtx = &AuthContext{AuthType: AuthTypeAnonymous}
				}

			case AuthTypeSharedKey:
				authCtx, err = handleSharedKey(r, store, config)

			case AuthTypeSAS:
				authCtx, err = handleSAS(r, store, config)

			default:
				err = ErrInvalidAuthorizationHeader
			}

			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("request authentication failed")
				writeAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), AuthContextKey, authCtx)))
		})
	}
}

// handleAnonymous admits reads on containers whose access level allows them.
func handleAnonymous(r *http.Request, config Config) error {
	if config.ACLChecker == nil || !isReadOperation(r.Method) {
		return ErrAccessDenied
	}

	account, container, _ := SplitResourcePath(r.URL.Path)
	if container == "" {
		return ErrAccessDenied
	}

	level, err := config.ACLChecker.ContainerAccess(r.Context(), account, container)
	if err != nil {
		return ErrResourceNotFound
	}

	switch {
	case isListOperation(r) && level.AllowsListing():
		return nil
	case !isListOperation(r) && r.URL.Query().Get("restype") == "" && level.IsPublic():
		return nil
	default:
		return ErrResourceNotFound
	}
}

// handleSharedKey verifies a SharedKey Authorization header.
func handleSharedKey(r *http.Request, store AccountStore, config Config) (*AuthContext, error) {
	account, signature, err := ParseSharedKey(r.Header.Get(AuthorizationHeader))
	if err != nil {
		return nil, err
	}

	pathAccount, _, _ := SplitResourcePath(r.URL.Path)
	if pathAccount != account {
		return nil, fmt.Errorf("%w: account %q does not match request path", ErrSignatureDoesNotMatch, account)
	}

	requestTime, err := GetRequestTime(r)
	if err != nil {
		return nil, err
	}
	if err := ValidateRequestTime(requestTime, config.now()); err != nil {
		return nil, err
	}

	creds, err := store.Credentials(r.Context(), account)
	if err != nil {
		return nil, ErrUnknownAccount
	}

	if err := VerifySharedKey(creds, SharedKeyRequestFromHTTP(r), signature); err != nil {
		return nil, err
	}

	return &AuthContext{
		Account:     account,
		AuthType:    AuthTypeSharedKey,
		RequestTime: requestTime,
	}, nil
}

// handleSAS verifies a token in the query string and checks its permissions.
func handleSAS(r *http.Request, store AccountStore, config Config) (*AuthContext, error) {
	account, container, blob := SplitResourcePath(r.URL.Path)

	creds, err := store.Credentials(r.Context(), account)
	if err != nil {
		return nil, ErrUnknownAccount
	}

	values, err := NewSASSigner(creds, "").Verify(r.URL.Query(), container, blob, config.now())
	if err != nil {
		return nil, err
	}

	if !values.HasPermission(requiredPermission(r)) {
		return nil, ErrPermissionMismatch
	}

	return &AuthContext{
		Account:     account,
		AuthType:    AuthTypeSAS,
		Permissions: values.Permissions,
	}, nil
}

// errorResponse is the service error body.
type errorResponse struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

// writeAuthError writes a service-style XML error response.
func writeAuthError(w http.ResponseWriter, err error) {
	authErr := NewAuthError(err)

	body, _ := xml.Marshal(errorResponse{Code: string(authErr.Code), Message: authErr.Message})

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set(XMsErrorCodeHeader, string(authErr.Code))
	w.WriteHeader(authErr.HTTPStatus)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(body)
}

// GetAuthContext retrieves the AuthContext from a request context.
func GetAuthContext(ctx context.Context) *AuthContext {
	if authCtx, ok := ctx.Value(AuthContextKey).(*AuthContext); ok {
		return authCtx
	}
	return nil
}
