// Package auth implements Shared Key request signing and Shared Access
// Signature (SAS) tokens for the Azure Blob Storage REST interface.
package auth

import (
	"crypto/hmac"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// Shared Key Signing
// =============================================================================

// SharedKeySigner signs requests with an account key.
type SharedKeySigner struct {
	creds Credentials
}

// NewSharedKeySigner creates a signer for creds.
func NewSharedKeySigner(creds Credentials) *SharedKeySigner {
	return &SharedKeySigner{creds: creds}
}

// Account returns the account the signer signs for.
func (s *SharedKeySigner) Account() string {
	return s.creds.AccountName
}

// Sign returns the base64 signature for req.
func (s *SharedKeySigner) Sign(req SharedKeyRequest) string {
	return SignSharedKey(s.creds, req)
}

// Authorization returns the full Authorization header value for req.
func (s *SharedKeySigner) Authorization(req SharedKeyRequest) string {
	return FormatSharedKey(s.creds.AccountName, s.Sign(req))
}

// SignSharedKey computes the Shared Key signature of req.
func SignSharedKey(creds Credentials, req SharedKeyRequest) string {
	return creds.computeHMAC(StringToSignSharedKey(creds.AccountName, req))
}

// FormatSharedKey builds "SharedKey account:signature".
func FormatSharedKey(account, signature string) string {
	return SharedKeyScheme + " " + account + ":" + signature
}

// =============================================================================
// String to Sign Building
// =============================================================================

// StringToSignSharedKey builds the 13-line Shared Key string-to-sign.
// Standard headers other than Content-Length and Content-Type are always empty.
func StringToSignSharedKey(account string, req SharedKeyRequest) string {
	contentLength := ""
	if req.ContentLength > 0 {
		contentLength = strconv.FormatInt(req.ContentLength, 10)
	}

	fields := []string{
		strings.ToUpper(req.Method),
		"", // Content-Encoding
		"", // Content-Language
		contentLength,
		"", // Content-MD5
		req.ContentType,
		"", // Date
		"", // If-Modified-Since
		"", // If-Match
		"", // If-None-Match
		"", // If-Unmodified-Since
		"", // Range
		canonicalizedHeaders(req.Headers) + canonicalizedResource(account, req.Container, req.BlobPath, req.Query),
	}

	return strings.Join(fields, "\n")
}

// canonicalizedHeaders emits every x-ms-* header as "name:value\n", sorted by
// lowercase name.
func canonicalizedHeaders(headers http.Header) string {
	values := make(map[string]string, len(headers))
	for name, vv := range headers {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, CanonicalHeaderPrefix) {
			continue
		}
		trimmed := make([]string, 0, len(vv))
		for _, v := range vv {
			trimmed = append(trimmed, strings.TrimSpace(v))
		}
		if prev, ok := values[lower]; ok {
			trimmed = append([]string{prev}, trimmed...)
		}
		values[lower] = strings.Join(trimmed, ",")
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var canonical strings.Builder
	for _, name := range names {
		canonical.WriteString(name)
		canonical.WriteString(":")
		canonical.WriteString(values[name])
		canonical.WriteString("\n")
	}

	return canonical.String()
}

// canonicalizedResource builds "/account/container[/blob]" followed by
// "\nkey:value" for every query parameter, sorted by key.
func canonicalizedResource(account, container, blobPath string, query url.Values) string {
	var canonical strings.Builder

	canonical.WriteString("/")
	canonical.WriteString(account)
	canonical.WriteString("/")
	canonical.WriteString(container)
	if blob := strings.TrimPrefix(blobPath, "/"); blob != "" {
		canonical.WriteString("/")
		canonical.WriteString(blob)
	}

	if len(query) == 0 {
		return canonical.String()
	}

	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		values := append([]string(nil), query[key]...)
		sort.Strings(values)
		canonical.WriteString("\n")
		canonical.WriteString(key)
		canonical.WriteString(":")
		canonical.WriteString(strings.Join(values, ","))
	}

	return canonical.String()
}

// =============================================================================
// Signature Verification
// =============================================================================

// VerifySharedKey recomputes the signature of req and compares it with the
// one carried in the request in constant time.
func VerifySharedKey(creds Credentials, req SharedKeyRequest, signature string) error {
	expected := SignSharedKey(creds, req)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureDoesNotMatch
	}
	return nil
}

// ValidateRequestTime checks that requestTime is within MaxSkewTime of now.
func ValidateRequestTime(requestTime, now time.Time) error {
	skew := now.Sub(requestTime)
	if skew < 0 {
		skew = -skew
	}

	if skew > MaxSkewTime {
		return ErrRequestTimeTooSkewed
	}

	return nil
}
