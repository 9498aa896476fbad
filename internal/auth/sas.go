// Package auth implements Shared Key request signing and Shared Access
// Signature (SAS) tokens for the Azure Blob Storage REST interface.
package auth

import (
	"crypto/hmac"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prn-tf/alexander-azblob/internal/domain"
)

// =============================================================================
// SAS Signing
// =============================================================================

// SASSigner issues service SAS tokens. It keeps no state between calls.
type SASSigner struct {
	creds   Credentials
	version string
}

// NewSASSigner creates a signer. An empty version falls back to DefaultAPIVersion.
func NewSASSigner(creds Credentials, version string) *SASSigner {
	if version == "" {
		version = DefaultAPIVersion
	}
	return &SASSigner{creds: creds, version: version}
}

// Sign validates and normalizes v, then signs it.
func (s *SASSigner) Sign(v SASValues) (SASToken, error) {
	v = s.normalize(v)
	if err := validateSASValues(v); err != nil {
		return SASToken{}, err
	}
	v.Permissions = canonicalPermissions(v.Permissions)

	return SASToken{
		Values:    v,
		Signature: s.creds.computeHMAC(StringToSignSAS(s.creds.AccountName, v)),
	}, nil
}

// BlobSAS is a convenience for a blob-scoped grant.
func (s *SASSigner) BlobSAS(container, blob, permissions string, expiry time.Time) (SASToken, error) {
	return s.Sign(SASValues{
		Container:   container,
		Blob:        blob,
		Permissions: permissions,
		Expiry:      expiry,
	})
}

// ContainerSAS is a convenience for a container-scoped grant.
func (s *SASSigner) ContainerSAS(container, permissions string, expiry time.Time) (SASToken, error) {
	return s.Sign(SASValues{
		Container:   container,
		Permissions: permissions,
		Expiry:      expiry,
	})
}

// normalize applies defaults and strips the leading slashes of the blob path.
func (s *SASSigner) normalize(v SASValues) SASValues {
	v.Blob = strings.TrimLeft(v.Blob, "/")
	if v.Protocol == "" {
		v.Protocol = DefaultSASProtocol
	}
	if v.Version == "" {
		v.Version = s.version
	}
	if v.Permissions == "" {
		if v.Resource() == SASResourceBlob {
			v.Permissions = DefaultBlobPermissions
		} else {
			v.Permissions = DefaultContainerPermissions
		}
	}
	return v
}

// validateSASValues checks the fields a grant cannot be issued without.
func validateSASValues(v SASValues) error {
	if v.Container == "" {
		return fmt.Errorf("%w: container is required", domain.ErrInvalidSAS)
	}
	if v.Expiry.IsZero() {
		return fmt.Errorf("%w: expiry is required", domain.ErrInvalidSAS)
	}
	if !v.Start.IsZero() && !v.Start.Before(v.Expiry) {
		return fmt.Errorf("%w: start must be before expiry", domain.ErrInvalidSAS)
	}

	seen := make(map[rune]bool, len(v.Permissions))
	for _, p := range v.Permissions {
		if !strings.ContainsRune(validPermissions, p) {
			return fmt.Errorf("%w: unknown permission %q", domain.ErrInvalidSAS, p)
		}
		if seen[p] {
			return fmt.Errorf("%w: duplicate permission %q", domain.ErrInvalidSAS, p)
		}
		seen[p] = true
	}

	return nil
}

// canonicalPermissions reorders valid permission letters into racwdl order.
// The service refuses grants whose letters are out of order.
func canonicalPermissions(permissions string) string {
	var b strings.Builder
	for _, p := range validPermissions {
		if strings.ContainsRune(permissions, p) {
			b.WriteRune(p)
		}
	}
	return b.String()
}

// =============================================================================
// String to Sign Building
// =============================================================================

// StringToSignSAS builds the 16-line service SAS string-to-sign. The signed
// identifier, snapshot time, encryption scope and response header overrides
// are never set by this package but keep their positions as empty lines.
func StringToSignSAS(account string, v SASValues) string {
	fields := []string{
		v.Permissions,
		formatSASTime(v.Start),
		formatSASTime(v.Expiry),
		sasCanonicalResource(account, v.Container, v.Blob),
		"", // signed identifier
		v.IPRange,
		v.Protocol,
		v.Version,
		string(v.Resource()),
		"", // snapshot time
		"", // encryption scope
		"", // rscc
		"", // rscd
		"", // rsce
		"", // rscl
		"", // rsct
	}

	return strings.Join(fields, "\n")
}

// sasCanonicalResource builds "/blob/account/container[/blob]".
func sasCanonicalResource(account, container, blob string) string {
	resource := "/blob/" + account + "/" + container
	if blob = strings.TrimLeft(blob, "/"); blob != "" {
		resource += "/" + blob
	}
	return resource
}

// formatSASTime renders t in UTC or returns "" for the zero time.
func formatSASTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(SASTimeFormat)
}

// =============================================================================
// Query Encoding
// =============================================================================

// Encode renders the token as a query string: sp, st, se, spr, sv, sr, sip in
// that order with unset optional keys omitted, then sig.
func (t SASToken) Encode() string {
	params := map[string]string{
		SASPermissionsKey: t.Values.Permissions,
		SASStartKey:       formatSASTime(t.Values.Start),
		SASExpiryKey:      formatSASTime(t.Values.Expiry),
		SASProtocolKey:    t.Values.Protocol,
		SASVersionKey:     t.Values.Version,
		SASResourceKey:    string(t.Values.Resource()),
		SASIPRangeKey:     t.Values.IPRange,
	}

	pairs := make([]string, 0, len(sasQueryOrder)+1)
	for _, key := range sasQueryOrder {
		if value := params[key]; value != "" {
			pairs = append(pairs, key+"="+url.QueryEscape(value))
		}
	}
	pairs = append(pairs, SASSignatureKey+"="+url.QueryEscape(t.Signature))

	return strings.Join(pairs, "&")
}

// String is an alias for Encode.
func (t SASToken) String() string {
	return t.Encode()
}

// =============================================================================
// SAS Verification
// =============================================================================

// ParseSASQuery extracts the signed fields and signature from a request's
// query. Container and Blob are left for the caller to fill from the path.
func ParseSASQuery(query url.Values) (SASValues, string, error) {
	signature := query.Get(SASSignatureKey)
	if signature == "" {
		return SASValues{}, "", fmt.Errorf("%w: missing %s", domain.ErrInvalidSAS, SASSignatureKey)
	}

	v := SASValues{
		Permissions: query.Get(SASPermissionsKey),
		IPRange:     query.Get(SASIPRangeKey),
		Protocol:    query.Get(SASProtocolKey),
		Version:     query.Get(SASVersionKey),
	}

	expiry, err := time.Parse(SASTimeFormat, query.Get(SASExpiryKey))
	if err != nil {
		return SASValues{}, "", fmt.Errorf("%w: invalid %s", domain.ErrInvalidSAS, SASExpiryKey)
	}
	v.Expiry = expiry

	if st := query.Get(SASStartKey); st != "" {
		start, err := time.Parse(SASTimeFormat, st)
		if err != nil {
			return SASValues{}, "", fmt.Errorf("%w: invalid %s", domain.ErrInvalidSAS, SASStartKey)
		}
		v.Start = start
	}

	return v, signature, nil
}

// Verify checks a token presented for container/blob at time now. sr decides
// whether the blob path is part of the signed resource.
func (s *SASSigner) Verify(query url.Values, container, blob string, now time.Time) (SASValues, error) {
	v, signature, err := ParseSASQuery(query)
	if err != nil {
		return SASValues{}, err
	}

	v.Container = container
	switch SASResource(query.Get(SASResourceKey)) {
	case SASResourceBlob:
		v.Blob = strings.TrimLeft(blob, "/")
		if v.Blob == "" {
			return SASValues{}, fmt.Errorf("%w: blob token used on a container", domain.ErrInvalidSAS)
		}
	case SASResourceContainer:
		v.Blob = ""
	default:
		return SASValues{}, fmt.Errorf("%w: invalid %s", domain.ErrInvalidSAS, SASResourceKey)
	}

	expected := s.creds.computeHMAC(StringToSignSAS(s.creds.AccountName, v))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return SASValues{}, ErrSignatureDoesNotMatch
	}

	if now.After(v.Expiry) {
		return SASValues{}, ErrSASExpired
	}
	if !v.Start.IsZero() && now.Before(v.Start) {
		return SASValues{}, ErrSASNotYetValid
	}

	return v, nil
}

// HasPermission reports whether the grant includes permission letter p.
func (v SASValues) HasPermission(p byte) bool {
	return strings.IndexByte(v.Permissions, p) >= 0
}
