package auth

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/alexander-azblob/internal/domain"
)

var sasExpiry = time.Date(2030, time.March, 4, 5, 6, 7, 0, time.UTC)

func testSASSigner(t *testing.T) *SASSigner {
	t.Helper()
	return NewSASSigner(testCredentials(t), "")
}

func TestStringToSignSAS_Layout(t *testing.T) {
	v := SASValues{
		Permissions: "r",
		Start:       time.Date(2030, time.March, 1, 0, 0, 0, 0, time.UTC),
		Expiry:      sasExpiry,
		Container:   "photos",
		Blob:        "2024/cat.jpg",
		IPRange:     "10.0.0.1",
		Protocol:    "https",
		Version:     DefaultAPIVersion,
	}

	lines := strings.Split(StringToSignSAS(testAccount, v), "\n")
	require.Len(t, lines, 16)
	require.Equal(t, []string{
		"r",
		"2030-03-01T00:00:00Z",
		"2030-03-04T05:06:07Z",
		"/blob/devaccount/photos/2024/cat.jpg",
		"",
		"10.0.0.1",
		"https",
		"2023-08-03",
		"b",
		"", "", "", "", "", "", "",
	}, lines)
}

func TestStringToSignSAS_ContainerScope(t *testing.T) {
	v := SASValues{Permissions: "rl", Expiry: sasExpiry, Container: "photos", Protocol: "https", Version: DefaultAPIVersion}

	lines := strings.Split(StringToSignSAS(testAccount, v), "\n")
	require.Equal(t, "", lines[1])
	require.Equal(t, "/blob/devaccount/photos", lines[3])
	require.Equal(t, "c", lines[8])
}

func TestSASSigner_Defaults(t *testing.T) {
	signer := testSASSigner(t)

	blob, err := signer.BlobSAS("photos", "cat.jpg", "", sasExpiry)
	require.NoError(t, err)
	require.Equal(t, "r", blob.Values.Permissions)
	require.Equal(t, "https", blob.Values.Protocol)
	require.Equal(t, DefaultAPIVersion, blob.Values.Version)
	require.Equal(t, SASResourceBlob, blob.Values.Resource())

	container, err := signer.ContainerSAS("photos", "", sasExpiry)
	require.NoError(t, err)
	require.Equal(t, "rl", container.Values.Permissions)
	require.Equal(t, SASResourceContainer, container.Values.Resource())
}

func TestSASSigner_Validation(t *testing.T) {
	signer := testSASSigner(t)

	tests := []struct {
		name   string
		values SASValues
	}{
		{"missing container", SASValues{Expiry: sasExpiry}},
		{"missing expiry", SASValues{Container: "c"}},
		{"unknown permission", SASValues{Container: "c", Expiry: sasExpiry, Permissions: "rz"}},
		{"duplicate permission", SASValues{Container: "c", Expiry: sasExpiry, Permissions: "rr"}},
		{"start after expiry", SASValues{Container: "c", Expiry: sasExpiry, Start: sasExpiry.Add(time.Hour)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := signer.Sign(tt.values)
			require.ErrorIs(t, err, domain.ErrInvalidSAS)
		})
	}
}

func TestSASSigner_LeadingSlashIdempotent(t *testing.T) {
	signer := testSASSigner(t)

	a, err := signer.BlobSAS("photos", "dir/cat.jpg", "r", sasExpiry)
	require.NoError(t, err)

	for _, blob := range []string{"/dir/cat.jpg", "//dir/cat.jpg", "///dir/cat.jpg"} {
		b, err := signer.BlobSAS("photos", blob, "r", sasExpiry)
		require.NoError(t, err)
		require.Equal(t, "dir/cat.jpg", b.Values.Blob)
		require.Equal(t, a.Encode(), b.Encode(), blob)
	}

	q, err := url.ParseQuery(a.Encode())
	require.NoError(t, err)
	_, err = signer.Verify(q, "photos", "//dir/cat.jpg", sasExpiry.Add(-time.Minute))
	require.NoError(t, err)
}

func TestSASSigner_CanonicalPermissionOrder(t *testing.T) {
	signer := testSASSigner(t)

	tests := []struct {
		given string
		want  string
	}{
		{"wr", "rw"},
		{"ldwcar", "racwdl"},
		{"lr", "rl"},
		{"dw", "wd"},
	}

	for _, tt := range tests {
		t.Run(tt.given, func(t *testing.T) {
			token, err := signer.BlobSAS("photos", "cat.jpg", tt.given, sasExpiry)
			require.NoError(t, err)
			require.Equal(t, tt.want, token.Values.Permissions)

			canonical, err := signer.BlobSAS("photos", "cat.jpg", tt.want, sasExpiry)
			require.NoError(t, err)
			require.Equal(t, canonical.Encode(), token.Encode())

			q, err := url.ParseQuery(token.Encode())
			require.NoError(t, err)
			require.Equal(t, tt.want, q.Get("sp"))
			_, err = signer.Verify(q, "photos", "cat.jpg", sasExpiry.Add(-time.Minute))
			require.NoError(t, err)
		})
	}
}

func TestSASSigner_Uniqueness(t *testing.T) {
	signer := testSASSigner(t)

	base, err := signer.BlobSAS("photos", "cat.jpg", "r", sasExpiry)
	require.NoError(t, err)

	otherBlob, err := signer.BlobSAS("photos", "dog.jpg", "r", sasExpiry)
	require.NoError(t, err)
	otherPerm, err := signer.BlobSAS("photos", "cat.jpg", "rw", sasExpiry)
	require.NoError(t, err)
	otherExpiry, err := signer.BlobSAS("photos", "cat.jpg", "r", sasExpiry.Add(time.Second))
	require.NoError(t, err)

	require.NotEqual(t, base.Signature, otherBlob.Signature)
	require.NotEqual(t, base.Signature, otherPerm.Signature)
	require.NotEqual(t, base.Signature, otherExpiry.Signature)
}

func TestSASToken_EncodeOrder(t *testing.T) {
	signer := testSASSigner(t)

	token, err := signer.Sign(SASValues{
		Container:   "photos",
		Blob:        "cat.jpg",
		Permissions: "rw",
		Start:       sasExpiry.Add(-time.Hour),
		Expiry:      sasExpiry,
		IPRange:     "10.0.0.1-10.0.0.9",
	})
	require.NoError(t, err)

	encoded := token.Encode()
	var keys []string
	for _, pair := range strings.Split(encoded, "&") {
		key, _, _ := strings.Cut(pair, "=")
		keys = append(keys, key)
	}
	require.Equal(t, []string{"sp", "st", "se", "spr", "sv", "sr", "sip", "sig"}, keys)

	t.Run("optional keys omitted", func(t *testing.T) {
		token, err := signer.BlobSAS("photos", "cat.jpg", "r", sasExpiry)
		require.NoError(t, err)
		q, err := url.ParseQuery(token.Encode())
		require.NoError(t, err)
		require.NotContains(t, q, "st")
		require.NotContains(t, q, "sip")
		require.Equal(t, token.Signature, q.Get("sig"))
		require.Equal(t, "2030-03-04T05:06:07Z", q.Get("se"))
	})
}

func TestSASToken_ParsesWithAzureSDK(t *testing.T) {
	signer := testSASSigner(t)

	token, err := signer.Sign(SASValues{
		Container:   "photos",
		Blob:        "dir/cat.jpg",
		Permissions: "rw",
		Start:       sasExpiry.Add(-time.Hour),
		Expiry:      sasExpiry,
	})
	require.NoError(t, err)

	parts, err := sas.ParseURL("https://devaccount.blob.core.windows.net/photos/dir/cat.jpg?" + token.Encode())
	require.NoError(t, err)

	require.Equal(t, "photos", parts.ContainerName)
	require.Equal(t, "dir/cat.jpg", parts.BlobName)
	require.Equal(t, "rw", parts.SAS.Permissions())
	require.Equal(t, "b", parts.SAS.Resource())
	require.Equal(t, DefaultAPIVersion, parts.SAS.Version())
	require.Equal(t, sas.ProtocolHTTPS, parts.SAS.Protocol())
	require.True(t, sasExpiry.Equal(parts.SAS.ExpiryTime()))
	require.True(t, sasExpiry.Add(-time.Hour).Equal(parts.SAS.StartTime()))
	require.Equal(t, token.Signature, parts.SAS.Signature())
}

func TestSASSigner_Verify(t *testing.T) {
	signer := testSASSigner(t)
	now := sasExpiry.Add(-time.Minute)

	blobToken, err := signer.BlobSAS("photos", "cat.jpg", "r", sasExpiry)
	require.NoError(t, err)
	q, err := url.ParseQuery(blobToken.Encode())
	require.NoError(t, err)

	t.Run("valid blob token", func(t *testing.T) {
		v, err := signer.Verify(q, "photos", "cat.jpg", now)
		require.NoError(t, err)
		require.True(t, v.HasPermission('r'))
		require.False(t, v.HasPermission('w'))
	})

	t.Run("other blob", func(t *testing.T) {
		_, err := signer.Verify(q, "photos", "dog.jpg", now)
		require.ErrorIs(t, err, ErrSignatureDoesNotMatch)
	})

	t.Run("expired", func(t *testing.T) {
		_, err := signer.Verify(q, "photos", "cat.jpg", sasExpiry.Add(time.Second))
		require.ErrorIs(t, err, ErrSASExpired)
	})

	t.Run("container token covers blobs", func(t *testing.T) {
		token, err := signer.ContainerSAS("photos", "rl", sasExpiry)
		require.NoError(t, err)
		cq, err := url.ParseQuery(token.Encode())
		require.NoError(t, err)

		_, err = signer.Verify(cq, "photos", "any/blob.txt", now)
		require.NoError(t, err)
		_, err = signer.Verify(cq, "videos", "any/blob.txt", now)
		require.ErrorIs(t, err, ErrSignatureDoesNotMatch)
	})

	t.Run("missing signature", func(t *testing.T) {
		_, err := signer.Verify(url.Values{"se": {"2030-03-04T05:06:07Z"}}, "photos", "cat.jpg", now)
		require.ErrorIs(t, err, domain.ErrInvalidSAS)
	})
}
