package azure

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/alexander-azblob/internal/auth"
	"github.com/prn-tf/alexander-azblob/internal/domain"
	"github.com/prn-tf/alexander-azblob/internal/emulator"
	"github.com/prn-tf/alexander-azblob/internal/metrics"
	"github.com/prn-tf/alexander-azblob/internal/storage"
)

const (
	testAccount   = "devaccount"
	testKey       = "c3VwZXItc2VjcmV0LWFjY291bnQta2V5"
	testContainer = "docs"
)

// newEmulatorClient starts an emulator with one container and returns a
// client bound to it.
func newEmulatorClient(t *testing.T, opts ...func(*Options)) (*Client, *emulator.Store) {
	t.Helper()

	store := emulator.NewStore(nil)
	require.NoError(t, store.AddAccount(testAccount, testKey))

	srv := httptest.NewServer(emulator.NewRouter(emulator.RouterConfig{
		Store:  store,
		Logger: zerolog.Nop(),
	}).Handler())
	t.Cleanup(srv.Close)

	o := Options{
		AccountName: testAccount,
		AccountKey:  testKey,
		Container:   testContainer,
		Endpoint:    srv.URL + "/" + testAccount,
		HTTPClient:  srv.Client(),
		Logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	client, err := New(o)
	require.NoError(t, err)
	require.NoError(t, client.CreateContainer(context.Background()))

	return client, store
}

// stubDoer answers every request with a canned response and records requests.
type stubDoer struct {
	status   int
	body     string
	header   http.Header
	err      error
	requests []*http.Request
	bodies   []string
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	d.requests = append(d.requests, req)
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		d.bodies = append(d.bodies, string(b))
	}
	if d.err != nil {
		return nil, d.err
	}

	header := d.header
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: d.status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(d.body)),
		Request:    req,
	}, nil
}

func newStubClient(t *testing.T, doer *stubDoer) *Client {
	t.Helper()
	client, err := New(Options{
		AccountName: testAccount,
		AccountKey:  testKey,
		Container:   testContainer,
		HTTPClient:  doer,
		Clock:       func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	require.NoError(t, err)
	return client
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{name: "missing account", opts: Options{AccountKey: testKey, Container: "c"}},
		{name: "missing key", opts: Options{AccountName: testAccount, Container: "c"}},
		{name: "bad key", opts: Options{AccountName: testAccount, AccountKey: "not base64!", Container: "c"}},
		{name: "missing container", opts: Options{AccountName: testAccount, AccountKey: testKey}},
		{name: "relative endpoint", opts: Options{AccountName: testAccount, AccountKey: testKey, Container: "c", Endpoint: "localhost/x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			require.ErrorIs(t, err, domain.ErrInvalidConfiguration)
		})
	}
}

func TestURLs(t *testing.T) {
	client := newStubClient(t, &stubDoer{})

	require.Equal(t, testAccount, client.Account())
	require.Equal(t, testContainer, client.Container())
	require.Equal(t, "https://devaccount.blob.core.windows.net/docs", client.ContainerURL())
	require.Equal(t, "https://devaccount.blob.core.windows.net/docs/dir/a%20b.txt", client.BlobURL("/dir/a b.txt"))
}

func TestRequestHeaders(t *testing.T) {
	doer := &stubDoer{status: http.StatusCreated}
	client := newStubClient(t, doer)

	require.NoError(t, client.PutBlob(context.Background(), "/a.txt", []byte("hello"), "text/plain"))
	require.Len(t, doer.requests, 1)

	req := doer.requests[0]
	require.Equal(t, http.MethodPut, req.Method)
	require.Equal(t, "Tue, 02 Jan 2024 03:04:05 GMT", req.Header.Get(auth.XMsDateHeader))
	require.Equal(t, auth.DefaultAPIVersion, req.Header.Get(auth.XMsVersionHeader))
	require.Equal(t, auth.BlockBlob, req.Header.Get(auth.XMsBlobTypeHeader))
	require.Equal(t, "text/plain", req.Header.Get("Content-Type"))
	require.NotEmpty(t, req.Header.Get(auth.XMsClientRequestIDHeader))
	require.True(t, strings.HasPrefix(req.Header.Get(auth.AuthorizationHeader), "SharedKey devaccount:"))
	require.Equal(t, int64(5), req.ContentLength)
	require.Equal(t, "hello", doer.bodies[0])
}

func TestPutGetRoundTrip(t *testing.T) {
	client, _ := newEmulatorClient(t)
	ctx := context.Background()

	require.NoError(t, client.PutBlob(ctx, "/dir/a b.txt", []byte("hello world"), "text/plain"))

	data, props, err := client.GetBlob(ctx, "dir/a b.txt")
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
	require.Equal(t, "text/plain", props.ContentType)
	require.Equal(t, int64(11), props.ContentLength)
	require.False(t, props.LastModified.IsZero())
	require.NotEmpty(t, props.ETag)

	head, err := client.GetBlobProperties(ctx, "dir/a b.txt")
	require.NoError(t, err)
	require.Equal(t, int64(11), head.ContentLength)
	require.Equal(t, props.ETag, head.ETag)
}

func TestPutDefaultContentType(t *testing.T) {
	client, _ := newEmulatorClient(t)
	ctx := context.Background()

	require.NoError(t, client.PutBlob(ctx, "blob.bin", []byte{0x1}, ""))

	props, err := client.GetBlobProperties(ctx, "blob.bin")
	require.NoError(t, err)
	require.Equal(t, domain.DefaultContentType, props.ContentType)
}

func TestGetMissingBlob(t *testing.T) {
	client, _ := newEmulatorClient(t)

	_, _, err := client.GetBlob(context.Background(), "missing.txt")
	require.ErrorIs(t, err, domain.ErrBlobNotFound)

	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, http.StatusNotFound, storageErr.StatusCode)
	require.Equal(t, domain.ErrorCodeBlobNotFound, storageErr.Code)
	require.Equal(t, "missing.txt", storageErr.Resource)

	_, err = client.GetBlobProperties(context.Background(), "missing.txt")
	require.True(t, domain.IsNotFound(err))
}

func TestEmptyPath(t *testing.T) {
	client := newStubClient(t, &stubDoer{status: http.StatusOK})

	_, _, err := client.GetBlob(context.Background(), "/")
	require.ErrorIs(t, err, domain.ErrInvalidBlobPath)
	require.ErrorIs(t, client.PutBlob(context.Background(), "", nil, ""), domain.ErrInvalidBlobPath)
}

func TestDeleteBlob(t *testing.T) {
	client, _ := newEmulatorClient(t)
	ctx := context.Background()

	require.NoError(t, client.PutBlob(ctx, "a.txt", []byte("a"), ""))
	require.NoError(t, client.DeleteBlob(ctx, "a.txt"))

	exists, err := client.BlobExists(ctx, "a.txt")
	require.NoError(t, err)
	require.False(t, exists)

	// Deleting again is not an error.
	require.NoError(t, client.DeleteBlob(ctx, "a.txt"))
}

func TestDeleteBlobFailure(t *testing.T) {
	client := newStubClient(t, &stubDoer{status: http.StatusForbidden, body: "denied"})

	err := client.DeleteBlob(context.Background(), "a.txt")
	require.ErrorIs(t, err, domain.ErrRemoteFailure)
}

func TestBlobExists(t *testing.T) {
	client, _ := newEmulatorClient(t)
	ctx := context.Background()

	exists, err := client.BlobExists(ctx, "a.txt")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, client.PutBlob(ctx, "a.txt", []byte("a"), ""))
	exists, err = client.BlobExists(ctx, "a.txt")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestBlobExistsPropagatesFailures(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusInternalServerError} {
		client := newStubClient(t, &stubDoer{status: status})

		exists, err := client.BlobExists(context.Background(), "a.txt")
		require.False(t, exists)
		require.ErrorIs(t, err, domain.ErrRemoteFailure)
		require.False(t, domain.IsNotFound(err))
	}

	transportErr := errors.New("connection refused")
	client := newStubClient(t, &stubDoer{err: transportErr})
	_, err := client.BlobExists(context.Background(), "a.txt")
	require.ErrorIs(t, err, transportErr)
}

func TestCopyBlob(t *testing.T) {
	client, _ := newEmulatorClient(t)
	ctx := context.Background()

	require.NoError(t, client.PutBlob(ctx, "src/one.txt", []byte("payload"), "text/plain"))
	require.NoError(t, client.CopyBlob(ctx, "/src/one.txt", "dst/two.txt"))

	data, props, err := client.GetBlob(ctx, "dst/two.txt")
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
	require.Equal(t, "text/plain", props.ContentType)

	err = client.CopyBlob(ctx, "missing.txt", "dst/three.txt")
	require.ErrorIs(t, err, domain.ErrRemoteFailure)
}

func TestCopyBlobSource(t *testing.T) {
	doer := &stubDoer{status: http.StatusAccepted}
	client := newStubClient(t, doer)

	require.NoError(t, client.CopyBlob(context.Background(), "a b.txt", "c.txt"))
	require.Equal(t, client.BlobURL("a b.txt"), doer.requests[0].Header.Get(auth.XMsCopySourceHeader))
	require.Equal(t, "/docs/c.txt", doer.requests[0].URL.Path)
}

func TestSignsEscapedBlobPath(t *testing.T) {
	doer := &stubDoer{status: http.StatusCreated}
	client := newStubClient(t, doer)

	require.NoError(t, client.PutBlob(context.Background(), "my dir/a b+c.txt", []byte("x"), "text/plain"))
	req := doer.requests[0]
	require.Equal(t, "/docs/my%20dir/a%20b+c.txt", req.URL.EscapedPath())

	creds, err := auth.NewCredentials(testAccount, testKey)
	require.NoError(t, err)
	wire := auth.SharedKeyRequest{
		Method:        req.Method,
		ContentLength: req.ContentLength,
		ContentType:   req.Header.Get("Content-Type"),
		Headers:       req.Header,
		Container:     testContainer,
		BlobPath:      strings.TrimPrefix(req.URL.EscapedPath(), "/"+testContainer+"/"),
	}
	require.Equal(t, auth.NewSharedKeySigner(creds).Authorization(wire), req.Header.Get(auth.AuthorizationHeader))

	decoded := wire
	decoded.BlobPath = "my dir/a b+c.txt"
	require.NotEqual(t, auth.NewSharedKeySigner(creds).Authorization(decoded), req.Header.Get(auth.AuthorizationHeader))
}

func TestEscapedKeysRoundTrip(t *testing.T) {
	client, store := newEmulatorClient(t)
	ctx := context.Background()

	for _, key := range []string{"my dir/a b+c.txt", "100%/ünïcode.txt", "semi;colon,comma?.txt"} {
		t.Run(key, func(t *testing.T) {
			require.NoError(t, client.PutBlob(ctx, key, []byte("payload"), "text/plain"))

			stored, err := store.GetBlob(testAccount, testContainer, key)
			require.NoError(t, err)
			require.Equal(t, "payload", string(stored.Data))

			data, _, err := client.GetBlob(ctx, key)
			require.NoError(t, err)
			require.Equal(t, "payload", string(data))

			props, err := client.GetBlobProperties(ctx, key)
			require.NoError(t, err)
			require.Equal(t, int64(7), props.ContentLength)

			exists, err := client.BlobExists(ctx, key)
			require.NoError(t, err)
			require.True(t, exists)

			require.NoError(t, client.CopyBlob(ctx, key, "copies/"+key))
			data, _, err = client.GetBlob(ctx, "copies/"+key)
			require.NoError(t, err)
			require.Equal(t, "payload", string(data))

			require.NoError(t, client.DeleteBlob(ctx, key))
			exists, err = client.BlobExists(ctx, key)
			require.NoError(t, err)
			require.False(t, exists)
		})
	}
}

func TestContainerAccess(t *testing.T) {
	client, store := newEmulatorClient(t)
	ctx := context.Background()

	level, err := client.GetContainerAccess(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.AccessPrivate, level)

	require.NoError(t, client.SetContainerAccess(ctx, domain.AccessBlob))
	level, err = client.GetContainerAccess(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.AccessBlob, level)

	stored, err := store.ContainerAccess(ctx, testAccount, testContainer)
	require.NoError(t, err)
	require.Equal(t, domain.AccessBlob, stored)

	require.NoError(t, client.SetContainerAccess(ctx, domain.AccessPrivate))
	level, err = client.GetContainerAccess(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.AccessPrivate, level)
}

func TestSetContainerAccessRequest(t *testing.T) {
	doer := &stubDoer{status: http.StatusOK}
	client := newStubClient(t, doer)
	ctx := context.Background()

	require.NoError(t, client.SetContainerAccess(ctx, domain.AccessPrivate))
	require.NoError(t, client.SetContainerAccess(ctx, domain.AccessContainer))
	require.Len(t, doer.requests, 2)

	private, public := doer.requests[0], doer.requests[1]
	require.Equal(t, "container", private.URL.Query().Get("restype"))
	require.Equal(t, "acl", private.URL.Query().Get("comp"))
	require.Equal(t, "application/xml", private.Header.Get("Content-Type"))
	require.Empty(t, private.Header.Values(auth.XMsBlobPublicAccessHeader))
	require.Equal(t, "container", public.Header.Get(auth.XMsBlobPublicAccessHeader))
	require.Contains(t, doer.bodies[0], "<SignedIdentifiers />")

	require.ErrorIs(t, client.SetContainerAccess(ctx, domain.AccessLevel("everyone")), domain.ErrInvalidAccessLevel)
	require.Len(t, doer.requests, 2)
}

func TestGetContainerAccessFailure(t *testing.T) {
	doer := &stubDoer{
		status: http.StatusForbidden,
		body:   `<?xml version="1.0" encoding="utf-8"?><Error><Code>AuthenticationFailed</Code><Message>bad signature</Message></Error>`,
	}
	client := newStubClient(t, doer)

	_, err := client.GetContainerAccess(context.Background())
	require.ErrorIs(t, err, domain.ErrRemoteFailure)

	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, "AuthenticationFailed", storageErr.Code)
	require.Equal(t, "bad signature", storageErr.Message)
}

func TestListBlobsPages(t *testing.T) {
	client, _ := newEmulatorClient(t)
	ctx := context.Background()

	for _, name := range []string{"a/1.txt", "a/2.txt", "b.txt", "c.txt", "z/9.txt"} {
		require.NoError(t, client.PutBlob(ctx, name, []byte(name), "text/plain"))
	}

	var (
		names    []string
		marker   string
		requests int
	)
	for {
		page, err := client.ListBlobs(ctx, storage.ListInput{MaxResults: 2, Marker: marker})
		require.NoError(t, err)
		requests++
		for _, b := range page.Blobs {
			names = append(names, b.Name)
			require.Equal(t, int64(len(b.Name)), b.Size)
			require.Equal(t, "text/plain", b.ContentType)
			require.False(t, b.LastModified.IsZero())
		}
		if !page.HasMore() {
			break
		}
		marker = page.NextMarker
	}

	require.Equal(t, 3, requests)
	require.Equal(t, []string{"a/1.txt", "a/2.txt", "b.txt", "c.txt", "z/9.txt"}, names)

	page, err := client.ListBlobs(ctx, storage.ListInput{Prefix: "/a/"})
	require.NoError(t, err)
	require.Len(t, page.Blobs, 2)
	require.False(t, page.HasMore())
}

func TestListBlobsQuery(t *testing.T) {
	doer := &stubDoer{status: http.StatusOK, body: `<?xml version="1.0" encoding="utf-8"?><EnumerationResults><Blobs/><NextMarker/></EnumerationResults>`}
	client := newStubClient(t, doer)

	page, err := client.ListBlobs(context.Background(), storage.ListInput{Prefix: "/dir/", Marker: "m1"})
	require.NoError(t, err)
	require.Empty(t, page.Blobs)
	require.False(t, page.HasMore())

	query := doer.requests[0].URL.Query()
	require.Equal(t, "container", query.Get("restype"))
	require.Equal(t, "list", query.Get("comp"))
	require.Equal(t, "dir/", query.Get("prefix"))
	require.Equal(t, "m1", query.Get("marker"))
	require.Equal(t, "5000", query.Get("maxresults"))
}

func TestParseListing(t *testing.T) {
	body := []byte(`<?xml version="1.0" encoding="utf-8"?>
<EnumerationResults ServiceEndpoint="https://devaccount.blob.core.windows.net/" ContainerName="docs">
  <MaxResults>2</MaxResults>
  <Blobs>
    <Blob>
      <Name>a/x.txt</Name>
      <Properties>
        <Last-Modified>Tue, 02 Jan 2024 03:04:05 GMT</Last-Modified>
        <Etag>0x8D</Etag>
        <Content-Length>42</Content-Length>
        <Content-Type>text/plain</Content-Type>
      </Properties>
    </Blob>
    <Blob>
      <Name>c.bin</Name>
      <Properties>
        <Content-Length>1</Content-Length>
      </Properties>
    </Blob>
  </Blobs>
  <NextMarker>token</NextMarker>
</EnumerationResults>`)

	page := parseListing(body)
	require.Len(t, page.Blobs, 2)
	require.Equal(t, "token", page.NextMarker)
	require.True(t, page.HasMore())

	require.Equal(t, domain.BlobItem{
		Name:         "a/x.txt",
		Size:         42,
		LastModified: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		ContentType:  "text/plain",
	}, page.Blobs[0])
	require.Equal(t, domain.DefaultContentType, page.Blobs[1].ContentType)
	require.True(t, page.Blobs[1].LastModified.IsZero())

	empty := parseListing([]byte("not xml"))
	require.Empty(t, empty.Blobs)
	require.False(t, empty.HasMore())
}

func TestListMissingContainer(t *testing.T) {
	client, _ := newEmulatorClient(t)

	other, err := New(Options{
		AccountName: testAccount,
		AccountKey:  testKey,
		Container:   "nope",
		Endpoint:    strings.TrimSuffix(client.ContainerURL(), "/"+testContainer),
		HTTPClient:  client.http,
	})
	require.NoError(t, err)

	_, err = other.ListBlobs(context.Background(), storage.ListInput{})
	require.ErrorIs(t, err, domain.ErrRemoteFailure)
	require.False(t, domain.IsNotFound(err))
}

func TestNonXMLErrorBody(t *testing.T) {
	client := newStubClient(t, &stubDoer{
		status: http.StatusServiceUnavailable,
		body:   "upstream exploded",
		header: http.Header{auth.XMsErrorCodeHeader: {"ServerBusy"}},
	})

	err := client.PutBlob(context.Background(), "a.txt", []byte("a"), "")

	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, "upstream exploded", storageErr.Message)
	require.Equal(t, "ServerBusy", storageErr.Code)
	require.Equal(t, http.StatusServiceUnavailable, storageErr.StatusCode)
	require.ErrorIs(t, err, domain.ErrRemoteFailure)
}

func TestParseRemoteError(t *testing.T) {
	code, message := parseRemoteError([]byte(`<?xml version="1.0"?><Error><Code>BlobNotFound</Code><Message> gone </Message></Error>`))
	require.Equal(t, "BlobNotFound", code)
	require.Equal(t, "gone", message)

	code, message = parseRemoteError([]byte(`<Error><Code>X</Code></Error>`))
	require.Equal(t, "X", code)
	require.Empty(t, message)

	code, message = parseRemoteError([]byte("plain text"))
	require.Empty(t, code)
	require.Equal(t, "plain text", message)
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	client, _ := newEmulatorClient(t, func(o *Options) { o.Metrics = m })
	ctx := context.Background()

	require.NoError(t, client.PutBlob(ctx, "a.txt", []byte("a"), ""))
	_, _, err := client.GetBlob(ctx, "missing")
	require.Error(t, err)

	count, err := testutil.GatherAndCount(reg, "azblob_requests_total")
	require.NoError(t, err)
	// create-container, put and get.
	require.Equal(t, 3, count)
}
