// Package azure implements storage.Backend against the Azure Blob Storage
// REST interface using Shared Key authentication.
package azure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/prn-tf/alexander-azblob/internal/auth"
	"github.com/prn-tf/alexander-azblob/internal/domain"
	"github.com/prn-tf/alexander-azblob/internal/metrics"
	"github.com/prn-tf/alexander-azblob/internal/storage"
)

// Doer sends HTTP requests. *http.Client satisfies it; timeouts, pooling and
// retries belong to the implementation.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	// AccountName is the storage account name.
	AccountName string

	// AccountKey is the base64 account key.
	AccountKey string

	// Container is the container all paths are relative to.
	Container string

	// APIVersion defaults to auth.DefaultAPIVersion.
	APIVersion string

	// ServiceHost defaults to auth.DefaultServiceHost.
	ServiceHost string

	// Endpoint replaces https://{account}.{ServiceHost} with a path-style
	// base that already contains the account, e.g. an emulator.
	Endpoint string

	// HTTPClient defaults to NewHTTPClient(HTTPConfig{}).
	HTTPClient Doer

	// Logger receives one debug line per request.
	Logger zerolog.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics

	// Clock defaults to time.Now and stamps x-ms-date.
	Clock func() time.Time
}

// Client talks to one container of one storage account.
type Client struct {
	creds      auth.Credentials
	signer     *auth.SharedKeySigner
	container  string
	apiVersion string
	baseURL    string
	http       Doer
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// New validates opts and builds a Client. Configuration problems are
// reported as domain.ErrInvalidConfiguration.
func New(opts Options) (*Client, error) {
	creds, err := auth.NewCredentials(opts.AccountName, opts.AccountKey)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.Container) == "" {
		return nil, domain.ConfigError("container is required")
	}

	apiVersion := opts.APIVersion
	if apiVersion == "" {
		apiVersion = auth.DefaultAPIVersion
	}

	baseURL, err := resolveBaseURL(opts)
	if err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(HTTPConfig{})
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &Client{
		creds:      creds,
		signer:     auth.NewSharedKeySigner(creds),
		container:  opts.Container,
		apiVersion: apiVersion,
		baseURL:    baseURL,
		http:       httpClient,
		logger:     opts.Logger.With().Str("component", "azure").Str("container", opts.Container).Logger(),
		metrics:    opts.Metrics,
		now:        now,
	}, nil
}

func resolveBaseURL(opts Options) (string, error) {
	if opts.Endpoint != "" {
		u, err := url.Parse(opts.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return "", domain.ConfigError("endpoint %q must be an absolute URL", opts.Endpoint)
		}
		return strings.TrimSuffix(opts.Endpoint, "/"), nil
	}

	host := opts.ServiceHost
	if host == "" {
		host = auth.DefaultServiceHost
	}
	return "https://" + opts.AccountName + "." + host, nil
}

// HTTPConfig holds the transport settings of NewHTTPClient.
type HTTPConfig struct {
	// Timeout bounds a whole request. Defaults to 300s.
	Timeout time.Duration

	// ConnectTimeout bounds dialing. Defaults to 30s.
	ConnectTimeout time.Duration

	// Tracing wraps the transport with OpenTelemetry instrumentation.
	Tracing bool
}

// NewHTTPClient builds the default transport.
func NewHTTPClient(cfg HTTPConfig) *http.Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}).DialContext

	var rt http.RoundTripper = transport
	if cfg.Tracing {
		rt = otelhttp.NewTransport(transport, otelhttp.WithTracerProvider(otel.GetTracerProvider()))
	}

	return &http.Client{Timeout: cfg.Timeout, Transport: rt}
}

// Account returns the storage account name.
func (c *Client) Account() string {
	return c.creds.AccountName
}

// Container returns the container name.
func (c *Client) Container() string {
	return c.container
}

// ContainerURL returns the container URL.
func (c *Client) ContainerURL() string {
	return c.baseURL + "/" + c.container
}

// BlobURL returns the unsigned URL of a blob.
func (c *Client) BlobURL(path string) string {
	return c.ContainerURL() + "/" + storage.EscapePath(storage.NormalizeKey(path))
}

// =============================================================================
// Request Plumbing
// =============================================================================

// request describes one outbound call.
type request struct {
	op          string
	method      string
	blob        string
	query       url.Values
	headers     map[string]string
	body        []byte
	contentType string
}

func (r request) resource(container string) string {
	if r.blob == "" {
		return container
	}
	return r.blob
}

// do signs and sends req. The caller owns the response body.
func (c *Client) do(ctx context.Context, req request) (*http.Response, error) {
	target := c.ContainerURL()
	if req.blob != "" {
		target = c.BlobURL(req.blob)
	}
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader = http.NoBody
	if len(req.body) > 0 {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: build request: %w", req.op, req.resource(c.container), err)
	}
	httpReq.ContentLength = int64(len(req.body))

	requestID := uuid.NewString()
	httpReq.Header.Set(auth.XMsDateHeader, c.now().UTC().Format(http.TimeFormat))
	httpReq.Header.Set(auth.XMsVersionHeader, c.apiVersion)
	httpReq.Header.Set(auth.XMsClientRequestIDHeader, requestID)
	for name, value := range req.headers {
		httpReq.Header.Set(name, value)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	httpReq.Header.Set(auth.AuthorizationHeader, c.signer.Authorization(auth.SharedKeyRequest{
		Method:        req.method,
		ContentLength: httpReq.ContentLength,
		ContentType:   req.contentType,
		Headers:       httpReq.Header,
		Container:     c.container,
		BlobPath:      storage.EscapePath(req.blob),
		Query:         req.query,
	}))

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.ObserveRequest(req.op, 0, elapsed)
		c.logger.Debug().
			Err(err).
			Str("op", req.op).
			Str("resource", req.resource(c.container)).
			Str("request_id", requestID).
			Dur("duration", elapsed).
			Msg("request failed")
		return nil, fmt.Errorf("%s %s: %w", req.op, req.resource(c.container), err)
	}

	c.metrics.ObserveRequest(req.op, resp.StatusCode, elapsed)
	c.logger.Debug().
		Str("op", req.op).
		Str("method", req.method).
		Str("resource", req.resource(c.container)).
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Dur("duration", elapsed).
		Msg("request completed")

	return resp, nil
}

// drain discards and closes a response body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
