package emulator

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-azblob/internal/auth"
	"github.com/prn-tf/alexander-azblob/internal/metrics"
)

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Store *Store

	// Logger receives one line per request.
	Logger zerolog.Logger

	// MaxBodySize bounds uploads. Zero means unlimited.
	MaxBodySize int64

	// Now drives request-time checks. Defaults to time.Now.
	Now func() time.Time

	// Metrics records served requests by operation. Optional.
	Metrics *metrics.Metrics

	// MetricsHandler is mounted at MetricsPath when set.
	MetricsHandler http.Handler
	MetricsPath    string
}

// Router serves the path-style blob endpoint.
type Router struct {
	store       *Store
	maxBodySize int64
	now         func() time.Time
	recorder    *metrics.Metrics
	metrics     http.Handler
	metricsPath string
	logger      zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	now := config.Now
	if now == nil {
		now = time.Now
	}
	metricsPath := config.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	return &Router{
		store:       config.Store,
		maxBodySize: config.MaxBodySize,
		now:         now,
		recorder:    config.Metrics,
		metrics:     config.MetricsHandler,
		metricsPath: metricsPath,
		logger:      config.Logger.With().Str("component", "emulator").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(rt.serviceHeaders)
	r.Use(rt.requestLogging)

	// Health check (no auth)
	r.Get("/health", rt.handleHealth)
	if rt.metrics != nil {
		r.Method(http.MethodGet, rt.metricsPath, rt.metrics)
	}

	authConfig := auth.DefaultConfig()
	authConfig.ACLChecker = rt.store
	authConfig.Now = rt.now
	if rt.metricsPath != "/metrics" {
		authConfig.SkipPaths = append(authConfig.SkipPaths, rt.metricsPath)
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(rt.store, authConfig))

		r.Get("/{account}/{container}", rt.handleContainerGet)
		r.Put("/{account}/{container}", rt.handleContainerPut)

		r.Get("/{account}/{container}/*", rt.handleGetBlob)
		r.Head("/{account}/{container}/*", rt.handleGetBlob)
		r.Put("/{account}/{container}/*", rt.handlePutBlob)
		r.Delete("/{account}/{container}/*", rt.handleDeleteBlob)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusBadRequest, codeInvalidURI, "The requested URI does not represent any resource on the server.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeUnsupportedHTTPVerb, "The resource doesn't support the specified HTTP verb.")
	})

	return r
}

// handleHealth handles health check requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// serviceHeaders stamps every response with a request id, the date and the
// API version.
func (rt *Router) serviceHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		version := r.Header.Get(auth.XMsVersionHeader)
		if version == "" {
			version = auth.DefaultAPIVersion
		}

		h := w.Header()
		h.Set(auth.XMsRequestIDHeader, uuid.NewString())
		h.Set(auth.XMsVersionHeader, version)
		h.Set("Date", rt.now().UTC().Format(http.TimeFormat))
		if id := r.Header.Get(auth.XMsClientRequestIDHeader); id != "" {
			h.Set(auth.XMsClientRequestIDHeader, id)
		}

		next.ServeHTTP(w, r)
	})
}

// requestLogging logs method, path, status and latency of each request and
// records it in the request metrics.
func (rt *Router) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		if op := operationName(r); op != "" {
			rt.recorder.ObserveRequest(op, ww.Status(), time.Since(start))
		}

		rt.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("query", r.URL.RawQuery).
			Int("status", ww.Status()).
			Str("request_id", ww.Header().Get(auth.XMsRequestIDHeader)).
			Dur("latency", time.Since(start)).
			Msg("request completed")
	})
}

// operationName labels a blob service request the way the client labels the
// call that issues it. Requests outside the service paths yield "".
func operationName(r *http.Request) string {
	_, container, blob := auth.SplitResourcePath(r.URL.Path)
	if container == "" {
		return ""
	}

	q := r.URL.Query()
	if blob == "" {
		switch {
		case q.Get("comp") == "list":
			return "list"
		case q.Get("comp") == "acl" && r.Method == http.MethodPut:
			return "set-acl"
		case q.Get("comp") == "acl":
			return "get-acl"
		case r.Method == http.MethodPut:
			return "create-container"
		default:
			return "container"
		}
	}

	switch r.Method {
	case http.MethodPut:
		if r.Header.Get(auth.XMsCopySourceHeader) != "" {
			return "copy"
		}
		return "put"
	case http.MethodGet:
		return "get"
	case http.MethodHead:
		return "head"
	case http.MethodDelete:
		return "delete"
	default:
		return "unsupported"
	}
}
