package emulator

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/prn-tf/alexander-azblob/internal/auth"
	"github.com/prn-tf/alexander-azblob/internal/domain"
)

// =============================================================================
// Container Operations
// =============================================================================

// handleContainerGet routes GET requests on a container by sub-resource.
func (rt *Router) handleContainerGet(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("restype") != "container" {
		writeError(w, http.StatusBadRequest, codeInvalidQueryParameter, "restype must be container.")
		return
	}

	switch query.Get("comp") {
	case "list":
		rt.handleListBlobs(w, r)
	case "acl":
		rt.handleGetACL(w, r)
	default:
		writeError(w, http.StatusBadRequest, codeInvalidQueryParameter, "Unsupported comp value.")
	}
}

// handleContainerPut creates a container or sets its access level.
func (rt *Router) handleContainerPut(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("restype") != "container" {
		writeError(w, http.StatusBadRequest, codeInvalidQueryParameter, "restype must be container.")
		return
	}

	switch query.Get("comp") {
	case "":
		rt.handleCreateContainer(w, r)
	case "acl":
		rt.handleSetACL(w, r)
	default:
		writeError(w, http.StatusBadRequest, codeInvalidQueryParameter, "Unsupported comp value.")
	}
}

func (rt *Router) handleCreateContainer(w http.ResponseWriter, r *http.Request) {
	account, container, _ := auth.SplitResourcePath(r.URL.Path)

	level, err := domain.ParseAccessLevel(r.Header.Get(auth.XMsBlobPublicAccessHeader))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidHeaderValue, err.Error())
		return
	}

	err = rt.store.CreateContainer(account, container, level)
	switch {
	case errors.Is(err, ErrContainerAlreadyExists):
		writeError(w, http.StatusConflict, codeContainerAlreadyExists, "The specified container already exists.")
		return
	case err != nil:
		rt.internalError(w, err)
		return
	}

	rt.logger.Info().Str("account", account).Str("container", container).Msg("container created")
	w.WriteHeader(http.StatusCreated)
}

func (rt *Router) handleGetACL(w http.ResponseWriter, r *http.Request) {
	account, container, _ := auth.SplitResourcePath(r.URL.Path)

	level, err := rt.store.ContainerAccess(r.Context(), account, container)
	if err != nil {
		rt.storeError(w, err)
		return
	}

	if value := level.HeaderValue(); value != "" {
		w.Header().Set(auth.XMsBlobPublicAccessHeader, value)
	}
	writeXML(w, http.StatusOK, signedIdentifiers{})
}

func (rt *Router) handleSetACL(w http.ResponseWriter, r *http.Request) {
	account, container, _ := auth.SplitResourcePath(r.URL.Path)

	// Stored access policies are accepted and discarded.
	_, _ = io.Copy(io.Discard, r.Body)

	level, err := domain.ParseAccessLevel(r.Header.Get(auth.XMsBlobPublicAccessHeader))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidHeaderValue, err.Error())
		return
	}

	if err := rt.store.SetContainerAccess(account, container, level); err != nil {
		rt.storeError(w, err)
		return
	}

	rt.logger.Info().
		Str("account", account).
		Str("container", container).
		Str("level", string(level)).
		Msg("container access level set")
	w.WriteHeader(http.StatusOK)
}

func (rt *Router) handleListBlobs(w http.ResponseWriter, r *http.Request) {
	account, container, _ := auth.SplitResourcePath(r.URL.Path)
	query := r.URL.Query()

	maxResults := MaxPageSize
	if raw := query.Get("maxresults"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidQueryParameter, "maxresults must be a positive integer.")
			return
		}
		maxResults = min(n, MaxPageSize)
	}

	prefix := query.Get("prefix")
	marker := query.Get("marker")

	blobs, next, err := rt.store.ListBlobs(account, container, prefix, marker, maxResults)
	if err != nil {
		rt.storeError(w, err)
		return
	}

	doc := enumerationResults{
		ServiceEndpoint: "http://" + r.Host + "/" + account,
		ContainerName:   container,
		Prefix:          prefix,
		Marker:          marker,
		MaxResults:      maxResults,
		Blobs:           make([]blobItem, 0, len(blobs)),
		NextMarker:      next,
	}
	for _, b := range blobs {
		doc.Blobs = append(doc.Blobs, newBlobItem(b))
	}

	writeXML(w, http.StatusOK, doc)
}

// =============================================================================
// Blob Operations
// =============================================================================

// handleGetBlob serves GET and HEAD on a blob.
func (rt *Router) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	account, container, name := auth.SplitResourcePath(r.URL.Path)
	if name == "" {
		writeError(w, http.StatusBadRequest, codeInvalidURI, "Blob name is required.")
		return
	}

	b, err := rt.store.GetBlob(account, container, name)
	if err != nil {
		rt.storeError(w, err)
		return
	}

	writeBlobHeaders(w, b)
	w.Header().Set("Content-Length", strconv.FormatInt(b.Size, 10))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(b.Data)
	}
}

// handlePutBlob uploads a block blob or, with x-ms-copy-source, copies one.
func (rt *Router) handlePutBlob(w http.ResponseWriter, r *http.Request) {
	account, container, name := auth.SplitResourcePath(r.URL.Path)
	if name == "" {
		writeError(w, http.StatusBadRequest, codeInvalidURI, "Blob name is required.")
		return
	}

	if source := r.Header.Get(auth.XMsCopySourceHeader); source != "" {
		rt.handleCopyBlob(w, account, container, name, source)
		return
	}

	if blobType := r.Header.Get(auth.XMsBlobTypeHeader); blobType != auth.BlockBlob {
		if blobType == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredHeader, "x-ms-blob-type is required.")
		} else {
			writeError(w, http.StatusBadRequest, codeInvalidHeaderValue, "Only BlockBlob is supported.")
		}
		return
	}

	body := r.Body
	if rt.maxBodySize > 0 {
		body = http.MaxBytesReader(w, r.Body, rt.maxBodySize)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeRequestBodyTooLarge, "The request body is too large.")
			return
		}
		writeError(w, http.StatusBadRequest, codeInvalidHeaderValue, "Failed to read request body.")
		return
	}

	b, err := rt.store.PutBlob(account, container, name, data, r.Header.Get("Content-Type"))
	if err != nil {
		rt.storeError(w, err)
		return
	}

	rt.logger.Debug().
		Str("account", account).
		Str("container", container).
		Str("blob", name).
		Int64("size", b.Size).
		Msg("blob uploaded")

	w.Header().Set("ETag", b.ETag)
	w.Header().Set("Content-MD5", b.ContentMD5)
	w.Header().Set("Last-Modified", b.LastModified.Format(http.TimeFormat))
	w.WriteHeader(http.StatusCreated)
}

// handleCopyBlob performs a synchronous copy within the request's account.
func (rt *Router) handleCopyBlob(w http.ResponseWriter, account, container, name, source string) {
	u, err := url.Parse(source)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidHeaderValue, "x-ms-copy-source is not a valid URL.")
		return
	}

	srcAccount, srcContainer, srcName := auth.SplitResourcePath(u.Path)
	if srcAccount != account || srcContainer == "" || srcName == "" {
		writeError(w, http.StatusBadRequest, codeCannotVerifyCopySource, "The copy source must be a blob in the same account.")
		return
	}

	b, err := rt.store.CopyBlob(account, srcContainer, srcName, container, name)
	if err != nil {
		rt.storeError(w, err)
		return
	}

	w.Header().Set("ETag", b.ETag)
	w.Header().Set("Last-Modified", b.LastModified.Format(http.TimeFormat))
	w.Header().Set("x-ms-copy-id", uuid.NewString())
	w.Header().Set(auth.XMsCopyStatusHeader, "success")
	w.WriteHeader(http.StatusAccepted)
}

func (rt *Router) handleDeleteBlob(w http.ResponseWriter, r *http.Request) {
	account, container, name := auth.SplitResourcePath(r.URL.Path)
	if name == "" {
		writeError(w, http.StatusBadRequest, codeInvalidURI, "Blob name is required.")
		return
	}

	if err := rt.store.DeleteBlob(account, container, name); err != nil {
		rt.storeError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// =============================================================================
// Helpers
// =============================================================================

func writeBlobHeaders(w http.ResponseWriter, b Blob) {
	h := w.Header()
	h.Set("Content-Type", b.ContentType)
	h.Set("Last-Modified", b.LastModified.Format(http.TimeFormat))
	h.Set("ETag", b.ETag)
	h.Set("Content-MD5", b.ContentMD5)
	h.Set(auth.XMsBlobTypeHeader, auth.BlockBlob)
}

// storeError maps store errors onto service responses.
func (rt *Router) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBlobNotFound):
		writeError(w, http.StatusNotFound, codeBlobNotFound, "The specified blob does not exist.")
	case errors.Is(err, ErrContainerNotFound):
		writeError(w, http.StatusNotFound, codeContainerNotFound, "The specified container does not exist.")
	case errors.Is(err, domain.ErrInvalidAccessLevel):
		writeError(w, http.StatusBadRequest, codeInvalidHeaderValue, err.Error())
	default:
		rt.internalError(w, err)
	}
}

func (rt *Router) internalError(w http.ResponseWriter, err error) {
	rt.logger.Error().Err(err).Msg("request failed")
	writeError(w, http.StatusInternalServerError, codeInternalError, "The server encountered an internal error.")
}
