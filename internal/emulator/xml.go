package emulator

import (
	"encoding/xml"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/prn-tf/alexander-azblob/internal/auth"
)

// Service error codes returned by the emulator.
const (
	codeBlobNotFound           = "BlobNotFound"
	codeContainerNotFound      = "ContainerNotFound"
	codeContainerAlreadyExists = "ContainerAlreadyExists"
	codeCannotVerifyCopySource = "CannotVerifyCopySource"
	codeInvalidQueryParameter  = "InvalidQueryParameterValue"
	codeInvalidHeaderValue     = "InvalidHeaderValue"
	codeMissingRequiredHeader  = "MissingRequiredHeader"
	codeRequestBodyTooLarge    = "RequestBodyTooLarge"
	codeUnsupportedHTTPVerb    = "UnsupportedHttpVerb"
	codeInvalidURI             = "InvalidUri"
	codeInternalError          = "InternalError"
)

type errorDocument struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

type enumerationResults struct {
	XMLName         xml.Name   `xml:"EnumerationResults"`
	ServiceEndpoint string     `xml:"ServiceEndpoint,attr"`
	ContainerName   string     `xml:"ContainerName,attr"`
	Prefix          string     `xml:"Prefix,omitempty"`
	Marker          string     `xml:"Marker,omitempty"`
	MaxResults      int        `xml:"MaxResults"`
	Blobs           []blobItem `xml:"Blobs>Blob"`
	NextMarker      string     `xml:"NextMarker"`
}

type blobItem struct {
	Name       string         `xml:"Name"`
	Properties blobProperties `xml:"Properties"`
}

type blobProperties struct {
	LastModified  string `xml:"Last-Modified"`
	ETag          string `xml:"Etag"`
	ContentLength int64  `xml:"Content-Length"`
	ContentType   string `xml:"Content-Type"`
	BlobType      string `xml:"BlobType"`
}

type signedIdentifiers struct {
	XMLName xml.Name `xml:"SignedIdentifiers"`
}

func newBlobItem(b Blob) blobItem {
	return blobItem{
		Name: b.Name,
		Properties: blobProperties{
			LastModified:  b.LastModified.Format(http.TimeFormat),
			ETag:          b.ETag,
			ContentLength: b.Size,
			ContentType:   b.ContentType,
			BlobType:      auth.BlockBlob,
		},
	}
}

// writeXML writes v as an XML document with the given status.
func writeXML(w http.ResponseWriter, status int, v any) {
	body, err := xml.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode response")
		status = http.StatusInternalServerError
		body = nil
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Length", strconv.Itoa(len(xml.Header)+len(body)))
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(body)
}

// writeError writes a service error document.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set(auth.XMsErrorCodeHeader, code)
	writeXML(w, status, errorDocument{Code: code, Message: message})
}
