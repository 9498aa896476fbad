package service

import (
	"mime"
	"path"
	"strings"

	"github.com/prn-tf/alexander-azblob/internal/domain"
)

// mimeOverrides pins types whose system mime.types entries vary between hosts.
var mimeOverrides = map[string]string{
	".avif":  "image/avif",
	".webp":  "image/webp",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
	".mov":   "video/quicktime",
	".mkv":   "video/x-matroska",
	".mp3":   "audio/mpeg",
	".wav":   "audio/wav",
	".flac":  "audio/flac",
	".m4a":   "audio/mp4",
	".txt":   "text/plain",
	".md":    "text/markdown",
	".csv":   "text/csv",
	".json":  "application/json",
	".xml":   "application/xml",
	".js":    "application/javascript",
	".docx":  "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx":  "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pptx":  "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".gz":    "application/gzip",
	".7z":    "application/x-7z-compressed",
	".rar":   "application/vnd.rar",
	".woff2": "font/woff2",
}

// GuessMimeType derives a content type from the extension of key, without
// parameters such as charset. Unknown extensions map to
// domain.DefaultContentType.
func GuessMimeType(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ext == "" {
		return domain.DefaultContentType
	}
	if t, ok := mimeOverrides[ext]; ok {
		return t
	}

	t := mime.TypeByExtension(ext)
	if t == "" {
		return domain.DefaultContentType
	}
	if media, _, err := mime.ParseMediaType(t); err == nil {
		return media
	}
	return t
}
