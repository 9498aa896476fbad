// Package storage defines the collaborator surface of a remote blob container.
package storage

import (
	"net/url"
	"strings"
)

// NormalizeKey strips leading slashes so "/a/b" and "a/b" address the same blob.
func NormalizeKey(key string) string {
	return strings.TrimLeft(key, "/")
}

// DirectoryPrefix turns a directory path into a listing prefix ending in "/".
// The root ("", "/") maps to the empty prefix.
//
// Example:
//
//	DirectoryPrefix("/photos/2024") == "photos/2024/"
func DirectoryPrefix(dir string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return ""
	}
	return dir + "/"
}

// EscapePath percent-encodes each segment of a blob key, keeping the slashes.
func EscapePath(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

// Base returns the last segment of a key.
func Base(key string) string {
	key = strings.TrimSuffix(key, "/")
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[i+1:]
	}
	return key
}
