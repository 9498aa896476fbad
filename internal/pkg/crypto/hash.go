// Package crypto provides key generation and content hashing helpers.
package crypto

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// ComputeMD5 computes the hex MD5 hash of a byte slice.
func ComputeMD5(data []byte) string {
	hash := md5.Sum(data)
	return hex.EncodeToString(hash[:])
}

// ContentMD5 returns the base64 MD5 digest sent in Content-MD5.
func ContentMD5(data []byte) string {
	hash := md5.Sum(data)
	return base64.StdEncoding.EncodeToString(hash[:])
}

// ETag returns a quoted entity tag for data.
func ETag(data []byte) string {
	return fmt.Sprintf("\"0x%s\"", ComputeMD5(data)[:16])
}
