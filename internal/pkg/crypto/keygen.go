// Package crypto provides key generation and content hashing helpers.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
)

const (
	// AccountKeySize is the decoded length of a storage account key.
	AccountKeySize = 64

	// accountNameChars contains characters valid in account names (lowercase alphanumeric).
	accountNameChars = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateAccountKey returns a random 64-byte account key, base64 encoded.
func GenerateAccountKey() (string, error) {
	key := make([]byte, AccountKeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate account key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// GenerateAccountName returns prefix followed by n random lowercase
// alphanumerics, suitable for throwaway emulator accounts.
func GenerateAccountName(prefix string, n int) (string, error) {
	suffix, err := randomString(rand.Reader, n, accountNameChars)
	if err != nil {
		return "", err
	}
	return prefix + suffix, nil
}

// randomString draws length characters uniformly from charset.
func randomString(r io.Reader, length int, charset string) (string, error) {
	limit := big.NewInt(int64(len(charset)))
	result := make([]byte, length)
	for i := range result {
		idx, err := rand.Int(r, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate account name: %w", err)
		}
		result[i] = charset[idx.Int64()]
	}
	return string(result), nil
}
