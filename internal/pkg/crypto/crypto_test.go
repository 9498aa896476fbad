package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateAccountKey(t *testing.T) {
	a, err := GenerateAccountKey()
	require.NoError(t, err)
	b, err := GenerateAccountKey()
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	raw, err := base64.StdEncoding.DecodeString(a)
	require.NoError(t, err)
	require.Len(t, raw, AccountKeySize)
}

func TestGenerateAccountName(t *testing.T) {
	name, err := GenerateAccountName("dev", 8)
	require.NoError(t, err)
	require.Len(t, name, 11)
	require.True(t, strings.HasPrefix(name, "dev"))
	for _, r := range name[3:] {
		require.True(t, strings.ContainsRune(accountNameChars, r))
	}
}

// cyclicReader repeats its bytes forever.
type cyclicReader struct {
	data []byte
	pos  int
}

func (c *cyclicReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = c.data[c.pos%len(c.data)]
		c.pos++
	}
	return len(p), nil
}

func TestRandomStringRejectsOutOfRangeDraws(t *testing.T) {
	// 0xff masks to 63, past the 36 letters, and is drawn again instead of
	// wrapping around.
	s, err := randomString(&cyclicReader{data: []byte{0xff, 0x05}}, 4, accountNameChars)
	require.NoError(t, err)
	require.Equal(t, "ffff", s)
}

func TestRandomStringCoversCharset(t *testing.T) {
	s, err := randomString(rand.Reader, 4096, accountNameChars)
	require.NoError(t, err)
	for _, r := range accountNameChars {
		require.True(t, strings.ContainsRune(s, r), "missing %q", r)
	}
}

func TestRandomStringReaderFailure(t *testing.T) {
	_, err := randomString(strings.NewReader(""), 4, accountNameChars)
	require.Error(t, err)
}

func TestHashes(t *testing.T) {
	require.Equal(t, "5d41402abc4b2a76b9719d911017c592", ComputeMD5([]byte("hello")))
	require.Equal(t, "XUFAKrxLKna5cZ2REBfFkg==", ContentMD5([]byte("hello")))
	require.Equal(t, `"0x5d41402abc4b2a76"`, ETag([]byte("hello")))
}
