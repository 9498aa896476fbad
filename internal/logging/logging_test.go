package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/alexander-azblob/internal/config"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "json", "", zerolog.InfoLevel)

	logger.Debug().Msg("hidden")
	logger.Info().Str("container", "photos").Msg("listed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "listed", entry["message"])
	require.Equal(t, "photos", entry["container"])
	require.Contains(t, entry, "time")
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "console", "", zerolog.InfoLevel)

	logger.Info().Msg("hello")
	require.Contains(t, buf.String(), "hello")
	require.NotContains(t, buf.String(), `"message"`)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud", Output: "stderr"})
	require.Error(t, err)

	_, err = New(config.LoggingConfig{Level: "info", Output: "/var/log/file"})
	require.Error(t, err)

	_, err = New(config.LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
	require.NoError(t, err)
}
