package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiteLoggerWritesFileAndConsole(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "example.com")
	var buf bytes.Buffer

	logger, closer, err := SiteLogger(dir, 3, "example.com", &buf, zerolog.InfoLevel)
	require.NoError(t, err)
	logger.Debug().Msg("Settling")
	logger.Info().Str("url", "https://example.com/").Msg("Visit succeeded")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, "crawl.log"))
	require.NoError(t, err)

	var entry map[string]any
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "Visit succeeded", entry["message"])
	assert.Equal(t, float64(3), entry["worker"])
	assert.Equal(t, "example.com", entry["site"])
	assert.Contains(t, entry, "time")

	assert.Contains(t, buf.String(), "Visit succeeded")
	assert.NotContains(t, buf.String(), "Settling")
}

func TestSiteLoggerAppends(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		logger, closer, err := SiteLogger(dir, 0, "s", nil, zerolog.InfoLevel)
		require.NoError(t, err)
		logger.Info().Msg("line")
		require.NoError(t, closer.Close())
	}

	data, err := os.ReadFile(filepath.Join(dir, "crawl.log"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}
