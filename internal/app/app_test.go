package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/pagegraph-crawl/internal/config"
	"github.com/law-makers/pagegraph-crawl/pkg/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		LogLevel:          "warn",
		JSONLog:           true,
		Country:           "DE",
		SnapshotsDir:      filepath.Join(dir, "snapshots"),
		ResultsDir:        filepath.Join(dir, "results"),
		BrowserPath:       "/opt/brave/brave",
		Headless:          true,
		MaxCores:          2,
		CrawlDepth:        3,
		MaxRedirects:      4,
		ProxyEnabled:      false,
		LaunchRetries:     2,
		NavigationTimeout: 45 * time.Second,
		PageGraphTimeout:  20 * time.Second,
		MeasurementDelay:  7 * time.Second,
		Compress:          true,
		StoreHAR:          true,
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestNew(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	assert.NotEmpty(t, a.RunID)
	assert.Equal(t, zerolog.WarnLevel, a.Level)
	assert.Nil(t, a.ProxyFactory(), "proxy disabled")

	_, err = New(context.Background(), nil)
	assert.Error(t, err)
}

func TestNew_BadConsentScript(t *testing.T) {
	cfg := testConfig(t)
	cfg.ConsentScript = filepath.Join(t.TempDir(), "consent.js")
	require.NoError(t, os.WriteFile(cfg.ConsentScript, []byte("function ("), 0o644))

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestVisitConfig(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)

	vc := a.VisitConfig()
	assert.Equal(t, config.AcceptLanguageFor("DE"), vc.AcceptLanguage)
	assert.Equal(t, 45*time.Second, vc.Timeouts.Navigation)
	assert.Equal(t, 20*time.Second, vc.Timeouts.Graph)
	assert.Equal(t, 7*time.Second, vc.MeasurementDelay)
	assert.Equal(t, 4, vc.MaxRedirects)
	assert.True(t, vc.Compress)
	assert.True(t, vc.StoreTraffic)
	assert.False(t, vc.Screenshot)
}

func TestLayoutAndResults(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)

	l := a.Layout("global")
	assert.Equal(t, filepath.Join(cfg.SnapshotsDir, "DE", "global"), l.CategoryDir())

	path, err := a.WriteResults("global", map[string]models.SiteResult{
		"a.example": {SuccessfulURLs: []string{"https://a.example/"}, Worker: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.ResultsDir, "DE", "global"), filepath.Dir(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var f models.ResultFile
	require.NoError(t, json.Unmarshal(raw, &f))
	assert.Equal(t, a.RunID, f.RunID)
	assert.Equal(t, "global", f.Category)
	assert.Equal(t, []string{"https://a.example/"}, f.Sites["a.example"].SuccessfulURLs)
}

func TestTrustProxyCA_Disabled(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	assert.NoError(t, a.TrustProxyCA(context.Background()))
}
