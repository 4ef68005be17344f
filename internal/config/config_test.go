package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	RegisterFlags(cmd)
	RegisterCrawlFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newCmd(t))
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultCrawlDepth, cfg.CrawlDepth)
	assert.Equal(t, DefaultMaxCores, cfg.MaxCores)
	assert.Equal(t, DefaultProxyPort, cfg.ProxyPort)
	assert.Equal(t, DefaultMeasureDelay, cfg.MeasurementDelay)
	assert.Equal(t, DefaultNavTimeout, cfg.NavigationTimeout)
	assert.Equal(t, DefaultBrowserCloseTO, cfg.BrowserCloseTimeout)
	assert.Equal(t, 0, cfg.MaxRedirects)
	assert.True(t, cfg.Headless)
	assert.True(t, cfg.Compress)
	assert.False(t, cfg.StoreHAR)
}

func TestLoadLegacyEnvironment(t *testing.T) {
	t.Setenv("MEASUREMENT_DELAY", "7")
	t.Setenv("PAGEGRAPH_TIMEOUT", "45")
	t.Setenv("NAVIGATION_TIMEOUT", "30")
	t.Setenv("CRAWLING_DEPTH", "2")
	t.Setenv("PROXY_PORT", "9100")
	t.Setenv("MAX_CORES", "6")
	t.Setenv("SAVE_SCREENSHOTS", "true")
	t.Setenv("STORE_HAR", "true")
	t.Setenv("BROWSER_PATH", "/opt/brave/brave")
	t.Setenv("COUNTRY_FOR_PRECRAWL", "de")

	cfg, err := Load(newCmd(t))
	require.NoError(t, err)

	assert.Equal(t, 7*time.Second, cfg.MeasurementDelay)
	assert.Equal(t, 45*time.Second, cfg.PageGraphTimeout)
	assert.Equal(t, 30*time.Second, cfg.NavigationTimeout)
	assert.Equal(t, 2, cfg.CrawlDepth)
	assert.Equal(t, 9100, cfg.ProxyPort)
	assert.Equal(t, 6, cfg.MaxCores)
	assert.True(t, cfg.SaveScreenshots)
	assert.True(t, cfg.StoreHAR)
	assert.Equal(t, "/opt/brave/brave", cfg.BrowserPath)
	assert.Equal(t, "DE", cfg.Country)
}

func TestLoadPrefixedEnvironmentWinsOverLegacy(t *testing.T) {
	t.Setenv("MAX_CORES", "6")
	t.Setenv("PGCRAWL_MAX_CORES", "3")
	t.Setenv("PGCRAWL_COOLDOWN", "250ms")

	cfg, err := Load(newCmd(t))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxCores)
	assert.Equal(t, 250*time.Millisecond, cfg.Cooldown)
}

func TestLoadFlagsWinOverEnvironment(t *testing.T) {
	t.Setenv("CRAWLING_DEPTH", "2")

	cfg, err := Load(newCmd(t, "--depth=5", "--measurement-delay=1m", "--country=in", "-v"))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.CrawlDepth)
	assert.Equal(t, time.Minute, cfg.MeasurementDelay)
	assert.Equal(t, "IN", cfg.Country)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawl_depth: 4\nsnapshots_dir: /data/snap\nmax_redirects: 8\n"), 0o644))

	cfg, err := Load(newCmd(t, "--config", path))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.CrawlDepth)
	assert.Equal(t, "/data/snap", cfg.SnapshotsDir)
	assert.Equal(t, 8, cfg.MaxRedirects)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(newCmd(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero depth", []string{"--depth=0"}},
		{"negative redirects", []string{"--max-redirects=-1"}},
		{"bad duration", []string{"--navigation-timeout=soon"}},
		{"zero cores", []string{"--max-cores=0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newCmd(t, tt.args...))
			require.Error(t, err)
		})
	}
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("12")
	require.NoError(t, err)
	assert.Equal(t, 12*time.Second, d)

	d, err = parseDuration("1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = parseDuration("x")
	assert.Error(t, err)
}

func TestAcceptLanguageFor(t *testing.T) {
	assert.Equal(t, "de-DE,de;q=0.9,en-US;q=0.8,en;q=0.7", AcceptLanguageFor("de"))
	assert.Equal(t, "fr-DZ,fr;q=0.9,ar-DZ,ar;q=0.8,en-US;q=0.7,en;q=0.6", AcceptLanguageFor("DZ"))
	assert.Equal(t, DefaultAcceptLanguage, AcceptLanguageFor("FR"))
	assert.Equal(t, DefaultAcceptLanguage, AcceptLanguageFor(""))
}

func TestRequireCountry(t *testing.T) {
	cfg := &Config{}
	require.ErrorIs(t, cfg.RequireCountry(), ErrCountryRequired)
	cfg.Country = "US"
	require.NoError(t, cfg.RequireCountry())
}
