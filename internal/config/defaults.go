package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel = "info"
	DefaultJSONLog  = false

	DefaultSnapshotsDir = "snapshots"
	DefaultResultsDir   = "results"

	DefaultHeadless  = true
	DefaultMaxCores  = 4
	DefaultMaxCPUCap = 256

	DefaultCrawlDepth   = 3
	DefaultMaxRedirects = 0

	DefaultProxyEnabled = true
	DefaultProxyPort    = 8080
	DefaultTrustCA      = true

	DefaultLaunchRetries  = 3
	DefaultLaunchSettle   = 1 * time.Second
	DefaultPostLoadDelay  = 5 * time.Second
	DefaultMeasureDelay   = 10 * time.Second
	DefaultNavTimeout     = 60 * time.Second
	DefaultGraphTimeout   = 60 * time.Second
	DefaultExportTimeout  = 30 * time.Second
	DefaultShotTimeout    = 5 * time.Second
	DefaultPageCloseTO    = 5 * time.Second
	DefaultBrowserCloseTO = 3 * time.Second

	DefaultCooldown     = 1 * time.Second
	DefaultCleanupDelay = 1 * time.Second
	DefaultSiteInterval = 0

	DefaultCompress        = true
	DefaultSaveScreenshots = false
	DefaultStoreHAR        = false

	DefaultCheckpointEvery = 10

	// DefaultAcceptLanguage is used for countries missing from the table.
	DefaultAcceptLanguage = "en-US,en;q=0.9"
)

// acceptLanguages maps a country code to the Accept-Language header sent
// by crawls run from that country.
var acceptLanguages = map[string]string{
	"US": "en-US,en;q=0.9",
	"AE": "ar-AE,ar;q=0.9,en-US;q=0.8,en;q=0.7",
	"IN": "en-IN,en;q=0.9,hi;q=0.8",
	"DE": "de-DE,de;q=0.9,en-US;q=0.8,en;q=0.7",
	"DZ": "fr-DZ,fr;q=0.9,ar-DZ,ar;q=0.8,en-US;q=0.7,en;q=0.6",
}
