package config

import "github.com/spf13/cobra"

// flagKeys maps configuration keys to the flags that override them.
var flagKeys = map[string]string{
	"json":               "json",
	"country":            "country",
	"snapshots_dir":      "snapshots-dir",
	"results_dir":        "results-dir",
	"exclude_file":       "exclude",
	"browser_path":       "browser",
	"headless":           "headless",
	"user_agent":         "user-agent",
	"profile_template":   "profile-template",
	"max_cores":          "max-cores",
	"crawl_depth":        "depth",
	"max_redirects":      "max-redirects",
	"checkpoint_every":   "checkpoint-every",
	"proxy_enabled":      "proxy",
	"proxy_port":         "proxy-port",
	"consent_script":     "consent-script",
	"measurement_delay":  "measurement-delay",
	"navigation_timeout": "navigation-timeout",
	"pagegraph_timeout":  "pagegraph-timeout",
	"compress":           "compress",
	"save_screenshots":   "screenshots",
	"store_har":          "har",
	"metrics_addr":       "metrics-addr",
}

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	pf := cmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.BoolP("quiet", "q", false, "Suppress all output except errors")
	pf.Bool("json", DefaultJSONLog, "Log JSON lines instead of console output")
	pf.String("config", "", "Path to configuration file (optional)")

	pf.String("country", "", "Country code of the vantage point (e.g. US, DE)")
	pf.String("snapshots-dir", DefaultSnapshotsDir, "Root directory for site snapshots")
	pf.String("results-dir", DefaultResultsDir, "Root directory for result and checkpoint files")
	pf.String("browser", "", "Path to the Brave binary")
	pf.Bool("headless", DefaultHeadless, "Run the browser headless")
	pf.String("user-agent", "", "Override the browser user agent")
	pf.String("profile-template", "", "Directory copied into every fresh browser profile")
	pf.Int("max-cores", DefaultMaxCores, "Upper bound on parallel workers")
	pf.Bool("proxy", DefaultProxyEnabled, "Route browsers through the injection proxy")
	pf.Int("proxy-port", DefaultProxyPort, "Proxy port of worker 0; worker i uses port+i")
	pf.String("consent-script", "", "JavaScript file injected instead of the built-in consent script")
	pf.String("measurement-delay", DefaultMeasureDelay.String(), "Wait after load before capturing the graph")
	pf.String("navigation-timeout", DefaultNavTimeout.String(), "Budget for reaching DOMContentLoaded")
	pf.String("pagegraph-timeout", DefaultGraphTimeout.String(), "Budget for page graph generation")
	pf.Int("max-redirects", DefaultMaxRedirects, "Fail a visit after this many redirect restarts (0 = unbounded)")
	pf.Bool("compress", DefaultCompress, "Gzip page graph files")
	pf.Bool("screenshots", DefaultSaveScreenshots, "Save a screenshot per visit")
	pf.Bool("har", DefaultStoreHAR, "Save a HAR traffic archive per visit")
	pf.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

// RegisterCrawlFlags adds flags only the crawl command understands.
func RegisterCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().String("exclude", "", "File of site keys to skip, one per line after a header")
	cmd.Flags().Int("depth", DefaultCrawlDepth, "Successful captures wanted per site")
	cmd.Flags().Int("checkpoint-every", DefaultCheckpointEvery, "Write a worker checkpoint after this many sites (0 = off)")
}
