package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PGCRAWL_MAX_CORES.
const EnvPrefix = "PGCRAWL"

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// Run identity and layout
	Country      string
	SnapshotsDir string
	ResultsDir   string
	ExcludeFile  string

	// Browser
	BrowserPath     string
	Headless        bool
	UserAgent       string
	ProfileTemplate string

	// Scheduling
	MaxCores        int
	CrawlDepth      int
	MaxRedirects    int
	CheckpointEvery int

	// Proxy
	ProxyEnabled  bool
	ProxyPort     int
	ProxyCACert   string
	ProxyCAKey    string
	TrustCA       bool
	ConsentScript string

	// Timing
	LaunchRetries       int
	LaunchSettle        time.Duration
	PostLoadDelay       time.Duration
	MeasurementDelay    time.Duration
	NavigationTimeout   time.Duration
	PageGraphTimeout    time.Duration
	ExportTimeout       time.Duration
	ScreenshotTimeout   time.Duration
	PageCloseTimeout    time.Duration
	BrowserCloseTimeout time.Duration
	Cooldown            time.Duration
	CleanupDelay        time.Duration
	SiteInterval        time.Duration

	// Artifacts
	Compress        bool
	SaveScreenshots bool
	StoreHAR        bool

	// Observability
	MetricsAddr string
}

// AcceptLanguage is the header value for the configured country.
func (c *Config) AcceptLanguage() string {
	return AcceptLanguageFor(c.Country)
}

// AcceptLanguageFor looks up a country code, case-insensitively.
func AcceptLanguageFor(country string) string {
	if v, ok := acceptLanguages[strings.ToUpper(strings.TrimSpace(country))]; ok {
		return v
	}
	return DefaultAcceptLanguage
}

// legacyEnv keeps the environment names older deployments export.
var legacyEnv = map[string]string{
	"measurement_delay":  "MEASUREMENT_DELAY",
	"pagegraph_timeout":  "PAGEGRAPH_TIMEOUT",
	"navigation_timeout": "NAVIGATION_TIMEOUT",
	"crawl_depth":        "CRAWLING_DEPTH",
	"proxy_port":         "PROXY_PORT",
	"browser_path":       "BROWSER_PATH",
	"max_cores":          "MAX_CORES",
	"save_screenshots":   "SAVE_SCREENSHOTS",
	"store_har":          "STORE_HAR",
	"country":            "COUNTRY_FOR_PRECRAWL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("json", DefaultJSONLog)
	v.SetDefault("country", "")
	v.SetDefault("snapshots_dir", DefaultSnapshotsDir)
	v.SetDefault("results_dir", DefaultResultsDir)
	v.SetDefault("exclude_file", "")
	v.SetDefault("browser_path", "")
	v.SetDefault("headless", DefaultHeadless)
	v.SetDefault("user_agent", "")
	v.SetDefault("profile_template", "")
	v.SetDefault("max_cores", DefaultMaxCores)
	v.SetDefault("crawl_depth", DefaultCrawlDepth)
	v.SetDefault("max_redirects", DefaultMaxRedirects)
	v.SetDefault("checkpoint_every", DefaultCheckpointEvery)
	v.SetDefault("proxy_enabled", DefaultProxyEnabled)
	v.SetDefault("proxy_port", DefaultProxyPort)
	v.SetDefault("proxy_ca_cert", "")
	v.SetDefault("proxy_ca_key", "")
	v.SetDefault("trust_ca", DefaultTrustCA)
	v.SetDefault("consent_script", "")
	v.SetDefault("launch_retries", DefaultLaunchRetries)
	v.SetDefault("launch_settle", DefaultLaunchSettle.String())
	v.SetDefault("post_load_delay", DefaultPostLoadDelay.String())
	v.SetDefault("measurement_delay", DefaultMeasureDelay.String())
	v.SetDefault("navigation_timeout", DefaultNavTimeout.String())
	v.SetDefault("pagegraph_timeout", DefaultGraphTimeout.String())
	v.SetDefault("export_timeout", DefaultExportTimeout.String())
	v.SetDefault("screenshot_timeout", DefaultShotTimeout.String())
	v.SetDefault("page_close_timeout", DefaultPageCloseTO.String())
	v.SetDefault("browser_close_timeout", DefaultBrowserCloseTO.String())
	v.SetDefault("cooldown", DefaultCooldown.String())
	v.SetDefault("cleanup_delay", DefaultCleanupDelay.String())
	v.SetDefault("site_interval", time.Duration(DefaultSiteInterval).String())
	v.SetDefault("compress", DefaultCompress)
	v.SetDefault("save_screenshots", DefaultSaveScreenshots)
	v.SetDefault("store_har", DefaultStoreHAR)
	v.SetDefault("metrics_addr", "")
}

// newViper wires defaults, environment and, when cmd is given, its
// flags. Flags win over the environment, which wins over the file.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), legacy); err != nil {
			return nil, err
		}
	}

	if cmd == nil {
		return v, nil
	}
	for key, flag := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	if f := cmd.Flags().Lookup("verbose"); f != nil && f.Changed && f.Value.String() == "true" {
		v.Set("log_level", "debug")
	}
	if f := cmd.Flags().Lookup("quiet"); f != nil && f.Changed && f.Value.String() == "true" {
		v.Set("log_level", "error")
	}

	if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

// Load builds a Config by combining defaults, an optional config file,
// environment variables and CLI flags, then validates it.
// Caller should pass the command being run so its flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	v, err := newViper(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		LogLevel:        strings.ToLower(v.GetString("log_level")),
		JSONLog:         v.GetBool("json"),
		Country:         strings.ToUpper(strings.TrimSpace(v.GetString("country"))),
		SnapshotsDir:    v.GetString("snapshots_dir"),
		ResultsDir:      v.GetString("results_dir"),
		ExcludeFile:     v.GetString("exclude_file"),
		BrowserPath:     v.GetString("browser_path"),
		Headless:        v.GetBool("headless"),
		UserAgent:       v.GetString("user_agent"),
		ProfileTemplate: v.GetString("profile_template"),
		MaxCores:        v.GetInt("max_cores"),
		CrawlDepth:      v.GetInt("crawl_depth"),
		MaxRedirects:    v.GetInt("max_redirects"),
		CheckpointEvery: v.GetInt("checkpoint_every"),
		ProxyEnabled:    v.GetBool("proxy_enabled"),
		ProxyPort:       v.GetInt("proxy_port"),
		ProxyCACert:     v.GetString("proxy_ca_cert"),
		ProxyCAKey:      v.GetString("proxy_ca_key"),
		TrustCA:         v.GetBool("trust_ca"),
		ConsentScript:   v.GetString("consent_script"),
		LaunchRetries:   v.GetInt("launch_retries"),
		Compress:        v.GetBool("compress"),
		SaveScreenshots: v.GetBool("save_screenshots"),
		StoreHAR:        v.GetBool("store_har"),
		MetricsAddr:     v.GetString("metrics_addr"),
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"launch_settle", &cfg.LaunchSettle},
		{"post_load_delay", &cfg.PostLoadDelay},
		{"measurement_delay", &cfg.MeasurementDelay},
		{"navigation_timeout", &cfg.NavigationTimeout},
		{"pagegraph_timeout", &cfg.PageGraphTimeout},
		{"export_timeout", &cfg.ExportTimeout},
		{"screenshot_timeout", &cfg.ScreenshotTimeout},
		{"page_close_timeout", &cfg.PageCloseTimeout},
		{"browser_close_timeout", &cfg.BrowserCloseTimeout},
		{"cooldown", &cfg.Cooldown},
		{"cleanup_delay", &cfg.CleanupDelay},
		{"site_interval", &cfg.SiteInterval},
	}
	var errs []error
	for _, d := range durations {
		val, err := parseDuration(v.GetString(d.key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.key, err))
			continue
		}
		*d.dst = val
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration accepts Go durations ("90s", "1m30s") and bare integers,
// which are seconds as in the legacy environment variables.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
