package config

import (
	"errors"
	"fmt"
)

// ErrCountryRequired is returned when no country was configured.
var ErrCountryRequired = errors.New("country is required (--country or COUNTRY_FOR_PRECRAWL)")

func validate(c *Config) error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error")
	}
	if c.MaxCores <= 0 || c.MaxCores > DefaultMaxCPUCap {
		return fmt.Errorf("max cores must be between 1 and %d", DefaultMaxCPUCap)
	}
	if c.CrawlDepth <= 0 {
		return fmt.Errorf("crawl depth must be > 0")
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("max redirects must be >= 0")
	}
	if c.CheckpointEvery < 0 {
		return fmt.Errorf("checkpoint interval must be >= 0")
	}
	if c.LaunchRetries < 0 {
		return fmt.Errorf("launch retries must be >= 0")
	}
	if c.ProxyEnabled && (c.ProxyPort <= 0 || c.ProxyPort+c.MaxCores-1 > 65535) {
		return fmt.Errorf("proxy ports %d..%d are out of range", c.ProxyPort, c.ProxyPort+c.MaxCores-1)
	}
	if (c.ProxyCACert == "") != (c.ProxyCAKey == "") {
		return fmt.Errorf("proxy CA needs both certificate and key")
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be > 0")
	}
	if c.PageGraphTimeout <= 0 {
		return fmt.Errorf("page graph timeout must be > 0")
	}
	if c.SnapshotsDir == "" || c.ResultsDir == "" {
		return fmt.Errorf("snapshots and results directories must be set")
	}
	return nil
}

// RequireCountry checks the setting only crawl commands need.
func (c *Config) RequireCountry() error {
	if c.Country == "" {
		return ErrCountryRequired
	}
	return nil
}
