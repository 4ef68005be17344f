package visit

import (
	"time"

	"github.com/rs/zerolog"
)

// Timeouts are independent budgets, one per blocking phase.
type Timeouts struct {
	Navigation   time.Duration
	Graph        time.Duration
	Export       time.Duration
	Screenshot   time.Duration
	PageClose    time.Duration
	BrowserClose time.Duration
}

// DefaultTimeouts returns the budgets used when nothing is configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Navigation:   60 * time.Second,
		Graph:        60 * time.Second,
		Export:       30 * time.Second,
		Screenshot:   5 * time.Second,
		PageClose:    5 * time.Second,
		BrowserClose: 3 * time.Second,
	}
}

// Config describes one visit.
type Config struct {
	URL            string
	OutputDir      string
	ProfileDir     string
	ProxyServer    string
	AcceptLanguage string
	UserAgent      string

	Compress     bool
	StoreTraffic bool
	Screenshot   bool

	// LaunchSettle is the pause between browser start and page creation.
	LaunchSettle time.Duration
	// PostLoadDelay and MeasurementDelay together form the settle wait
	// after DOMContentLoaded.
	PostLoadDelay    time.Duration
	MeasurementDelay time.Duration

	Timeouts Timeouts

	// MaxRedirects bounds restarts caused by redirects. 0 means no bound
	// beyond redirect-chain deduplication.
	MaxRedirects int

	// Pass labels logs and metrics ("primary" or "validation").
	Pass string

	// Logger replaces the machine's logger for this visit when set.
	Logger *zerolog.Logger
}

func (c Config) settle() time.Duration {
	return c.PostLoadDelay + c.MeasurementDelay
}
