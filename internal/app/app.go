// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/law-makers/pagegraph-crawl/internal/artifact"
	"github.com/law-makers/pagegraph-crawl/internal/browser"
	"github.com/law-makers/pagegraph-crawl/internal/config"
	"github.com/law-makers/pagegraph-crawl/internal/metrics"
	"github.com/law-makers/pagegraph-crawl/internal/profile"
	"github.com/law-makers/pagegraph-crawl/internal/proxy"
	"github.com/law-makers/pagegraph-crawl/internal/ratelimit"
	"github.com/law-makers/pagegraph-crawl/internal/retry"
	"github.com/law-makers/pagegraph-crawl/internal/scheduler"
	"github.com/law-makers/pagegraph-crawl/internal/site"
	"github.com/law-makers/pagegraph-crawl/internal/traffic"
	"github.com/law-makers/pagegraph-crawl/internal/visit"
	"github.com/law-makers/pagegraph-crawl/pkg/models"
)

// Name and Version identify the crawler in traffic archives.
const (
	Name    = "pagegraph-crawl"
	Version = "0.1.0"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config  *config.Config
	Logger  *zerolog.Logger
	RunID   string
	Console io.Writer
	Level   zerolog.Level

	Launcher *browser.Launcher
	Profiles *profile.Manager
	Limiter  ratelimit.RateLimiter

	script     []byte
	ca         *tls.Certificate
	metricsSrv *http.Server
	startTime  time.Time
}

// ParseLevel maps the configured level name to zerolog.
func ParseLevel(name string) zerolog.Level {
	switch name {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures logging based on the provided config
//   - Loads the injected script and the proxy CA
//   - Resolves the browser binary
//   - Starts the metrics listener when an address is configured
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	level := ParseLevel(cfg.LogLevel)
	var console io.Writer
	if cfg.JSONLog {
		console = os.Stderr
	} else {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(console).Level(level).With().Timestamp().Logger()

	runID := uuid.NewString()
	logger = logger.With().Str("run", runID).Logger()
	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")

	script, err := loadScript(cfg.ConsentScript)
	if err != nil {
		return nil, err
	}
	ca, err := loadCA(cfg.ProxyCACert, cfg.ProxyCAKey)
	if err != nil {
		return nil, err
	}

	launcher := browser.NewLauncher(browser.Options{
		ExecPath:  cfg.BrowserPath,
		Headless:  cfg.Headless,
		UserAgent: cfg.UserAgent,
		Logger:    logger,
	})
	logger.Debug().Bool("headless", cfg.Headless).Msg("Browser launcher initialized")

	a := &Application{
		Config:    cfg,
		Logger:    &logger,
		RunID:     runID,
		Console:   console,
		Level:     level,
		Launcher:  launcher,
		Profiles:  profile.NewManager(cfg.ProfileTemplate, logger),
		Limiter:   ratelimit.NewSiteLimiter(cfg.SiteInterval, 1),
		script:    script,
		ca:        ca,
		startTime: time.Now(),
	}

	if cfg.MetricsAddr != "" {
		a.startMetrics(cfg.MetricsAddr)
	}

	logger.Info().Msg("Application initialized successfully")
	return a, nil
}

func loadScript(path string) ([]byte, error) {
	if path == "" {
		return proxy.DefaultScript(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read consent script: %w", err)
	}
	if err := proxy.CheckScript(b); err != nil {
		return nil, err
	}
	return b, nil
}

func loadCA(certPath, keyPath string) (*tls.Certificate, error) {
	if certPath == "" {
		return nil, nil
	}
	ca, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load proxy CA: %w", err)
	}
	return &ca, nil
}

func (a *Application) startMetrics(addr string) {
	metrics.Init()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.metricsSrv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Str("addr", addr).Msg("Metrics listener stopped")
		}
	}()
	a.Logger.Info().Str("addr", addr).Msg("Serving metrics")
}

// Layout is the snapshot layout for a category.
func (a *Application) Layout(category string) artifact.Layout {
	return artifact.Layout{Root: a.Config.SnapshotsDir, Country: a.Config.Country, Category: category}
}

// ResultsDir is <results>/<country>/<category>.
func (a *Application) ResultsDir(category string) string {
	return filepath.Join(a.Config.ResultsDir, a.Config.Country, category)
}

// TrustProxyCA registers the proxy CA with the NSS database once per run.
func (a *Application) TrustProxyCA(ctx context.Context) error {
	if !a.Config.ProxyEnabled || !a.Config.TrustCA {
		return nil
	}
	ts := &proxy.TrustStore{Logger: *a.Logger}
	return ts.Register(ctx, a.Config.ProxyCACert)
}

// VisitConfig is the visit template shared by every worker.
func (a *Application) VisitConfig() visit.Config {
	c := a.Config
	return visit.Config{
		AcceptLanguage:   c.AcceptLanguage(),
		UserAgent:        c.UserAgent,
		Compress:         c.Compress,
		StoreTraffic:     c.StoreHAR,
		Screenshot:       c.SaveScreenshots,
		LaunchSettle:     c.LaunchSettle,
		PostLoadDelay:    c.PostLoadDelay,
		MeasurementDelay: c.MeasurementDelay,
		MaxRedirects:     c.MaxRedirects,
		Timeouts: visit.Timeouts{
			Navigation:   c.NavigationTimeout,
			Graph:        c.PageGraphTimeout,
			Export:       c.ExportTimeout,
			Screenshot:   c.ScreenshotTimeout,
			PageClose:    c.PageCloseTimeout,
			BrowserClose: c.BrowserCloseTimeout,
		},
	}
}

// Orchestrator builds the site driver of one worker, with its own
// navigation machine.
func (a *Application) Orchestrator(worker models.WorkerState) *site.Orchestrator {
	logger := a.Logger.With().Int("worker", worker.Index).Logger()

	rc := retry.DefaultConfig()
	rc.Retries = a.Config.LaunchRetries
	sup := retry.NewSupervisor(rc)
	sup.Logger = &logger
	sup.OnRetry = func(int, error) { metrics.ObserveLaunchRetry() }

	machine := visit.NewMachine(a.Launcher, sup, logger, traffic.Options{CreatorName: Name, CreatorVersion: Version})

	return site.New(machine, a.Profiles, a.Limiter, site.Options{
		Depth:        a.Config.CrawlDepth,
		Cooldown:     a.Config.Cooldown,
		CleanupDelay: a.Config.CleanupDelay,
		ProxyHost:    "127.0.0.1",
		Visit:        a.VisitConfig(),
		Console:      a.Console,
		Level:        a.Level,
	})
}

// ProxyFactory starts one injection proxy per worker, or returns nil when
// proxies are disabled.
func (a *Application) ProxyFactory() scheduler.ProxyFactory {
	if !a.Config.ProxyEnabled {
		return nil
	}
	return func(ctx context.Context, port int) (scheduler.Proxy, error) {
		s, err := proxy.New(proxy.Options{
			Addr:   fmt.Sprintf("127.0.0.1:%d", port),
			Script: a.script,
			CA:     a.ca,
			Logger: a.Logger.With().Int("proxy_port", port).Logger(),
		})
		if err != nil {
			return nil, err
		}
		if err := s.Start(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Scheduler builds a scheduler for category. crawl picks the operation
// every worker runs on its orchestrator.
func (a *Application) Scheduler(category string, skipExisting bool, crawl func(o *site.Orchestrator) scheduler.SiteCrawler, onDone func(string, *models.SiteResult)) *scheduler.Scheduler {
	basePort := 0
	if a.Config.ProxyEnabled {
		basePort = a.Config.ProxyPort
	}
	opts := scheduler.Options{
		MaxWorkers:      a.Config.MaxCores,
		BasePort:        basePort,
		SkipExisting:    skipExisting,
		CheckpointEvery: a.Config.CheckpointEvery,
		CheckpointDir:   filepath.Join(a.ResultsDir(category), "checkpoints"),
		Layout:          a.Layout(category),
		RunID:           a.RunID,
		Country:         a.Config.Country,
		OnTaskDone:      onDone,
	}
	factory := func(w models.WorkerState) scheduler.SiteCrawler {
		return crawl(a.Orchestrator(w))
	}
	return scheduler.New(opts, factory, a.ProxyFactory(), *a.Logger)
}

// WriteResults writes the merged results file and returns its path.
func (a *Application) WriteResults(category string, sites map[string]models.SiteResult) (string, error) {
	now := time.Now().UTC()
	path := filepath.Join(a.ResultsDir(category), fmt.Sprintf("results_%d.json", now.Unix()))
	err := scheduler.WriteResultFile(path, models.ResultFile{
		RunID:     a.RunID,
		Country:   a.Config.Country,
		Category:  category,
		WrittenAt: now,
		Sites:     sites,
	})
	return path, err
}

// Close gracefully shuts down the application and all its resources.
//
// A context with a timeout should be provided to prevent indefinite blocking.
// Any errors during shutdown are logged but do not prevent other shutdown steps.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Msg("Shutting down application")

	if a.metricsSrv != nil {
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Error stopping metrics listener")
		}
	}

	uptime := time.Since(a.startTime)
	a.Logger.Info().Dur("uptime", uptime).Msg("Application shutdown complete")
	return nil
}
