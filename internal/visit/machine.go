package visit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/law-makers/pagegraph-crawl/internal/artifact"
	"github.com/law-makers/pagegraph-crawl/internal/bounded"
	"github.com/law-makers/pagegraph-crawl/internal/metrics"
	"github.com/law-makers/pagegraph-crawl/internal/reqctx"
	"github.com/law-makers/pagegraph-crawl/internal/retry"
	"github.com/law-makers/pagegraph-crawl/internal/traffic"
	urlutil "github.com/law-makers/pagegraph-crawl/internal/utils/url"
	"github.com/law-makers/pagegraph-crawl/pkg/models"
)

// Machine drives visits. It is used by one worker at a time.
type Machine struct {
	launcher   Launcher
	supervisor *retry.Supervisor
	logger     zerolog.Logger
	traffic    traffic.Options

	// Now is the clock used for artifact names.
	Now func() time.Time
	// OnTransition observes every state change.
	OnTransition func(url string, s State)
}

// NewMachine returns a Machine launching browsers through l with the
// retry policy of s.
func NewMachine(l Launcher, s *retry.Supervisor, logger zerolog.Logger, opts traffic.Options) *Machine {
	if s == nil {
		s = retry.NewSupervisor(retry.DefaultConfig())
	}
	return &Machine{
		launcher:   l,
		supervisor: s,
		logger:     logger,
		traffic:    opts,
		Now:        time.Now,
	}
}

// attemptResult is what one attempt hands back to the visit loop.
type attemptResult struct {
	result   models.VisitResult
	redirect string
}

// Visit performs one logical visit of cfg.URL. Redirects to URLs not yet
// in the chain restart the attempt with the new target; the loop ends on
// success or on the first failure.
func (m *Machine) Visit(ctx context.Context, cfg Config) (models.VisitResult, error) {
	start := time.Now()
	chain := NewRedirectChain(cfg.URL)
	target := cfg.URL
	var redirects []string

	base := m.logger
	if cfg.Logger != nil {
		base = *cfg.Logger
	}
	ctx = reqctx.WithVisit(ctx)
	logger := base.With().Str("pass", cfg.Pass).Str("visit", reqctx.ID(ctx)).Logger()

	for restarts := 0; ; restarts++ {
		if err := ctx.Err(); err != nil {
			return m.failed(cfg, target, redirects, start, newError(CodeCanceled, target, "visit canceled", err))
		}

		out, err := m.attempt(ctx, logger, cfg, target, chain)
		if out.redirect != "" {
			if cfg.MaxRedirects > 0 && restarts >= cfg.MaxRedirects {
				return m.failed(cfg, target, redirects, start,
					newError(CodeRedirectLimit, target, fmt.Sprintf("more than %d redirects", cfg.MaxRedirects), nil))
			}
			logger.Info().
				Str("from", target).
				Str("to", out.redirect).
				Bool("cross_site", !urlutil.SameSite(target, out.redirect)).
				Int("chain", chain.Len()).
				Msg("Following redirect")
			metrics.ObserveRedirect("followed")
			redirects = append(redirects, out.redirect)
			target = out.redirect
			continue
		}
		if err != nil {
			return m.failed(cfg, target, redirects, start, err)
		}

		res := out.result
		res.Redirects = redirects
		logger.Debug().Strs("chain", chain.URLs()).Msg("Visit captured")
		res.Duration = time.Since(start)
		metrics.ObserveVisit(cfg.Pass, "success", res.Duration)
		return res, nil
	}
}

func (m *Machine) failed(cfg Config, target string, redirects []string, start time.Time, err error) (models.VisitResult, error) {
	d := time.Since(start)
	outcome := string(CodeOf(err))
	if outcome == "" {
		outcome = "error"
	}
	metrics.ObserveVisit(cfg.Pass, outcome, d)
	return models.VisitResult{
		Status:      models.VisitFailed,
		CapturedURL: target,
		Redirects:   redirects,
		Duration:    d,
	}, err
}

func (m *Machine) enter(logger zerolog.Logger, target string, s State) {
	logger.Debug().Str("state", s.String()).Msg("Visit state")
	if m.OnTransition != nil {
		m.OnTransition(target, s)
	}
}

// attempt runs the phases for one target. Teardown always runs.
func (m *Machine) attempt(ctx context.Context, parent zerolog.Logger, cfg Config, target string, chain *RedirectChain) (out attemptResult, err error) {
	logger := parent.With().Str("url", target).Logger()
	defer func() {
		if err != nil {
			m.enter(logger, target, StateFailed)
		}
	}()

	m.enter(logger, target, StateLaunching)
	browser, err := retry.Launch(ctx, m.supervisor, func(ctx context.Context, attempt int) (Browser, error) {
		b, err := m.launcher.Launch(ctx, LaunchOptions{ProfileDir: cfg.ProfileDir, ProxyServer: cfg.ProxyServer})
		if err != nil {
			logger.Warn().Int("attempt", attempt+1).Err(err).Msg("Browser launch failed")
		}
		return b, err
	})
	if err != nil {
		return out, newError(CodeLaunch, target, "browser did not start", err)
	}

	var page Page
	defer func() {
		m.teardown(ctx, logger, cfg, browser, page)
		if err == nil {
			m.enter(logger, target, StateClosed)
		}
	}()

	if err := bounded.Sleep(ctx, cfg.LaunchSettle); err != nil {
		return out, newError(CodeCanceled, target, "visit canceled", err)
	}

	detector := newRedirectDetector(chain)
	recorder := traffic.NewRecorder()
	page, err = browser.NewPage(ctx, PageOptions{
		AcceptLanguage: cfg.AcceptLanguage,
		UserAgent:      cfg.UserAgent,
		OnRequest: func(r Request) bool {
			stop := detector.Observe(r)
			if stop && detector.Pending() == "" {
				metrics.ObserveRedirect("absorbed")
				logger.Info().Str("to", r.URL).Msg("Redirect already in chain, not following")
			}
			return stop
		},
		OnEvent: func(ev any) { recorder.Record(ev) },
	})
	if err != nil {
		page = nil
		return out, newError(CodePageSetup, target, "could not open page", err)
	}
	m.enter(logger, target, StatePageReady)

	m.enter(logger, target, StateNavigating)
	navErr := m.guard(ctx, page, detector.Stop(), "navigation", cfg.Timeouts.Navigation, func(ctx context.Context) error {
		return page.Navigate(ctx, target)
	})
	if next := detector.Pending(); next != "" {
		m.enter(logger, target, StateRedirecting)
		out.redirect = next
		return out, nil
	}
	if navErr != nil {
		switch {
		case errors.Is(navErr, bounded.ErrTimeout):
			return out, newError(CodeNavigationTimeout, target, "navigation timed out", navErr)
		case errors.Is(navErr, ErrTargetCrashed):
			return out, newError(CodeTargetCrash, target, "page crashed during navigation", navErr)
		default:
			return out, newError(CodeNavigation, target, "navigation failed", navErr)
		}
	}

	if err := m.settle(ctx, cfg.settle(), detector.Stop(), page.Crashed()); err != nil {
		if errors.Is(err, ErrTargetCrashed) {
			return out, newError(CodeTargetCrash, target, "page crashed while settling", err)
		}
		return out, newError(CodeCanceled, target, "visit canceled", err)
	}
	if next := detector.Pending(); next != "" {
		m.enter(logger, target, StateRedirecting)
		out.redirect = next
		return out, nil
	}

	detector.Disarm()
	m.enter(logger, target, StateGraphCapture)

	writer := artifact.NewWriter(cfg.OutputDir, cfg.Compress)
	names := writer.NamesFor(target, m.Now())

	graph, err := bounded.Value(ctx, "page graph", cfg.Timeouts.Graph, func(ctx context.Context) ([]byte, error) {
		return crashGuard(ctx, page, nil, func(ctx context.Context) ([]byte, error) {
			return page.GeneratePageGraph(ctx)
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, bounded.ErrTimeout):
			return out, newError(CodeGraphTimeout, target, "page graph generation timed out", err)
		case errors.Is(err, ErrTargetCrashed):
			return out, newError(CodeTargetCrash, target, "page crashed during graph capture", err)
		default:
			return out, newError(CodeGraph, target, "page graph generation failed", err)
		}
	}
	if err := writer.WriteGraph(names, graph); err != nil {
		return out, newError(CodeArtifact, target, "could not write page graph", err)
	}
	logger.Info().Str("file", names.Graph).Int("bytes", len(graph)).Msg("Page graph written")

	res := models.VisitResult{
		Status:      models.VisitSuccess,
		CapturedURL: target,
		Artifacts:   models.Artifacts{GraphPath: names.Graph},
	}
	if absorbed := detector.Absorbed(); len(absorbed) > 0 {
		logger.Info().Strs("absorbed", absorbed).Msg("Captured after ignoring redirects into the chain")
		res.Warnings = append(res.Warnings, "absorbed redirects: "+strings.Join(absorbed, " "))
	}

	m.enter(logger, target, StateExporting)
	if cfg.StoreTraffic {
		logger.Debug().Int("events", recorder.Len()).Msg("Exporting traffic")
		err := m.guard(ctx, page, nil, "traffic export", cfg.Timeouts.Export, func(ctx context.Context) error {
			h := traffic.Assemble(recorder.Events(), m.traffic)
			return writer.WriteTraffic(names, h)
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Traffic export failed")
			res.Warnings = append(res.Warnings, "traffic: "+err.Error())
		} else {
			res.Artifacts.TrafficPath = names.Traffic
		}
	}

	if cfg.Screenshot {
		png, err := bounded.Value(ctx, "screenshot", cfg.Timeouts.Screenshot, func(ctx context.Context) ([]byte, error) {
			return crashGuard(ctx, page, nil, page.Screenshot)
		})
		if err == nil {
			err = writer.WriteScreenshot(names, png)
		}
		if err != nil {
			logger.Warn().Err(err).Msg("Screenshot failed")
			res.Warnings = append(res.Warnings, "screenshot: "+err.Error())
		} else {
			res.Artifacts.ScreenshotPath = names.Screenshot
		}
	}

	out.result = res
	return out, nil
}

// guard runs fn under a timeout, failing early when the page crashes or
// interrupt is closed.
func (m *Machine) guard(ctx context.Context, page Page, interrupt <-chan struct{}, op string, d time.Duration, fn func(context.Context) error) error {
	return bounded.Run(ctx, op, d, func(ctx context.Context) error {
		_, err := crashGuard(ctx, page, interrupt, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, fn(ctx)
		})
		return err
	})
}

func crashGuard[T any](ctx context.Context, page Page, interrupt <-chan struct{}, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-page.Crashed():
		return zero, ErrTargetCrashed
	case <-interrupt:
		return zero, ErrRedirected
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// settle waits after DOMContentLoaded. A redirect ends the wait early,
// a crash fails it with ErrTargetCrashed.
func (m *Machine) settle(ctx context.Context, d time.Duration, stop, crashed <-chan struct{}) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case <-crashed:
			cancel(ErrTargetCrashed)
		case <-ctx.Done():
		}
	}()

	if _, err := bounded.SleepUnless(ctx, d, stop); err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, ErrTargetCrashed) {
			return ErrTargetCrashed
		}
		return err
	}
	return nil
}

// teardown closes the page and the browser, each within its own budget,
// and forces them down when a graceful close does not finish.
func (m *Machine) teardown(ctx context.Context, logger zerolog.Logger, cfg Config, browser Browser, page Page) {
	ctx = context.WithoutCancel(ctx)

	if page != nil {
		if err := bounded.Run(ctx, "page close", cfg.Timeouts.PageClose, page.Close); err != nil {
			logger.Warn().Err(err).Msg("Page did not close, closing target")
			if err := bounded.Run(ctx, "target close", cfg.Timeouts.PageClose, page.ForceClose); err != nil {
				logger.Warn().Err(err).Msg("Forced target close failed")
			}
		}
	}

	if err := bounded.Run(ctx, "browser close", cfg.Timeouts.BrowserClose, browser.Close); err != nil {
		logger.Warn().Err(err).Msg("Browser did not close, killing process")
		if err := browser.Kill(); err != nil {
			logger.Error().Err(err).Msg("Failed to kill browser process")
		}
	}
}
