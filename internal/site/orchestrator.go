// Package site drives the visits of one site: a primary pass over the
// candidate URLs until the depth quota is met, then a validation pass over
// the URLs that succeeded.
package site

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/law-makers/pagegraph-crawl/internal/artifact"
	"github.com/law-makers/pagegraph-crawl/internal/bounded"
	"github.com/law-makers/pagegraph-crawl/internal/logging"
	"github.com/law-makers/pagegraph-crawl/internal/profile"
	"github.com/law-makers/pagegraph-crawl/internal/ratelimit"
	urlutil "github.com/law-makers/pagegraph-crawl/internal/utils/url"
	"github.com/law-makers/pagegraph-crawl/internal/visit"
	"github.com/law-makers/pagegraph-crawl/pkg/models"
)

// Pass names.
const (
	PassPrimary    = "primary"
	PassValidation = "validation"
)

// Visitor runs one logical visit. *visit.Machine implements it.
type Visitor interface {
	Visit(ctx context.Context, cfg visit.Config) (models.VisitResult, error)
}

// Options control the orchestrator.
type Options struct {
	// Depth is the success quota per site. Zero means no quota.
	Depth int
	// Cooldown follows every failed visit.
	Cooldown time.Duration
	// CleanupDelay lets the browser release the profile before removal.
	CleanupDelay time.Duration
	// ProxyHost is combined with the worker's proxy port.
	ProxyHost string
	// Visit is the template for every visit; URL, OutputDir, ProfileDir,
	// ProxyServer, Pass and Logger are filled in per visit.
	Visit visit.Config

	// Console receives a copy of every crawl.log entry at or above Level.
	Console io.Writer
	Level   zerolog.Level
}

// DefaultOptions mirror the crawler's historical pacing.
func DefaultOptions() Options {
	return Options{
		Depth:        3,
		Cooldown:     time.Second,
		CleanupDelay: time.Second,
		ProxyHost:    "127.0.0.1",
		Visit: visit.Config{
			Timeouts: visit.DefaultTimeouts(),
		},
		Level: zerolog.InfoLevel,
	}
}

// Orchestrator is owned by one worker.
type Orchestrator struct {
	visitor  Visitor
	profiles *profile.Manager
	limiter  ratelimit.RateLimiter
	opts     Options
}

// New returns an Orchestrator. A nil limiter disables pacing.
func New(v Visitor, profiles *profile.Manager, limiter ratelimit.RateLimiter, opts Options) *Orchestrator {
	if limiter == nil {
		limiter = ratelimit.NewSiteLimiter(0, 1)
	}
	if profiles == nil {
		profiles = profile.NewManager("", zerolog.Nop())
	}
	return &Orchestrator{
		visitor:  v,
		profiles: profiles,
		limiter:  limiter,
		opts:     opts,
	}
}

// CrawlSite runs the primary pass into siteDir and, when anything
// succeeded, the validation pass into siteDir/validation. The returned
// error is only set when ctx ended or a pass could not be set up.
func (o *Orchestrator) CrawlSite(ctx context.Context, task models.CrawlTask, siteDir string, worker models.WorkerState) (models.SiteOutcome, error) {
	outcome := models.SiteOutcome{SiteKey: task.SiteKey}

	urls := urlutil.UniqueNormalized(task.CandidateURLs)
	done, err := o.pass(ctx, PassPrimary, task.SiteKey, urls, siteDir, worker, o.opts.Depth)
	outcome.SuccessfulURLs = done
	if err != nil || len(done) == 0 {
		return outcome, err
	}

	validationDir := filepath.Join(siteDir, artifact.ValidationDirName)
	validated, err := o.pass(ctx, PassValidation, task.SiteKey, done, validationDir, worker, o.opts.Depth)
	outcome.ValidationURLs = validated
	return outcome, err
}

// Revalidate runs only the validation pass over the task's URLs, each
// attempted once, into siteDir/validation.
func (o *Orchestrator) Revalidate(ctx context.Context, task models.CrawlTask, siteDir string, worker models.WorkerState) (models.SiteOutcome, error) {
	outcome := models.SiteOutcome{SiteKey: task.SiteKey}
	validationDir := filepath.Join(siteDir, artifact.ValidationDirName)
	done, err := o.pass(ctx, PassValidation, task.SiteKey, task.CandidateURLs, validationDir, worker, 0)
	outcome.ValidationURLs = done
	return outcome, err
}

func (o *Orchestrator) pass(ctx context.Context, name, site string, urls []string, dir string, worker models.WorkerState, quota int) ([]string, error) {
	logger, closer, err := logging.SiteLogger(dir, worker.Index, site, o.opts.Console, o.opts.Level)
	if err != nil {
		return nil, fmt.Errorf("%s pass for %s: %w", name, site, err)
	}
	defer closer.Close()
	logger = logger.With().Str("pass", name).Logger()

	done := make([]string, 0, len(urls))
	for _, u := range urls {
		if quota > 0 && len(done) >= quota {
			logger.Info().Int("successes", len(done)).Msg("Site quota reached")
			break
		}
		if err := o.limiter.Wait(ctx, u); err != nil {
			return done, err
		}

		logger.Info().Str("url", u).Msg("Crawling URL")
		res, err := o.visit(ctx, logger, name, u, dir, worker)
		if err != nil {
			if ctx.Err() != nil {
				return done, ctx.Err()
			}
			logger.Error().
				Err(err).
				Str("url", u).
				Str("code", string(visit.CodeOf(err))).
				Msg("Visit failed")
			if err := bounded.Sleep(ctx, o.opts.Cooldown); err != nil {
				return done, err
			}
			continue
		}

		done = append(done, u)
		logger.Info().
			Str("url", u).
			Str("captured", res.CapturedURL).
			Str("graph", res.Artifacts.GraphPath).
			Strs("warnings", res.Warnings).
			Dur("took", res.Duration).
			Msg("Visit succeeded")
	}
	return done, ctx.Err()
}

// visit runs one machine visit with a fresh profile that is removed
// afterwards, whatever the outcome.
func (o *Orchestrator) visit(ctx context.Context, logger zerolog.Logger, pass, u, dir string, worker models.WorkerState) (models.VisitResult, error) {
	profileDir, err := o.profiles.Create(dir)
	if err != nil {
		return models.VisitResult{}, err
	}
	defer func() {
		_ = bounded.Sleep(ctx, o.opts.CleanupDelay)
		if err := o.profiles.Remove(profileDir); err != nil {
			logger.Warn().Err(err).Str("profile", profileDir).Msg("Failed to clean profile")
		}
	}()

	cfg := o.opts.Visit
	cfg.URL = u
	cfg.OutputDir = dir
	cfg.ProfileDir = profileDir
	cfg.Pass = pass
	cfg.Logger = &logger
	if worker.ProxyPort > 0 {
		host := o.opts.ProxyHost
		if host == "" {
			host = "127.0.0.1"
		}
		cfg.ProxyServer = fmt.Sprintf("http://%s:%d", host, worker.ProxyPort)
	}
	return o.visitor.Visit(ctx, cfg)
}
