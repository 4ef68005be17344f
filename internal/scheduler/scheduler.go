// Package scheduler fans crawl tasks out to a pool of workers. Each worker
// owns one proxy and one site crawler and pulls tasks until the shared
// queue is empty.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/law-makers/pagegraph-crawl/internal/artifact"
	"github.com/law-makers/pagegraph-crawl/internal/logging"
	"github.com/law-makers/pagegraph-crawl/internal/metrics"
	"github.com/law-makers/pagegraph-crawl/pkg/models"
)

// Site statuses used in logs and metrics.
const (
	StatusSuccess = "success"
	StatusEmpty   = "empty"
	StatusError   = "error"
	StatusPanic   = "panic"
	StatusSkipped = "skipped"
)

// ErrNoWorkers is returned when no worker could be started.
var ErrNoWorkers = errors.New("no worker could start")

// SiteCrawler handles one task. *site.Orchestrator implements it through
// CrawlSite; SiteCrawlerFunc adapts other methods.
type SiteCrawler interface {
	CrawlSite(ctx context.Context, task models.CrawlTask, siteDir string, worker models.WorkerState) (models.SiteOutcome, error)
}

// SiteCrawlerFunc adapts a function to SiteCrawler.
type SiteCrawlerFunc func(ctx context.Context, task models.CrawlTask, siteDir string, worker models.WorkerState) (models.SiteOutcome, error)

// CrawlSite calls f.
func (f SiteCrawlerFunc) CrawlSite(ctx context.Context, task models.CrawlTask, siteDir string, worker models.WorkerState) (models.SiteOutcome, error) {
	return f(ctx, task, siteDir, worker)
}

// Proxy is a running per-worker proxy.
type Proxy interface {
	Close(ctx context.Context) error
}

// ProxyFactory starts the proxy for a worker on port.
type ProxyFactory func(ctx context.Context, port int) (Proxy, error)

// CrawlerFactory builds the crawler a worker uses for its whole life.
type CrawlerFactory func(worker models.WorkerState) SiteCrawler

// Options configure a Scheduler.
type Options struct {
	// MaxWorkers caps the worker count below the CPU count.
	MaxWorkers int
	// BasePort is the proxy port of worker 0. Zero disables proxies.
	BasePort int
	// SkipExisting skips tasks whose site directory already exists.
	SkipExisting bool
	// CheckpointEvery writes a per-worker checkpoint after that many
	// completed sites. Zero disables checkpoints.
	CheckpointEvery int
	CheckpointDir   string

	Layout  artifact.Layout
	RunID   string
	Country string

	// OnTaskDone is called after every claimed task. result is nil when
	// the task was skipped.
	OnTaskDone func(siteKey string, result *models.SiteResult)
}

// Scheduler runs tasks across workers.
type Scheduler struct {
	opts       Options
	newCrawler CrawlerFactory
	proxies    ProxyFactory
	logger     zerolog.Logger
	cpus       func() int
	now        func() time.Time
}

// New returns a Scheduler. proxies may be nil when BasePort is zero.
func New(opts Options, newCrawler CrawlerFactory, proxies ProxyFactory, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		opts:       opts,
		newCrawler: newCrawler,
		proxies:    proxies,
		logger:     logger,
		cpus:       runtime.NumCPU,
		now:        time.Now,
	}
}

// Workers is min(MaxWorkers, CPU count), at least 1.
func (s *Scheduler) Workers() int {
	n := s.cpus()
	if s.opts.MaxWorkers > 0 && s.opts.MaxWorkers < n {
		n = s.opts.MaxWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Run processes every task and returns the merged per-site results.
// Skipped sites have no entry. Tasks nobody claimed get an error entry.
// The error is set when ctx ended or when no worker started.
func (s *Scheduler) Run(ctx context.Context, tasks []models.CrawlTask) (map[string]models.SiteResult, error) {
	merged := make(map[string]models.SiteResult)
	if len(tasks) == 0 {
		return merged, nil
	}

	q := NewQueue(tasks)
	n := s.Workers()
	s.logger.Info().Int("workers", n).Int("tasks", len(tasks)).Msg("Starting workers")

	results := make([]map[string]models.SiteResult, n)
	var (
		mu     sync.Mutex
		failed []error
	)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			res, err := s.worker(ctx, i, q)
			if err != nil {
				mu.Lock()
				failed = append(failed, err)
				mu.Unlock()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	for _, m := range results {
		for k, v := range m {
			merged[k] = v
		}
	}

	reason := "not processed"
	if ctx.Err() != nil {
		reason = "not processed: " + ctx.Err().Error()
	} else if len(failed) == n {
		reason = "not processed: " + ErrNoWorkers.Error()
	}
	if left := q.Len(); left > 0 {
		s.logger.Warn().Int("unclaimed", left).Str("reason", reason).Msg("Tasks left in queue")
	}
	for _, t := range q.Drain() {
		merged[t.SiteKey] = models.SiteResult{SuccessfulURLs: []string{}, Error: reason, Worker: -1}
		metrics.ObserveSite(StatusError)
	}

	if err := ctx.Err(); err != nil {
		return merged, err
	}
	if len(failed) == n {
		return merged, fmt.Errorf("%w: %w", ErrNoWorkers, errors.Join(failed...))
	}
	return merged, nil
}

// worker pulls tasks until the queue is empty or ctx ends. It only fails
// when its proxy cannot start, in which case it claims nothing.
func (s *Scheduler) worker(ctx context.Context, index int, q *Queue) (map[string]models.SiteResult, error) {
	logger := logging.WorkerLogger(s.logger, index)
	state := models.WorkerState{Index: index}

	if s.opts.BasePort > 0 && s.proxies != nil {
		state.ProxyPort = s.opts.BasePort + index
		p, err := s.proxies(ctx, state.ProxyPort)
		if err != nil {
			logger.Error().Err(err).Int("port", state.ProxyPort).Msg("Proxy failed to start, worker exits")
			return nil, fmt.Errorf("worker %d: proxy on port %d: %w", index, state.ProxyPort, err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := p.Close(ctx); err != nil {
				logger.Warn().Err(err).Msg("Proxy did not stop cleanly")
			}
		}()
	}

	crawler := s.newCrawler(state)
	results := make(map[string]models.SiteResult)
	completed, sequence := 0, 0

	logger.Debug().Int("proxy_port", state.ProxyPort).Msg("Worker started")
	for ctx.Err() == nil {
		task, ok := q.TryDequeue()
		if !ok {
			break
		}

		dir, err := s.opts.Layout.SiteDir(task.SiteKey)
		if err != nil {
			logger.Error().Err(err).Str("site", task.SiteKey).Msg("Invalid site")
			res := models.SiteResult{SuccessfulURLs: []string{}, Error: err.Error(), Worker: index}
			results[task.SiteKey] = res
			metrics.ObserveSite(StatusError)
			s.taskDone(task.SiteKey, &res)
			continue
		}
		if s.opts.SkipExisting && exists(dir) {
			logger.Debug().Str("site", task.SiteKey).Msg("Site already processed, skipping")
			metrics.ObserveSite(StatusSkipped)
			s.taskDone(task.SiteKey, nil)
			continue
		}

		state.CurrentTask = &task
		res := s.runTask(ctx, crawler, task, dir, state, logger)
		state.CurrentTask = nil

		results[task.SiteKey] = res
		s.taskDone(task.SiteKey, &res)

		completed++
		if s.opts.CheckpointEvery > 0 && completed%s.opts.CheckpointEvery == 0 {
			sequence++
			if err := s.checkpoint(index, sequence, results); err != nil {
				logger.Warn().Err(err).Msg("Checkpoint failed")
			}
		}
	}

	logger.Debug().Int("completed", completed).Msg("Worker finished")
	return results, nil
}

func (s *Scheduler) taskDone(key string, res *models.SiteResult) {
	if s.opts.OnTaskDone != nil {
		s.opts.OnTaskDone(key, res)
	}
}

// runTask runs one site. A panic is turned into an error result.
func (s *Scheduler) runTask(ctx context.Context, crawler SiteCrawler, task models.CrawlTask, dir string, state models.WorkerState, logger zerolog.Logger) (res models.SiteResult) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("site", task.SiteKey).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Site crawl panicked")
			res = models.SiteResult{SuccessfulURLs: []string{}, Error: fmt.Sprintf("panic: %v", r), Worker: state.Index}
			metrics.ObserveSite(StatusPanic)
		}
	}()

	start := time.Now()
	out, err := crawler.CrawlSite(ctx, task, dir, state)

	res = models.SiteResult{
		SuccessfulURLs: out.SuccessfulURLs,
		ValidationURLs: out.ValidationURLs,
		Worker:         state.Index,
	}
	if res.SuccessfulURLs == nil {
		res.SuccessfulURLs = []string{}
	}

	status := StatusEmpty
	switch {
	case err != nil:
		res.Error = err.Error()
		status = StatusError
	case len(out.SuccessfulURLs) > 0 || len(out.ValidationURLs) > 0:
		status = StatusSuccess
	}
	metrics.ObserveSite(status)

	logger.Info().
		Str("site", task.SiteKey).
		Str("status", status).
		Int("successful", len(out.SuccessfulURLs)).
		Int("validated", len(out.ValidationURLs)).
		Dur("took", time.Since(start)).
		Msg("Site finished")
	return res
}

// checkpoint writes worker_<i>_<n>.json with everything the worker has
// completed so far.
func (s *Scheduler) checkpoint(worker, sequence int, results map[string]models.SiteResult) error {
	if s.opts.CheckpointDir == "" {
		return nil
	}
	snapshot := make(map[string]models.SiteResult, len(results))
	for k, v := range results {
		snapshot[k] = v
	}
	w := worker
	file := models.ResultFile{
		RunID:     s.opts.RunID,
		Country:   s.opts.Country,
		Category:  s.opts.Layout.Category,
		Worker:    &w,
		Sequence:  sequence,
		WrittenAt: s.now().UTC(),
		Sites:     snapshot,
	}
	path := filepath.Join(s.opts.CheckpointDir, fmt.Sprintf("worker_%d_%d.json", worker, sequence))
	return WriteResultFile(path, file)
}

// WriteResultFile writes f as indented JSON, replacing path atomically.
func WriteResultFile(path string, f models.ResultFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}
