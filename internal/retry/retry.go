// internal/retry/retry.go
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/pagegraph-crawl/internal/bounded"
)

// ErrLaunchExhausted is returned once every retry has failed.
var ErrLaunchExhausted = errors.New("unable to launch")

// Config defines retry behavior with exponential backoff
type Config struct {
	Retries        int           // Retries after the first attempt
	InitialBackoff time.Duration // Wait before the first retry
	MaxBackoff     time.Duration // Upper bound for a single wait, 0 = none
	Multiplier     float64       // Backoff multiplier
}

// DefaultConfig waits 1s, 2s, 4s between four launch attempts.
func DefaultConfig() Config {
	return Config{
		Retries:        3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// Supervisor retries a launch function with exponential backoff.
//
// Backoff and Sleep are seams for tests; nil values fall back to the
// configured exponential curve and a context-aware sleep.
type Supervisor struct {
	Config  Config
	Backoff func(retry int) time.Duration
	Sleep   func(ctx context.Context, d time.Duration) error
	OnRetry func(retry int, err error)
	Logger  *zerolog.Logger
}

// NewSupervisor returns a Supervisor using cfg.
func NewSupervisor(cfg Config) *Supervisor {
	return &Supervisor{Config: cfg}
}

// Launch runs fn until it succeeds or the retries are used up. The wait
// before retry i (1-based) is Backoff(i).
func Launch[T any](ctx context.Context, s *Supervisor, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	logger := s.logger()

	var lastErr error
	for attempt := 0; attempt <= s.Config.Retries; attempt++ {
		if attempt > 0 {
			wait := s.backoff(attempt)
			logger.Debug().
				Int("retry", attempt).
				Int("max_retries", s.Config.Retries).
				Dur("backoff", wait).
				Err(lastErr).
				Msg("Retrying launch after backoff")
			if s.OnRetry != nil {
				s.OnRetry(attempt, lastErr)
			}
			if err := s.sleep(ctx, wait); err != nil {
				return zero, err
			}
		}

		v, err := fn(ctx, attempt)
		if err == nil {
			if attempt > 0 {
				logger.Debug().Int("attempts", attempt+1).Msg("Launch succeeded after retry")
			}
			return v, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
	}

	logger.Warn().
		Int("retries", s.Config.Retries).
		Err(lastErr).
		Msg("Max launch retries exceeded")

	return zero, fmt.Errorf("%w after %d retries: %w", ErrLaunchExhausted, s.Config.Retries, lastErr)
}

func (s *Supervisor) backoff(retry int) time.Duration {
	if s.Backoff != nil {
		return s.Backoff(retry)
	}
	return calculateBackoff(retry, s.Config)
}

func (s *Supervisor) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	return bounded.Sleep(ctx, d)
}

func (s *Supervisor) logger() *zerolog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return &log.Logger
}

// calculateBackoff returns InitialBackoff * Multiplier^(retry-1), capped
// at MaxBackoff. With the defaults this is 2^(retry-1) seconds.
func calculateBackoff(retry int, cfg Config) time.Duration {
	if retry < 1 {
		retry = 1
	}
	mult := cfg.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	backoff := float64(cfg.InitialBackoff) * math.Pow(mult, float64(retry-1))

	if cfg.MaxBackoff > 0 && backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}

	return time.Duration(backoff)
}
