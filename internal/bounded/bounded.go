// Package bounded runs blocking operations against a deadline.
//
// Every suspension point of a visit (navigation, graph capture, export,
// page and browser close) goes through Run or Value so that a timeout
// is handled the same way everywhere: the operation and a timer race,
// the first one to finish wins and the other result is dropped.
package bounded

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is matched by every *TimeoutError.
var ErrTimeout = errors.New("operation timed out")

// TimeoutError reports which operation ran out of time.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s", e.Op, e.After)
}

// Is reports ErrTimeout equivalence.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

type outcome[T any] struct {
	val T
	err error
}

// Value runs fn with a context limited to d and returns its result, or a
// *TimeoutError if d elapses first. A non-positive d disables the timer.
// If the parent context ends first, its error is returned. fn keeps
// running in the background after a timeout; its result is discarded.
func Value[T any](ctx context.Context, op string, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if d > 0 {
		runCtx, cancel = context.WithTimeout(ctx, d)
	}
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		v, err := fn(runCtx)
		done <- outcome[T]{val: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return zero, &TimeoutError{Op: op, After: d}
		}
		return r.val, r.err
	case <-runCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, &TimeoutError{Op: op, After: d}
	}
}

// Run is Value for operations without a result.
func Run(ctx context.Context, op string, d time.Duration, fn func(context.Context) error) error {
	_, err := Value(ctx, op, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SleepUnless waits for d, returning early when stop is closed or ctx is
// done. It reports whether stop ended the wait.
func SleepUnless(ctx context.Context, d time.Duration, stop <-chan struct{}) (bool, error) {
	if d <= 0 {
		select {
		case <-stop:
			return true, nil
		default:
			return false, ctx.Err()
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return false, nil
	case <-stop:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
