// Package batch provides a bounded-concurrency executor for per-file
// recovery steps and other bulk platform work. A fixed pool of workers
// drains a shared queue; each item's success or failure is captured
// independently, so one failing item never terminates the pool or its
// in-flight siblings, and Run returns only after every submitted item
// reached a terminal result.
//
// Rate-limited items are requeued with exponential backoff rather than
// failed, but attempts are bounded: an item that is still rate limited
// after MaxAttempts fails with ErrAttemptsExhausted instead of cycling
// forever.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/rewind/pkg/rewind/logging"
)

// Defaults for pool sizing and retry behavior.
const (
	DefaultWorkers     = 8
	DefaultMaxAttempts = 5
	DefaultBaseBackoff = 500 * time.Millisecond
	DefaultMaxBackoff  = 30 * time.Second
)

// ErrAttemptsExhausted is returned for an item that stayed rate limited
// through every allowed attempt.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Options tunes an executor. Zero values use defaults.
type Options struct {
	// Workers is the pool size.
	Workers int

	// MaxAttempts bounds how many times a rate-limited item is tried.
	MaxAttempts int

	// BaseBackoff is the first retry delay; it doubles per attempt.
	BaseBackoff time.Duration

	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration

	// Retryable classifies errors that requeue the item instead of
	// failing it. Nil retries nothing.
	Retryable func(error) bool
}

// withDefaults returns a copy with zero fields filled in.
func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = DefaultBaseBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = DefaultMaxBackoff
	}
	return o
}

// Result is the terminal state of one item, reported in input order.
type Result[R any] struct {
	// Index is the item's position in the input slice.
	Index int

	// Value is fn's result when Err is nil.
	Value R

	// Err is the item's final error, if any.
	Err error

	// Attempts is how many times the item was tried.
	Attempts int
}

// workItem tracks one queued item and its attempt count.
type workItem[T any] struct {
	index    int
	value    T
	attempts int
}

// Run executes fn over every item with a bounded worker pool and
// returns one Result per item, in input order (barrier semantics). The
// context is passed through to fn; cancellation marks not-yet-final
// items with the context error rather than abandoning them silently.
func Run[T, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, error), opts Options) []Result[R] {
	opts = opts.withDefaults()
	logger := logging.Get("batch")

	results := make([]Result[R], len(items))
	for i := range results {
		results[i].Index = i
	}
	if len(items) == 0 {
		return results
	}

	// Each item is either queued or being processed, never both, so
	// capacity len(items) makes every requeue non-blocking.
	queue := make(chan workItem[T], len(items))
	for i, item := range items {
		queue <- workItem[T]{index: i, value: item}
	}

	var (
		resultsMu sync.Mutex
		pending   sync.WaitGroup
	)
	pending.Add(len(items))

	finish := func(w workItem[T], value R, err error) {
		resultsMu.Lock()
		results[w.index] = Result[R]{Index: w.index, Value: value, Err: err, Attempts: w.attempts}
		resultsMu.Unlock()
		pending.Done()
	}

	var g errgroup.Group
	for range opts.Workers {
		g.Go(func() error {
			for w := range queue {
				if err := ctx.Err(); err != nil {
					finish(w, *new(R), err)
					continue
				}

				w.attempts++
				value, err := fn(ctx, w.value)

				if err != nil && opts.Retryable != nil && opts.Retryable(err) {
					if w.attempts >= opts.MaxAttempts {
						logger.Warn("item still rate limited after final attempt",
							"index", w.index, "attempts", w.attempts)
						finish(w, *new(R), fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, w.attempts, err))
						continue
					}

					delay := backoff(opts, w.attempts)
					logger.Debug("requeueing rate-limited item",
						"index", w.index, "attempt", w.attempts, "delay", delay)

					select {
					case <-time.After(delay):
						queue <- w
					case <-ctx.Done():
						finish(w, *new(R), ctx.Err())
					}
					continue
				}

				finish(w, value, err)
			}
			return nil
		})
	}

	// Close the queue once every item reached a terminal result; workers
	// drain and exit.
	pending.Wait()
	close(queue)
	_ = g.Wait()

	return results
}

// backoff returns the delay before the given retry attempt,
// exponentially grown from the base and capped.
func backoff(opts Options, attempt int) time.Duration {
	delay := opts.BaseBackoff << (attempt - 1)
	if delay > opts.MaxBackoff || delay <= 0 {
		return opts.MaxBackoff
	}
	return delay
}
