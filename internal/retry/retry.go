// Package retry runs provider calls with bounded, rate-limit aware backoff.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DeafMist/hotel-radar/internal/apperr"
	"github.com/DeafMist/hotel-radar/internal/logger"
)

// Recorder observes every attempt, successful or not.
type Recorder interface {
	Record(provider string, err error, latency time.Duration)
}

// Config bounds the retry loop.
type Config struct {
	BaseDelay   time.Duration
	MaxAttempts int
	CallTimeout time.Duration
}

// DefaultConfig waits in multiples of one second, tries three times and caps each call at ten seconds.
func DefaultConfig() Config {
	return Config{
		BaseDelay:   time.Second,
		MaxAttempts: 3,
		CallTimeout: 10 * time.Second,
	}
}

// Executor is safe for concurrent use.
type Executor struct {
	cfg      Config
	recorder Recorder
	log      *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithSleeper replaces the context-aware wait between attempts.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) {
		e.sleep = sleep
	}
}

// New builds an Executor. recorder and log may be nil.
func New(cfg Config, recorder Recorder, log *slog.Logger, opts ...Option) *Executor {
	def := DefaultConfig()
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if log == nil {
		log = logger.Discard()
	}

	e := &Executor{cfg: cfg, recorder: recorder, log: log, sleep: sleepContext}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Backoff returns the wait after the given failed attempt (1-based).
// Rate limits back off exponentially, anything else linearly.
func (e *Executor) Backoff(attempt int, err error) time.Duration {
	if apperr.IsRateLimited(err) {
		d := e.cfg.BaseDelay * time.Duration(1<<uint(attempt))
		var rl *apperr.RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > d {
			d = rl.RetryAfter
		}
		return d
	}
	return e.cfg.BaseDelay * time.Duration(attempt)
}

// Do runs op until it succeeds, fails with a non-retryable error or runs out of
// attempts. Each attempt gets its own CallTimeout. The last error is returned.
func Do[T any](ctx context.Context, e *Executor, provider string, op func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		start := time.Now()
		result, err := op(callCtx)
		latency := time.Since(start)
		cancel()

		if e.recorder != nil {
			e.recorder.Record(provider, err, latency)
		}
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if !apperr.Retryable(err) {
			e.log.Debug("provider call failed, not retrying",
				slog.String("provider", provider),
				slog.Int("attempt", attempt),
				slog.Any("err", err),
			)
			return zero, err
		}
		if attempt == e.cfg.MaxAttempts {
			break
		}

		wait := e.Backoff(attempt, err)
		e.log.Warn("provider call failed, retrying",
			slog.String("provider", provider),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
			slog.Any("err", err),
		)
		if err := e.sleep(ctx, wait); err != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
