package renfe

import (
	"context"
	"math"
	"sync"
	"time"
)

// LimiterOptions tunes the shared scrape limiter. Window is exposed so
// tests do not need a real minute to fill it.
type LimiterOptions struct {
	MinDelay     time.Duration
	MaxPerWindow int
	Window       time.Duration
	// BackoffBase is in seconds; after k consecutive errors the
	// advisory delay is base^k, capped at BackoffMax.
	BackoffBase float64
	BackoffMax  time.Duration
}

func DefaultLimiterOptions() LimiterOptions {
	return LimiterOptions{
		MinDelay:     time.Second * 2,
		MaxPerWindow: 10,
		Window:       time.Minute,
		BackoffBase:  2,
		BackoffMax:   time.Minute,
	}
}

// Limiter is shared by every scrape in the process; that sharing is
// what prevents bursts across repeated fare checks. It only ever
// delays, it never fails: exceeding the window is backpressure, not an
// error. DefaultLimiter is the production singleton; tests construct
// isolated instances.
type Limiter struct {
	mu       sync.Mutex
	opts     LimiterOptions
	requests []time.Time
	errors   int
}

var DefaultLimiter = NewLimiter(DefaultLimiterOptions())

func NewLimiter(opts LimiterOptions) *Limiter {
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	if opts.MaxPerWindow <= 0 {
		opts.MaxPerWindow = DefaultLimiterOptions().MaxPerWindow
	}
	return &Limiter{opts: opts}
}

// Wait blocks until the minimum inter-request delay has elapsed and
// the sliding window has a free slot, then records the request. The
// only way it returns an error is through ctx.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		l.prune(now)

		var sleep time.Duration
		if n := len(l.requests); n > 0 {
			if d := l.opts.MinDelay - now.Sub(l.requests[n-1]); d > sleep {
				sleep = d
			}
		}
		if len(l.requests) >= l.opts.MaxPerWindow {
			// sleep until the oldest entry ages out of the window
			if d := l.opts.Window - now.Sub(l.requests[0]); d > sleep {
				sleep = d
			}
		}

		if sleep <= 0 {
			l.requests = append(l.requests, now)
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.opts.Window)
	i := 0
	for i < len(l.requests) && l.requests[i].Before(cutoff) {
		i++
	}
	l.requests = l.requests[i:]
}

func (l *Limiter) RecordError() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors++
}

func (l *Limiter) RecordSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = 0
}

// BackoffDelay is advisory: callers must sleep this long before
// retrying a fresh scrape, the limiter does not retry on its own.
// Zero when there have been no consecutive errors.
func (l *Limiter) BackoffDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.errors == 0 {
		return 0
	}
	d := time.Duration(math.Pow(l.opts.BackoffBase, float64(l.errors)) * float64(time.Second))
	if d > l.opts.BackoffMax || d < 0 {
		d = l.opts.BackoffMax
	}
	return d
}
