// Package ratelimit limits how often an operation may run. A Limiter combines
// a sliding window of recent requests with an optional token bucket, and a
// Registry hands out one shared Limiter per name.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/agent2000/agent2000/internal/logging"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned by Wait when the context ends before a slot frees up.
var ErrRateLimited = errors.New("rate limit exceeded")

// minPoll bounds how tightly Wait spins when the computed wait is zero but
// the request was still refused (another goroutine took the slot).
const minPoll = 10 * time.Millisecond

// Config describes a limiter. MaxTokens <= 0 disables the token bucket.
type Config struct {
	MaxRequests      int           `mapstructure:"max_requests" json:"max_requests" yaml:"max_requests"`
	Window           time.Duration `mapstructure:"window" json:"window" yaml:"window"`
	MaxTokens        int           `mapstructure:"max_tokens" json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	TokensPerRequest int           `mapstructure:"tokens_per_request" json:"tokens_per_request,omitempty" yaml:"tokens_per_request,omitempty"`
	RefillRate       float64       `mapstructure:"refill_rate" json:"refill_rate,omitempty" yaml:"refill_rate,omitempty"`
	Capacity         int           `mapstructure:"capacity" json:"capacity,omitempty" yaml:"capacity,omitempty"`
}

// DefaultConfig allows 60 requests per minute with no token bucket.
func DefaultConfig() Config {
	return Config{
		MaxRequests:      60,
		Window:           time.Minute,
		TokensPerRequest: 1,
		RefillRate:       1,
	}
}

func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.MaxRequests <= 0 {
		c.MaxRequests = d.MaxRequests
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.TokensPerRequest <= 0 {
		c.TokensPerRequest = d.TokensPerRequest
	}
	if c.RefillRate <= 0 {
		c.RefillRate = d.RefillRate
	}
	if c.MaxTokens > 0 && c.Capacity <= 0 {
		c.Capacity = c.MaxTokens
	}
	return c
}

// Stats is a point-in-time view of a limiter.
type Stats struct {
	MaxRequests         int      `json:"max_requests"`
	RequestsInWindow    int      `json:"requests_in_window"`
	WindowSeconds       float64  `json:"window_seconds"`
	TimeUntilNextWindow float64  `json:"time_until_next_window"`
	Tokens              *float64 `json:"tokens,omitempty"`
	MaxTokens           int      `json:"max_tokens,omitempty"`
	TokenRefillRate     float64  `json:"token_refill_rate,omitempty"`
	TokensPerRequest    int      `json:"tokens_per_request,omitempty"`
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithLogger sets the logger used to report refusals at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// Limiter is safe for concurrent use.
type Limiter struct {
	cfg    Config
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	requests []time.Time
	bucket   *rate.Limiter
}

// New creates a limiter from cfg, filling unset fields from DefaultConfig.
func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		cfg:    cfg.normalize(),
		now:    time.Now,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.cfg.MaxTokens > 0 {
		now := l.now()
		l.bucket = rate.NewLimiter(rate.Limit(l.cfg.RefillRate), l.cfg.Capacity)
		l.bucket.SetLimitAt(now, rate.Limit(l.cfg.RefillRate))
		// The bucket starts at MaxTokens, which may be below its capacity.
		if drain := l.cfg.Capacity - l.cfg.MaxTokens; drain > 0 {
			l.bucket.AllowN(now, drain)
		}
	}
	return l
}

// Config returns the effective configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}

// cleanup drops requests older than the window. Caller holds mu.
func (l *Limiter) cleanup(now time.Time) {
	i := 0
	for i < len(l.requests) && now.Sub(l.requests[i]) > l.cfg.Window {
		i++
	}
	if i > 0 {
		l.requests = append(l.requests[:0], l.requests[i:]...)
	}
}

// Allow records a request and reports whether it is within the limits.
func (l *Limiter) Allow() bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.cleanup(now)

	if len(l.requests) >= l.cfg.MaxRequests {
		l.logger.Debug("request refused", "reason", "window", "in_window", len(l.requests))
		return false
	}
	if l.bucket != nil && !l.bucket.AllowN(now, l.cfg.TokensPerRequest) {
		l.logger.Debug("request refused", "reason", "tokens")
		return false
	}
	l.requests = append(l.requests, now)
	return true
}

// WaitTime returns how long until the next request would be allowed.
func (l *Limiter) WaitTime() time.Duration {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.cleanup(now)

	var wait time.Duration
	if len(l.requests) >= l.cfg.MaxRequests && len(l.requests) > 0 {
		wait = l.cfg.Window - now.Sub(l.requests[0])
	}
	if l.bucket != nil {
		tokens := l.bucket.TokensAt(now)
		if need := float64(l.cfg.TokensPerRequest) - tokens; need > 0 {
			secs := need / l.cfg.RefillRate
			wait = max(wait, time.Duration(math.Ceil(secs*float64(time.Second))))
		}
	}
	return max(wait, 0)
}

// Wait blocks until a request is allowed or ctx ends.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}
		d := max(l.WaitTime(), minPoll)
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrRateLimited, ctx.Err())
		case <-timer.C:
		}
	}
}

// Acquire is Wait reported as a bool. Bound it with a context deadline;
// use Allow for a non-blocking attempt.
func (l *Limiter) Acquire(ctx context.Context) bool {
	return l.Wait(ctx) == nil
}

// Release forgets the most recent request, e.g. when the guarded call was
// cancelled before doing any work. Tokens already spent are not returned.
func (l *Limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.requests); n > 0 {
		l.requests = l.requests[:n-1]
	}
}

// Stats reports current usage.
func (l *Limiter) Stats() Stats {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.cleanup(now)

	s := Stats{
		MaxRequests:      l.cfg.MaxRequests,
		RequestsInWindow: len(l.requests),
		WindowSeconds:    l.cfg.Window.Seconds(),
	}
	if len(l.requests) > 0 {
		s.TimeUntilNextWindow = max(0, (l.cfg.Window - now.Sub(l.requests[0])).Seconds())
	}
	if l.bucket != nil {
		tokens := l.bucket.TokensAt(now)
		s.Tokens = &tokens
		s.MaxTokens = l.cfg.Capacity
		s.TokenRefillRate = l.cfg.RefillRate
		s.TokensPerRequest = l.cfg.TokensPerRequest
	}
	return s
}
