// Package idle decides when the robot should break a silence.
package idle

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/brain"
)

// Default threshold bounds.
const (
	DefaultMin = 20 * time.Second
	DefaultMax = 40 * time.Second
)

// Suggester proposes something to say when nobody is talking.
type Suggester interface {
	Idle(ctx context.Context) brain.Suggestion
}

// Config holds scheduler configuration.
type Config struct {
	Min    time.Duration
	Max    time.Duration
	Now    func() time.Time
	Rand   func(n int64) int64
	Logger *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Config)

// WithBounds sets the range the threshold is drawn from.
func WithBounds(lo, hi time.Duration) Option {
	return func(c *Config) {
		c.Min = lo
		c.Max = hi
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Config) { c.Now = now }
}

// WithRand injects the random source. fn(n) must return a value in [0, n).
func WithRand(fn func(n int64) int64) Option {
	return func(c *Config) { c.Rand = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Scheduler tracks the last interaction and a randomized quiet threshold.
type Scheduler struct {
	suggester Suggester
	cfg       Config
	logger    *slog.Logger

	mu        sync.Mutex
	last      time.Time
	threshold time.Duration
}

// New creates a scheduler whose clock starts now.
func New(s Suggester, opts ...Option) *Scheduler {
	cfg := Config{
		Min:  DefaultMin,
		Max:  DefaultMax,
		Now:  time.Now,
		Rand: rand.Int64N,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Max < cfg.Min {
		cfg.Max = cfg.Min
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Component("idle")
	}
	sc := &Scheduler{suggester: s, cfg: cfg, logger: cfg.Logger}
	sc.last = cfg.Now()
	sc.threshold = sc.draw()
	return sc
}

func (s *Scheduler) draw() time.Duration {
	span := int64(s.cfg.Max - s.cfg.Min)
	if span <= 0 {
		return s.cfg.Min
	}
	return s.cfg.Min + time.Duration(s.cfg.Rand(span+1))
}

// Due reports whether the quiet period has reached the threshold.
func (s *Scheduler) Due(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.last) >= s.threshold
}

// Touch records an interaction at now. The threshold is kept.
func (s *Scheduler) Touch(now time.Time) {
	s.mu.Lock()
	s.last = now
	s.mu.Unlock()
}

// Threshold returns the current quiet threshold.
func (s *Scheduler) Threshold() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threshold
}

// Fire asks for a suggestion, then restarts the quiet period with a freshly
// drawn threshold whatever the outcome.
func (s *Scheduler) Fire(ctx context.Context) (brain.Suggestion, bool) {
	sug := s.suggester.Idle(ctx)

	s.mu.Lock()
	s.last = s.cfg.Now()
	s.threshold = s.draw()
	next := s.threshold
	s.mu.Unlock()

	s.logger.Debug("idle fired", "empty", sug.Empty(), "next", next)
	return sug, !sug.Empty()
}
