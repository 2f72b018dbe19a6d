// Package speech serializes the robot's spoken output.
//
// Utterances are queued in order and consumed by a single worker. The worker
// hands each one to a Speaker, then waits for the estimated speaking time
// while polling the shared interrupt latch, so a stop takes effect within one
// poll interval even mid-utterance.
package speech

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/interrupt"
)

// Default speaking-time estimate: PerChar for every rune plus Base.
const (
	DefaultPerChar = 300 * time.Millisecond
	DefaultBase    = time.Second
)

// Speaker renders text as speech. The call returns once the request has been
// accepted; it does not wait for playback to finish.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Item is a pending utterance stamped with the interrupt epoch at enqueue time.
type Item struct {
	Text  string
	Epoch uint64
}

// Config holds queue configuration.
type Config struct {
	PerChar time.Duration
	Base    time.Duration
	Logger  *slog.Logger
}

// Option configures a Queue.
type Option func(*Config)

// WithEstimate overrides the speaking-time estimate.
func WithEstimate(perChar, base time.Duration) Option {
	return func(c *Config) {
		c.PerChar = perChar
		c.Base = base
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Queue is the ordered speech queue and its worker state.
type Queue struct {
	speaker Speaker
	sig     *interrupt.Signal
	cfg     Config
	logger  *slog.Logger

	mu    sync.Mutex
	items []Item
	busy  bool

	wake chan struct{}
}

// New creates a queue speaking through sp and observing sig.
func New(sp Speaker, sig *interrupt.Signal, opts ...Option) *Queue {
	cfg := Config{PerChar: DefaultPerChar, Base: DefaultBase}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Component("speech")
	}
	return &Queue{
		speaker: sp,
		sig:     sig,
		cfg:     cfg,
		logger:  cfg.Logger,
		wake:    make(chan struct{}, 1),
	}
}

// EstimateDuration returns how long text takes to speak under the default
// estimate.
func EstimateDuration(text string) time.Duration {
	return estimate(text, DefaultPerChar, DefaultBase)
}

func estimate(text string, perChar, base time.Duration) time.Duration {
	return time.Duration(len([]rune(text)))*perChar + base
}

// Estimate returns the speaking time this queue waits for text.
func (q *Queue) Estimate(text string) time.Duration {
	return estimate(text, q.cfg.PerChar, q.cfg.Base)
}

// Enqueue appends text and returns immediately. Empty text is ignored.
func (q *Queue) Enqueue(text string) {
	if text == "" {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, Item{Text: text, Epoch: q.sig.Epoch()})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// StopAll drops every pending item and raises the interrupt latch.
func (q *Queue) StopAll() {
	q.mu.Lock()
	dropped := len(q.items)
	q.items = nil
	q.sig.Raise()
	q.mu.Unlock()

	if dropped > 0 {
		q.logger.Info("speech queue cleared", "dropped", dropped)
	}
}

// IsSpeaking reports whether an utterance is being spoken or is pending.
func (q *Queue) IsSpeaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy || len(q.items) > 0
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Run consumes the queue until ctx is cancelled. Only one Run may be active.
func (q *Queue) Run(ctx context.Context) {
	for {
		item, ok := q.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
			}
			continue
		}
		q.speak(ctx, item)
		if ctx.Err() != nil {
			q.mu.Lock()
			q.busy = false
			q.mu.Unlock()
			return
		}
	}
}

// next pops the head of the queue. Busy is cleared only when the queue is
// found empty, so there is no gap between consecutive items.
func (q *Queue) next() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		q.busy = false
		return Item{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	q.busy = true
	return item, true
}

func (q *Queue) speak(ctx context.Context, item Item) {
	if q.sig.Stale(item.Epoch) {
		q.logger.Debug("discarding stale speech", "text", item.Text)
		return
	}

	if err := q.speaker.Speak(ctx, item.Text); err != nil {
		q.logger.Warn("speak failed", "error", err)
		return
	}

	d := q.Estimate(item.Text)
	if !q.sig.WaitSince(ctx, d, item.Epoch) {
		q.logger.Info("speech interrupted", "text", item.Text)
	}
}
