// Package orchestrator runs the robot's top-level control loop.
//
// Each tick handles at most one unit of work with strict priority: an
// external command, else one recognized utterance, else an idle check. The
// loop never blocks on recognition; every queue read is non-blocking.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/actions"
	"github.com/teslashibe/go-g1/pkg/audioio"
	"github.com/teslashibe/go-g1/pkg/brain"
	"github.com/teslashibe/go-g1/pkg/ears"
	"github.com/teslashibe/go-g1/pkg/idle"
	"github.com/teslashibe/go-g1/pkg/interrupt"
	"github.com/teslashibe/go-g1/pkg/journal"
	"github.com/teslashibe/go-g1/pkg/robot"
	"github.com/teslashibe/go-g1/pkg/speech"
)

// Sentinel errors.
var (
	ErrQueueFull   = errors.New("orchestrator: command queue full")
	ErrInvalidMode = errors.New("orchestrator: invalid mode")
	ErrEmptyText   = errors.New("orchestrator: empty text")
)

// Defaults.
const (
	DefaultTickInterval  = 20 * time.Millisecond
	DefaultCommandQueue  = 64
	DefaultActionWorkers = 2
	DefaultActionQueue   = 16
	DefaultWakeAck       = "我在"
	DefaultWakeWindow    = 10 * time.Second
)

// Thinker produces a reply and an optional intent for one utterance.
type Thinker interface {
	Think(ctx context.Context, text string) brain.Thought
}

// Shared is the state observed by every component.
type Shared struct {
	Interrupt *interrupt.Signal
	Idle      *idle.Scheduler
}

// Config holds loop configuration.
type Config struct {
	TickInterval      time.Duration
	CommandQueue      int
	ActionWorkers     int
	ActionQueue       int
	Mode              Mode
	InterruptKeywords []string

	// WakeWords gate autonomous conversation when non-empty: an utterance
	// containing one arms the loop, WakeAck is spoken, and only the next
	// utterance within WakeWindow reaches the thinker.
	WakeWords  []string
	WakeAck    string
	WakeWindow time.Duration

	Logger *slog.Logger
}

// Deps are the loop's collaborators. Idle and Journal may be nil.
type Deps struct {
	Shared    Shared
	Transport robot.Transport
	Speech    *speech.Queue
	Thinker   Thinker
	Ears      ears.Source
	Journal   journal.Recorder
}

// Status is a snapshot for the control surface.
type Status struct {
	Mode     Mode `json:"mode"`
	Speaking bool `json:"is_replying"`
	Pending  int  `json:"pending"`
	Armed    bool `json:"armed"`
}

// Loop is the event loop.
type Loop struct {
	cfg      Config
	deps     Deps
	commands chan Command
	pool     *Pool
	logger   *slog.Logger

	mu         sync.RWMutex
	mode       Mode
	armedUntil time.Time
}

// New creates a loop. Call Run to start it.
func New(cfg Config, deps Deps) (*Loop, error) {
	if deps.Transport == nil || deps.Speech == nil || deps.Shared.Interrupt == nil {
		return nil, errors.New("orchestrator: transport, speech queue and interrupt signal are required")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.CommandQueue < 1 {
		cfg.CommandQueue = DefaultCommandQueue
	}
	if cfg.ActionWorkers < 1 {
		cfg.ActionWorkers = DefaultActionWorkers
	}
	if cfg.ActionQueue < 1 {
		cfg.ActionQueue = DefaultActionQueue
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeAuto
	}
	if cfg.WakeAck == "" {
		cfg.WakeAck = DefaultWakeAck
	}
	if cfg.WakeWindow <= 0 {
		cfg.WakeWindow = DefaultWakeWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Component("loop")
	}
	return &Loop{
		cfg:      cfg,
		deps:     deps,
		commands: make(chan Command, cfg.CommandQueue),
		pool:     NewPool(cfg.ActionWorkers, cfg.ActionQueue, cfg.Logger),
		logger:   cfg.Logger,
		mode:     cfg.Mode,
	}, nil
}

// Submit queues an external command without blocking.
func (l *Loop) Submit(cmd Command) error {
	if cmd.Kind == KindSpeak && strings.TrimSpace(cmd.Text) == "" {
		return ErrEmptyText
	}
	select {
	case l.commands <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// SetMode switches between auto and director.
func (l *Loop) SetMode(m Mode) {
	l.mu.Lock()
	l.mode = m
	l.mu.Unlock()
	l.logger.Info("mode changed", "mode", m)
}

// Mode returns the current mode.
func (l *Loop) Mode() Mode {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mode
}

// Status returns a snapshot.
func (l *Loop) Status() Status {
	return Status{
		Mode:     l.Mode(),
		Speaking: l.deps.Speech.IsSpeaking(),
		Pending:  l.deps.Speech.Len() + len(l.commands) + l.pool.Pending(),
		Armed:    l.armed(time.Now()),
	}
}

func (l *Loop) armed(now time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return now.Before(l.armedUntil)
}

func (l *Loop) arm(now time.Time) {
	l.mu.Lock()
	l.armedUntil = now.Add(l.cfg.WakeWindow)
	l.mu.Unlock()
}

func (l *Loop) disarm() {
	l.mu.Lock()
	l.armedUntil = time.Time{}
	l.mu.Unlock()
}

// gate applies wake-word gating and reports whether text should be handled
// as a request.
func (l *Loop) gate(text string) bool {
	if len(l.cfg.WakeWords) == 0 {
		return true
	}
	now := time.Now()
	if l.armed(now) {
		l.disarm()
		return true
	}
	if !containsAny(text, l.cfg.WakeWords) {
		l.logger.Debug("not awake, ignoring", "text", text)
		return false
	}
	l.logger.Info("wake word heard", "text", text)
	l.touch()
	l.deps.Shared.Interrupt.Clear()
	l.deps.Speech.Enqueue(l.cfg.WakeAck)
	l.arm(now)
	return false
}

// StopAll silences and halts the robot: the speech queue, the recognition
// buffer and pending commands are dropped, the interrupt latch raised, the
// executor told to stop and the legs damped. Queued actions see the raised
// epoch and are skipped. It is safe to call from any goroutine.
func (l *Loop) StopAll(ctx context.Context) {
	l.deps.Speech.StopAll()
	if l.deps.Ears != nil {
		l.deps.Ears.Clear()
	}
	dropped := l.drainCommands()
	l.disarm()
	l.logger.Info("stop all", "dropped_commands", dropped)
	if err := l.deps.Transport.Stop(ctx); err != nil {
		l.logger.Warn("executor stop failed", "error", err)
	}
	if _, err := l.deps.Transport.Action(ctx, actions.ByID(actions.GroupLoco, actions.LocoDamp)); err != nil {
		l.logger.Warn("damp failed", "error", err)
	}
}

func (l *Loop) drainCommands() int {
	n := 0
	for {
		select {
		case <-l.commands:
			n++
		default:
			return n
		}
	}
}

// Run ticks until ctx is done, then drains the action pool.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()
	defer l.pool.Close()

	l.logger.Info("event loop started", "mode", l.Mode(), "tick", l.cfg.TickInterval)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("event loop stopped")
			return nil
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick processes at most one unit of work.
func (l *Loop) Tick(ctx context.Context) {
	select {
	case cmd := <-l.commands:
		l.guard("command", func() { l.handleCommand(ctx, cmd) })
		return
	default:
	}

	if l.Mode() != ModeAuto {
		return
	}

	if l.deps.Ears != nil {
		if u, ok := l.deps.Ears.Next(); ok {
			l.guard("utterance", func() { l.handleUtterance(ctx, u) })
			return
		}
	}

	if sc := l.deps.Shared.Idle; sc != nil && sc.Due(time.Now()) {
		l.guard("idle", func() { l.handleIdle(ctx) })
	}
}

func (l *Loop) guard(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("handler panicked", "handler", what, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

func (l *Loop) touch() {
	if sc := l.deps.Shared.Idle; sc != nil {
		sc.Touch(time.Now())
	}
}

func (l *Loop) handleCommand(ctx context.Context, cmd Command) {
	l.touch()
	// Anything heard while the robot was talking is most likely itself.
	if l.deps.Ears != nil && l.deps.Speech.IsSpeaking() {
		l.deps.Ears.Clear()
	}
	l.deps.Shared.Interrupt.Clear()
	l.logger.Info("command", "id", cmd.ID, "cmd", cmd.String())

	switch cmd.Kind {
	case KindSpeak:
		l.deps.Speech.Enqueue(cmd.Text)
	case KindAct:
		l.dispatch(cmd.Action)
	case KindPlay:
		path := cmd.Path
		epoch := l.deps.Shared.Interrupt.Epoch()
		l.pool.Submit(cmd.String(), func(ctx context.Context) {
			if l.deps.Shared.Interrupt.Stale(epoch) {
				l.logger.Info("play cancelled by stop", "path", path)
				return
			}
			if err := l.play(ctx, path); err != nil {
				l.logger.Warn("play failed", "path", path, "error", err)
			}
		})
	default:
		l.logger.Warn("unknown command", "kind", cmd.Kind)
	}
}

func (l *Loop) handleUtterance(ctx context.Context, u ears.Utterance) {
	if l.deps.Speech.IsSpeaking() {
		l.logger.Debug("dropping self-echo", "text", u.Text)
		return
	}
	if l.isInterrupt(u.Text) {
		l.logger.Info("interrupt keyword heard", "text", u.Text)
		l.StopAll(ctx)
		return
	}
	if l.deps.Thinker == nil || !l.gate(u.Text) {
		return
	}

	l.touch()
	l.deps.Shared.Interrupt.Clear()
	epoch := l.deps.Shared.Interrupt.Epoch()

	th := l.deps.Thinker.Think(ctx, u.Text)
	if l.deps.Shared.Interrupt.Stale(epoch) {
		l.logger.Info("interrupted while thinking, dropping result", "text", u.Text)
		return
	}

	if th.Reply != "" && !th.Streamed {
		l.deps.Speech.Enqueue(th.Reply)
	}
	name := ""
	if th.Intent != nil {
		name = th.Intent.Name
		l.dispatch(th.Intent.Descriptor())
	}
	l.record(ctx, journal.Turn{
		UtteranceID: u.ID,
		Source:      journal.SourceUser,
		User:        u.Text,
		Reply:       th.Reply,
		ActionName:  name,
		At:          u.At,
	})
}

func (l *Loop) handleIdle(ctx context.Context) {
	sug, ok := l.deps.Shared.Idle.Fire(ctx)
	if !ok {
		return
	}
	l.deps.Shared.Interrupt.Clear()
	if sug.Text != "" {
		l.deps.Speech.Enqueue(sug.Text)
	}
	name := ""
	if sug.Intent != nil {
		name = sug.Intent.Name
		l.dispatch(sug.Intent.Descriptor())
	}
	l.record(ctx, journal.Turn{Source: journal.SourceIdle, Reply: sug.Text, ActionName: name, At: time.Now()})
}

func (l *Loop) isInterrupt(text string) bool {
	return containsAny(text, l.cfg.InterruptKeywords)
}

func containsAny(text string, words []string) bool {
	lower := strings.ToLower(text)
	for _, w := range words {
		if w != "" && strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// dispatch queues desc on the action pool. The job is skipped if a stop
// arrives before a worker picks it up.
func (l *Loop) dispatch(desc actions.Descriptor) {
	epoch := l.deps.Shared.Interrupt.Epoch()
	l.pool.Submit("act("+desc.String()+")", func(ctx context.Context) {
		if l.deps.Shared.Interrupt.Stale(epoch) {
			l.logger.Info("action cancelled by stop", "action", desc.String())
			return
		}
		r, err := l.deps.Transport.Action(ctx, desc)
		if err != nil {
			l.logger.Warn("action failed", "action", desc.String(), "error", err)
			return
		}
		l.logger.Debug("action done", "group", r.Group, "name", r.Name)
	})
}

func (l *Loop) play(ctx context.Context, path string) error {
	w, err := audioio.ReadWAVFile(path)
	if err != nil {
		return err
	}
	if !w.IsRobotFormat() {
		w = audioio.ToRobotFormat(w)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".wav"
	if err := l.deps.Transport.UploadAudio(ctx, name, audioio.Encode(w)); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

func (l *Loop) record(ctx context.Context, t journal.Turn) {
	if l.deps.Journal == nil {
		return
	}
	if err := l.deps.Journal.Record(ctx, t); err != nil {
		l.logger.Warn("journal write failed", "error", err)
	}
}
