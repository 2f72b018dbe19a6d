package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-g1/internal/log"
)

// Call records one SDK invocation on a Sim.
type Call struct {
	Method string
	Arg    string
	Bytes  int
	Time   time.Time
}

// Sim is a simulated robot. Every call is logged and recorded; no hardware is
// touched. It is used by `g1 serve --sim` and as the executor's test double.
type Sim struct {
	logger *slog.Logger

	mu    sync.Mutex
	calls []Call
	fail  map[string]error
	delay map[string]time.Duration
}

// NewSim creates a simulated robot. A nil logger uses the component logger.
func NewSim(logger *slog.Logger) *Sim {
	if logger == nil {
		logger = log.Component("device.sim")
	}
	return &Sim{
		logger: logger,
		fail:   make(map[string]error),
		delay:  make(map[string]time.Duration),
	}
}

// FailWith makes method return err on every call.
func (s *Sim) FailWith(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[method] = err
}

// Slow makes method block for d before returning.
func (s *Sim) Slow(method string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay[method] = d
}

func (s *Sim) record(ctx context.Context, method, arg string, n int) error {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: method, Arg: arg, Bytes: n, Time: time.Now()})
	err := s.fail[method]
	d := s.delay[method]
	s.mu.Unlock()

	s.logger.Debug("sdk call", "method", method, "arg", arg, "bytes", n)
	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Calls returns a copy of all recorded calls.
func (s *Sim) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsTo returns the recorded calls of one method.
func (s *Sim) CallsTo(method string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears recorded calls.
func (s *Sim) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *Sim) TtsMaker(ctx context.Context, text string, speakerID int) error {
	return s.record(ctx, "TtsMaker", text, 0)
}

func (s *Sim) PlayStream(ctx context.Context, app, streamID string, pcm []byte) error {
	return s.record(ctx, "PlayStream", streamID, len(pcm))
}

func (s *Sim) PlayStop(ctx context.Context, app string) error {
	return s.record(ctx, "PlayStop", app, 0)
}

func (s *Sim) SetVolume(ctx context.Context, volume int) error {
	return s.record(ctx, "SetVolume", fmt.Sprint(volume), 0)
}

// HaltMethods exposes the TTS stop calls found on current firmware.
func (s *Sim) HaltMethods() []HaltMethod {
	return []HaltMethod{
		{Name: "TtsStop", Call: func(ctx context.Context) error { return s.record(ctx, "TtsStop", "", 0) }},
		{Name: "StopAll", Call: func(ctx context.Context) error { return s.record(ctx, "StopAll", "", 0) }},
	}
}

func (s *Sim) ExecuteAction(ctx context.Context, name string) error {
	return s.record(ctx, "ExecuteAction", name, 0)
}

func (s *Sim) Damp(ctx context.Context) error          { return s.record(ctx, "Damp", "", 0) }
func (s *Sim) Squat2StandUp(ctx context.Context) error { return s.record(ctx, "Squat2StandUp", "", 0) }
func (s *Sim) StandUp2Squat(ctx context.Context) error { return s.record(ctx, "StandUp2Squat", "", 0) }
func (s *Sim) Lie2StandUp(ctx context.Context) error   { return s.record(ctx, "Lie2StandUp", "", 0) }
func (s *Sim) LowStand(ctx context.Context) error      { return s.record(ctx, "LowStand", "", 0) }
func (s *Sim) HighStand(ctx context.Context) error     { return s.record(ctx, "HighStand", "", 0) }
func (s *Sim) ZeroTorque(ctx context.Context) error    { return s.record(ctx, "ZeroTorque", "", 0) }
func (s *Sim) ShakeHand(ctx context.Context) error     { return s.record(ctx, "ShakeHand", "", 0) }

func (s *Sim) Move(ctx context.Context, vx, vy, vyaw float64) error {
	return s.record(ctx, "Move", fmt.Sprintf("%.1f,%.1f,%.1f", vx, vy, vyaw), 0)
}

func (s *Sim) WaveHand(ctx context.Context, turn bool) error {
	return s.record(ctx, "WaveHand", fmt.Sprint(turn), 0)
}

var (
	_ Robot  = (*Sim)(nil)
	_ Halter = (*Sim)(nil)
)
