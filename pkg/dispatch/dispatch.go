// Package dispatch executes resolved actions on the robot.
//
// Arm and locomotion run under independent locks, so a gesture and a posture
// change may overlap but two gestures never do. Waits inside a routine poll
// the interrupt latch and are never taken while holding the other group's
// lock.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/actions"
	"github.com/teslashibe/go-g1/pkg/device"
	"github.com/teslashibe/go-g1/pkg/interrupt"
)

// ErrInterrupted is returned when a stop arrives in the middle of a routine.
var ErrInterrupted = errors.New("dispatch: routine interrupted")

// Default routine timings.
const (
	DefaultReleaseDelay = 2 * time.Second
	DefaultSettlePause  = 500 * time.Millisecond
	DefaultShakeHold    = 3 * time.Second

	// MoveSpeed is the velocity used by the move routines (m/s or rad/s).
	MoveSpeed = 0.3
)

// ExecError wraps a device failure during an action.
type ExecError struct {
	Action actions.Resolved
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("dispatch: %s/%s: %v", e.Action.Group, e.Action.Name, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Config holds dispatcher timings.
type Config struct {
	ReleaseDelay time.Duration
	SettlePause  time.Duration
	ShakeHold    time.Duration
	Logger       *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Config)

// WithTimings overrides the release delay and intra-routine pauses.
func WithTimings(release, settle, shake time.Duration) Option {
	return func(c *Config) {
		c.ReleaseDelay = release
		c.SettlePause = settle
		c.ShakeHold = shake
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Dispatcher resolves and executes action requests.
type Dispatcher struct {
	arm  device.Arm
	loco device.Loco
	sig  *interrupt.Signal
	cfg  Config

	logger *slog.Logger

	armMu  sync.Mutex
	locoMu sync.Mutex

	followUps sync.WaitGroup
}

// New creates a dispatcher. sig is the executor's interrupt latch.
func New(arm device.Arm, loco device.Loco, sig *interrupt.Signal, opts ...Option) *Dispatcher {
	cfg := Config{
		ReleaseDelay: DefaultReleaseDelay,
		SettlePause:  DefaultSettlePause,
		ShakeHold:    DefaultShakeHold,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Component("dispatch")
	}
	return &Dispatcher{
		arm:    arm,
		loco:   loco,
		sig:    sig,
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Catalog lists the actions of a group.
func (d *Dispatcher) Catalog(g actions.Group) []actions.Entry {
	return actions.List(g)
}

// Dispatch resolves desc and runs it. Resolution errors are
// *actions.ResolveError; device failures are *ExecError.
func (d *Dispatcher) Dispatch(ctx context.Context, desc actions.Descriptor) (actions.Resolved, error) {
	r, err := actions.Resolve(desc)
	if err != nil {
		return r, err
	}

	switch r.Group {
	case actions.GroupArm:
		err = d.runArm(ctx, r)
	case actions.GroupLoco:
		err = d.runLoco(ctx, r)
	}
	if err != nil {
		var re *actions.ResolveError
		switch {
		case errors.Is(err, ErrInterrupted):
			d.logger.Info("action interrupted", "action", r.Name)
			return r, err
		case errors.As(err, &re):
			return r, err
		}
		return r, &ExecError{Action: r, Err: err}
	}
	d.logger.Info("action executed", "group", r.Group, "action", r.Name, "id", r.ID)
	return r, nil
}

func (d *Dispatcher) runArm(ctx context.Context, r actions.Resolved) error {
	epoch := d.sig.Epoch()

	d.armMu.Lock()
	err := d.arm.ExecuteAction(ctx, r.Name)
	d.armMu.Unlock()
	if err != nil {
		return err
	}

	if actions.ArmReleaseAfter[r.ID] {
		d.followUps.Add(1)
		go d.release(epoch)
	}
	return nil
}

// release lowers the arms after the configured delay unless a stop arrives
// first.
func (d *Dispatcher) release(epoch uint64) {
	defer d.followUps.Done()

	if !d.sig.WaitSince(context.Background(), d.cfg.ReleaseDelay, epoch) {
		d.logger.Debug("arm release cancelled")
		return
	}

	d.armMu.Lock()
	defer d.armMu.Unlock()
	if err := d.arm.ExecuteAction(context.Background(), actions.ArmRelease); err != nil {
		d.logger.Warn("arm release failed", "error", err)
	}
}

func (d *Dispatcher) runLoco(ctx context.Context, r actions.Resolved) error {
	d.locoMu.Lock()
	defer d.locoMu.Unlock()

	epoch := d.sig.Epoch()
	pause := func(p time.Duration) error {
		if !d.sig.WaitSince(ctx, p, epoch) {
			return ErrInterrupted
		}
		return nil
	}
	l := d.loco

	switch r.ID {
	case actions.LocoDamp:
		return l.Damp(ctx)
	case actions.LocoSquatToStand:
		return sequence(
			func() error { return l.Damp(ctx) },
			func() error { return pause(d.cfg.SettlePause) },
			func() error { return l.Squat2StandUp(ctx) },
		)
	case actions.LocoStandToSquat:
		return l.StandUp2Squat(ctx)
	case actions.LocoMoveForward:
		return l.Move(ctx, MoveSpeed, 0, 0)
	case actions.LocoMoveLateral:
		return l.Move(ctx, 0, MoveSpeed, 0)
	case actions.LocoMoveRotate:
		return l.Move(ctx, 0, 0, MoveSpeed)
	case actions.LocoLowStand:
		return l.LowStand(ctx)
	case actions.LocoHighStand:
		return l.HighStand(ctx)
	case actions.LocoZeroTorque:
		return l.ZeroTorque(ctx)
	case actions.LocoWaveHand:
		return l.WaveHand(ctx, false)
	case actions.LocoWaveHandTurn:
		return l.WaveHand(ctx, true)
	case actions.LocoShakeHand:
		// The second call releases the hand.
		return sequence(
			func() error { return l.ShakeHand(ctx) },
			func() error { return pause(d.cfg.ShakeHold) },
			func() error { return l.ShakeHand(ctx) },
		)
	case actions.LocoLieToStand:
		return sequence(
			func() error { return l.Damp(ctx) },
			func() error { return pause(d.cfg.SettlePause) },
			func() error { return l.Lie2StandUp(ctx) },
		)
	}
	return &actions.ResolveError{Kind: actions.ErrUnknownID, Group: r.Group, ID: &r.ID}
}

func sequence(steps ...func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// Wait blocks until pending follow-up actions have finished or been cancelled.
func (d *Dispatcher) Wait() {
	d.followUps.Wait()
}
