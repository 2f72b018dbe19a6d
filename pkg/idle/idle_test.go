package idle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/actions"
	"github.com/teslashibe/go-g1/pkg/brain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type suggesterFunc func(ctx context.Context) brain.Suggestion

func (f suggesterFunc) Idle(ctx context.Context) brain.Suggestion { return f(ctx) }

func silent() Suggester {
	return suggesterFunc(func(context.Context) brain.Suggestion { return brain.Suggestion{} })
}

func newScheduler(s Suggester, clock *fakeClock, rnd func(int64) int64) *Scheduler {
	return New(s,
		WithBounds(20*time.Second, 40*time.Second),
		WithClock(clock.Now),
		WithRand(rnd),
		WithLogger(log.Discard()),
	)
}

func TestNeverFiresEarly(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := newScheduler(silent(), clock, func(n int64) int64 { return int64(5 * time.Second) })

	if got := s.Threshold(); got != 25*time.Second {
		t.Fatalf("threshold %v, want 25s", got)
	}
	if s.Due(clock.Advance(24*time.Second + 999*time.Millisecond)) {
		t.Error("due before threshold")
	}
	if !s.Due(clock.Advance(time.Millisecond)) {
		t.Error("not due at threshold")
	}
}

func TestTouchResetsWithoutRedraw(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	draws := 0
	s := newScheduler(silent(), clock, func(n int64) int64 {
		draws++
		return 0
	})

	s.Touch(clock.Advance(19 * time.Second))
	if s.Due(clock.Advance(19 * time.Second)) {
		t.Error("due too soon after Touch")
	}
	if draws != 1 {
		t.Errorf("Touch redrew the threshold (%d draws)", draws)
	}
}

func TestFireAlwaysResets(t *testing.T) {
	tests := []struct {
		name string
		sug  brain.Suggestion
		ok   bool
	}{
		{"empty suggestion", brain.Suggestion{}, false},
		{"text only", brain.Suggestion{Text: "你还在吗？"}, true},
		{"action only", brain.Suggestion{Intent: &actions.Intent{ID: 4, Group: actions.GroupArm, Name: "high wave"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(1000, 0)}
			next := []int64{0, int64(10 * time.Second)}
			s := newScheduler(suggesterFunc(func(context.Context) brain.Suggestion { return tt.sug }), clock, func(n int64) int64 {
				v := next[0]
				next = next[1:]
				return v
			})

			now := clock.Advance(20 * time.Second)
			if !s.Due(now) {
				t.Fatal("expected due")
			}
			_, ok := s.Fire(context.Background())
			if ok != tt.ok {
				t.Errorf("ok = %v, want %v", ok, tt.ok)
			}
			if s.Due(now) {
				t.Error("still due right after Fire")
			}
			if got := s.Threshold(); got != 30*time.Second {
				t.Errorf("threshold %v, want redraw to 30s", got)
			}
		})
	}
}

func TestThresholdWithinBounds(t *testing.T) {
	s := New(silent(), WithBounds(time.Second, 2*time.Second), WithLogger(log.Discard()))
	for i := 0; i < 200; i++ {
		s.Fire(context.Background())
		if th := s.Threshold(); th < time.Second || th > 2*time.Second {
			t.Fatalf("threshold %v out of bounds", th)
		}
	}
}
