package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/interrupt"
)

type spoken struct {
	text string
	at   time.Time
}

type recordingSpeaker struct {
	mu    sync.Mutex
	calls []spoken
	err   error
}

func (r *recordingSpeaker) Speak(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, spoken{text: text, at: time.Now()})
	return r.err
}

func (r *recordingSpeaker) Calls() []spoken {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]spoken, len(r.calls))
	copy(out, r.calls)
	return out
}

func newTestQueue(sp Speaker, poll time.Duration) (*Queue, *interrupt.Signal) {
	sig := interrupt.New(poll)
	q := New(sp, sig, WithEstimate(time.Millisecond, 20*time.Millisecond), WithLogger(log.Discard()))
	return q, sig
}

func waitIdle(t *testing.T, q *Queue, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for q.IsSpeaking() {
		if time.Now().After(deadline) {
			t.Fatalf("queue still speaking after %v", timeout)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestEstimateDuration(t *testing.T) {
	if got := EstimateDuration("你好"); got != 1600*time.Millisecond {
		t.Errorf("runes must be counted, not bytes: got %v", got)
	}
	if got := EstimateDuration(""); got != time.Second {
		t.Errorf("empty text: got %v", got)
	}
}

func TestFIFOWithSingleWaitEach(t *testing.T) {
	sp := &recordingSpeaker{}
	q, _ := newTestQueue(sp, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	texts := []string{"one", "two", "three"}
	for _, s := range texts {
		q.Enqueue(s)
	}
	if !q.IsSpeaking() {
		t.Fatal("expected speaking right after enqueue")
	}
	waitIdle(t, q, 2*time.Second)

	calls := sp.Calls()
	if len(calls) != len(texts) {
		t.Fatalf("got %d calls, want %d", len(calls), len(texts))
	}
	for i, c := range calls {
		if c.text != texts[i] {
			t.Errorf("call %d: got %q, want %q", i, c.text, texts[i])
		}
		if i > 0 {
			gap := c.at.Sub(calls[i-1].at)
			if want := q.Estimate(calls[i-1].text); gap < want {
				t.Errorf("item %d started %v after previous, want >= %v", i, gap, want)
			}
		}
	}
}

func TestStopAllEndsSpeakingWithinOnePoll(t *testing.T) {
	sp := &recordingSpeaker{}
	sig := interrupt.New(10 * time.Millisecond)
	q := New(sp, sig, WithEstimate(100*time.Millisecond, time.Second), WithLogger(log.Discard()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Enqueue("a long sentence that takes several seconds")
	q.Enqueue("never spoken")
	for len(sp.Calls()) == 0 {
		time.Sleep(time.Millisecond)
	}

	q.StopAll()
	if !sig.IsSet() {
		t.Error("StopAll must raise the interrupt latch")
	}
	if q.Len() != 0 {
		t.Errorf("queue not cleared: %d items", q.Len())
	}
	waitIdle(t, q, 8*sig.PollInterval())

	if n := len(sp.Calls()); n != 1 {
		t.Errorf("got %d calls, want 1", n)
	}
}

func TestStaleEpochDiscarded(t *testing.T) {
	sp := &recordingSpeaker{}
	q, sig := newTestQueue(sp, 5*time.Millisecond)

	q.Enqueue("before stop")
	sig.Raise()
	sig.Clear()
	q.Enqueue("after stop")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)
	waitIdle(t, q, time.Second)

	calls := sp.Calls()
	if len(calls) != 1 || calls[0].text != "after stop" {
		t.Errorf("expected only the post-stop item, got %+v", calls)
	}
}

func TestSpeakErrorSkipsWait(t *testing.T) {
	sp := &recordingSpeaker{err: errors.New("connection refused")}
	sig := interrupt.New(5 * time.Millisecond)
	q := New(sp, sig, WithEstimate(time.Second, time.Second), WithLogger(log.Discard()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Enqueue("x")
	q.Enqueue("y")
	waitIdle(t, q, 500*time.Millisecond)
	if n := len(sp.Calls()); n != 2 {
		t.Errorf("got %d calls, want 2", n)
	}
}

func TestEmptyTextIgnored(t *testing.T) {
	q, _ := newTestQueue(&recordingSpeaker{}, 5*time.Millisecond)
	q.Enqueue("")
	if q.IsSpeaking() || q.Len() != 0 {
		t.Error("empty text should not be queued")
	}
}
