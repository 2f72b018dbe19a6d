package interrupt

import (
	"context"
	"testing"
	"time"
)

func TestRaiseClear(t *testing.T) {
	s := New(10 * time.Millisecond)
	if s.IsSet() {
		t.Fatal("new signal should be clear")
	}
	s.Raise()
	if !s.IsSet() {
		t.Error("expected set after Raise")
	}
	if s.Epoch() != 1 {
		t.Errorf("epoch: got %d, want 1", s.Epoch())
	}
	s.Clear()
	if s.IsSet() {
		t.Error("expected clear after Clear")
	}
	if s.Epoch() != 1 {
		t.Errorf("Clear must not change epoch, got %d", s.Epoch())
	}
}

func TestWaitCompletes(t *testing.T) {
	s := New(5 * time.Millisecond)
	start := time.Now()
	if !s.Wait(context.Background(), 30*time.Millisecond) {
		t.Fatal("expected full wait")
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("returned early after %v", elapsed)
	}
}

func TestWaitInterruptedWithinOnePoll(t *testing.T) {
	s := New(10 * time.Millisecond)
	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Raise()
	}()

	start := time.Now()
	if s.Wait(context.Background(), 2*time.Second) {
		t.Fatal("expected interrupted wait")
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("interrupt observed too late: %v", elapsed)
	}
}

func TestWaitAlreadySet(t *testing.T) {
	s := New(10 * time.Millisecond)
	s.Raise()
	if s.Wait(context.Background(), time.Second) {
		t.Error("wait should abort immediately when latch is set")
	}
}

func TestWaitContextCancel(t *testing.T) {
	s := New(10 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if s.Wait(ctx, time.Second) {
		t.Error("wait should abort on context cancel")
	}
}

func TestWaitSinceObservesClearedStop(t *testing.T) {
	s := New(5 * time.Millisecond)
	epoch := s.Epoch()
	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Raise()
		s.Clear()
	}()
	if s.WaitSince(context.Background(), time.Second, epoch) {
		t.Fatal("a stop raised and cleared between polls must still abort the wait")
	}
	if s.Stale(s.Epoch()) {
		t.Error("current epoch with clear latch should not be stale")
	}
}
