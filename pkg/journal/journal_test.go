package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRecordAndRecent(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "turns.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	id := uuid.New()
	turns := []Turn{
		{UtteranceID: id, User: "你好", Reply: "你好呀", At: base},
		{UtteranceID: uuid.New(), User: "握手", Reply: "来", ActionName: "shake hand", At: base.Add(time.Second)},
		{Source: SourceIdle, Reply: "你还在吗？", At: base.Add(2 * time.Second)},
	}
	for _, tt := range turns {
		if err := j.Record(ctx, tt); err != nil {
			t.Fatal(err)
		}
	}

	got, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d turns, want 2", len(got))
	}
	if got[0].Source != SourceIdle || got[0].Reply != "你还在吗？" {
		t.Errorf("newest: %+v", got[0])
	}
	if got[1].ActionName != "shake hand" || got[1].Source != SourceUser {
		t.Errorf("second: %+v", got[1])
	}
	if !got[1].At.Equal(base.Add(time.Second)) {
		t.Errorf("time: %v", got[1].At)
	}

	all, _ := j.Recent(ctx, 10)
	if all[2].UtteranceID != id {
		t.Errorf("utterance id lost: %v", all[2].UtteranceID)
	}
}

func TestReopenKeepsTurns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turns.db")
	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = j.Record(context.Background(), Turn{User: "a", Reply: "b"})
	j.Close()

	j, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	got, err := j.Recent(context.Background(), 5)
	if err != nil || len(got) != 1 {
		t.Fatalf("got %d turns, err %v", len(got), err)
	}
}

func TestClosed(t *testing.T) {
	j, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	j.Close()
	if err := j.Record(context.Background(), Turn{}); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}
