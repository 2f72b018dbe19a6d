package ears

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-g1/internal/log"
)

func TestBufferFIFO(t *testing.T) {
	b := NewBuffer(4)
	b.Push("你 好")
	b.Push("  ")
	b.Push("再 见 ")

	u, ok := b.Next()
	if !ok || u.Text != "你好" {
		t.Fatalf("first: %+v %v", u, ok)
	}
	if u.ID.String() == "" || u.At.IsZero() {
		t.Error("utterance not stamped")
	}
	if u, _ := b.Next(); u.Text != "再见" {
		t.Errorf("second: %q", u.Text)
	}
	if _, ok := b.Next(); ok {
		t.Error("empty buffer returned an utterance")
	}
}

func TestBufferDropsOldest(t *testing.T) {
	b := NewBuffer(2)
	for _, s := range []string{"一", "二", "三"} {
		b.Push(s)
	}
	if b.Len() != 2 || b.Dropped() != 1 {
		t.Fatalf("len=%d dropped=%d", b.Len(), b.Dropped())
	}
	if u, _ := b.Next(); u.Text != "二" {
		t.Errorf("oldest kept: %q", u.Text)
	}
}

func TestBufferClear(t *testing.T) {
	b := NewBuffer(4)
	b.Push("a")
	b.Push("b")
	b.Clear()
	if b.Len() != 0 {
		t.Errorf("len after clear: %d", b.Len())
	}
}

func TestStreamPushesFinalFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(Frame{Text: "你 好", Final: false})
		_ = conn.WriteJSON(Frame{Text: "你 好 呀", Final: true})
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteJSON(Frame{Text: " ", Final: true})
		// Hold the connection until the client goes away.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	buf := NewBuffer(8)
	s := NewStream(StreamConfig{
		URL:    "ws" + strings.TrimPrefix(srv.URL, "http"),
		Logger: log.Discard(),
	}, buf)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for buf.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// Allow trailing frames to arrive.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if buf.Len() != 1 {
		t.Fatalf("buffered %d utterances, want 1", buf.Len())
	}
	if u, _ := buf.Next(); u.Text != "你好呀" {
		t.Errorf("text: %q", u.Text)
	}
}

func TestStreamReconnects(t *testing.T) {
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := conns.Add(1)
		_ = conn.WriteJSON(Frame{Text: "第" + string(rune('0'+n)) + "次", Final: true})
		conn.Close()
	}))
	defer srv.Close()

	buf := NewBuffer(8)
	s := NewStream(StreamConfig{
		URL:        "ws" + strings.TrimPrefix(srv.URL, "http"),
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 20 * time.Millisecond,
		Logger:     log.Discard(),
	}, buf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for conns.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if conns.Load() < 2 {
		t.Fatalf("connections: %d, want reconnect", conns.Load())
	}
}
