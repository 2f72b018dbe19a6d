package ears

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-g1/internal/log"
)

// Reconnect backoff bounds.
const (
	DefaultMinBackoff = 500 * time.Millisecond
	DefaultMaxBackoff = 10 * time.Second
)

// Frame is one recognizer message.
type Frame struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// StreamConfig configures a Stream.
type StreamConfig struct {
	URL        string
	Header     http.Header
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Logger     *slog.Logger
}

// Stream reads transcripts from a streaming recognizer gateway over a
// websocket and feeds final ones into a Buffer.
type Stream struct {
	cfg    StreamConfig
	buf    *Buffer
	logger *slog.Logger
	dialer websocket.Dialer
}

// NewStream creates a recognizer client writing into buf.
func NewStream(cfg StreamConfig, buf *Buffer) *Stream {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = DefaultMinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Component("ears")
	}
	return &Stream{
		cfg:    cfg,
		buf:    buf,
		logger: cfg.Logger,
		dialer: websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Run connects and reads until ctx is done, reconnecting with exponential
// backoff whenever the connection drops.
func (s *Stream) Run(ctx context.Context) error {
	backoff := s.cfg.MinBackoff
	for {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = s.cfg.MinBackoff
		}
		s.logger.Warn("recognizer disconnected", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.cfg.MaxBackoff {
			backoff = s.cfg.MaxBackoff
		}
	}
}

// session runs one connection. connected reports whether the dial succeeded.
func (s *Stream) session(ctx context.Context) (connected bool, err error) {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, s.cfg.Header)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	defer conn.Close()
	s.logger.Info("recognizer connected", "url", s.cfg.URL)

	// Unblock ReadMessage on shutdown.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.logger.Debug("bad recognizer frame", "error", err)
			continue
		}
		if !f.Final {
			continue
		}
		if s.buf.Push(f.Text) {
			s.logger.Info("heard", "text", Normalize(f.Text))
		}
	}
}
