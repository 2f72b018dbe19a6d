// Package playback owns the robot's speaker on the executor side.
//
// Every stop request and every new playback bumps a generation counter.
// Playback tasks capture the generation when scheduled and re-check it under
// the audio lock before, and while, streaming. A task whose generation is no
// longer current exits without producing sound, so a stop can never be
// undone by a task that was already queued.
package playback

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/device"
)

// Streaming defaults. 3200 bytes is 100ms of 16 kHz mono PCM16; pacing
// slightly faster than real time keeps the robot's buffer full.
const (
	DefaultChunkSize = 3200
	DefaultPace      = 80 * time.Millisecond

	// WAVApp is the app channel used for uploaded WAV playback.
	WAVApp = "server_play"
)

// DefaultStopChannels are the app channels halted on preemption. The set of
// valid names differs between firmware versions; halting unknown channels is
// harmless.
var DefaultStopChannels = []string{WAVApp, "voice", "tts", "audio_tts", "vui", "audio", "server_tts"}

// Config holds player configuration.
type Config struct {
	Channels  []string
	ChunkSize int
	Pace      time.Duration
	SpeakerID int
	Logger    *slog.Logger
}

// Option configures a Player.
type Option func(*Config)

// WithStopChannels sets the app channels halted on preemption.
func WithStopChannels(names []string) Option {
	return func(c *Config) { c.Channels = names }
}

// WithChunking sets the stream chunk size and inter-chunk delay.
func WithChunking(size int, pace time.Duration) Option {
	return func(c *Config) {
		c.ChunkSize = size
		c.Pace = pace
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Player serializes audio output and implements generation-based preemption.
type Player struct {
	audio  device.Audio
	cfg    Config
	logger *slog.Logger

	gen     atomic.Uint64
	audioMu sync.Mutex // held while the device renders audio
	schedMu sync.Mutex // makes preempt+snapshot atomic across Schedule calls

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a player for the given audio client.
func New(audio device.Audio, opts ...Option) *Player {
	cfg := Config{
		Channels:  DefaultStopChannels,
		ChunkSize: DefaultChunkSize,
		Pace:      DefaultPace,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Component("playback")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Player{
		audio:  audio,
		cfg:    cfg,
		logger: cfg.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Generation returns the current audio generation.
func (p *Player) Generation() uint64 {
	return p.gen.Load()
}

// Preempt invalidates every scheduled or in-flight playback and issues
// best-effort halt calls. It never blocks on the audio lock.
func (p *Player) Preempt(ctx context.Context) uint64 {
	g := p.gen.Add(1)
	p.halt(ctx)
	return g
}

// Stop is Preempt for the /cmd/stop path.
func (p *Player) Stop(ctx context.Context) {
	g := p.Preempt(ctx)
	p.logger.Info("audio stopped", "generation", g)
}

func (p *Player) halt(ctx context.Context) {
	// Take the lock if it is free to avoid racing a starting stream; if a
	// stream holds it, halt anyway.
	if p.audioMu.TryLock() {
		defer p.audioMu.Unlock()
	}

	if h, ok := p.audio.(device.Halter); ok {
		for _, m := range h.HaltMethods() {
			if err := m.Call(ctx); err != nil {
				p.logger.Debug("halt method failed", "method", m.Name, "error", err)
			}
		}
	}
	for _, app := range p.cfg.Channels {
		if err := p.audio.PlayStop(ctx, app); err != nil {
			p.logger.Debug("PlayStop failed", "app", app, "error", err)
		}
	}
}

// Speak synthesizes text under the audio lock.
func (p *Player) Speak(ctx context.Context, text string) error {
	p.audioMu.Lock()
	defer p.audioMu.Unlock()
	return p.audio.TtsMaker(ctx, text, p.cfg.SpeakerID)
}

// Schedule preempts current audio and starts streaming pcm in the background.
// It returns the generation the task belongs to.
func (p *Player) Schedule(pcm []byte) uint64 {
	p.schedMu.Lock()
	defer p.schedMu.Unlock()

	p.Preempt(p.ctx)
	g := p.gen.Load()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.render(g, pcm)
	}()
	return g
}

func (p *Player) render(g uint64, pcm []byte) {
	p.audioMu.Lock()
	defer p.audioMu.Unlock()

	if g != p.gen.Load() {
		p.logger.Debug("stale playback skipped", "generation", g)
		return
	}

	streamID := strconv.FormatUint(g, 10)
	p.logger.Info("playback started", "generation", g, "bytes", len(pcm))

	for off := 0; off < len(pcm); off += p.cfg.ChunkSize {
		if g != p.gen.Load() {
			p.logger.Info("playback preempted", "generation", g, "offset", off)
			return
		}
		end := min(off+p.cfg.ChunkSize, len(pcm))
		if err := p.audio.PlayStream(p.ctx, WAVApp, streamID, pcm[off:end]); err != nil {
			p.logger.Warn("PlayStream failed", "error", err)
			return
		}
		if p.cfg.Pace > 0 {
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(p.cfg.Pace):
			}
		}
	}
	p.logger.Info("playback finished", "generation", g)
}

// Wait blocks until every scheduled playback task has exited.
func (p *Player) Wait() {
	p.wg.Wait()
}

// Close cancels in-flight playback and waits for it to exit.
func (p *Player) Close() {
	p.cancel()
	p.wg.Wait()
}
