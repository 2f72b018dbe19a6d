// Package executor is the robot-side command server.
//
// It fronts the robot's audio, arm and locomotion clients with a small HTTP
// API. Audio goes through a playback.Player (generation-based preemption),
// motions through a dispatch.Dispatcher (per-group locks).
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/device"
	"github.com/teslashibe/go-g1/pkg/dispatch"
	"github.com/teslashibe/go-g1/pkg/interrupt"
	"github.com/teslashibe/go-g1/pkg/playback"
)

// Config holds executor settings.
type Config struct {
	Addr         string
	UploadDir    string
	StopChannels []string
	Volume       int
	Logger       *slog.Logger

	// Options passed through to the dispatcher, e.g. shorter timings in tests.
	DispatchOptions []dispatch.Option
	PlaybackOptions []playback.Option
}

// Server is the executor HTTP server.
type Server struct {
	app *fiber.App
	cfg Config
	dev device.Robot

	sig        *interrupt.Signal
	player     *playback.Player
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// New creates an executor in front of dev.
func New(cfg Config, dev device.Robot) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Component("executor")
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "server_uploads"
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("executor: create upload dir: %w", err)
	}

	sig := interrupt.New(interrupt.DefaultPollInterval)

	popts := []playback.Option{playback.WithLogger(cfg.Logger.With("part", "playback"))}
	if len(cfg.StopChannels) > 0 {
		popts = append(popts, playback.WithStopChannels(cfg.StopChannels))
	}
	popts = append(popts, cfg.PlaybackOptions...)

	dopts := append([]dispatch.Option{dispatch.WithLogger(cfg.Logger.With("part", "dispatch"))}, cfg.DispatchOptions...)

	s := &Server{
		cfg:        cfg,
		dev:        dev,
		sig:        sig,
		player:     playback.New(dev, popts...),
		dispatcher: dispatch.New(dev, dev, sig, dopts...),
		logger:     cfg.Logger,
	}

	app := fiber.New(fiber.Config{
		AppName:               "g1 executor",
		DisableStartupMessage: true,
		BodyLimit:             64 * 1024 * 1024,
	})
	app.Use(cors.New())

	cmd := app.Group("/cmd")
	cmd.Post("/speak", s.handleSpeak)
	cmd.Post("/play_wav", s.handlePlayWAV)
	cmd.Post("/stop", s.handleStop)
	cmd.Post("/action", s.handleAction)
	app.Get("/status", s.handleStatus)

	s.app = app
	return s, nil
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Player returns the audio player.
func (s *Server) Player() *playback.Player {
	return s.player
}

// Dispatcher returns the action dispatcher.
func (s *Server) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

// Start applies the initial volume and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.Volume > 0 {
		if err := s.dev.SetVolume(ctx, s.cfg.Volume); err != nil {
			s.logger.Warn("set volume failed", "error", err)
		}
	}
	s.logger.Info("executor listening", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown stops the server, cancels playback and waits for follow-ups.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	s.sig.Raise()
	s.player.Close()
	s.dispatcher.Wait()
	return err
}
