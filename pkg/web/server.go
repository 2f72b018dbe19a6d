// Package web is the operator control surface: a small JSON API for
// interrupting, switching modes and directing speech and motion, plus a
// websocket pushing live status.
package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/actions"
	"github.com/teslashibe/go-g1/pkg/hub"
	"github.com/teslashibe/go-g1/pkg/journal"
	"github.com/teslashibe/go-g1/pkg/orchestrator"
)

// DefaultStatusInterval is how often status is sampled for websocket push.
const DefaultStatusInterval = 200 * time.Millisecond

// Controller is the part of the event loop the control surface drives.
type Controller interface {
	Submit(cmd orchestrator.Command) error
	StopAll(ctx context.Context)
	SetMode(m orchestrator.Mode)
	Status() orchestrator.Status
}

// History lists recent turns. Optional.
type History interface {
	Recent(ctx context.Context, n int) ([]journal.Turn, error)
}

// Config holds server configuration.
type Config struct {
	Addr           string
	StaticDir      string
	AudioDir       string
	StatusInterval time.Duration
	Catalog        actions.Catalog
	History        History
	Logger         *slog.Logger
}

// Server is the control surface.
type Server struct {
	app       *fiber.App
	cfg       Config
	ctrl      Controller
	statusHub *hub.Hub
	logger    *slog.Logger
}

// NewServer builds the fiber app and routes.
func NewServer(cfg Config, ctrl Controller) *Server {
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultStatusInterval
	}
	if cfg.Catalog == nil {
		cfg.Catalog = actions.DefaultCatalog
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Component("web")
	}
	s := &Server{
		cfg:       cfg,
		ctrl:      ctrl,
		statusHub: hub.New("status", cfg.Logger),
		logger:    cfg.Logger,
	}

	app := fiber.New(fiber.Config{
		AppName:               "g1 control",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	} else {
		app.Get("/", s.handleIndex)
	}

	api := app.Group("/api")
	api.Post("/interrupt", s.handleInterrupt)
	api.Post("/set_mode", s.handleSetMode)
	api.Get("/status", s.handleStatus)
	api.Get("/actions", s.handleActions)
	api.Get("/turns", s.handleTurns)

	director := api.Group("/director")
	director.Post("/speak", s.handleSpeak)
	director.Post("/action", s.handleAction)
	director.Post("/play", s.handlePlay)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.statusHub.Serve))

	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// StatusHub returns the status broadcast hub.
func (s *Server) StatusHub() *hub.Hub {
	return s.statusHub
}

// Start runs the hub and status watcher and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.watch(ctx)
	go func() {
		<-ctx.Done()
		_ = s.app.Shutdown()
	}()

	s.logger.Info("control surface listening", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

// watch samples the controller and broadcasts status whenever it changes.
func (s *Server) watch(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	var (
		last orchestrator.Status
		sent bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.ctrl.Status()
			if sent && st == last {
				continue
			}
			if err := s.statusHub.BroadcastJSON(st); err != nil {
				s.logger.Warn("encode status", "error", err)
				continue
			}
			last, sent = st, true
		}
	}
}
