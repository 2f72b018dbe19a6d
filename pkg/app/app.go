// Package app wires the orchestrator process together: transport, language
// model, speech queue, recognizer, idle scheduler, journal, event loop and
// control surface.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/teslashibe/go-g1/internal/config"
	"github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/actions"
	"github.com/teslashibe/go-g1/pkg/brain"
	"github.com/teslashibe/go-g1/pkg/ears"
	"github.com/teslashibe/go-g1/pkg/idle"
	"github.com/teslashibe/go-g1/pkg/interrupt"
	"github.com/teslashibe/go-g1/pkg/journal"
	"github.com/teslashibe/go-g1/pkg/llm"
	"github.com/teslashibe/go-g1/pkg/orchestrator"
	"github.com/teslashibe/go-g1/pkg/robot"
	"github.com/teslashibe/go-g1/pkg/speech"
	"github.com/teslashibe/go-g1/pkg/web"
)

// App is the orchestrator process.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	transport robot.Transport
	model     llm.Completer
	speech    *speech.Queue
	thinker   *brain.Thinker
	buffer    *ears.Buffer
	stream    *ears.Stream
	journal   *journal.Journal
	loop      *orchestrator.Loop
	web       *web.Server
}

// Option customizes construction, mainly for tests.
type Option func(*App)

// WithTransport replaces the HTTP transport to the executor.
func WithTransport(t robot.Transport) Option {
	return func(a *App) { a.transport = t }
}

// WithModel replaces the OpenAI-compatible client.
func WithModel(m llm.Completer) Option {
	return func(a *App) { a.model = m }
}

// New validates cfg and builds every component. Nothing runs until Run.
func New(cfg config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, logger: log.Component("app")}
	for _, opt := range opts {
		opt(a)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if a.model == nil {
		if err := cfg.ValidateOrchestrator(); err != nil {
			return nil, err
		}
		m, err := llm.New(llm.Config{
			BaseURL:    cfg.LLM.BaseURL,
			APIKey:     cfg.LLM.APIKey,
			Model:      cfg.LLM.Model,
			Timeout:    cfg.LLM.Timeout,
			MaxRetries: 1,
		})
		if err != nil {
			return nil, fmt.Errorf("llm: %w", err)
		}
		a.model = m
	}
	if a.transport == nil {
		a.transport = robot.NewHTTPTransport(cfg.Robot.ServerURL, nil)
	}
	if err := actions.DefaultCatalog.Validate(); err != nil {
		return nil, fmt.Errorf("intent catalog: %w", err)
	}

	sig := interrupt.New(cfg.Speech.PollInterval)
	a.speech = speech.New(a.transport, sig, speech.WithEstimate(cfg.Speech.PerChar, cfg.Speech.Base))

	topts := []brain.Option{
		brain.WithHistory(cfg.LLM.HistoryItems),
		brain.WithCallTimeout(cfg.LLM.Timeout),
	}
	if cfg.LLM.StreamReplies {
		topts = append(topts, brain.WithStreaming(a.speech.Enqueue))
	}
	a.thinker = brain.New(a.model, topts...)

	var sched *idle.Scheduler
	if cfg.Idle.Enabled {
		sched = idle.New(a.thinker, idle.WithBounds(cfg.Idle.Min, cfg.Idle.Max))
	}

	a.buffer = ears.NewBuffer(cfg.Ears.BufferSize)
	if cfg.Ears.URL != "" {
		a.stream = ears.NewStream(ears.StreamConfig{URL: cfg.Ears.URL, Header: http.Header{}}, a.buffer)
	}

	// Interface fields stay nil unless a journal is configured.
	var (
		rec  journal.Recorder
		hist web.History
	)
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
		a.journal = j
		rec, hist = j, j
	}

	mode, err := orchestrator.ParseMode(cfg.Loop.Mode)
	if err != nil {
		return nil, err
	}
	a.loop, err = orchestrator.New(orchestrator.Config{
		TickInterval:      cfg.Loop.TickInterval,
		CommandQueue:      cfg.Loop.CommandQueue,
		ActionWorkers:     cfg.Loop.ActionWorkers,
		ActionQueue:       cfg.Loop.ActionQueue,
		Mode:              mode,
		InterruptKeywords: cfg.InterruptKeywords,
		WakeWords:         cfg.Wake.Words,
		WakeAck:           cfg.Wake.Ack,
		WakeWindow:        cfg.Wake.Window,
	}, orchestrator.Deps{
		Shared:    orchestrator.Shared{Interrupt: sig, Idle: sched},
		Transport: a.transport,
		Speech:    a.speech,
		Thinker:   a.thinker,
		Ears:      a.buffer,
		Journal:   rec,
	})
	if err != nil {
		return nil, err
	}

	a.web = web.NewServer(web.Config{
		Addr:      cfg.Web.Addr,
		StaticDir: cfg.Web.StaticDir,
		AudioDir:  cfg.Web.AudioDir,
		History:   hist,
	}, a.loop)
	return a, nil
}

// Loop returns the event loop.
func (a *App) Loop() *orchestrator.Loop {
	return a.loop
}

// Buffer returns the recognition buffer; callers without a streaming
// recognizer can push transcripts into it directly.
func (a *App) Buffer() *ears.Buffer {
	return a.buffer
}

// Run starts every background component and blocks in the event loop until
// ctx is done.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("orchestrator starting",
		"robot", a.cfg.Robot.ServerURL,
		"model", a.cfg.LLM.Model,
		"mode", a.cfg.Loop.Mode,
		"asr", a.cfg.Ears.URL != "",
		"journal", a.cfg.Journal.Path != "",
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.speech.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := a.web.Start(ctx); err != nil {
			a.logger.Error("control surface stopped", "error", err)
		}
	}()
	if a.stream != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = a.stream.Run(ctx)
		}()
	}

	err := a.loop.Run(ctx)
	wg.Wait()
	return err
}

// Shutdown releases resources held after Run returns.
func (a *App) Shutdown() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("close journal", "error", err)
		}
	}
	a.logger.Info("goodbye")
}
