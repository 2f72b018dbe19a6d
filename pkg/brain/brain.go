// Package brain turns one recognized utterance into a reply and an optional
// physical intent, and proposes something to say when the room goes quiet.
package brain

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-g1/internal/log"
	"github.com/teslashibe/go-g1/pkg/actions"
	"github.com/teslashibe/go-g1/pkg/llm"
)

// Sampling temperatures per call.
const (
	ClassifyTemperature = 0.0
	ReplyTemperature    = 0.8
	IdleTemperature     = 1.0
)

// Defaults.
const (
	DefaultHistoryItems = 10
	DefaultCallTimeout  = 8 * time.Second
)

// ReplyPrompt is the persona used for conversational replies.
const ReplyPrompt = "你是一个Unitree G1机器人助手，性格活泼、幽默。请用口语化、简短的方式回答用户，字数控制在30字以内。"

// Thought is the outcome of thinking about one utterance.
type Thought struct {
	// Intent is nil when no physical action is implied.
	Intent *actions.Intent
	// Reply is empty when reply generation failed.
	Reply string
	// Streamed is true when Reply was already delivered sentence by sentence.
	Streamed bool
}

// Config holds Thinker configuration.
type Config struct {
	Catalog      actions.Catalog
	HistoryItems int
	CallTimeout  time.Duration
	// OnSentence, when set, receives reply sentences as they stream in.
	OnSentence func(string)
	Logger     *slog.Logger
}

// Option configures a Thinker.
type Option func(*Config)

// WithCatalog replaces the intent catalog.
func WithCatalog(c actions.Catalog) Option {
	return func(cfg *Config) { cfg.Catalog = c }
}

// WithHistory bounds the conversation window.
func WithHistory(items int) Option {
	return func(cfg *Config) { cfg.HistoryItems = items }
}

// WithCallTimeout bounds each model call.
func WithCallTimeout(d time.Duration) Option {
	return func(cfg *Config) { cfg.CallTimeout = d }
}

// WithStreaming streams reply sentences to fn as they arrive.
func WithStreaming(fn func(string)) Option {
	return func(cfg *Config) { cfg.OnSentence = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *Config) { cfg.Logger = l }
}

// Thinker runs intent classification and reply generation.
type Thinker struct {
	model    llm.Completer
	cfg      Config
	classify string
	idle     string
	logger   *slog.Logger

	mu      sync.Mutex
	history []llm.Message
}

// New creates a Thinker backed by model.
func New(model llm.Completer, opts ...Option) *Thinker {
	cfg := Config{
		Catalog:      actions.DefaultCatalog,
		HistoryItems: DefaultHistoryItems,
		CallTimeout:  DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Component("brain")
	}
	if cfg.HistoryItems < 1 {
		cfg.HistoryItems = DefaultHistoryItems
	}
	return &Thinker{
		model:    model,
		cfg:      cfg,
		classify: classifyPrompt(cfg.Catalog),
		idle:     idlePrompt(cfg.Catalog),
		logger:   cfg.Logger,
	}
}

func classifyPrompt(c actions.Catalog) string {
	return "你是一个机器人动作指令分类器。用户会输入一句话，请判断是否需要执行物理动作。\n" +
		c.PromptText() + "\n" +
		"规则：\n" +
		"1. 如果需要执行动作，请严格只返回对应的 ID 数字。\n" +
		"2. 如果不需要动作或动作不在列表中，请严格只返回 -1。\n" +
		"3. 只输出数字，不要标点。"
}

// Think classifies and answers text concurrently and returns once both calls
// have finished. Either half may fail independently.
func (t *Thinker) Think(ctx context.Context, text string) Thought {
	start := time.Now()
	history := t.History()

	var (
		wg       sync.WaitGroup
		intent   *actions.Intent
		reply    string
		streamed bool
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		intent = t.classifyIntent(ctx, text)
	}()
	go func() {
		defer wg.Done()
		reply, streamed = t.reply(ctx, history, text)
	}()
	wg.Wait()

	if reply != "" {
		t.remember(llm.User(text), llm.Assistant(reply))
	}

	name := ""
	if intent != nil {
		name = intent.Name
	}
	t.logger.Info("thought",
		"text", text,
		"intent", name,
		"reply", reply,
		"latency", time.Since(start),
	)
	return Thought{Intent: intent, Reply: reply, Streamed: streamed}
}

func (t *Thinker) classifyIntent(ctx context.Context, text string) *actions.Intent {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.CallTimeout)
	defer cancel()

	out, err := t.model.Complete(ctx, []llm.Message{llm.System(t.classify), llm.User(text)}, ClassifyTemperature)
	if err != nil {
		t.logger.Warn("classification failed", "error", err)
		return nil
	}
	id, ok := parseID(out)
	if !ok {
		t.logger.Debug("unparseable classification", "output", out)
		return nil
	}
	in, ok := t.cfg.Catalog.Get(id)
	if !ok {
		return nil
	}
	return &in
}

func (t *Thinker) reply(ctx context.Context, history []llm.Message, text string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.CallTimeout)
	defer cancel()

	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.System(ReplyPrompt))
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.User(text))

	var (
		out string
		err error
	)
	if t.cfg.OnSentence != nil {
		out, err = t.model.Stream(ctx, msgs, ReplyTemperature, t.cfg.OnSentence)
	} else {
		out, err = t.model.Complete(ctx, msgs, ReplyTemperature)
	}
	if err != nil {
		t.logger.Warn("reply failed", "error", err)
		return "", false
	}
	return strings.TrimSpace(out), t.cfg.OnSentence != nil
}

// parseID reads a bare integer, tolerating surrounding whitespace and a
// trailing period.
func parseID(s string) (int, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "。.")
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return id, true
}

// History returns a copy of the conversation window.
func (t *Thinker) History() []llm.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]llm.Message(nil), t.history...)
}

// Reset forgets the conversation.
func (t *Thinker) Reset() {
	t.mu.Lock()
	t.history = nil
	t.mu.Unlock()
}

func (t *Thinker) remember(msgs ...llm.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = append(t.history, msgs...)
	if over := len(t.history) - t.cfg.HistoryItems; over > 0 {
		t.history = append(t.history[:0:0], t.history[over:]...)
	}
}
