// Package config loads go-g1 configuration from YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Default configuration values.
const (
	DefaultRobotServerURL = "http://192.168.1.72:6000"
	DefaultLLMBaseURL     = "https://api.openai.com/v1"
	DefaultLLMModel       = "gpt-4o"
	DefaultWebAddr        = ":5000"
	DefaultExecutorAddr   = ":6000"
	DefaultAudioDir       = "audio"
)

// DefaultInterruptKeywords stop everything when heard in an utterance.
var DefaultInterruptKeywords = []string{"停止", "停下", "别说了", "闭嘴", "安静", "stop", "shut up", "be quiet"}

// DefaultStopChannels are the audio app names halted on preemption.
// The valid names vary between robot firmware versions, so this is a guess list.
var DefaultStopChannels = []string{"server_play", "voice", "tts", "audio_tts", "vui", "audio", "server_tts"}

// Config holds all configuration for both the orchestrator and the executor.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Robot    RobotConfig    `yaml:"robot"`
	LLM      LLMConfig      `yaml:"llm"`
	Speech   SpeechConfig   `yaml:"speech"`
	Idle     IdleConfig     `yaml:"idle"`
	Loop     LoopConfig     `yaml:"loop"`
	Ears     EarsConfig     `yaml:"ears"`
	Web      WebConfig      `yaml:"web"`
	Executor ExecutorConfig `yaml:"executor"`
	Journal  JournalConfig  `yaml:"journal"`
	Wake     WakeConfig     `yaml:"wake"`

	// InterruptKeywords trigger a full stop when contained in an utterance.
	InterruptKeywords []string `yaml:"interrupt_keywords"`
}

// RobotConfig points the orchestrator at the executor.
type RobotConfig struct {
	ServerURL string `yaml:"server_url"`
}

// LLMConfig configures the OpenAI-compatible language model endpoint.
type LLMConfig struct {
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	Timeout       time.Duration `yaml:"timeout"`
	HistoryItems  int           `yaml:"history_items"`
	StreamReplies bool          `yaml:"stream_replies"`
}

// SpeechConfig tunes the speaking-duration estimate and interrupt polling.
type SpeechConfig struct {
	PerChar      time.Duration `yaml:"per_char"`
	Base         time.Duration `yaml:"base"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// IdleConfig bounds the randomized idle threshold.
type IdleConfig struct {
	Enabled bool          `yaml:"enabled"`
	Min     time.Duration `yaml:"min"`
	Max     time.Duration `yaml:"max"`
}

// LoopConfig tunes the event loop and its action pool.
type LoopConfig struct {
	TickInterval  time.Duration `yaml:"tick_interval"`
	CommandQueue  int           `yaml:"command_queue"`
	ActionWorkers int           `yaml:"action_workers"`
	ActionQueue   int           `yaml:"action_queue"`
	Mode          string        `yaml:"mode"`
}

// EarsConfig configures the streaming recognizer client.
type EarsConfig struct {
	URL        string `yaml:"url"`
	BufferSize int    `yaml:"buffer_size"`
}

// WebConfig configures the control surface.
type WebConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
	// AudioDir confines /api/director/play paths; empty disables playback by path.
	AudioDir string `yaml:"audio_dir"`
}

// ExecutorConfig configures the robot-side command server.
type ExecutorConfig struct {
	Addr         string        `yaml:"addr"`
	UploadDir    string        `yaml:"upload_dir"`
	StopChannels []string      `yaml:"stop_channels"`
	ReleaseDelay time.Duration `yaml:"release_delay"`
	Volume       int           `yaml:"volume"`
}

// WakeConfig gates conversation behind a wake word. No words means always listening.
type WakeConfig struct {
	Words  []string      `yaml:"words"`
	Ack    string        `yaml:"ack"`
	Window time.Duration `yaml:"window"`
}

// JournalConfig enables the sqlite turn journal when Path is set.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		LogLevel: "info",
		Robot:    RobotConfig{ServerURL: DefaultRobotServerURL},
		LLM: LLMConfig{
			BaseURL:      DefaultLLMBaseURL,
			Model:        DefaultLLMModel,
			Timeout:      8 * time.Second,
			HistoryItems: 10,
		},
		Speech: SpeechConfig{
			PerChar:      300 * time.Millisecond,
			Base:         time.Second,
			PollInterval: 100 * time.Millisecond,
		},
		Idle: IdleConfig{
			Enabled: true,
			Min:     20 * time.Second,
			Max:     40 * time.Second,
		},
		Loop: LoopConfig{
			TickInterval:  20 * time.Millisecond,
			CommandQueue:  64,
			ActionWorkers: 2,
			ActionQueue:   16,
			Mode:          "auto",
		},
		Ears: EarsConfig{BufferSize: 32},
		Web:  WebConfig{Addr: DefaultWebAddr, AudioDir: DefaultAudioDir},
		Executor: ExecutorConfig{
			Addr:         DefaultExecutorAddr,
			UploadDir:    "server_uploads",
			StopChannels: append([]string(nil), DefaultStopChannels...),
			ReleaseDelay: 2 * time.Second,
			Volume:       100,
		},
		Wake:              WakeConfig{Ack: "我在", Window: 10 * time.Second},
		InterruptKeywords: append([]string(nil), DefaultInterruptKeywords...),
	}
}

// Load reads an optional .env file and an optional YAML file, then applies
// environment overrides. An empty path skips the YAML step.
func Load(path string) (Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.LoadEnv()
	return cfg, nil
}

// LoadEnv applies environment variable overrides.
func (c *Config) LoadEnv() {
	if v := os.Getenv("ROBOT_SERVER_URL"); v != "" {
		c.Robot.ServerURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("ASR_URL"); v != "" {
		c.Ears.URL = v
	}
	if v := os.Getenv("G1_JOURNAL"); v != "" {
		c.Journal.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("WAKE_WORDS"); v != "" {
		c.Wake.Words = splitList(v)
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the settings shared by both processes.
func (c *Config) Validate() error {
	if c.Loop.TickInterval <= 0 || c.Loop.TickInterval >= 50*time.Millisecond {
		return &ConfigError{Field: "loop.tick_interval", Message: "tick interval must be between 0 and 50ms"}
	}
	if c.Loop.ActionWorkers < 1 {
		return &ConfigError{Field: "loop.action_workers", Message: "at least one action worker is required"}
	}
	if c.Idle.Min <= 0 || c.Idle.Max < c.Idle.Min {
		return &ConfigError{Field: "idle", Message: "idle bounds must satisfy 0 < min <= max"}
	}
	if c.Speech.PollInterval <= 0 {
		return &ConfigError{Field: "speech.poll_interval", Message: "poll interval must be positive"}
	}
	switch strings.ToLower(c.Loop.Mode) {
	case "auto", "director":
	default:
		return &ConfigError{Field: "loop.mode", Message: "mode must be auto or director"}
	}
	if len(c.Wake.Words) > 0 && c.Wake.Window <= 0 {
		return &ConfigError{Field: "wake.window", Message: "wake window must be positive when wake words are set"}
	}
	return nil
}

// ValidateOrchestrator checks settings needed only by `g1 run`.
func (c *Config) ValidateOrchestrator() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Robot.ServerURL == "" {
		return &ConfigError{Field: "robot.server_url", Message: "ROBOT_SERVER_URL is required"}
	}
	if c.LLM.APIKey == "" {
		return &ConfigError{Field: "llm.api_key", Message: "OPENAI_API_KEY environment variable is required"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Field + ": " + e.Message
}

// IsConfigError reports whether err is a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
