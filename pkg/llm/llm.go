// Package llm is a thin chat-completion client for OpenAI-compatible
// endpoints.
//
// The brain only needs two calls: a blocking completion and a streamed
// completion delivered sentence by sentence, so the interface is kept to
// exactly that.
package llm

import (
	"context"
	"errors"
)

// Role defines message roles in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System, User and Assistant build messages.
func System(s string) Message    { return Message{Role: RoleSystem, Content: s} }
func User(s string) Message      { return Message{Role: RoleUser, Content: s} }
func Assistant(s string) Message { return Message{Role: RoleAssistant, Content: s} }

// Sentinel errors.
var (
	ErrNoAPIKey = errors.New("llm: API key required")
	ErrNoModel  = errors.New("llm: model required")
	ErrEmpty    = errors.New("llm: empty completion")
)

// Completer is the language model as seen by the brain.
type Completer interface {
	// Complete returns the trimmed text of one completion.
	Complete(ctx context.Context, msgs []Message, temperature float64) (string, error)

	// Stream delivers the completion one sentence at a time and returns the
	// full text once the stream ends.
	Stream(ctx context.Context, msgs []Message, temperature float64, onSentence func(string)) (string, error)
}
