package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-g1/pkg/actions"
)

// Kind identifies a command variant.
type Kind string

const (
	KindSpeak Kind = "speak"
	KindAct   Kind = "act"
	KindPlay  Kind = "play"
)

// Command is an externally issued instruction. Commands bypass the Thinker
// and always take priority over recognized speech.
type Command struct {
	ID     uuid.UUID
	Kind   Kind
	Text   string
	Action actions.Descriptor
	Path   string
	At     time.Time
}

// Speak builds a speak command.
func Speak(text string) Command {
	return Command{ID: uuid.New(), Kind: KindSpeak, Text: text, At: time.Now()}
}

// Act builds an action command.
func Act(desc actions.Descriptor) Command {
	return Command{ID: uuid.New(), Kind: KindAct, Action: desc, At: time.Now()}
}

// Play builds a command uploading a local WAV file to the executor.
func Play(path string) Command {
	return Command{ID: uuid.New(), Kind: KindPlay, Path: path, At: time.Now()}
}

func (c Command) String() string {
	switch c.Kind {
	case KindSpeak:
		return fmt.Sprintf("speak(%q)", c.Text)
	case KindAct:
		return "act(" + c.Action.String() + ")"
	case KindPlay:
		return "play(" + c.Path + ")"
	}
	return string(c.Kind)
}

// Mode selects whether recognized speech and idle behavior are processed.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeDirector Mode = "director"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAuto:
		return ModeAuto, nil
	case ModeDirector:
		return ModeDirector, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}
