// Package robot is the orchestrator's client for the executor.
//
// The interfaces are small so consumers depend only on what they use: the
// speech queue needs a Speaker, the event loop needs the full Transport.
package robot

import (
	"context"

	"github.com/teslashibe/go-g1/pkg/actions"
)

// Speaker renders text as speech on the robot.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Stopper halts audio on the robot.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Actor runs a motion on the robot.
type Actor interface {
	Action(ctx context.Context, desc actions.Descriptor) (actions.Resolved, error)
}

// Uploader sends a 16 kHz mono WAV for playback.
type Uploader interface {
	UploadAudio(ctx context.Context, name string, wav []byte) error
}

// Transport is everything the orchestrator sends to the executor.
type Transport interface {
	Speaker
	Stopper
	Actor
	Uploader
}

var (
	_ Transport = (*HTTPTransport)(nil)
	_ Transport = (*Mock)(nil)
)
