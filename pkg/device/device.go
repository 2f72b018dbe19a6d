// Package device defines the robot SDK surface used by the executor.
//
// The interfaces are small and segregated: the executor needs audio output,
// arm gestures and locomotion, and each is backed by a separate SDK client on
// the robot.
package device

import "context"

// Audio is the robot's audio client.
type Audio interface {
	// TtsMaker synthesizes and plays text on the robot's speaker.
	TtsMaker(ctx context.Context, text string, speakerID int) error

	// PlayStream pushes one chunk of 16 kHz mono PCM16 audio.
	PlayStream(ctx context.Context, app, streamID string, pcm []byte) error

	// PlayStop stops playback for an app channel.
	PlayStop(ctx context.Context, app string) error

	// SetVolume sets the speaker volume (0-100).
	SetVolume(ctx context.Context, volume int) error
}

// HaltMethod is a named best-effort stop call.
type HaltMethod struct {
	Name string
	Call func(ctx context.Context) error
}

// Halter is implemented by audio clients exposing dedicated TTS/voice stop
// calls. Which ones exist varies between firmware versions.
type Halter interface {
	HaltMethods() []HaltMethod
}

// Arm executes named upper-body gestures.
type Arm interface {
	ExecuteAction(ctx context.Context, name string) error
}

// Loco controls posture and walking.
type Loco interface {
	Damp(ctx context.Context) error
	Squat2StandUp(ctx context.Context) error
	StandUp2Squat(ctx context.Context) error
	Lie2StandUp(ctx context.Context) error
	Move(ctx context.Context, vx, vy, vyaw float64) error
	LowStand(ctx context.Context) error
	HighStand(ctx context.Context) error
	ZeroTorque(ctx context.Context) error
	WaveHand(ctx context.Context, turn bool) error
	ShakeHand(ctx context.Context) error
}

// Robot bundles the three clients.
type Robot interface {
	Audio
	Arm
	Loco
}
