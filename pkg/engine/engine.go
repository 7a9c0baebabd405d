// Package engine defines the contract of the external Audio Enhancement
// Engine: the opaque collaborator that implements echo cancellation, noise
// suppression, gain control and high-pass filtering. The pipeline only
// orchestrates calls into it; the DSP internals live behind this interface.
package engine

import (
	"context"
	"io"

	"github.com/xaionaro-go/audiopipeline/pkg/audio"
)

// Engine is one enhancement engine instance. Every method reports an
// engine-specific Code; the enhancer facade translates nonzero codes into
// errors without reinterpreting them.
//
// An Engine instance is exclusively owned by one pipeline; none of the
// methods are safe for concurrent use without external locking.
type Engine interface {
	io.Closer

	Initialize(ctx context.Context) Code
	ApplyConfig(ctx context.Context, cfg Config) Code
	GetConfig() Config

	// ProcessStream enhances one forward (capture) frame: src must hold
	// exactly one block of inDesc samples, dst one block of outDesc samples.
	ProcessStream(ctx context.Context, src []int16, inDesc, outDesc audio.StreamDescriptor, dst []int16) Code

	// ProcessReverseStream analyzes one reverse (playback) frame. For echo
	// cancellation the reverse frame of a tick must be pushed strictly
	// before the forward frame of the same tick.
	ProcessReverseStream(ctx context.Context, src []int16, inDesc, outDesc audio.StreamDescriptor, dst []int16) Code

	SetStreamDelayMS(delayMS int) Code
	SetStreamAnalogLevel(level int) Code
	RecommendedStreamAnalogLevel() int
}
