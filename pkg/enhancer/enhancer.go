// Package enhancer is the facade in front of the enhancement engine: it
// owns the engine instance, holds its configuration, and translates engine
// status codes into errors.
package enhancer

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audiopipeline/pkg/audio"
	"github.com/xaionaro-go/audiopipeline/pkg/engine"
)

// Enhancer exclusively owns its engine instance; Close is the single
// destruction point. It is not safe for concurrent use: one pipeline,
// one enhancer, one engine.
type Enhancer struct {
	engine        engine.Engine
	blockDuration time.Duration
}

// New initializes the engine and applies the initial configuration.
// A failure here is fatal to the instance: the engine is closed and the
// construction is not retried with the same configuration.
func New(
	ctx context.Context,
	eng engine.Engine,
	cfg engine.Config,
	blockDuration time.Duration,
) (*Enhancer, error) {
	if eng == nil {
		return nil, audio.ResourceError{Op: "acquire an enhancement engine", Err: fmt.Errorf("no engine instance provided")}
	}
	if blockDuration <= 0 {
		return nil, audio.ConfigurationError{Reason: fmt.Sprintf("block duration must be positive: got %v", blockDuration)}
	}

	e := &Enhancer{
		engine:        eng,
		blockDuration: blockDuration,
	}
	if code := eng.Initialize(ctx); code != engine.CodeNoError {
		_ = eng.Close()
		return nil, audio.ResourceError{Op: "initialize the enhancement engine", Err: code.Err()}
	}
	if err := e.ApplyConfig(ctx, cfg); err != nil {
		_ = eng.Close()
		return nil, fmt.Errorf("unable to apply the initial config: %w", err)
	}
	return e, nil
}

// ApplyConfig applies cfg atomically; it affects only frames processed
// after this call, never retroactively.
func (e *Enhancer) ApplyConfig(ctx context.Context, cfg engine.Config) error {
	logger.Debugf(ctx, "applying config: %#+v", cfg)
	return e.engine.ApplyConfig(ctx, cfg).Err()
}

func (e *Enhancer) Config() engine.Config {
	return e.engine.GetConfig()
}

func (e *Enhancer) BlockDuration() time.Duration {
	return e.blockDuration
}

func (e *Enhancer) checkFrame(frame []int16, desc audio.StreamDescriptor, direction string) error {
	if expected := desc.FrameSize(e.blockDuration); len(frame) != expected {
		return audio.InputShapeError{
			Reason: fmt.Sprintf("a %s frame of %v must hold %d samples: got %d", direction, desc, expected, len(frame)),
		}
	}
	return nil
}

// Process enhances one forward (capture) frame and returns a fresh output
// frame. A nonzero engine code is returned as-is wrapped into an error;
// no default output frame is substituted on failure.
func (e *Enhancer) Process(
	ctx context.Context,
	src []int16,
	inDesc, outDesc audio.StreamDescriptor,
) ([]int16, error) {
	if err := e.checkFrame(src, inDesc, "forward"); err != nil {
		return nil, err
	}
	dst := make([]int16, outDesc.FrameSize(e.blockDuration))
	if code := e.engine.ProcessStream(ctx, src, inDesc, outDesc, dst); code != engine.CodeNoError {
		return nil, code.Err()
	}
	return dst, nil
}

// ProcessReverse feeds one reverse (playback) frame to the engine for echo
// analysis and returns the (possibly transformed) reverse frame.
func (e *Enhancer) ProcessReverse(
	ctx context.Context,
	src []int16,
	inDesc, outDesc audio.StreamDescriptor,
) ([]int16, error) {
	if err := e.checkFrame(src, inDesc, "reverse"); err != nil {
		return nil, err
	}
	dst := make([]int16, outDesc.FrameSize(e.blockDuration))
	if code := e.engine.ProcessReverseStream(ctx, src, inDesc, outDesc, dst); code != engine.CodeNoError {
		return nil, code.Err()
	}
	return dst, nil
}

func (e *Enhancer) SetStreamDelayMS(delayMS int) error {
	return e.engine.SetStreamDelayMS(delayMS).Err()
}

func (e *Enhancer) SetStreamAnalogLevel(level int) error {
	return e.engine.SetStreamAnalogLevel(level).Err()
}

// RecommendedStreamAnalogLevel surfaces the engine's recommendation
// unchanged: actuators depend on the exact numeric value.
func (e *Enhancer) RecommendedStreamAnalogLevel() int {
	return e.engine.RecommendedStreamAnalogLevel()
}

// Close destroys the owned engine instance. It is the only place the
// engine is released.
func (e *Enhancer) Close() error {
	return e.engine.Close()
}
