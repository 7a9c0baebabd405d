// Package pipeline drives the per-tick, two-stream processing order of the
// enhancement engine: at every tick the reverse (playback) frame must reach
// the engine strictly before the paired forward (capture) frame, otherwise
// echo cancellation silently degrades. This package makes that ordering an
// enforced invariant instead of a convention.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audiopipeline/pkg/audio"
	"github.com/xaionaro-go/audiopipeline/pkg/engine"
	"github.com/xaionaro-go/audiopipeline/pkg/enhancer"
)

// SequencingError reports a violation of the reverse-before-forward
// processing order within a tick.
type SequencingError struct {
	Tick   uint64
	Reason string
}

func (e SequencingError) Error() string {
	return fmt.Sprintf("sequencing error at tick %d: %s", e.Tick, e.Reason)
}

// NoAnalogLevel marks the analog level as not supplied for a tick.
const NoAnalogLevel = -1

// Pipeline pairs reverse frame i with forward frame i and forwards the
// inter-stream delay to the engine. It is exclusively owned by a single
// caller; concurrent use requires external mutual exclusion, which this
// package deliberately does not supply.
type Pipeline struct {
	enhancer      *enhancer.Enhancer
	descriptor    audio.StreamDescriptor
	blockDuration time.Duration

	tick        uint64
	reverseDone bool
	delaySet    bool
	lastDelayMS int
}

// New builds a pipeline around its own enhancement engine instance. The
// engine is owned by the pipeline from here on and is destroyed by Close.
func New(
	ctx context.Context,
	eng engine.Engine,
	cfg engine.Config,
	descriptor audio.StreamDescriptor,
	blockDuration time.Duration,
) (*Pipeline, error) {
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}
	enh, err := enhancer.New(ctx, eng, cfg, blockDuration)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the enhancer: %w", err)
	}
	return &Pipeline{
		enhancer:      enh,
		descriptor:    descriptor,
		blockDuration: blockDuration,
	}, nil
}

func (p *Pipeline) Descriptor() audio.StreamDescriptor {
	return p.descriptor
}

// FrameSize returns the amount of samples (all channels) expected in every
// reverse and forward frame.
func (p *Pipeline) FrameSize() int {
	return p.descriptor.FrameSize(p.blockDuration)
}

// Tick returns the amount of completed ticks.
func (p *Pipeline) Tick() uint64 {
	return p.tick
}

// ApplyConfig reconfigures the engine; it affects only the frames
// processed after this call.
func (p *Pipeline) ApplyConfig(ctx context.Context, cfg engine.Config) error {
	return p.enhancer.ApplyConfig(ctx, cfg)
}

func (p *Pipeline) Config() engine.Config {
	return p.enhancer.Config()
}

// PushReverse feeds the reverse frame of the current tick, together with
// the measured or configured reverse-to-echo delay. The delay is forwarded
// to the engine only when it changes (or on the first tick): the adaptive
// filter uses it to align its analysis window.
func (p *Pipeline) PushReverse(ctx context.Context, frame []int16, streamDelayMS int) error {
	if p.reverseDone {
		return SequencingError{Tick: p.tick, Reason: "the reverse frame was already processed; a forward frame must follow"}
	}
	if !p.delaySet || streamDelayMS != p.lastDelayMS {
		if err := p.enhancer.SetStreamDelayMS(streamDelayMS); err != nil {
			var engErr *engine.Error
			if !errors.As(err, &engErr) || engErr.Code != engine.CodeBadStreamParameterWarning {
				return fmt.Errorf("unable to set the stream delay to %dms: %w", streamDelayMS, err)
			}
			// The engine clamped the delay and keeps processing.
			logger.Warnf(ctx, "the stream delay %dms was out of range and got clamped", streamDelayMS)
		}
		p.delaySet = true
		p.lastDelayMS = streamDelayMS
	}
	if _, err := p.enhancer.ProcessReverse(ctx, frame, p.descriptor, p.descriptor); err != nil {
		return fmt.Errorf("unable to process the reverse frame of tick %d: %w", p.tick, err)
	}
	p.reverseDone = true
	return nil
}

// PushForward feeds the forward frame of the current tick and completes
// the tick. It fails with a SequencingError when the paired reverse frame
// was not processed first. Pass NoAnalogLevel when no analog level reading
// is available.
//
// On failure the half-consumed tick is discarded: the next tick starts
// from a fresh reverse frame, a partial tick is never replayed.
func (p *Pipeline) PushForward(ctx context.Context, frame []int16, analogLevel int) ([]int16, int, error) {
	if !p.reverseDone {
		return nil, 0, SequencingError{Tick: p.tick, Reason: "the forward frame arrived before its paired reverse frame"}
	}
	p.reverseDone = false

	if analogLevel != NoAnalogLevel {
		if err := p.enhancer.SetStreamAnalogLevel(analogLevel); err != nil {
			return nil, 0, fmt.Errorf("unable to set the analog level to %d: %w", analogLevel, err)
		}
	}
	enhanced, err := p.enhancer.Process(ctx, frame, p.descriptor, p.descriptor)
	if err != nil {
		return nil, 0, fmt.Errorf("unable to process the forward frame of tick %d: %w", p.tick, err)
	}
	recommended := p.enhancer.RecommendedStreamAnalogLevel()
	p.tick++
	return enhanced, recommended, nil
}

// ProcessTick runs one full tick: reverse frame strictly first, then the
// forward frame. It returns the enhanced forward frame and the engine's
// recommended analog level, surfaced unchanged.
func (p *Pipeline) ProcessTick(
	ctx context.Context,
	reverseFrame, forwardFrame []int16,
	streamDelayMS int,
	analogLevel int,
) (_enhanced []int16, _recommended int, _err error) {
	logger.Tracef(ctx, "ProcessTick: tick:%d", p.tick)
	defer func() { logger.Tracef(ctx, "/ProcessTick: %v", _err) }()

	if err := p.PushReverse(ctx, reverseFrame, streamDelayMS); err != nil {
		p.reverseDone = false
		return nil, 0, err
	}
	return p.PushForward(ctx, forwardFrame, analogLevel)
}

// Close releases the pipeline's engine. The pipeline must not be used
// afterwards.
func (p *Pipeline) Close() error {
	return p.enhancer.Close()
}
