// Package pipelinestream exposes a two-stream enhancement pipeline as an
// io.Reader of raw S16LE PCM: every Read drains enhanced audio, pulling
// reverse and forward frames tick by tick as needed. The stream ends as
// soon as either input ends.
package pipelinestream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/iamcalledrob/circular"
	"github.com/xaionaro-go/audiopipeline/pkg/audio"
	"github.com/xaionaro-go/audiopipeline/pkg/engine"
	"github.com/xaionaro-go/audiopipeline/pkg/framer"
	"github.com/xaionaro-go/audiopipeline/pkg/pipeline"
)

type PipelineStream struct {
	pipeline       *pipeline.Pipeline
	reverse        *framer.Framer
	forward        *framer.Framer
	outputBuffer   *circular.Buffer
	streamDelayMS  int
	analogLevel    int
	adaptiveAnalog bool
	eof            bool
	readCtx        context.Context
}

var _ io.Reader = (*PipelineStream)(nil)

func New(
	ctx context.Context,
	p *pipeline.Pipeline,
	reverseReader, forwardReader io.Reader,
	tailPolicy framer.TailPolicy,
	streamDelayMS int,
) (*PipelineStream, error) {
	descriptor := p.Descriptor()
	reverse, err := framer.New(reverseReader, descriptor, engine.BlockDuration, tailPolicy)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the reverse framer: %w", err)
	}
	forward, err := framer.New(forwardReader, descriptor, engine.BlockDuration, tailPolicy)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the forward framer: %w", err)
	}

	frameBytes := p.FrameSize() * audio.BytesPerSample
	s := &PipelineStream{
		pipeline:      p,
		reverse:       reverse,
		forward:       forward,
		outputBuffer:  circular.NewBuffer(frameBytes * 2),
		streamDelayMS: streamDelayMS,
		analogLevel:   pipeline.NoAnalogLevel,
		readCtx:       ctx,
	}
	if cfg := p.Config(); cfg.GainController1.Enabled && cfg.GainController1.Mode == engine.GainControllerAdaptiveAnalog {
		s.adaptiveAnalog = true
	}
	return s, nil
}

func (s *PipelineStream) Read(p []byte) (_ret int, _err error) {
	logger.Tracef(s.readCtx, "Read, len:%d", len(p))
	defer func() { logger.Tracef(s.readCtx, "/Read, len:%d: %d, %v", len(p), _ret, _err) }()

	for {
		n, err := s.outputBuffer.Read(p)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, io.EOF) {
			return n, fmt.Errorf("unable to read from the output buffer: %w", err)
		}
		if s.eof {
			return 0, io.EOF
		}
		if err := s.processTick(); err != nil {
			return 0, err
		}
	}
}

func (s *PipelineStream) processTick() error {
	ctx := s.readCtx

	reverseFrame, err := s.reverse.Next(ctx)
	if err == io.EOF {
		s.eof = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to read the reverse stream: %w", err)
	}

	forwardFrame, err := s.forward.Next(ctx)
	if err == io.EOF {
		s.eof = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to read the forward stream: %w", err)
	}

	level := pipeline.NoAnalogLevel
	if s.adaptiveAnalog {
		if s.analogLevel == pipeline.NoAnalogLevel {
			s.analogLevel = 128
		}
		level = s.analogLevel
	}
	enhanced, recommended, err := s.pipeline.ProcessTick(ctx, reverseFrame, forwardFrame, s.streamDelayMS, level)
	if err != nil {
		return err
	}
	if s.adaptiveAnalog {
		s.analogLevel = recommended
	}

	w, err := s.outputBuffer.Write(audio.SamplesToBytes(enhanced))
	if err != nil {
		return fmt.Errorf("unable to write to the output buffer: %w", err)
	}
	if w != len(enhanced)*audio.BytesPerSample {
		return fmt.Errorf("wrote an unexpected byte count: %d != %d", w, len(enhanced)*audio.BytesPerSample)
	}
	return nil
}
