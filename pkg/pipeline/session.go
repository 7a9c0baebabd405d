package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audiopipeline/pkg/audio"
	"github.com/xaionaro-go/audiopipeline/pkg/engine"
	"github.com/xaionaro-go/audiopipeline/pkg/framer"
)

// SessionStats summarizes one finished session.
type SessionStats struct {
	Ticks           uint64
	SamplesWritten  uint64
	LastAnalogLevel int
	EndedByReverse  bool
	EndedByForward  bool
}

// Run drives a whole two-stream session tick by tick: one reverse frame,
// one forward frame, one enhanced output frame per tick. The session
// terminates as soon as either stream ends; continuing with a single
// stream active is disallowed.
//
// When the engine runs the analog gain controller in adaptive mode, the
// recommended level of each tick is fed back as the analog level of the
// next one. Cancellation is checked at frame boundaries only.
func (p *Pipeline) Run(
	ctx context.Context,
	reverse, forward *framer.Framer,
	output io.Writer,
	streamDelayMS int,
	analogLevel int,
) (_ SessionStats, _err error) {
	logger.Debugf(ctx, "Run: delay:%dms analogLevel:%d", streamDelayMS, analogLevel)
	defer func() { logger.Debugf(ctx, "/Run: %v", _err) }()

	stats := SessionStats{LastAnalogLevel: analogLevel}
	adaptiveAnalog := false
	if cfg := p.Config(); cfg.GainController1.Enabled && cfg.GainController1.Mode == engine.GainControllerAdaptiveAnalog {
		adaptiveAnalog = true
		if analogLevel == NoAnalogLevel {
			stats.LastAnalogLevel = p.enhancer.RecommendedStreamAnalogLevel()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		reverseFrame, err := reverse.Next(ctx)
		if err == io.EOF {
			stats.EndedByReverse = true
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("unable to read the reverse stream: %w", err)
		}

		forwardFrame, err := forward.Next(ctx)
		if err == io.EOF {
			stats.EndedByForward = true
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("unable to read the forward stream: %w", err)
		}

		level := NoAnalogLevel
		if adaptiveAnalog {
			level = stats.LastAnalogLevel
		}
		enhanced, recommended, err := p.ProcessTick(ctx, reverseFrame, forwardFrame, streamDelayMS, level)
		if err != nil {
			return stats, err
		}
		if adaptiveAnalog {
			stats.LastAnalogLevel = recommended
		}

		if _, err := output.Write(audio.SamplesToBytes(enhanced)); err != nil {
			return stats, fmt.Errorf("unable to write the enhanced frame of tick %d: %w", p.tick-1, err)
		}
		stats.Ticks++
		stats.SamplesWritten += uint64(len(enhanced))
	}
}
