// Package passthrough is a reference enhancement engine: it performs the
// full parameter validation of the real engine and only the cheapest parts
// of its signal path (high-pass filtering, fixed digital gain, analog level
// recommendation). It exists so the orchestration layer can be exercised
// without the real DSP engine linked in; it is not an echo canceller.
package passthrough

import (
	"context"
	"math"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audiopipeline/pkg/audio"
	"github.com/xaionaro-go/audiopipeline/pkg/engine"
)

const (
	maxStreamDelayMS = 500
	maxAnalogLevel   = 255

	// One-pole high-pass coefficient, good enough to strip DC and rumble
	// in a reference implementation.
	hpfAlpha = 0.995
)

type channelFilterState struct {
	prevIn  float64
	prevOut float64
}

type Engine struct {
	Locker      sync.Mutex
	ConfigValue engine.Config

	initialized         bool
	closed              bool
	streamDelayMS       int
	analogLevel         int
	analogLevelProvided bool
	recommendedLevel    int
	forwardHPF          []channelFilterState
}

var _ engine.Engine = (*Engine)(nil)

func New() *Engine {
	return &Engine{
		recommendedLevel: 128,
		analogLevel:      -1,
	}
}

func (e *Engine) Initialize(ctx context.Context) engine.Code {
	e.Locker.Lock()
	defer e.Locker.Unlock()
	if e.closed {
		return engine.CodeCreationFailed
	}
	e.initialized = true
	e.forwardHPF = nil
	e.analogLevelProvided = false
	logger.Debugf(ctx, "initialized a passthrough engine")
	return engine.CodeNoError
}

func (e *Engine) ApplyConfig(ctx context.Context, cfg engine.Config) engine.Code {
	e.Locker.Lock()
	defer e.Locker.Unlock()
	if e.closed {
		return engine.CodeCreationFailed
	}
	if cfg.GainController1.TargetLevelDBFS < 0 || cfg.GainController1.TargetLevelDBFS > 31 {
		return engine.CodeBadParameter
	}
	if cfg.GainController1.CompressionGainDB < 0 || cfg.GainController1.CompressionGainDB > 90 {
		return engine.CodeBadParameter
	}
	if cfg.NoiseSuppression.Level < engine.NoiseSuppressionLow || cfg.NoiseSuppression.Level > engine.NoiseSuppressionVeryHigh {
		return engine.CodeBadParameter
	}
	e.ConfigValue = cfg
	logger.Debugf(ctx, "applied config: %#+v", cfg)
	return engine.CodeNoError
}

func (e *Engine) GetConfig() engine.Config {
	e.Locker.Lock()
	defer e.Locker.Unlock()
	return e.ConfigValue
}

func validateStreamPair(src []int16, inDesc, outDesc audio.StreamDescriptor, dst []int16) engine.Code {
	for _, desc := range []audio.StreamDescriptor{inDesc, outDesc} {
		if desc.SampleRate <= 0 || desc.SampleRate%100 != 0 {
			return engine.CodeBadSampleRate
		}
		if desc.Channels < 1 {
			return engine.CodeBadNumberChannels
		}
	}
	// The passthrough engine does not convert between formats.
	if inDesc != outDesc {
		return engine.CodeUnsupportedFunction
	}
	if len(src) != engine.FrameSize(inDesc.SampleRate)*int(inDesc.Channels) {
		return engine.CodeBadDataLength
	}
	if len(dst) != engine.FrameSize(outDesc.SampleRate)*int(outDesc.Channels) {
		return engine.CodeBadDataLength
	}
	return engine.CodeNoError
}

func (e *Engine) ProcessStream(
	ctx context.Context,
	src []int16,
	inDesc, outDesc audio.StreamDescriptor,
	dst []int16,
) engine.Code {
	e.Locker.Lock()
	defer e.Locker.Unlock()
	if e.closed || !e.initialized {
		return engine.CodeCreationFailed
	}
	if code := validateStreamPair(src, inDesc, outDesc, dst); code != engine.CodeNoError {
		return code
	}

	cfg := e.ConfigValue
	if cfg.GainController1.Enabled &&
		cfg.GainController1.Mode == engine.GainControllerAdaptiveAnalog &&
		!e.analogLevelProvided {
		return engine.CodeStreamParameterNotSet
	}

	copy(dst, src)
	if cfg.HighPassFilter.Enabled {
		e.highPassForward(dst, inDesc.Channels)
	}
	if cfg.GainController1.Enabled && cfg.GainController1.Mode == engine.GainControllerFixedDigital {
		applyGainDB(dst, cfg.GainController1.CompressionGainDB)
	}

	e.updateRecommendedLevel(dst)
	// The analog level is a per-frame stream parameter.
	e.analogLevelProvided = false
	return engine.CodeNoError
}

func (e *Engine) ProcessReverseStream(
	ctx context.Context,
	src []int16,
	inDesc, outDesc audio.StreamDescriptor,
	dst []int16,
) engine.Code {
	e.Locker.Lock()
	defer e.Locker.Unlock()
	if e.closed || !e.initialized {
		return engine.CodeCreationFailed
	}
	if code := validateStreamPair(src, inDesc, outDesc, dst); code != engine.CodeNoError {
		return code
	}
	copy(dst, src)
	return engine.CodeNoError
}

func (e *Engine) SetStreamDelayMS(delayMS int) engine.Code {
	e.Locker.Lock()
	defer e.Locker.Unlock()
	if delayMS < 0 {
		return engine.CodeBadParameter
	}
	if delayMS > maxStreamDelayMS {
		e.streamDelayMS = maxStreamDelayMS
		return engine.CodeBadStreamParameterWarning
	}
	e.streamDelayMS = delayMS
	return engine.CodeNoError
}

func (e *Engine) StreamDelayMS() int {
	e.Locker.Lock()
	defer e.Locker.Unlock()
	return e.streamDelayMS
}

func (e *Engine) SetStreamAnalogLevel(level int) engine.Code {
	e.Locker.Lock()
	defer e.Locker.Unlock()
	if level < 0 || level > maxAnalogLevel {
		return engine.CodeBadParameter
	}
	e.analogLevel = level
	e.analogLevelProvided = true
	return engine.CodeNoError
}

func (e *Engine) RecommendedStreamAnalogLevel() int {
	e.Locker.Lock()
	defer e.Locker.Unlock()
	return e.recommendedLevel
}

func (e *Engine) Close() error {
	e.Locker.Lock()
	defer e.Locker.Unlock()
	e.closed = true
	e.forwardHPF = nil
	return nil
}

func (e *Engine) highPassForward(frame []int16, channels audio.Channel) {
	if len(e.forwardHPF) != int(channels) {
		e.forwardHPF = make([]channelFilterState, channels)
	}
	for ch := 0; ch < int(channels); ch++ {
		state := &e.forwardHPF[ch]
		for i := ch; i < len(frame); i += int(channels) {
			in := float64(frame[i])
			out := hpfAlpha * (state.prevOut + in - state.prevIn)
			state.prevIn = in
			state.prevOut = out
			frame[i] = clampSample(out)
		}
	}
}

func applyGainDB(frame []int16, gainDB int) {
	gain := math.Pow(10, float64(gainDB)/20)
	for i, s := range frame {
		frame[i] = clampSample(float64(s) * gain)
	}
}

func (e *Engine) updateRecommendedLevel(frame []int16) {
	var peak int
	for _, s := range frame {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	switch {
	case peak > math.MaxInt16*9/10:
		e.recommendedLevel -= 8
	case peak < math.MaxInt16/10:
		e.recommendedLevel += 4
	}
	if e.recommendedLevel < 0 {
		e.recommendedLevel = 0
	}
	if e.recommendedLevel > maxAnalogLevel {
		e.recommendedLevel = maxAnalogLevel
	}
}

func clampSample(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(math.Round(v))
}
