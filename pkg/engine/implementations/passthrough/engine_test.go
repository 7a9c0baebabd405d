package passthrough

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/audiopipeline/pkg/audio"
	"github.com/xaionaro-go/audiopipeline/pkg/engine"
)

func newInitialized(t *testing.T, cfg engine.Config) *Engine {
	t.Helper()
	ctx := context.Background()
	e := New()
	require.Equal(t, engine.CodeNoError, e.Initialize(ctx))
	require.Equal(t, engine.CodeNoError, e.ApplyConfig(ctx, cfg))
	return e
}

func disabledChainConfig() engine.Config {
	return engine.Config{}
}

func TestEngineProcessStream(t *testing.T) {
	ctx := context.Background()
	desc := audio.StreamDescriptor{SampleRate: 32000, Channels: 1}

	t.Run("PassthroughWhenChainDisabled", func(t *testing.T) {
		e := newInitialized(t, disabledChainConfig())
		defer e.Close()

		src := make([]int16, engine.FrameSize(desc.SampleRate))
		for i := range src {
			src[i] = int16(i - 160)
		}
		dst := make([]int16, len(src))
		require.Equal(t, engine.CodeNoError, e.ProcessStream(ctx, src, desc, desc, dst))
		assert.Equal(t, src, dst)
	})

	t.Run("HighPassRemovesDC", func(t *testing.T) {
		cfg := disabledChainConfig()
		cfg.HighPassFilter.Enabled = true
		e := newInitialized(t, cfg)
		defer e.Close()

		src := make([]int16, engine.FrameSize(desc.SampleRate))
		for i := range src {
			src[i] = 10000
		}
		dst := make([]int16, len(src))
		// A few frames so the filter settles.
		for i := 0; i < 10; i++ {
			require.Equal(t, engine.CodeNoError, e.ProcessStream(ctx, src, desc, desc, dst))
		}
		assert.Less(t, int(dst[len(dst)-1]), 1000)
	})

	t.Run("FixedDigitalGain", func(t *testing.T) {
		cfg := disabledChainConfig()
		cfg.GainController1.Enabled = true
		cfg.GainController1.Mode = engine.GainControllerFixedDigital
		cfg.GainController1.CompressionGainDB = 6
		e := newInitialized(t, cfg)
		defer e.Close()

		src := make([]int16, engine.FrameSize(desc.SampleRate))
		src[0] = 1000
		dst := make([]int16, len(src))
		require.Equal(t, engine.CodeNoError, e.ProcessStream(ctx, src, desc, desc, dst))
		// +6dB is a factor of ~1.995.
		assert.InDelta(t, 1995, int(dst[0]), 5)
	})

	t.Run("BadSampleRate", func(t *testing.T) {
		e := newInitialized(t, disabledChainConfig())
		defer e.Close()

		badDesc := audio.StreamDescriptor{SampleRate: 44101, Channels: 1}
		src := make([]int16, 441)
		assert.Equal(t, engine.CodeBadSampleRate, e.ProcessStream(ctx, src, badDesc, badDesc, make([]int16, 441)))
	})

	t.Run("BadDataLength", func(t *testing.T) {
		e := newInitialized(t, disabledChainConfig())
		defer e.Close()

		src := make([]int16, 100)
		assert.Equal(t, engine.CodeBadDataLength, e.ProcessStream(ctx, src, desc, desc, make([]int16, 100)))
	})

	t.Run("FormatConversionUnsupported", func(t *testing.T) {
		e := newInitialized(t, disabledChainConfig())
		defer e.Close()

		outDesc := audio.StreamDescriptor{SampleRate: 16000, Channels: 1}
		src := make([]int16, engine.FrameSize(desc.SampleRate))
		dst := make([]int16, engine.FrameSize(outDesc.SampleRate))
		assert.Equal(t, engine.CodeUnsupportedFunction, e.ProcessStream(ctx, src, desc, outDesc, dst))
	})

	t.Run("AdaptiveAnalogRequiresLevel", func(t *testing.T) {
		cfg := disabledChainConfig()
		cfg.GainController1.Enabled = true
		cfg.GainController1.Mode = engine.GainControllerAdaptiveAnalog
		e := newInitialized(t, cfg)
		defer e.Close()

		src := make([]int16, engine.FrameSize(desc.SampleRate))
		dst := make([]int16, len(src))
		assert.Equal(t, engine.CodeStreamParameterNotSet, e.ProcessStream(ctx, src, desc, desc, dst))

		require.Equal(t, engine.CodeNoError, e.SetStreamAnalogLevel(100))
		assert.Equal(t, engine.CodeNoError, e.ProcessStream(ctx, src, desc, desc, dst))
		// The level is consumed per frame, the next frame needs a fresh one.
		assert.Equal(t, engine.CodeStreamParameterNotSet, e.ProcessStream(ctx, src, desc, desc, dst))
	})

	t.Run("UninitializedFails", func(t *testing.T) {
		e := New()
		src := make([]int16, engine.FrameSize(desc.SampleRate))
		assert.Equal(t, engine.CodeCreationFailed, e.ProcessStream(ctx, src, desc, desc, make([]int16, len(src))))
	})
}

func TestEngineReverseStream(t *testing.T) {
	ctx := context.Background()
	desc := audio.StreamDescriptor{SampleRate: 32000, Channels: 1}
	e := newInitialized(t, engine.DefaultConfig())
	defer e.Close()

	src := make([]int16, engine.FrameSize(desc.SampleRate))
	for i := range src {
		src[i] = int16(i)
	}
	dst := make([]int16, len(src))
	require.Equal(t, engine.CodeNoError, e.ProcessReverseStream(ctx, src, desc, desc, dst))
	assert.Equal(t, src, dst)
}

func TestEngineStreamDelay(t *testing.T) {
	e := newInitialized(t, disabledChainConfig())
	defer e.Close()

	assert.Equal(t, engine.CodeBadParameter, e.SetStreamDelayMS(-1))

	require.Equal(t, engine.CodeNoError, e.SetStreamDelayMS(120))
	assert.Equal(t, 120, e.StreamDelayMS())

	assert.Equal(t, engine.CodeBadStreamParameterWarning, e.SetStreamDelayMS(1500))
	assert.Equal(t, 500, e.StreamDelayMS())
}

func TestEngineAnalogLevel(t *testing.T) {
	e := newInitialized(t, disabledChainConfig())
	defer e.Close()

	assert.Equal(t, engine.CodeBadParameter, e.SetStreamAnalogLevel(-1))
	assert.Equal(t, engine.CodeBadParameter, e.SetStreamAnalogLevel(256))
	assert.Equal(t, engine.CodeNoError, e.SetStreamAnalogLevel(0))
	assert.Equal(t, engine.CodeNoError, e.SetStreamAnalogLevel(255))
}

func TestEngineRecommendedLevel(t *testing.T) {
	ctx := context.Background()
	desc := audio.StreamDescriptor{SampleRate: 32000, Channels: 1}
	e := newInitialized(t, disabledChainConfig())
	defer e.Close()

	require.Equal(t, 128, e.RecommendedStreamAnalogLevel())

	// Near-silence pushes the recommendation up.
	quiet := make([]int16, engine.FrameSize(desc.SampleRate))
	dst := make([]int16, len(quiet))
	require.Equal(t, engine.CodeNoError, e.ProcessStream(ctx, quiet, desc, desc, dst))
	assert.Greater(t, e.RecommendedStreamAnalogLevel(), 128)

	// Clipping-range audio pushes it down.
	loud := make([]int16, engine.FrameSize(desc.SampleRate))
	for i := range loud {
		loud[i] = 32000
	}
	before := e.RecommendedStreamAnalogLevel()
	require.Equal(t, engine.CodeNoError, e.ProcessStream(ctx, loud, desc, desc, dst))
	assert.Less(t, e.RecommendedStreamAnalogLevel(), before)
}

func TestEngineApplyConfigValidation(t *testing.T) {
	ctx := context.Background()
	e := New()
	require.Equal(t, engine.CodeNoError, e.Initialize(ctx))
	defer e.Close()

	cfg := engine.DefaultConfig()
	cfg.GainController1.TargetLevelDBFS = 32
	assert.Equal(t, engine.CodeBadParameter, e.ApplyConfig(ctx, cfg))

	cfg = engine.DefaultConfig()
	cfg.GainController1.CompressionGainDB = 91
	assert.Equal(t, engine.CodeBadParameter, e.ApplyConfig(ctx, cfg))

	cfg = engine.DefaultConfig()
	cfg.NoiseSuppression.Level = engine.NoiseSuppressionLevel(42)
	assert.Equal(t, engine.CodeBadParameter, e.ApplyConfig(ctx, cfg))
}
