package pipeline

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/audiopipeline/pkg/audio"
	"github.com/xaionaro-go/audiopipeline/pkg/engine"
	"github.com/xaionaro-go/audiopipeline/pkg/engine/implementations/passthrough"
	"github.com/xaionaro-go/audiopipeline/pkg/framer"
)

func newSessionPipeline(t *testing.T, cfg engine.Config, desc audio.StreamDescriptor) *Pipeline {
	t.Helper()
	p, err := New(context.Background(), passthrough.New(), cfg, desc, audio.DefaultBlockDuration)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, p.Close()) })
	return p
}

func newByteFramer(t *testing.T, data []byte, desc audio.StreamDescriptor) *framer.Framer {
	t.Helper()
	f, err := framer.New(bytes.NewReader(data), desc, audio.DefaultBlockDuration, framer.TailDrop)
	require.NoError(t, err)
	return f
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	desc := audio.StreamDescriptor{SampleRate: 32000, Channels: 1}
	frameBytes := desc.FrameSize(audio.DefaultBlockDuration) * audio.BytesPerSample

	t.Run("OneSecondOfSilence", func(t *testing.T) {
		p := newSessionPipeline(t, engine.Config{}, desc)

		second := make([]byte, frameBytes*100)
		var output bytes.Buffer
		stats, err := p.Run(
			ctx,
			newByteFramer(t, second, desc),
			newByteFramer(t, second, desc),
			&output,
			0,
			NoAnalogLevel,
		)
		require.NoError(t, err)

		assert.Equal(t, uint64(100), stats.Ticks)
		assert.Equal(t, uint64(32000), stats.SamplesWritten)
		assert.Equal(t, len(second), output.Len())
		// With the whole chain disabled the output is the input.
		assert.Equal(t, second, output.Bytes())
	})

	t.Run("OneSecondOfSilenceFullChain", func(t *testing.T) {
		p := newSessionPipeline(t, engine.DefaultConfig(), desc)

		second := make([]byte, frameBytes*100)
		var output bytes.Buffer
		stats, err := p.Run(
			ctx,
			newByteFramer(t, second, desc),
			newByteFramer(t, second, desc),
			&output,
			40,
			NoAnalogLevel,
		)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), stats.Ticks)
		require.Equal(t, len(second), output.Len())

		samples, err := audio.BytesToSamples(output.Bytes())
		require.NoError(t, err)
		for _, s := range samples {
			require.LessOrEqual(t, int(s), 1)
			require.GreaterOrEqual(t, int(s), -1)
		}
	})

	t.Run("ShorterReverseEndsSession", func(t *testing.T) {
		p := newSessionPipeline(t, engine.Config{}, desc)

		var output bytes.Buffer
		stats, err := p.Run(
			ctx,
			newByteFramer(t, make([]byte, frameBytes*3), desc),
			newByteFramer(t, make([]byte, frameBytes*10), desc),
			&output,
			0,
			NoAnalogLevel,
		)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), stats.Ticks)
		assert.True(t, stats.EndedByReverse)
		assert.False(t, stats.EndedByForward)
	})

	t.Run("ShorterForwardEndsSession", func(t *testing.T) {
		p := newSessionPipeline(t, engine.Config{}, desc)

		var output bytes.Buffer
		stats, err := p.Run(
			ctx,
			newByteFramer(t, make([]byte, frameBytes*10), desc),
			newByteFramer(t, make([]byte, frameBytes*3), desc),
			&output,
			0,
			NoAnalogLevel,
		)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), stats.Ticks)
		assert.True(t, stats.EndedByForward)
		assert.False(t, stats.EndedByReverse)
	})

	t.Run("AdaptiveAnalogFeedback", func(t *testing.T) {
		cfg := engine.Config{}
		cfg.GainController1.Enabled = true
		cfg.GainController1.Mode = engine.GainControllerAdaptiveAnalog
		p := newSessionPipeline(t, cfg, desc)

		var output bytes.Buffer
		stats, err := p.Run(
			ctx,
			newByteFramer(t, make([]byte, frameBytes*10), desc),
			newByteFramer(t, make([]byte, frameBytes*10), desc),
			&output,
			0,
			NoAnalogLevel,
		)
		require.NoError(t, err)
		assert.Equal(t, uint64(10), stats.Ticks)
		// Silent input keeps raising the recommended level.
		assert.Greater(t, stats.LastAnalogLevel, 128)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		p := newSessionPipeline(t, engine.Config{}, desc)

		cancelledCtx, cancel := context.WithCancel(ctx)
		cancel()

		var output bytes.Buffer
		_, err := p.Run(
			cancelledCtx,
			newByteFramer(t, make([]byte, frameBytes*10), desc),
			newByteFramer(t, make([]byte, frameBytes*10), desc),
			&output,
			0,
			NoAnalogLevel,
		)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
