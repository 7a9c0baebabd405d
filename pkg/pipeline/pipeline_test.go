package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/audiopipeline/pkg/audio"
	"github.com/xaionaro-go/audiopipeline/pkg/engine"
)

// orderEngine records the order of engine calls.
type orderEngine struct {
	calls     []string
	delayCode engine.Code
	cfg       engine.Config
}

var _ engine.Engine = (*orderEngine)(nil)

func (m *orderEngine) Initialize(ctx context.Context) engine.Code {
	return engine.CodeNoError
}

func (m *orderEngine) ApplyConfig(ctx context.Context, cfg engine.Config) engine.Code {
	m.cfg = cfg
	return engine.CodeNoError
}

func (m *orderEngine) GetConfig() engine.Config {
	return m.cfg
}

func (m *orderEngine) ProcessStream(ctx context.Context, src []int16, inDesc, outDesc audio.StreamDescriptor, dst []int16) engine.Code {
	m.calls = append(m.calls, "forward")
	copy(dst, src)
	return engine.CodeNoError
}

func (m *orderEngine) ProcessReverseStream(ctx context.Context, src []int16, inDesc, outDesc audio.StreamDescriptor, dst []int16) engine.Code {
	m.calls = append(m.calls, "reverse")
	copy(dst, src)
	return engine.CodeNoError
}

func (m *orderEngine) SetStreamDelayMS(delayMS int) engine.Code {
	m.calls = append(m.calls, "delay")
	return m.delayCode
}

func (m *orderEngine) SetStreamAnalogLevel(level int) engine.Code {
	m.calls = append(m.calls, "level")
	return engine.CodeNoError
}

func (m *orderEngine) RecommendedStreamAnalogLevel() int {
	return 128
}

func (m *orderEngine) Close() error {
	return nil
}

func newTestPipeline(t *testing.T, eng engine.Engine) *Pipeline {
	t.Helper()
	cfg := engine.Config{}
	desc := audio.StreamDescriptor{SampleRate: 32000, Channels: 1}
	p, err := New(context.Background(), eng, cfg, desc, audio.DefaultBlockDuration)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, p.Close()) })
	return p
}

func frame(p *Pipeline) []int16 {
	return make([]int16, p.FrameSize())
}

func TestPipelineOrdering(t *testing.T) {
	ctx := context.Background()

	t.Run("ReverseBeforeForward", func(t *testing.T) {
		m := &orderEngine{}
		p := newTestPipeline(t, m)

		enhanced, _, err := p.ProcessTick(ctx, frame(p), frame(p), 40, NoAnalogLevel)
		require.NoError(t, err)
		require.Len(t, enhanced, p.FrameSize())
		assert.Equal(t, []string{"delay", "reverse", "forward"}, m.calls)
		assert.Equal(t, uint64(1), p.Tick())
	})

	t.Run("ForwardFirstFails", func(t *testing.T) {
		m := &orderEngine{}
		p := newTestPipeline(t, m)

		_, _, err := p.PushForward(ctx, frame(p), NoAnalogLevel)
		require.Error(t, err)
		var seqErr SequencingError
		require.ErrorAs(t, err, &seqErr)
		assert.Equal(t, uint64(0), seqErr.Tick)
		assert.Empty(t, m.calls)
	})

	t.Run("DoubleReverseFails", func(t *testing.T) {
		m := &orderEngine{}
		p := newTestPipeline(t, m)

		require.NoError(t, p.PushReverse(ctx, frame(p), 0))
		err := p.PushReverse(ctx, frame(p), 0)
		require.Error(t, err)
		assert.ErrorAs(t, err, &SequencingError{})
	})

	t.Run("TickRecoversAfterSequencingError", func(t *testing.T) {
		m := &orderEngine{}
		p := newTestPipeline(t, m)

		_, _, err := p.PushForward(ctx, frame(p), NoAnalogLevel)
		require.Error(t, err)

		_, _, err = p.ProcessTick(ctx, frame(p), frame(p), 0, NoAnalogLevel)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), p.Tick())
	})
}

func TestPipelineStreamDelay(t *testing.T) {
	ctx := context.Background()

	t.Run("ForwardedOnlyOnChange", func(t *testing.T) {
		m := &orderEngine{}
		p := newTestPipeline(t, m)

		for i := 0; i < 3; i++ {
			_, _, err := p.ProcessTick(ctx, frame(p), frame(p), 40, NoAnalogLevel)
			require.NoError(t, err)
		}
		_, _, err := p.ProcessTick(ctx, frame(p), frame(p), 60, NoAnalogLevel)
		require.NoError(t, err)

		delayCalls := 0
		for _, call := range m.calls {
			if call == "delay" {
				delayCalls++
			}
		}
		assert.Equal(t, 2, delayCalls)
	})

	t.Run("ClampWarningIsNotFatal", func(t *testing.T) {
		m := &orderEngine{delayCode: engine.CodeBadStreamParameterWarning}
		p := newTestPipeline(t, m)

		_, _, err := p.ProcessTick(ctx, frame(p), frame(p), 1500, NoAnalogLevel)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), p.Tick())
	})
}

func TestPipelineAnalogLevel(t *testing.T) {
	ctx := context.Background()
	m := &orderEngine{}
	p := newTestPipeline(t, m)

	_, _, err := p.ProcessTick(ctx, frame(p), frame(p), 0, 100)
	require.NoError(t, err)
	assert.Contains(t, m.calls, "level")

	m.calls = nil
	_, recommended, err := p.ProcessTick(ctx, frame(p), frame(p), 0, NoAnalogLevel)
	require.NoError(t, err)
	assert.NotContains(t, m.calls, "level")
	assert.Equal(t, 128, recommended)
}

func TestPipelineInvalidDescriptor(t *testing.T) {
	_, err := New(
		context.Background(),
		&orderEngine{},
		engine.Config{},
		audio.StreamDescriptor{SampleRate: -1, Channels: 1},
		audio.DefaultBlockDuration,
	)
	require.Error(t, err)
}
