// Command realtimeecho runs the enhancement pipeline on live audio: it
// captures from the default input device, treats its own playback as the
// reverse stream and plays the enhanced signal back on the default output
// device.
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/gordonklaus/portaudio"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/audiopipeline/pkg/audio"
	"github.com/xaionaro-go/audiopipeline/pkg/engine"
	"github.com/xaionaro-go/audiopipeline/pkg/engine/implementations/passthrough"
	"github.com/xaionaro-go/audiopipeline/pkg/pipeline"
	"github.com/xaionaro-go/observability"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	rateFlag := pflag.Int("rate", int(audio.DefaultSampleRate), "sample rate of the capture and playback streams, Hz")
	channelsFlag := pflag.Int("channels", int(audio.DefaultChannels), "amount of channels of the capture and playback streams")
	streamDelayFlag := pflag.Int("stream-delay-ms", 0, "playback-to-echo delay to report to the engine, milliseconds")
	configFlag := pflag.String("config", "", "path to a YAML engine config")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *netPprofAddr != "" {
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	cfg := engine.DefaultConfig()
	var err error
	if *configFlag != "" {
		cfg, err = engine.LoadConfig(*configFlag)
		assertNoError(err)
	}

	descriptor := audio.StreamDescriptor{
		SampleRate: audio.SampleRate(*rateFlag),
		Channels:   audio.Channel(*channelsFlag),
	}
	assertNoError(descriptor.Validate())
	frameSamples := descriptor.FrameSize(engine.BlockDuration)
	framesPerBuffer := engine.FrameSize(descriptor.SampleRate)

	p, err := pipeline.New(ctx, passthrough.New(), cfg, descriptor, engine.BlockDuration)
	assertNoError(err)
	defer func() {
		assertNoError(p.Close())
	}()

	assertNoError(portaudio.Initialize())
	defer portaudio.Terminate()

	captureBuf := make([]int16, frameSamples)
	playbackBuf := make([]int16, frameSamples)
	logger.Tracef(ctx, "portaudio.OpenDefaultStream")
	stream, err := portaudio.OpenDefaultStream(
		int(descriptor.Channels),
		int(descriptor.Channels),
		float64(descriptor.SampleRate),
		framesPerBuffer,
		captureBuf,
		playbackBuf,
	)
	logger.Tracef(ctx, "/portaudio.OpenDefaultStream: %v", err)
	assertNoError(err)
	defer stream.Close()

	assertNoError(stream.Start())
	defer stream.Abort()

	logger.Infof(ctx, "started (%v, %d samples per block)", descriptor, frameSamples)

	adaptiveAnalog := cfg.GainController1.Enabled && cfg.GainController1.Mode == engine.GainControllerAdaptiveAnalog
	analogLevel := pipeline.NoAnalogLevel
	if adaptiveAnalog {
		analogLevel = 128
	}

	// Until the first enhanced block the playback is silence, so a zero
	// reverse frame for tick 0 is exact.
	reverseFrame := make([]int16, frameSamples)
	for {
		select {
		case <-ctx.Done():
			logger.Infof(ctx, "stopping after %d ticks", p.Tick())
			return
		default:
		}

		if err := stream.Read(); err != nil {
			assertNoError(fmt.Errorf("unable to read from the capture stream: %w", err))
		}

		enhanced, recommended, err := p.ProcessTick(ctx, reverseFrame, captureBuf, *streamDelayFlag, analogLevel)
		assertNoError(err)
		if adaptiveAnalog {
			analogLevel = recommended
		}

		copy(playbackBuf, enhanced)
		copy(reverseFrame, enhanced)
		if err := stream.Write(); err != nil {
			assertNoError(fmt.Errorf("unable to write to the playback stream: %w", err))
		}
	}
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
