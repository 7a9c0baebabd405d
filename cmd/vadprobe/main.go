package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/audiopipeline/pkg/audio"
	"github.com/xaionaro-go/audiopipeline/pkg/engine"
	"github.com/xaionaro-go/audiopipeline/pkg/framer"
	"github.com/xaionaro-go/audiopipeline/pkg/vad"
	"github.com/xaionaro-go/audiopipeline/pkg/vad/implementations"
)

func main() {
	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	rateFlag := pflag.Int("rate", int(audio.DefaultSampleRate), "sample rate of the input stream, Hz")
	channelsFlag := pflag.Int("channels", int(audio.DefaultChannels), "amount of channels of the input stream")
	fvadModeFlag := pflag.Int("fvad-mode", 1, "libfvad aggressiveness (0-3); ignored when built without tag 'fvad'")
	tailFlag := pflag.String("tail", "pad", "what to do with a final short block: 'drop' or 'pad'")
	pflag.Parse()

	if pflag.NArg() != 1 {
		panic(fmt.Errorf("expected exactly one argument: <input-file>"))
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	tailPolicy, err := framer.ParseTailPolicy(*tailFlag)
	assertNoError(err)

	descriptor := audio.StreamDescriptor{
		SampleRate: audio.SampleRate(*rateFlag),
		Channels:   audio.Channel(*channelsFlag),
	}

	input, err := os.Open(pflag.Arg(0))
	assertNoError(err)
	defer input.Close()

	frames, err := framer.New(input, descriptor, engine.BlockDuration, tailPolicy)
	assertNoError(err)

	aggregator, err := vad.NewAggregator(implementations.NewClassifierAuto(ctx, *fvadModeFlag))
	assertNoError(err)
	defer func() {
		assertNoError(aggregator.Close())
	}()

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	fmt.Fprintln(w, "chunk,probability,rms")

	for chunkIdx := 0; ; chunkIdx++ {
		frame, err := frames.Next(ctx)
		if err == io.EOF {
			break
		}
		assertNoError(err)

		probability, err := aggregator.ProcessChunk(ctx, downmix(frame, descriptor.Channels), descriptor.SampleRate)
		assertNoError(err)

		rmsSeries := aggregator.ChunkwiseRMS()
		fmt.Fprintf(w, "%d,%.6f,%.6f\n", chunkIdx, probability, rmsSeries[len(rmsSeries)-1])
	}

	logger.Infof(ctx, "last voice probability: %v", aggregator.LastProbability())
}

// downmix averages interleaved samples down to mono; the classifiers
// consume a single lane.
func downmix(frame []int16, channels audio.Channel) []int16 {
	if channels <= 1 {
		return frame
	}
	mono := make([]int16, len(frame)/int(channels))
	for i := range mono {
		var sum int
		for c := 0; c < int(channels); c++ {
			sum += int(frame[i*int(channels)+c])
		}
		mono[i] = int16(sum / int(channels))
	}
	return mono
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
