package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/audiopipeline/pkg/audio"
	"github.com/xaionaro-go/audiopipeline/pkg/engine"
	"github.com/xaionaro-go/audiopipeline/pkg/engine/implementations/passthrough"
	"github.com/xaionaro-go/audiopipeline/pkg/framer"
	"github.com/xaionaro-go/audiopipeline/pkg/pipeline"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/observability"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	rateFlag := pflag.Int("rate", int(audio.DefaultSampleRate), "sample rate of all three streams, Hz")
	channelsFlag := pflag.Int("channels", int(audio.DefaultChannels), "amount of channels of all three streams")
	streamDelayFlag := pflag.Int("stream-delay-ms", 0, "reverse-to-echo delay to report to the engine, milliseconds")
	analogLevelFlag := pflag.Int("analog-level", pipeline.NoAnalogLevel, "initial analog mic level (0-255); -1 asks the engine for one")
	tailFlag := pflag.String("tail", "drop", "what to do with a final short block: 'drop' or 'pad'")
	configFlag := pflag.String("config", "", "path to a YAML engine config")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()

	if pflag.NArg() != 3 {
		panic(fmt.Errorf("expected exactly three arguments: <reverse-file> <forward-file> <output-file>"))
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	tailPolicy, err := framer.ParseTailPolicy(*tailFlag)
	assertNoError(err)

	cfg := engine.DefaultConfig()
	if *configFlag != "" {
		cfg, err = engine.LoadConfig(*configFlag)
		assertNoError(err)
	}

	descriptor := audio.StreamDescriptor{
		SampleRate: audio.SampleRate(*rateFlag),
		Channels:   audio.Channel(*channelsFlag),
	}

	reverseFile, err := os.Open(pflag.Arg(0))
	assertNoError(err)
	defer reverseFile.Close()

	forwardFile, err := os.Open(pflag.Arg(1))
	assertNoError(err)
	defer forwardFile.Close()

	outputFile, err := os.Create(pflag.Arg(2))
	assertNoError(err)
	defer func() {
		assertNoError(outputFile.Close())
	}()
	wc := datacounter.NewWriterCounter(outputFile)

	p, err := pipeline.New(ctx, passthrough.New(), cfg, descriptor, engine.BlockDuration)
	assertNoError(err)
	defer func() {
		assertNoError(p.Close())
	}()

	reverse, err := framer.New(reverseFile, descriptor, engine.BlockDuration, tailPolicy)
	assertNoError(err)
	forward, err := framer.New(forwardFile, descriptor, engine.BlockDuration, tailPolicy)
	assertNoError(err)

	stats, err := p.Run(ctx, reverse, forward, wc, *streamDelayFlag, *analogLevelFlag)
	assertNoError(err)

	logger.Infof(ctx,
		"processed %d ticks (%d samples, %d bytes), final analog level: %d",
		stats.Ticks, stats.SamplesWritten, wc.Count(), stats.LastAnalogLevel,
	)
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
