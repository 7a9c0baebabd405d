// Package audio holds the types shared by every stage of the enhancement
// pipeline: sample rates, channel counts, stream descriptors and the
// frame-size arithmetic that everything else must agree on.
package audio

import (
	"fmt"
	"time"
)

type SampleRate int

type Channel int

// Pipeline-native defaults. These are immutable; every component receives
// its descriptor and block duration explicitly through its constructor.
const (
	DefaultSampleRate   SampleRate = 32000
	DefaultChannels     Channel    = 1
	DefaultBlockDuration           = 10 * time.Millisecond
)

// StreamDescriptor describes the format of one PCM stream: interleaved
// signed 16-bit samples at SampleRate with Channels channels.
//
// It is a value type and is compared with `==`; the resampler relies on
// that comparison for its reset-if-needed check.
type StreamDescriptor struct {
	SampleRate SampleRate
	Channels   Channel
}

func (d StreamDescriptor) Validate() error {
	if d.SampleRate <= 0 {
		return ConfigurationError{Reason: fmt.Sprintf("sample rate must be positive: got %d", d.SampleRate)}
	}
	if d.Channels <= 0 {
		return ConfigurationError{Reason: fmt.Sprintf("channel count must be positive: got %d", d.Channels)}
	}
	return nil
}

// FrameSize returns the amount of int16 samples (including all channels)
// in one block of the given duration.
func (d StreamDescriptor) FrameSize(blockDuration time.Duration) int {
	samplesPerChannel := int(int64(d.SampleRate) * int64(blockDuration) / int64(time.Second))
	return samplesPerChannel * int(d.Channels)
}

func (d StreamDescriptor) String() string {
	return fmt.Sprintf("%dHz/%dch", d.SampleRate, d.Channels)
}
