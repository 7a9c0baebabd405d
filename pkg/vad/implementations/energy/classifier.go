// Package energy implements a pure-Go voice activity classifier based on
// RMS energy with hysteresis, so short level dips do not flicker the
// decision between speech and silence.
package energy

import (
	"context"

	"github.com/xaionaro-go/audiopipeline/pkg/audio"
	"github.com/xaionaro-go/audiopipeline/pkg/vad"
)

type Classifier struct {
	SpeechThreshold  float64 // RMS level at which a chunk counts as speech
	SilenceThreshold float64 // RMS level below which a chunk counts as silence
	SpeechChunks     int     // consecutive speech chunks needed to enter speech
	SilenceChunks    int     // consecutive silence chunks needed to leave speech

	inSpeech     bool
	speechCount  int
	silenceCount int
}

var _ vad.Classifier = (*Classifier)(nil)

// New returns a classifier tuned for 10ms chunks of conversational speech.
func New() *Classifier {
	return &Classifier{
		SpeechThreshold:  0.015,
		SilenceThreshold: 0.008,
		SpeechChunks:     3,
		SilenceChunks:    20,
	}
}

func (c *Classifier) Close() error {
	return nil
}

// Classify maps the chunk's RMS into a probability, biased upwards while
// the hysteresis considers the stream to be inside a speech stretch.
func (c *Classifier) Classify(ctx context.Context, frame []int16, rate audio.SampleRate) (float64, error) {
	rms := vad.RMS(frame)

	switch {
	case rms >= c.SpeechThreshold:
		c.speechCount++
		c.silenceCount = 0
		if c.speechCount >= c.SpeechChunks {
			c.inSpeech = true
		}
	case rms <= c.SilenceThreshold:
		c.silenceCount++
		c.speechCount = 0
		if c.silenceCount >= c.SilenceChunks {
			c.inSpeech = false
		}
	default:
		// Between the thresholds: keep the current state.
	}

	base := rms / c.SpeechThreshold
	if base > 1 {
		base = 1
	}
	if c.inSpeech {
		return 0.5 + base/2, nil
	}
	return base / 2, nil
}
