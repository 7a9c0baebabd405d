//go:build fvad
// +build fvad

// Package fvad backs the voice activity classifier with libfvad, the
// standalone build of the WebRTC voice activity detector.
package fvad

import (
	"context"
	"fmt"
	"sync"

	lib "github.com/josharian/fvad"
	"github.com/xaionaro-go/audiopipeline/pkg/audio"
	"github.com/xaionaro-go/audiopipeline/pkg/vad"
)

// Probabilities reported for the detector's binary decision. The detector
// itself only answers voiced/unvoiced; the graded series comes from the
// aggregator's RMS track.
const (
	voicedProbability   = 1.0
	unvoicedProbability = 0.0
)

type Classifier struct {
	Locker   sync.Mutex
	Detector *lib.Detector
	rate     audio.SampleRate
}

var _ vad.Classifier = (*Classifier)(nil)

// New creates a detector with the given aggressiveness mode
// (0 = least aggressive, 3 = most aggressive).
func New(mode int) (*Classifier, error) {
	d := lib.NewDetector()
	if d == nil {
		return nil, audio.ResourceError{Op: "create an fvad detector", Err: fmt.Errorf("allocation failed")}
	}
	if err := d.SetMode(mode); err != nil {
		d.Close()
		return nil, audio.ConfigurationError{Reason: fmt.Sprintf("mode %d is not supported: %v", mode, err)}
	}
	return &Classifier{Detector: d}, nil
}

func (c *Classifier) Close() error {
	c.Locker.Lock()
	defer c.Locker.Unlock()
	if c.Detector == nil {
		return fmt.Errorf("double-free attempt")
	}
	c.Detector.Close()
	c.Detector = nil
	return nil
}

func (c *Classifier) Classify(ctx context.Context, frame []int16, rate audio.SampleRate) (float64, error) {
	c.Locker.Lock()
	defer c.Locker.Unlock()
	if c.Detector == nil {
		return 0, fmt.Errorf("the classifier is already closed")
	}
	if rate != c.rate {
		if err := c.Detector.SetSampleRate(int(rate)); err != nil {
			return 0, audio.ConfigurationError{Reason: fmt.Sprintf("sample rate %d is not supported: %v", rate, err)}
		}
		c.rate = rate
	}
	voiced, err := c.Detector.Process(frame)
	if err != nil {
		return 0, audio.InputShapeError{Reason: fmt.Sprintf("the detector rejected a %d-sample chunk: %v", len(frame), err)}
	}
	if voiced {
		return voicedProbability, nil
	}
	return unvoicedProbability, nil
}
