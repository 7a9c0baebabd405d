package vad

import (
	"context"

	"github.com/xaionaro-go/audiopipeline/pkg/audio"
)

// Dummy is a classifier that always reports a fixed probability.
type Dummy struct {
	Value float64
}

var _ Classifier = (*Dummy)(nil)

func NewDummy(value float64) *Dummy {
	return &Dummy{Value: value}
}

func (d *Dummy) Close() error {
	return nil
}

func (d *Dummy) Classify(context.Context, []int16, audio.SampleRate) (float64, error) {
	return d.Value, nil
}
