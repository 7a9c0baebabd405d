// Package vad aggregates chunk-wise voice activity detector outputs into a
// queryable time series: one (probability, rms) pair per processed chunk.
package vad

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/xaionaro-go/audiopipeline/pkg/audio"
)

// DefaultVoiceProbability is the neutral voice prior reported before any
// chunk was processed.
const DefaultVoiceProbability = 0.02

// Classifier estimates the voice probability of one mono chunk.
type Classifier interface {
	io.Closer

	Classify(ctx context.Context, frame []int16, rate audio.SampleRate) (float64, error)
}

// Aggregator accumulates classifier outputs. The series is append-only and
// never truncated implicitly; retention is the caller's responsibility.
// One pipeline instance exclusively owns its aggregator.
type Aggregator struct {
	classifier    Classifier
	probabilities []float64
	rms           []float64
}

func NewAggregator(classifier Classifier) (*Aggregator, error) {
	if classifier == nil {
		return nil, audio.ResourceError{Op: "acquire a voice activity classifier", Err: fmt.Errorf("no classifier provided")}
	}
	return &Aggregator{classifier: classifier}, nil
}

// ProcessChunk classifies one mono chunk and appends exactly one
// (probability, rms) pair to the series. The chunk must be a flat,
// non-empty slice of mono samples.
func (a *Aggregator) ProcessChunk(ctx context.Context, frame []int16, rate audio.SampleRate) (float64, error) {
	if len(frame) == 0 {
		return 0, audio.InputShapeError{Reason: "an empty chunk cannot be classified"}
	}
	if rate <= 0 {
		return 0, audio.ConfigurationError{Reason: fmt.Sprintf("sample rate must be positive: got %d", rate)}
	}

	probability, err := a.classifier.Classify(ctx, frame, rate)
	if err != nil {
		return 0, fmt.Errorf("unable to classify the chunk: %w", err)
	}
	if probability < 0 {
		probability = 0
	}
	if probability > 1 {
		probability = 1
	}

	a.probabilities = append(a.probabilities, probability)
	a.rms = append(a.rms, RMS(frame))
	return probability, nil
}

// LastProbability returns the most recent entry, or the neutral prior when
// nothing was processed yet.
func (a *Aggregator) LastProbability() float64 {
	if len(a.probabilities) == 0 {
		return DefaultVoiceProbability
	}
	return a.probabilities[len(a.probabilities)-1]
}

// ChunkwiseProbabilities returns the full probability series. The series
// is append-only: already returned entries are never mutated.
func (a *Aggregator) ChunkwiseProbabilities() []float64 {
	return a.probabilities
}

// ChunkwiseRMS returns the full per-chunk RMS series, normalized to [0,1]
// of full scale.
func (a *Aggregator) ChunkwiseRMS() []float64 {
	return a.rms
}

func (a *Aggregator) Close() error {
	return a.classifier.Close()
}

// RMS returns the root mean square of a chunk, normalized to full scale.
func RMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s) / math.MaxInt16
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}
