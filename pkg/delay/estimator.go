// Package delay measures the latency between the reverse (playback) stream
// and its echo in the forward (capture) stream using Generalized
// Cross-Correlation with Phase Transform (GCC-PHAT). Whitening the
// magnitude makes the estimate robust against volume differences and
// stationary noise: only the phase carries the delay.
//
// The result feeds the pipeline's stream delay; a configured value can be
// used instead when the deployment's latency is known.
package delay

import (
	"context"
	"fmt"
	"time"

	"github.com/mjibson/go-dsp/fft"
	"github.com/xaionaro-go/audiopipeline/pkg/audio"
)

// ShiftResult is one delay measurement.
type ShiftResult struct {
	Shift      float64 // samples; positive means the comparison signal leads the reference
	Confidence float64 // 0..1
}

// StreamDelay converts the measurement into the reverse-to-echo latency:
// how much later the comparison (forward/echo) signal runs behind the
// reference (reverse) signal. Negative results mean the "echo" was
// actually ahead and are not a usable stream delay.
func (r ShiftResult) StreamDelay(rate audio.SampleRate) time.Duration {
	return time.Duration(-r.Shift / float64(rate) * float64(time.Second))
}

type Estimator struct {
	Descriptor audio.StreamDescriptor
	// Band limit for the phase transform. The defaults capture most
	// informative audio while filtering out low-frequency rumble and
	// high-frequency digital noise.
	MinFreq float64
	MaxFreq float64
}

func NewEstimator(descriptor audio.StreamDescriptor) (*Estimator, error) {
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{
		Descriptor: descriptor,
		MinFreq:    100,
		MaxFreq:    12000,
	}, nil
}

// Estimate measures the shift of comparison relative to reference. Both
// snippets are interleaved frames of the estimator's descriptor;
// multi-channel input is averaged down to mono before correlating.
func (e *Estimator) Estimate(
	ctx context.Context,
	reference, comparison []int16,
) (ShiftResult, error) {
	refSamples, err := toMono(e.Descriptor.Channels, reference)
	if err != nil {
		return ShiftResult{}, fmt.Errorf("unable to convert the reference snippet: %w", err)
	}
	compSamples, err := toMono(e.Descriptor.Channels, comparison)
	if err != nil {
		return ShiftResult{}, fmt.Errorf("unable to convert the comparison snippet: %w", err)
	}

	select {
	case <-ctx.Done():
		return ShiftResult{}, ctx.Err()
	default:
	}

	// FFT size: the next power of two of (n1 + n2 - 1) to avoid circular
	// convolution artifacts.
	n1 := len(refSamples)
	n2 := len(compSamples)
	n := 1
	for n < n1+n2-1 {
		n <<= 1
	}

	fref := make([]complex128, n)
	fcomp := make([]complex128, n)
	for i, v := range refSamples {
		fref[i] = complex(v, 0)
	}
	for i, v := range compSamples {
		fcomp[i] = complex(v, 0)
	}

	shift, confidence, err := crossCorrelate(
		fft.FFT(fref),
		fft.FFT(fcomp),
		float64(e.Descriptor.SampleRate),
		e.MinFreq,
		e.MaxFreq,
	)
	if err != nil {
		return ShiftResult{}, fmt.Errorf("unable to cross-correlate the snippets: %w", err)
	}
	return ShiftResult{Shift: shift, Confidence: confidence}, nil
}

func toMono(channels audio.Channel, samples []int16) ([]float64, error) {
	if channels <= 0 {
		return nil, audio.ConfigurationError{Reason: fmt.Sprintf("channel count must be positive: got %d", channels)}
	}
	if len(samples)%int(channels) != 0 {
		return nil, audio.InputShapeError{
			Reason: fmt.Sprintf("sample count is not a multiple of the channel count: %d %% %d != 0", len(samples), channels),
		}
	}
	frames := len(samples) / int(channels)
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < int(channels); c++ {
			sum += float64(samples[i*int(channels)+c])
		}
		out[i] = sum / float64(int(channels)) / 32768
	}
	return out, nil
}
