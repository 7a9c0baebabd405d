// Package resampler converts interleaved S16LE PCM between stream
// descriptors: sample rate conversion by linear interpolation plus the
// mono fan-out / multi-channel average rules for channel adaptation.
//
// The resampler is stateful on purpose: the fractional read position and
// the last consumed frame survive between Process calls, so a signal split
// into chunks resamples to exactly the same output as the whole signal.
// Reset drops that state (an expected discontinuity); ResetIfNeeded keeps
// it whenever the descriptors did not change.
package resampler

import (
	"fmt"
	"math"
	"sync"

	"github.com/xaionaro-go/audiopipeline/pkg/audio"
)

// GuardFrames covers rounding and filter-tail growth on top of
// ceil(inputFrames × outRate/inRate) when sizing the output.
const GuardFrames = 16

// one is the Q32 fixed-point representation of one input frame step.
const one = uint64(1) << 32

type precalculated struct {
	inNumAvg     int // input channels averaged into one lane
	outNumRepeat int // output channels fanned out from one lane
	lanes        int // independently resampled channel lanes
	stepQ        uint64
}

type Resampler struct {
	locker  sync.Mutex
	inDesc  audio.StreamDescriptor
	outDesc audio.StreamDescriptor

	precalculated
	primed bool
	phase  uint64 // Q32 position of the next output sample past prev
	prev   []float64
}

func New(inDesc, outDesc audio.StreamDescriptor) (*Resampler, error) {
	r := &Resampler{}
	if err := r.init(inDesc, outDesc); err != nil {
		return nil, fmt.Errorf("unable to initialize a resampler from %v to %v: %w", inDesc, outDesc, err)
	}
	return r, nil
}

func (r *Resampler) init(inDesc, outDesc audio.StreamDescriptor) error {
	if err := inDesc.Validate(); err != nil {
		return err
	}
	if err := outDesc.Validate(); err != nil {
		return err
	}

	r.inNumAvg = 1
	r.outNumRepeat = 1
	r.lanes = int(inDesc.Channels)
	if inDesc.Channels != outDesc.Channels {
		switch {
		case inDesc.Channels == 1:
			r.outNumRepeat = int(outDesc.Channels)
			r.lanes = 1
		case outDesc.Channels == 1:
			r.inNumAvg = int(inDesc.Channels)
			r.lanes = 1
		default:
			return audio.ConfigurationError{
				Reason: fmt.Sprintf("do not know how to convert %d channels to %d", inDesc.Channels, outDesc.Channels),
			}
		}
	}

	r.inDesc = inDesc
	r.outDesc = outDesc
	r.stepQ = (uint64(inDesc.SampleRate) << 32) / uint64(outDesc.SampleRate)
	r.primed = false
	r.phase = 0
	r.prev = make([]float64, r.lanes)
	return nil
}

func (r *Resampler) InputDescriptor() audio.StreamDescriptor {
	r.locker.Lock()
	defer r.locker.Unlock()
	return r.inDesc
}

func (r *Resampler) OutputDescriptor() audio.StreamDescriptor {
	r.locker.Lock()
	defer r.locker.Unlock()
	return r.outDesc
}

// Reset unconditionally reinitializes the filter state for the given
// descriptors. The next Process call starts from a clean history, so a
// discontinuity at the seam is expected.
func (r *Resampler) Reset(inDesc, outDesc audio.StreamDescriptor) error {
	r.locker.Lock()
	defer r.locker.Unlock()
	return r.init(inDesc, outDesc)
}

// ResetIfNeeded reinitializes only when a descriptor actually changed.
// With unchanged descriptors it is a no-op and the filter history is
// preserved, which keeps chunk seams free of artifacts in streaming use.
func (r *Resampler) ResetIfNeeded(inDesc, outDesc audio.StreamDescriptor) error {
	r.locker.Lock()
	defer r.locker.Unlock()
	if inDesc == r.inDesc && outDesc == r.outDesc {
		return nil
	}
	return r.init(inDesc, outDesc)
}

// Process converts one chunk of interleaved samples. The returned slice
// holds only the samples actually produced, never trailing garbage. The
// sample count must be a multiple of the input channel count.
func (r *Resampler) Process(samples []int16) ([]int16, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	inChannels := int(r.inDesc.Channels)
	if len(samples)%inChannels != 0 {
		return nil, audio.ConfigurationError{
			Reason: fmt.Sprintf("sample count is not a multiple of the channel count: %d %% %d != 0", len(samples), inChannels),
		}
	}

	// Same-format passthrough is the exact identity.
	if r.inDesc == r.outDesc {
		out := make([]int16, len(samples))
		copy(out, samples)
		return out, nil
	}

	inFrames := len(samples) / inChannels
	ratio := float64(r.outDesc.SampleRate) / float64(r.inDesc.SampleRate)
	maxFrames := int(math.Ceil(float64(inFrames)*ratio)) + GuardFrames
	out := make([]int16, maxFrames*r.outNumRepeat*r.lanes)

	produced := 0
	lane := make([]float64, r.lanes)
	for frameIdx := 0; frameIdx < inFrames; frameIdx++ {
		base := frameIdx * inChannels
		for l := 0; l < r.lanes; l++ {
			var sum float64
			for c := 0; c < r.inNumAvg; c++ {
				sum += float64(samples[base+l*r.inNumAvg+c])
			}
			lane[l] = sum / float64(r.inNumAvg)
		}

		if !r.primed {
			copy(r.prev, lane)
			r.primed = true
			if r.phase == 0 {
				produced = r.emit(out, produced, r.prev, lane, 0)
				r.phase += r.stepQ
			}
			continue
		}

		for r.phase <= one {
			produced = r.emit(out, produced, r.prev, lane, r.phase)
			r.phase += r.stepQ
		}
		r.phase -= one
		copy(r.prev, lane)
	}

	return out[:produced], nil
}

// emit writes one output frame interpolated between prev and cur at the
// given Q32 fraction, fanning a single lane out to all output channels
// when required.
func (r *Resampler) emit(out []int16, produced int, prev, cur []float64, phase uint64) int {
	frac := float64(phase) / float64(one)
	for l := 0; l < r.lanes; l++ {
		v := prev[l] + (cur[l]-prev[l])*frac
		s := clampSample(v)
		for rep := 0; rep < r.outNumRepeat; rep++ {
			out[produced] = s
			produced++
		}
	}
	return produced
}

func clampSample(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(math.Round(v))
}
