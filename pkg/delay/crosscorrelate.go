package delay

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// crossCorrelate calculates the sample shift of fcomp relative to fref
// using GCC-PHAT. fref and fcomp are the FFTs of the reference and
// comparison snippets and must have the same length. A positive shift
// means the comparison signal leads the reference.
func crossCorrelate(fref, fcomp []complex128, sampleRate, minFreq, maxFreq float64) (float64, float64, error) {
	if sampleRate <= 0 {
		return 0, 0, fmt.Errorf("sampleRate must be positive: got %v", sampleRate)
	}
	if len(fref) != len(fcomp) {
		return 0, 0, fmt.Errorf("fref and fcomp must have the same length: %d != %d", len(fref), len(fcomp))
	}
	n := len(fref)

	binMin := 0
	binMax := n / 2
	if minFreq > 0 {
		binMin = int(minFreq * float64(n) / sampleRate)
	}
	if maxFreq > 0 && maxFreq < sampleRate/2 {
		binMax = int(maxFreq * float64(n) / sampleRate)
	}

	// PHAT whitening: only bins with energy above a threshold relative to
	// the maximum are kept, otherwise pure noise bins would get the same
	// weight as the signal.
	maxMag := 0.0
	for i := 0; i < n; i++ {
		mag := cmplx.Abs(fcomp[i] * cmplx.Conj(fref[i]))
		if mag > maxMag {
			maxMag = mag
		}
	}
	threshold := maxMag * 0.001 // 60dB down

	res := make([]complex128, n)
	activeBins := 0
	for i := 0; i < n; i++ {
		idx := i
		if i > n/2 {
			idx = n - i
		}
		if idx < binMin || idx > binMax {
			continue
		}

		prod := fcomp[i] * cmplx.Conj(fref[i])
		mag := cmplx.Abs(prod)
		if mag > threshold && mag > 1e-12 {
			res[i] = prod / complex(mag, 0)
			activeBins++
		}
	}
	if activeBins == 0 {
		return 0, 0, nil
	}

	timeDomain := fft.IFFT(res)

	maxVal := -1.0
	maxIdx := 0
	for i := 0; i < n; i++ {
		val := cmplx.Abs(timeDomain[i])
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}

	// Peak index, wrapped to a signed shift where comp(t) = ref(t-shift).
	shift := float64(maxIdx)
	if shift > float64(n/2) {
		shift -= float64(n)
	}

	// Parabolic sub-sample interpolation around the peak.
	if maxIdx > 0 && maxIdx < n-1 {
		y1 := cmplx.Abs(timeDomain[maxIdx-1])
		y2 := maxVal
		y3 := cmplx.Abs(timeDomain[maxIdx+1])
		denom := y1 - 2*y2 + y3
		if math.Abs(denom) > 1e-12 {
			shift += (y1 - y3) / (2 * denom)
		}
	}

	// In a perfect match the time-domain peak is activeBins/n (activeBins
	// unit-magnitude bins, IFFT divides by n), so this normalizes the
	// peak into a 0..1 confidence.
	confidence := maxVal * float64(n) / float64(activeBins)
	if confidence > 1 {
		confidence = 1
	}

	// shift > 0 currently means comp lags ref; flip so that positive
	// means comp leads ref.
	return -shift, confidence, nil
}
