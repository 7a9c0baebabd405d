package audio

import (
	"encoding/binary"
	"fmt"
)

// The pipeline's wire format is raw headerless interleaved S16LE PCM;
// sample rate and channel count travel out of band in a StreamDescriptor.

const BytesPerSample = 2

func BytesToSamples(p []byte) ([]int16, error) {
	if len(p)%BytesPerSample != 0 {
		return nil, InputShapeError{Reason: fmt.Sprintf("byte count is not a multiple of the sample size: %d %% %d != 0", len(p), BytesPerSample)}
	}
	samples := make([]int16, len(p)/BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(p[i*BytesPerSample:]))
	}
	return samples, nil
}

func SamplesToBytes(samples []int16) []byte {
	p := make([]byte, len(samples)*BytesPerSample)
	PutSamples(p, samples)
	return p
}

// PutSamples encodes samples into p, which must be at least
// len(samples)*BytesPerSample long.
func PutSamples(p []byte, samples []int16) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(p[i*BytesPerSample:], uint16(s))
	}
}
