package vad

import (
	"math"

	"github.com/xaionaro-go/audiopipeline/pkg/audio"
)

// MinLevelDB is the level floor: anything quieter than 127 dB below full
// scale is reported as MinLevelDB.
const MinLevelDB = 127

// RMSLevel measures the speech level of a stream in dB below full scale,
// accumulated across Analyze calls until the next Average/AverageAndPeak.
// The denominator stays in sync with the stream even while it is muted via
// AnalyzeMuted.
type RMSLevel struct {
	sumSquares     float64
	sampleCount    int
	maxSumSquares  float64
	maxSampleCount int
}

func (l *RMSLevel) Reset() {
	*l = RMSLevel{}
}

func (l *RMSLevel) Analyze(frame []int16) error {
	if len(frame) == 0 {
		return audio.InputShapeError{Reason: "an empty frame cannot be analyzed"}
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	l.sumSquares += sum
	l.sampleCount += len(frame)
	if meanSquareExceeds(sum, len(frame), l.maxSumSquares, l.maxSampleCount) {
		l.maxSumSquares = sum
		l.maxSampleCount = len(frame)
	}
	return nil
}

// AnalyzeMuted advances the sample counter for a muted stretch without
// contributing any energy.
func (l *RMSLevel) AnalyzeMuted(length int) {
	l.sampleCount += length
}

// Average returns the level of everything analyzed since the last reset,
// in dB below full scale (0 loudest, MinLevelDB quietest), and resets the
// accumulator.
func (l *RMSLevel) Average() int {
	db := computeDB(l.sumSquares, l.sampleCount)
	l.Reset()
	return db
}

// AverageAndPeak returns both the average level and the level of the
// loudest analyzed frame, then resets the accumulator.
func (l *RMSLevel) AverageAndPeak() (average int, peak int) {
	average = computeDB(l.sumSquares, l.sampleCount)
	peak = computeDB(l.maxSumSquares, l.maxSampleCount)
	l.Reset()
	return average, peak
}

func meanSquareExceeds(sumA float64, countA int, sumB float64, countB int) bool {
	if countB == 0 {
		return countA > 0
	}
	if countA == 0 {
		return false
	}
	return sumA/float64(countA) > sumB/float64(countB)
}

func computeDB(sumSquares float64, sampleCount int) int {
	if sampleCount == 0 || sumSquares == 0 {
		return MinLevelDB
	}
	rms := math.Sqrt(sumSquares/float64(sampleCount)) / (math.MaxInt16 + 1)
	db := -20 * math.Log10(rms)
	if db > MinLevelDB {
		return MinLevelDB
	}
	if db < 0 {
		return 0
	}
	return int(math.Round(db))
}
