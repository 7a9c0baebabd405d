package engine

import (
	"github.com/xaionaro-go/audiopipeline/pkg/audio"
)

// The engine operates on fixed 10ms blocks.
const BlockDuration = audio.DefaultBlockDuration

// FrameSize returns the amount of samples per channel in one engine block
// at the given rate.
func FrameSize(rate audio.SampleRate) int {
	return int(rate) / 100
}
