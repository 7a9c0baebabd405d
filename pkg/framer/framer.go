// Package framer slices a continuous raw S16LE PCM source into the
// fixed-duration blocks the enhancement engine consumes.
package framer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audiopipeline/pkg/audio"
)

// TailPolicy decides what happens to a final read that is shorter than one
// full block.
type TailPolicy int

const (
	// TailDrop discards the short tail; the stream ends on the last full
	// block.
	TailDrop TailPolicy = iota
	// TailPad zero-pads the short tail up to a full block.
	TailPad
)

func (p TailPolicy) String() string {
	switch p {
	case TailDrop:
		return "drop"
	case TailPad:
		return "pad"
	default:
		return fmt.Sprintf("unknown_tail_policy_%d", int(p))
	}
}

func ParseTailPolicy(s string) (TailPolicy, error) {
	switch s {
	case "drop":
		return TailDrop, nil
	case "pad":
		return TailPad, nil
	default:
		return 0, fmt.Errorf("unknown tail policy: '%s' (expected 'drop' or 'pad')", s)
	}
}

// Framer produces a lazy, finite sequence of fixed-size frames from a byte
// source. It has no side effects beyond consuming the source and can be
// restarted on a fresh source via Reset.
type Framer struct {
	backend       io.Reader
	descriptor    audio.StreamDescriptor
	blockDuration time.Duration
	tailPolicy    TailPolicy
	frameSize     int
	readBuf       []byte
	done          bool
}

func New(
	backend io.Reader,
	descriptor audio.StreamDescriptor,
	blockDuration time.Duration,
	tailPolicy TailPolicy,
) (*Framer, error) {
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}
	if blockDuration <= 0 {
		return nil, audio.ConfigurationError{Reason: fmt.Sprintf("block duration must be positive: got %v", blockDuration)}
	}
	frameSize := descriptor.FrameSize(blockDuration)
	if frameSize == 0 {
		return nil, audio.ConfigurationError{Reason: fmt.Sprintf("frame size is zero for %v at %v blocks", descriptor, blockDuration)}
	}
	return &Framer{
		backend:       backend,
		descriptor:    descriptor,
		blockDuration: blockDuration,
		tailPolicy:    tailPolicy,
		frameSize:     frameSize,
		readBuf:       make([]byte, frameSize*audio.BytesPerSample),
	}, nil
}

// FrameSize returns the amount of int16 samples (all channels included)
// in each produced frame.
func (f *Framer) FrameSize() int {
	return f.frameSize
}

func (f *Framer) Descriptor() audio.StreamDescriptor {
	return f.descriptor
}

// Next returns the next frame or io.EOF when the source is exhausted.
// Every frame is a freshly allocated slice: frames are transient values
// handed to the engine, and a reused buffer could leak stale samples into
// a padded tail.
func (f *Framer) Next(ctx context.Context) ([]int16, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if f.done {
		return nil, io.EOF
	}

	n, err := io.ReadFull(f.backend, f.readBuf)
	switch {
	case err == nil:
	case err == io.EOF:
		f.done = true
		return nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		f.done = true
		if f.tailPolicy == TailDrop {
			logger.Debugf(ctx, "dropping a %d-byte tail", n)
			return nil, io.EOF
		}
		if n%(audio.BytesPerSample*int(f.descriptor.Channels)) != 0 {
			return nil, audio.InputShapeError{
				Reason: fmt.Sprintf("the tail is not a multiple of the frame layout: %d bytes with %d channels", n, f.descriptor.Channels),
			}
		}
		logger.Debugf(ctx, "zero-padding a %d-byte tail to %d bytes", n, len(f.readBuf))
	default:
		return nil, fmt.Errorf("unable to read from the backend: %w", err)
	}

	frame := make([]int16, f.frameSize)
	for i := 0; i < n/audio.BytesPerSample; i++ {
		frame[i] = int16(uint16(f.readBuf[i*2]) | uint16(f.readBuf[i*2+1])<<8)
	}
	// The remainder of a padded tail stays at zero in the fresh slice.
	return frame, nil
}

// Reset rearms the framer on a fresh source, making the sequence
// restartable.
func (f *Framer) Reset(backend io.Reader) {
	f.backend = backend
	f.done = false
}
