package audio

import "time"

// Frame is a contiguous block of mono PCM16 samples at a fixed sample rate.
// Frames are immutable once produced; ownership passes from the producer to
// whatever encodes or plays them.
type Frame struct {
	// Samples contains PCM16 audio samples (little-endian when marshalled).
	Samples []int16

	// SampleRate is the sample rate of this frame in Hz.
	SampleRate int
}

// Duration returns the playback duration of this frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(len(f.Samples)) / float64(f.SampleRate) * float64(time.Second))
}

// Seconds returns the playback duration of this frame in seconds.
func (f Frame) Seconds() float64 {
	if f.SampleRate == 0 {
		return 0
	}
	return float64(len(f.Samples)) / float64(f.SampleRate)
}

// Bytes returns the raw little-endian PCM16 bytes of the frame.
func (f Frame) Bytes() []byte {
	return Marshal(f.Samples)
}
