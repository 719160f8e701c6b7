// Package audio provides PCM16 framing and transport encoding for voice audio.
//
// The remote session speaks 16-bit little-endian PCM wrapped in base64 for the
// JSON transport. This package holds the pure conversions between floating-point
// device buffers, int16 sample frames, and the wire payload. No compression is
// applied; this is framing, not a perceptual codec.
package audio

import (
	"encoding/base64"
	"fmt"
	"math"
)

// Quantize converts floating-point samples in [-1, 1] to 16-bit PCM.
// Values outside the range are clamped.
func Quantize(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, f := range samples {
		v := math.Round(float64(f) * 32768)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}

// Dequantize converts 16-bit PCM samples back to floating point in [-1, 1).
func Dequantize(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Marshal converts int16 samples to raw PCM16 little-endian bytes.
func Marshal(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}

// Unmarshal converts raw PCM16 little-endian bytes to int16 samples.
// The payload must contain whole samples.
func Unmarshal(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("audio: truncated PCM16 payload (%d bytes)", len(data))
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples, nil
}

// EncodeBase64 encodes int16 samples as base64 PCM16 for the JSON transport.
func EncodeBase64(samples []int16) string {
	return base64.StdEncoding.EncodeToString(Marshal(samples))
}

// DecodeBase64 decodes a base64 PCM16 payload back to int16 samples.
func DecodeBase64(payload string) ([]int16, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("audio: invalid base64 payload: %w", err)
	}
	return Unmarshal(data)
}

// Resample converts audio from one sample rate to another using linear interpolation.
// This is a simple resampler suitable for speech audio.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples)) / ratio)
	if newLen == 0 {
		return []int16{}
	}

	result := make([]int16, newLen)
	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= len(samples)-1 {
			result[i] = samples[len(samples)-1]
		} else {
			// Linear interpolation
			s1 := float64(samples[srcIdx])
			s2 := float64(samples[srcIdx+1])
			result[i] = int16(s1 + frac*(s2-s1))
		}
	}
	return result
}
