// Package audio converts between the sample formats used across the
// ordering pipeline: float32 buffers on the capture/playback side, PCM16
// little-endian bytes on the wire, and base64 text inside JSON messages.
package audio

import "encoding/base64"

// FloatsToPCM16 converts float32 samples in [-1, 1] to PCM16 little-endian
// bytes. Samples are scaled by 32768 and truncated to int16. Out-of-range
// input wraps around; callers are expected to hand in normalized audio.
func FloatsToPCM16(samples []float32) []byte {
	buf := make([]byte, len(samples)*2)
	for i, f := range samples {
		s := int16(f * 32768)
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

// PCM16ToFloats converts interleaved PCM16 little-endian bytes to one
// float32 buffer per channel, dividing each sample by 32768.
// Trailing bytes that do not form a full frame are dropped.
func PCM16ToFloats(data []byte, channels int) [][]float32 {
	if channels < 1 {
		channels = 1
	}

	samples := BytesToSamples(data)
	frames := len(samples) / channels

	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, frames)
		for i := 0; i < frames; i++ {
			out[ch][i] = float32(samples[i*channels+ch]) / 32768.0
		}
	}
	return out
}

// EncodeAudio encodes raw audio bytes as base64 for text transports.
func EncodeAudio(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeAudio decodes base64 text back into raw audio bytes.
func DecodeAudio(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// BytesToSamples converts raw PCM16 little-endian bytes to int16 samples.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

// SamplesToBytes converts int16 samples to raw PCM16 little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}
