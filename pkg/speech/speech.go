// Package speech synthesizes the spoken order confirmation.
//
// Synthesis is delegated to a remote text-to-speech API; this package only
// defines the provider interface, the Gemini-backed implementation, and a
// mock for tests. A failed synthesis is never fatal to the ordering flow:
// callers treat a missing result as "skip playback".
package speech

import (
	"context"
	"time"
)

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Synthesize converts text to audio, returning the complete buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult is a complete synthesis result.
type AudioResult struct {
	// Audio contains raw audio bytes in the described format.
	Audio []byte

	// Format describes the audio encoding.
	Format AudioFormat

	// Duration is the estimated playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the request round-trip time in milliseconds.
	LatencyMs int64
}

// AudioFormat describes audio encoding parameters.
type AudioFormat struct {
	// SampleRate in Hz.
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitDepth for PCM formats.
	BitDepth int
}

// PCM24Mono is the format Gemini TTS produces.
var PCM24Mono = AudioFormat{SampleRate: 24000, Channels: 1, BitDepth: 16}

// EstimateDuration computes playback time for PCM audio of the given format.
func EstimateDuration(byteLen int, f AudioFormat) time.Duration {
	if f.SampleRate == 0 || f.Channels == 0 || f.BitDepth == 0 {
		return 0
	}
	frames := byteLen / (f.Channels * f.BitDepth / 8)
	return time.Duration(float64(frames) / float64(f.SampleRate) * float64(time.Second))
}
