package audiodev

import (
	"context"
	"io"

	"github.com/cafevoz/cafevoz/pkg/audio"
)

// Frame is one block of captured or playable audio.
type Frame struct {
	// Samples holds PCM16 samples, interleaved when Channels > 1.
	Samples []int16

	// SampleRate is the rate of this frame in Hz.
	SampleRate int

	// Channels is the channel count.
	Channels int
}

// Bytes returns the frame as little-endian PCM16, the wire form the
// transcription stream accepts.
func (f *Frame) Bytes() []byte {
	return audio.SamplesToBytes(f.Samples)
}

// FrameFromBytes builds a Frame from raw PCM16 bytes.
func FrameFromBytes(data []byte, sampleRate, channels int) Frame {
	return Frame{
		Samples:    audio.BytesToSamples(data),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Duration returns the frame length in seconds.
func (f *Frame) Duration() float64 {
	if f.SampleRate == 0 || f.Channels == 0 {
		return 0
	}
	return float64(len(f.Samples)) / float64(f.SampleRate*f.Channels)
}

// RMS returns the frame's root mean square level, a cheap loudness proxy.
func (f *Frame) RMS() float64 {
	return audio.CalculateRMS(f.Samples)
}

// Source captures audio from a microphone.
type Source interface {
	// Start begins capture. Frames become available on Stream.
	Start(ctx context.Context) error

	// Stop halts capture and closes the stream channel.
	// Safe to call multiple times.
	Stop() error

	// Stream returns the channel frames are delivered on. The channel
	// is closed when the source stops. Frames are dropped, not queued,
	// when the consumer falls behind.
	Stream() <-chan Frame

	// Config returns the source configuration.
	Config() Config

	// Name returns the backend name ("portaudio" or "mock").
	Name() string

	// Close releases the device. The source cannot be restarted after.
	io.Closer
}

// SourceStats reports capture counters.
type SourceStats struct {
	FramesRead  int64 `json:"frames_read"`
	SamplesRead int64 `json:"samples_read"`
	// Overruns counts frames dropped because the consumer fell behind.
	Overruns int64  `json:"overruns"`
	Running  bool   `json:"running"`
	Backend  string `json:"backend"`
}

// SourceWithStats is a Source that reports counters.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}
