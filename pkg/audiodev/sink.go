package audiodev

import (
	"context"
	"io"
)

// Sink plays audio through a speaker. The kiosk uses it for the spoken
// order confirmation.
type Sink interface {
	// Start opens the output device.
	Start(ctx context.Context) error

	// Stop halts playback. Safe to call multiple times.
	Stop() error

	// Write queues one frame for playback. May block while the output
	// buffer is full.
	Write(ctx context.Context, f Frame) error

	// Flush blocks until everything queued has been played.
	Flush(ctx context.Context) error

	// Clear drops queued audio immediately, cutting playback short.
	Clear() error

	// Config returns the sink configuration.
	Config() Config

	// Name returns the backend name ("portaudio" or "mock").
	Name() string

	// Close releases the device. The sink cannot be restarted after.
	io.Closer
}

// SinkStats reports playback counters.
type SinkStats struct {
	FramesWritten  int64  `json:"frames_written"`
	SamplesWritten int64  `json:"samples_written"`
	Underruns      int64  `json:"underruns"`
	Running        bool   `json:"running"`
	Backend        string `json:"backend"`
}

// SinkWithStats is a Sink that reports counters.
type SinkWithStats interface {
	Sink
	Stats() SinkStats
}
