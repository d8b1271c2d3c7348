//go:build !portaudio
// +build !portaudio

package audiodev

import (
	"fmt"
	"log/slog"
)

const portaudioAvailable = false

func newPortAudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	return nil, fmt.Errorf("portaudio backend not compiled in (build with -tags portaudio)")
}

func newPortAudioSink(cfg Config, logger *slog.Logger) (Sink, error) {
	return nil, fmt.Errorf("portaudio backend not compiled in (build with -tags portaudio)")
}
