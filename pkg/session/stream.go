package session

import (
	"context"

	"github.com/cafevoz/cafevoz/pkg/audiodev"
)

// Stream is the bidirectional transcription connection a session drives.
// Callbacks must be registered before Connect. *live.Client satisfies this.
type Stream interface {
	OnOpen(fn func())
	OnTranscriptDelta(fn func(text string))
	OnTurnComplete(fn func())
	OnError(fn func(err error))

	Connect(ctx context.Context) error
	SendAudio(pcm16 []byte) error
	Close() error
}

// StreamFactory opens a fresh transcription stream for each session.
type StreamFactory func() (Stream, error)

// SourceFactory opens a fresh microphone source for each session.
type SourceFactory func() (audiodev.Source, error)
