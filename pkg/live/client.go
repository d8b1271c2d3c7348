// Package live implements the client side of the Gemini Live bidirectional
// audio stream used for order transcription.
//
// The client forwards PCM16 microphone chunks upstream and surfaces the
// server's incremental transcription events through callbacks. Sends are
// fire-and-forget: there is no per-chunk delivery confirmation and no
// backpressure against a slow network.
package live

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cafevoz/cafevoz/pkg/audio"
)

const (
	// DefaultURL is the Gemini Live BidiGenerateContent endpoint.
	DefaultURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultModel is the native-audio Live model.
	DefaultModel = "models/gemini-2.5-flash-native-audio-preview-09-2025"

	// DefaultSampleRate is the input rate the Live API expects.
	DefaultSampleRate = 16000

	handshakeTimeout = 10 * time.Second
)

// Config holds Live stream parameters.
type Config struct {
	// APIKey authenticates against the Live endpoint. Required.
	APIKey string

	// Model is the Live model resource name. Defaults to DefaultModel.
	Model string

	// URL overrides the websocket endpoint. Used by tests.
	URL string

	// SampleRate of the PCM16 audio sent upstream. Defaults to 16kHz.
	SampleRate int
}

// Client is a single-use connection to the Live API. Create a new Client
// per recording session.
type Client struct {
	cfg Config

	ws   *websocket.Conn
	wsMu sync.Mutex

	mu        sync.RWMutex
	connected bool
	closed    bool

	onOpen            func()
	onTranscriptDelta func(text string)
	onTurnComplete    func()
	onError           func(err error)
}

// NewClient creates a Live client. Callbacks must be set before Connect.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}

	return &Client{cfg: cfg}, nil
}

// OnOpen sets the callback fired when the server confirms the stream setup.
func (c *Client) OnOpen(fn func()) { c.onOpen = fn }

// OnTranscriptDelta sets the callback for incremental transcription text.
// Deltas arrive in stream order; ordering across reconnects is undefined.
func (c *Client) OnTranscriptDelta(fn func(text string)) { c.onTranscriptDelta = fn }

// OnTurnComplete sets the callback fired when the server detects the end
// of the user's utterance.
func (c *Client) OnTurnComplete(fn func()) { c.onTurnComplete = fn }

// OnError sets the callback for stream failures. Errors after Close are
// suppressed.
func (c *Client) OnError(fn func(err error)) { c.onError = fn }

// Connect dials the endpoint, sends the session setup, and starts the
// reader goroutine.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	url := fmt.Sprintf("%s?key=%s", c.cfg.URL, c.cfg.APIKey)

	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	ws, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("live: connect: %w", err)
	}

	c.mu.Lock()
	c.ws = ws
	c.connected = true
	c.closed = false
	c.mu.Unlock()

	if err := c.sendSetup(); err != nil {
		c.Close()
		return fmt.Errorf("live: configure session: %w", err)
	}

	go c.readLoop()

	return nil
}

// sendSetup configures the session: input transcription on, audio response
// modality. The response audio itself is discarded; only the transcription
// events matter to the ordering flow.
func (c *Client) sendSetup() error {
	setup := map[string]any{
		"setup": map[string]any{
			"model": c.cfg.Model,
			"generation_config": map[string]any{
				"response_modalities": []string{"AUDIO"},
			},
			"input_audio_transcription": map[string]any{},
		},
	}
	return c.sendJSON(setup)
}

// SendAudio forwards one PCM16 chunk upstream. The chunk is base64-encoded
// and tagged with the PCM MIME type and sample rate. The caller gets an
// error only for local failures (not connected, write error); there is no
// delivery acknowledgement.
func (c *Client) SendAudio(pcm16 []byte) error {
	c.mu.RLock()
	if !c.connected || c.closed {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	c.mu.RUnlock()

	msg := map[string]any{
		"realtime_input": map[string]any{
			"media_chunks": []map[string]any{
				{
					"data":      audio.EncodeAudio(pcm16),
					"mime_type": fmt.Sprintf("audio/pcm;rate=%d", c.cfg.SampleRate),
				},
			},
		},
	}
	return c.sendJSON(msg)
}

// IsConnected reports whether the stream is open.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && !c.closed
}

// Close tears down the connection. Safe to call multiple times; the reader
// goroutine exits without surfacing the close as an error.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	ws := c.ws
	c.mu.Unlock()

	if ws != nil {
		return ws.Close()
	}
	return nil
}

// readLoop processes incoming server messages until the stream ends.
func (c *Client) readLoop() {
	for {
		c.mu.RLock()
		closed := c.closed
		ws := c.ws
		c.mu.RUnlock()

		if closed {
			return
		}

		_, message, err := ws.ReadMessage()
		if err != nil {
			c.mu.RLock()
			closed := c.closed
			c.mu.RUnlock()

			if !closed && c.onError != nil {
				c.onError(err)
			}
			return
		}

		c.handleMessage(message)
	}
}
