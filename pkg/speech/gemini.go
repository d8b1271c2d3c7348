package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cafevoz/cafevoz/internal/httpc"
	"github.com/cafevoz/cafevoz/pkg/audio"
)

const (
	defaultTTSBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultTTSModel   = "gemini-2.5-flash-preview-tts"
	defaultVoice      = "Kore"

	// confirmPrefix frames the summary as a spoken confirmation.
	confirmPrefix = "Confirmando pedido: "
)

// Gemini implements Synthesizer using Google's TTS-capable generateContent
// endpoint with an audio response modality and a fixed prebuilt voice.
type Gemini struct {
	apiKey  string
	model   string
	voice   string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// GeminiOption configures a Gemini synthesizer.
type GeminiOption func(*Gemini)

// WithModel overrides the default TTS model.
func WithModel(model string) GeminiOption {
	return func(g *Gemini) { g.model = model }
}

// WithVoice selects a prebuilt voice (Puck, Charon, Kore, Fenrir, Aoede).
func WithVoice(voice string) GeminiOption {
	return func(g *Gemini) { g.voice = voice }
}

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(url string) GeminiOption {
	return func(g *Gemini) { g.baseURL = url }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) GeminiOption {
	return func(g *Gemini) { g.logger = logger }
}

// NewGemini creates a Gemini TTS synthesizer.
func NewGemini(apiKey string, opts ...GeminiOption) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	g := &Gemini{
		apiKey:  apiKey,
		model:   defaultTTSModel,
		voice:   defaultVoice,
		baseURL: defaultTTSBaseURL,
		http:    httpc.NewClient(60 * time.Second),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "speech.gemini")

	return g, nil
}

// Synthesize generates confirmation audio for the given order summary.
// The result is PCM16 at 24kHz mono.
func (g *Gemini) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]any{{"text": confirmPrefix + text}}},
		},
		"generationConfig": map[string]any{
			"responseModalities": []string{"AUDIO"},
			"speechConfig": map[string]any{
				"voiceConfig": map[string]any{
					"prebuiltVoiceConfig": map[string]any{"voiceName": g.voice},
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("speech: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("speech: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, g.parseError(resp)
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					InlineData struct {
						MimeType string `json:"mimeType"`
						Data     string `json:"data"`
					} `json:"inlineData"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("speech: decode response: %w", err)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, ErrNoAudio
	}

	data := result.Candidates[0].Content.Parts[0].InlineData.Data
	if data == "" {
		return nil, ErrNoAudio
	}

	pcm, err := audio.DecodeAudio(data)
	if err != nil {
		return nil, fmt.Errorf("speech: decode audio payload: %w", err)
	}

	latency := time.Since(start)
	g.logger.Debug("synthesis complete",
		"model", g.model,
		"voice", g.voice,
		"chars", len(text),
		"bytes", len(pcm),
		"latency_ms", latency.Milliseconds(),
	)

	return &AudioResult{
		Audio:     pcm,
		Format:    PCM24Mono,
		Duration:  EstimateDuration(len(pcm), PCM24Mono),
		CharCount: len(text),
		LatencyMs: latency.Milliseconds(),
	}, nil
}

// Health verifies connectivity with a minimal synthesis call.
func (g *Gemini) Health(ctx context.Context) error {
	_, err := g.Synthesize(ctx, "hola")
	return err
}

// Close releases idle connections.
func (g *Gemini) Close() error {
	g.http.CloseIdleConnections()
	return nil
}

// parseError reads and parses an error response body.
func (g *Gemini) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	message := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return &APIError{StatusCode: resp.StatusCode, Message: message}
}

// Verify Gemini implements Synthesizer at compile time.
var _ Synthesizer = (*Gemini)(nil)
