package order

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
)

const (
	defaultGenerateBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGenerateModel   = "gemini-2.5-flash"
)

// Gemini implements Generator using Google's generateContent endpoint with
// a JSON response schema, so the model is constrained to the order-line
// array format.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// GeminiOption configures a Gemini generator.
type GeminiOption func(*Gemini)

// WithModel overrides the default generation model.
func WithModel(model string) GeminiOption {
	return func(g *Gemini) { g.model = model }
}

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(url string) GeminiOption {
	return func(g *Gemini) { g.baseURL = url }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) GeminiOption {
	return func(g *Gemini) { g.logger = logger }
}

// NewGemini creates a Gemini structured-generation client.
func NewGemini(apiKey string, opts ...GeminiOption) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	g := &Gemini{
		apiKey:  apiKey,
		model:   defaultGenerateModel,
		baseURL: defaultGenerateBaseURL,
		http:    httpc.Client,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "order.gemini")

	return g, nil
}

// GenerateJSON runs a generation request constrained to the given schema
// and returns the raw JSON text the model produced.
func (g *Gemini) GenerateJSON(ctx context.Context, prompt string, schema map[string]any) (string, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]any{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"temperature":      0.2,
			"responseMimeType": "application/json",
			"responseSchema":   schema,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("order: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("order: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("order: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", g.parseError(resp)
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("order: decode response: %w", err)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	text := result.Candidates[0].Content.Parts[0].Text
	if !json.Valid([]byte(text)) {
		return "", ErrNotJSON
	}

	g.logger.Debug("order generation complete",
		"model", g.model,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return text, nil
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

// Verify Gemini implements Generator at compile time.
var _ Generator = (*Gemini)(nil)
