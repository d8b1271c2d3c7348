package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestEstimateDuration(t *testing.T) {
	// 1 second of 24kHz mono PCM16 = 48000 bytes
	d := EstimateDuration(48000, PCM24Mono)
	if d != time.Second {
		t.Errorf("expected 1s, got %v", d)
	}

	if d := EstimateDuration(100, AudioFormat{}); d != 0 {
		t.Errorf("expected 0 for zero format, got %v", d)
	}
}

func TestGemini_Synthesize(t *testing.T) {
	pcm := make([]byte, 4800) // 100ms of 24kHz PCM16

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
			GenerationConfig struct {
				ResponseModalities []string `json:"responseModalities"`
				SpeechConfig       struct {
					VoiceConfig struct {
						PrebuiltVoiceConfig struct {
							VoiceName string `json:"voiceName"`
						} `json:"prebuiltVoiceConfig"`
					} `json:"voiceConfig"`
				} `json:"speechConfig"`
			} `json:"generationConfig"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("bad request body: %v", err)
		}

		if len(payload.GenerationConfig.ResponseModalities) != 1 || payload.GenerationConfig.ResponseModalities[0] != "AUDIO" {
			t.Errorf("expected AUDIO modality, got %v", payload.GenerationConfig.ResponseModalities)
		}
		if got := payload.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName; got != "Kore" {
			t.Errorf("expected voice Kore, got %q", got)
		}
		if text := payload.Contents[0].Parts[0].Text; !strings.HasPrefix(text, "Confirmando pedido: ") {
			t.Errorf("expected confirmation prefix, got %q", text)
		}

		resp := map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{
						"inlineData": map[string]any{
							"mimeType": "audio/pcm;rate=24000",
							"data":     base64.StdEncoding.EncodeToString(pcm),
						},
					}},
				},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	g, err := NewGemini("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	result, err := g.Synthesize(context.Background(), "2 Café con leche")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	if len(result.Audio) != len(pcm) {
		t.Errorf("expected %d audio bytes, got %d", len(pcm), len(result.Audio))
	}
	if result.Format.SampleRate != 24000 {
		t.Errorf("expected 24kHz format, got %d", result.Format.SampleRate)
	}
	if result.Duration != 100*time.Millisecond {
		t.Errorf("expected 100ms duration, got %v", result.Duration)
	}
}

func TestGemini_NoAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/pcm","data":""}}]}}]}`))
	}))
	defer srv.Close()

	g, err := NewGemini("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := g.Synthesize(context.Background(), "hola"); !errors.Is(err, ErrNoAudio) {
		t.Errorf("expected ErrNoAudio, got %v", err)
	}
}

func TestGemini_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid key"}}`))
	}))
	defer srv.Close()

	g, err := NewGemini("bad-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	_, err = g.Synthesize(context.Background(), "hola")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.IsUnauthorized() {
		t.Errorf("expected unauthorized, got status %d", apiErr.StatusCode)
	}
}

func TestNewGemini_RequiresKey(t *testing.T) {
	if _, err := NewGemini(""); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestMock_RecordsCalls(t *testing.T) {
	m := NewMock()

	result, err := m.Synthesize(context.Background(), "2 Medialunas")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if len(result.Audio) == 0 {
		t.Error("expected non-empty default audio")
	}

	if m.CallCount("Synthesize") != 1 {
		t.Errorf("expected 1 Synthesize call, got %d", m.CallCount("Synthesize"))
	}

	calls := m.Calls()
	if calls[0].Text != "2 Medialunas" {
		t.Errorf("expected recorded text, got %q", calls[0].Text)
	}
}

func TestMock_CustomError(t *testing.T) {
	m := NewMock()
	m.SynthesizeFunc = func(context.Context, string) (*AudioResult, error) {
		return nil, ErrNoAudio
	}

	if _, err := m.Synthesize(context.Background(), "x"); !errors.Is(err, ErrNoAudio) {
		t.Errorf("expected ErrNoAudio, got %v", err)
	}
}
