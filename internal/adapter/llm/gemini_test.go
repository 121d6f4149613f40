package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"walletchat/internal/domain"
	"walletchat/internal/infra/config"
	"walletchat/internal/infra/logger"
)

func newGeminiTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *GeminiProvider) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewGeminiProvider(config.ProviderConfig{
		Name:    "gemini-test",
		Model:   "gemini-2.5-flash",
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}, logger.Discard())
	return srv, p
}

func TestGeminiComplete(t *testing.T) {
	var gotReq geminiRequest
	_, p := newGeminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.5-flash:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key in query: %s", r.URL.RawQuery)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}

		resp := geminiResponse{
			Candidates: []geminiCandidate{
				{Content: geminiContent{Role: "model", Parts: []geminiPart{{Text: `{"intent":"send"}`}}}},
			},
			UsageMetadata: &geminiUsage{PromptTokenCount: 10, CandidatesTokenCount: 5, TotalTokenCount: 15},
		}
		json.NewEncoder(w).Encode(resp)
	})

	got, err := p.Complete(context.Background(), domain.CompletionRequest{
		System:      "You extract intents.",
		Prompt:      "Send 5 ETH to @alice",
		Temperature: 0.1,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"intent":"send"}` {
		t.Errorf("Complete = %q", got)
	}

	if gotReq.SystemInstruction == nil || gotReq.SystemInstruction.Parts[0].Text != "You extract intents." {
		t.Errorf("system instruction not forwarded: %+v", gotReq.SystemInstruction)
	}
	if len(gotReq.Contents) != 1 || gotReq.Contents[0].Parts[0].Text != "Send 5 ETH to @alice" {
		t.Errorf("prompt not forwarded: %+v", gotReq.Contents)
	}
	if gotReq.GenerationConfig == nil || gotReq.GenerationConfig.Temperature != 0.1 {
		t.Errorf("generation config not forwarded: %+v", gotReq.GenerationConfig)
	}
}

func TestGeminiCompleteEmptyCandidates(t *testing.T) {
	_, p := newGeminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiResponse{})
	})

	_, err := p.Complete(context.Background(), domain.CompletionRequest{Prompt: "hi"})
	if !errors.Is(err, domain.ErrProviderError) {
		t.Errorf("err = %v, want ErrProviderError", err)
	}
}

func TestGeminiCompleteErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, domain.ErrRateLimit},
		{"unauthorized", http.StatusUnauthorized, domain.ErrAuthInvalid},
		{"forbidden", http.StatusForbidden, domain.ErrAuthInvalid},
		{"server error", http.StatusInternalServerError, domain.ErrProviderError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, p := newGeminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			})
			_, err := p.Complete(context.Background(), domain.CompletionRequest{Prompt: "hi"})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGeminiDefaultBaseURL(t *testing.T) {
	p := NewGeminiProvider(config.ProviderConfig{Name: "g", Model: "m"}, logger.Discard())
	if p.baseURL != "https://generativelanguage.googleapis.com" {
		t.Errorf("baseURL = %q", p.baseURL)
	}
}

func TestFirstCandidateTextJoinsParts(t *testing.T) {
	resp := geminiResponse{
		Candidates: []geminiCandidate{
			{Content: geminiContent{Parts: []geminiPart{{Text: "hello "}, {Text: "world"}}}},
		},
	}
	if got := firstCandidateText(resp); got != "hello world" {
		t.Errorf("firstCandidateText = %q", got)
	}
}
