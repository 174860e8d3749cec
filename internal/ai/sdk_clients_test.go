package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestAnthropicGenerate(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_01",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-3-haiku-20240307",
			"content":     []map[string]any{{"type": "text", "text": "📊 DAILY SUMMARY"}},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 120, "output_tokens": 30},
		})
	}))
	defer srv.Close()

	c := NewAnthropicClient("k", 2*time.Second, 0, srv.URL)
	resp, err := c.Generate(context.Background(), UserPrompt("claude-3-haiku-20240307", "hi", 512, 0.6))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasSuffix(gotPath, "/v1/messages") {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if mt, _ := gotBody["max_tokens"].(float64); mt != 512 {
		t.Fatalf("expected max_tokens 512, got %v", gotBody["max_tokens"])
	}
	if resp.Text() != "📊 DAILY SUMMARY" {
		t.Fatalf("unexpected text %q", resp.Text())
	}
	if resp.Usage.TotalTokens != 150 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
}

func TestAnthropicContextOverflow(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "invalid_request_error", "message": "prompt is too long: 210000 tokens > 200000 maximum"},
		})
	}))
	defer srv.Close()

	c := NewAnthropicClient("k", 2*time.Second, 0, srv.URL)
	_, err := c.Generate(context.Background(), UserPrompt("claude-3-haiku-20240307", "hi", 512, 0.6))
	if !IsContextLength(err) {
		t.Fatalf("expected context length error, got %v", err)
	}
}

func TestAnthropicMissingKey(t *testing.T) {
	c := NewAnthropicClient("", time.Second, 0, "")
	if _, err := c.Generate(context.Background(), UserPrompt("m", "hi", 10, 0)); err == nil {
		t.Fatal("expected error")
	}
}

func TestGeminiGenerate(t *testing.T) {
	var gotPath string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content":      map[string]any{"role": "model", "parts": []map[string]any{{"text": "ok from gemini"}}},
				"finishReason": "STOP",
			}},
			"usageMetadata": map[string]any{"promptTokenCount": 7, "candidatesTokenCount": 3, "totalTokenCount": 10},
		})
	}))
	defer srv.Close()

	c := NewGeminiClientWithBaseURL("k", 2*time.Second, srv.URL)
	resp, err := c.Generate(context.Background(), UserPrompt("gemini-1.5-flash", "hi", 256, 0.4))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(gotPath, "gemini-1.5-flash:generateContent") {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if resp.Text() != "ok from gemini" || resp.Usage.TotalTokens != 10 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestRegistryGeminiHonoursBaseURL(t *testing.T) {
	var hits int
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content":      map[string]any{"role": "model", "parts": []map[string]any{{"text": "routed"}}},
				"finishReason": "STOP",
			}},
		})
	}))
	defer srv.Close()

	rt, err := NewRegistry().Resolve(ProviderGemini, RuntimeConfig{APIKey: "k", HTTPTimeout: 2 * time.Second, BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	resp, err := rt.Generate(context.Background(), UserPrompt("gemini-1.5-flash", "hi", 64, 0.2))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if hits != 1 || resp.Text() != "routed" {
		t.Fatalf("configured endpoint not used: hits=%d resp=%+v", hits, resp)
	}
}

func TestMapGeminiError(t *testing.T) {
	cases := []struct {
		msg   string
		check func(error) bool
	}{
		{"Error 400, Message: The input token count exceeds the maximum number of tokens allowed", IsContextLength},
		{"Error 403, Status: PERMISSION_DENIED", func(err error) bool { var e *AuthError; return errors.As(err, &e) }},
		{"Error 429, Status: RESOURCE_EXHAUSTED", func(err error) bool { var e *RateLimitError; return errors.As(err, &e) }},
	}
	for _, c := range cases {
		if err := mapGeminiError(errors.New(c.msg)); !c.check(err) {
			t.Errorf("%q mapped to %T", c.msg, err)
		}
	}
}

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()
	for _, p := range []string{ProviderOpenAI, ProviderAnthropic, ProviderXAI, ProviderGemini, ProviderOpenRouter, ProviderOllama, "google", "local"} {
		if _, ok := r.Get(p, RuntimeConfig{APIKey: "k"}); !ok {
			t.Errorf("provider %s not registered", p)
		}
	}
	if _, err := r.Resolve("nope", RuntimeConfig{}); err == nil {
		t.Fatal("expected unknown provider error")
	}
}

type stubRuntime struct{}

func (stubRuntime) Generate(context.Context, GenerateRequest) (*GenerateResponse, error) {
	return &GenerateResponse{Choices: []Choice{{Message: Message{Content: "stub"}}}}, nil
}

func TestRegistryIsolation(t *testing.T) {
	a, b := NewRegistry(), NewRegistry()
	a.Register(ProviderOpenAI, func(RuntimeConfig) Runtime { return stubRuntime{} })
	rt, _ := a.Get(ProviderOpenAI, RuntimeConfig{})
	if _, ok := rt.(stubRuntime); !ok {
		t.Fatalf("expected stub runtime, got %T", rt)
	}
	rt, _ = b.Get(ProviderOpenAI, RuntimeConfig{})
	if _, ok := rt.(*Client); !ok {
		t.Fatalf("registries share state: got %T", rt)
	}
}
