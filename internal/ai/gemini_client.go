package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

// GeminiClient adapts the Gemini GenerateContent API to Runtime.
// The SDK client is created lazily on first use.
type GeminiClient struct {
	apiKey  string
	baseURL string
	http    *http.Client

	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewGeminiClient returns a client using the public Gemini API backend.
func NewGeminiClient(apiKey string, httpTimeout time.Duration) *GeminiClient {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	return &GeminiClient{apiKey: apiKey, http: &http.Client{Timeout: httpTimeout}}
}

// NewGeminiClientWithBaseURL allows injecting a custom base URL (used in tests).
func NewGeminiClientWithBaseURL(apiKey string, httpTimeout time.Duration, baseURL string) *GeminiClient {
	c := NewGeminiClient(apiKey, httpTimeout)
	c.baseURL = baseURL
	return c
}

func (c *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		cfg := &genai.ClientConfig{
			APIKey:     c.apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: c.http,
		}
		if c.baseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
		}
		c.client, c.initErr = genai.NewClient(ctx, cfg)
	})
	return c.client, c.initErr
}

func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, errors.New("gemini API key is missing")
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	client, err := c.sdk(ctx)
	if err != nil {
		return nil, &UnreachableError{Host: "generativelanguage.googleapis.com", Err: err}
	}

	var system []string
	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, mapGeminiError(err)
	}
	out := &GenerateResponse{
		Model:   req.Model,
		Choices: []Choice{{Message: Message{Role: "assistant", Content: resp.Text()}}},
	}
	if len(resp.Candidates) > 0 {
		out.Choices[0].FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// mapGeminiError classifies by the status words Google APIs put in messages.
func mapGeminiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := err.Error()
	apiErr := &APIError{Message: msg}
	switch {
	case looksLikeContextLength(msg) || containsFold(msg, "exceeds the maximum number of tokens"):
		return &ContextLengthError{APIError: apiErr}
	case containsAnyFold(msg, "UNAUTHENTICATED", "PERMISSION_DENIED", "API key not valid"):
		apiErr.StatusCode = http.StatusUnauthorized
		return &AuthError{APIError: apiErr}
	case containsFold(msg, "RESOURCE_EXHAUSTED"):
		apiErr.StatusCode = http.StatusTooManyRequests
		return &RateLimitError{APIError: apiErr}
	case containsFold(msg, "NOT_FOUND"):
		apiErr.StatusCode = http.StatusNotFound
		return &ModelNotFoundError{APIError: apiErr}
	case containsAnyFold(msg, "INTERNAL", "UNAVAILABLE"):
		apiErr.StatusCode = http.StatusInternalServerError
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}
