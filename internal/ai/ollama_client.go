package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultOllamaHost is the local Ollama endpoint.
const DefaultOllamaHost = "http://127.0.0.1:11434"

// OllamaClient runs prompts against a local Ollama server through /api/chat.
// Only server errors (5xx) and transient network failures are retried.
type OllamaClient struct {
	http        *http.Client
	host        string
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewOllamaClient returns a client for host. Zero values select local defaults.
func NewOllamaClient(host string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *OllamaClient {
	c := &OllamaClient{host: host, maxAttempts: retryMax, baseDelay: baseDelay, maxDelay: maxDelay}
	if c.host == "" {
		c.host = DefaultOllamaHost
	}
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	c.http = &http.Client{Timeout: httpTimeout}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 2
	}
	if c.baseDelay <= 0 {
		c.baseDelay = 200 * time.Millisecond
	}
	if c.maxDelay <= 0 {
		c.maxDelay = time.Second
	}
	return c
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string            `json:"model"`
	Message ollamaChatMessage `json:"message"`
	// token counts reported by the runtime
	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	payload, err := encodeOllamaRequest(req)
	if err != nil {
		return nil, err
	}
	delay := c.baseDelay
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := c.post(ctx, payload)
		if err == nil {
			return out, nil
		}
		lastErr = err

		var srvErr *ServerError
		var netErr *UnreachableError
		retry := errors.As(err, &srvErr) || (errors.As(err, &netErr) && isRetryableNetErr(netErr.Err))
		if !retry || attempt == c.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(withJitter(delay)):
		}
		delay = min(delay*2, c.maxDelay)
	}
	return nil, lastErr
}

func encodeOllamaRequest(req GenerateRequest) ([]byte, error) {
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	body := ollamaChatRequest{Model: req.Model, Options: map[string]any{}}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, ollamaChatMessage{Role: m.Role, Content: m.Content})
	}
	if req.Temperature > 0 {
		body.Options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		body.Options["num_predict"] = req.MaxTokens
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return b, nil
}

// post performs one /api/chat round trip.
func (c *OllamaClient) post(ctx context.Context, payload []byte) (*GenerateResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &UnreachableError{Host: c.host, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ollamaError(resp)
	}
	var body ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &GenerateResponse{
		Model:     body.Model,
		RequestID: fmt.Sprintf("ollama_%d", time.Now().UnixNano()),
		Choices:   []Choice{{Message: Message{Role: "assistant", Content: body.Message.Content}}},
		Usage: Usage{
			PromptTokens:     body.PromptEvalCount,
			CompletionTokens: body.EvalCount,
			TotalTokens:      body.PromptEvalCount + body.EvalCount,
		},
	}, nil
}

// ollamaError maps a non-2xx reply onto the provider error types.
// Ollama reports failures as {"error": "..."}.
func ollamaError(resp *http.Response) error {
	raw := map[string]any{}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	_ = json.Unmarshal(b, &raw)
	apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw}
	for _, k := range []string{"error", "message"} {
		if msg, ok := raw[k].(string); ok && msg != "" {
			apiErr.Message = msg
			break
		}
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &ModelNotFoundError{APIError: apiErr}
	case resp.StatusCode >= 500:
		return &ServerError{APIError: apiErr}
	case looksLikeContextLength(apiErr.Message):
		return &ContextLengthError{APIError: apiErr}
	case resp.StatusCode == http.StatusBadRequest:
		return &BadRequestError{APIError: apiErr}
	}
	return apiErr
}
