// Package oracle wraps the external text-generation service behind a
// narrow request/response interface so classification logic can be unit
// tested with a deterministic stub.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Request is one blocking completion call. The response is untrusted text;
// callers validate it before use.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Client is the oracle contract consumed by the engine and the bot.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config configures the HTTP chat client.
type Config struct {
	BaseURL string // e.g. https://api.openai.com/v1
	APIKey  string
	Model   string
	Timeout time.Duration
}

// ChatClient talks to an OpenAI-compatible chat completions endpoint.
type ChatClient struct {
	cfg    Config
	httpc  *http.Client
	logger *log.Logger
}

// NewChatClient creates an HTTP-backed oracle client.
func NewChatClient(cfg Config, logger *log.Logger) *ChatClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatClient{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Complete sends one chat completion request and returns the generated
// text. No retries; callers degrade to their documented fallbacks.
func (c *ChatClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("no oracle API key available")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	body := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
		"max_tokens":  maxTokens,
		"temperature": req.Temperature,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal oracle request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create oracle request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read oracle response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result map[string]any
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parse oracle response: %w", err)
	}

	content, err := extractContent(result)
	if err != nil {
		return "", err
	}
	c.logger.Debug("oracle completion", "model", c.cfg.Model, "duration", time.Since(started))
	return content, nil
}

// extractContent pulls the generated text out of an OpenAI-compatible
// response body.
func extractContent(result map[string]any) (string, error) {
	if choices, ok := result["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					return content, nil
				}
			}
		}
	}
	// Ollama-style bodies put the message at the top level.
	if message, ok := result["message"].(map[string]any); ok {
		if content, ok := message["content"].(string); ok {
			return content, nil
		}
	}
	return "", fmt.Errorf("no content in oracle response")
}
