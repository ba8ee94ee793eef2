// Package telegram is a minimal Bot API client: webhook management and
// outbound messages. It covers only what the bot needs and talks straight
// to the HTTP API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the production Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// Client calls Bot API methods for a single bot token.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given bot token. baseURL may be empty
// to use the production endpoint; tests point it at a local server.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		token:   token,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// SendMessage delivers text to a chat. HTML parse mode matches what the
// drafting prompts are allowed to emit.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	return c.call(ctx, "sendMessage", payload, nil)
}

// SetWebhook registers url as the bot's webhook endpoint.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	return c.call(ctx, "setWebhook", map[string]any{"url": url}, nil)
}

// DeleteWebhook unregisters the webhook so the token can be reused for
// polling or another deployment.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]any{}, nil)
}

func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: encode %s: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("telegram: read %s response: %w", method, err)
	}

	var env apiResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("telegram: decode %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !env.OK {
		return fmt.Errorf("telegram: %s failed: %s", method, env.Description)
	}
	if result != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("telegram: decode %s result: %w", method, err)
		}
	}
	return nil
}
