// Package genai resolves notification text through an OpenAI-compatible
// chat-completions endpoint. Generation failures are non-fatal to delivery;
// callers fall back to the task's static message.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultModel is used when a task does not name its own model.
	DefaultModel = "gpt-4o-mini"

	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultMaxTokens is the per-generation token budget.
	DefaultMaxTokens = 256
)

// Config holds generation client configuration.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string // default system prompt when a task has none
	MaxTokens    int
	Timeout      time.Duration
}

type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate produces text for prompt. An empty model or systemPrompt falls
// back to the configured defaults.
func (c *Client) Generate(ctx context.Context, model, systemPrompt, prompt string) (string, error) {
	if model == "" {
		model = c.cfg.Model
	}
	if systemPrompt == "" {
		systemPrompt = c.cfg.SystemPrompt
	}

	msgs := []chatMessage{}
	if systemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{Model: model, Messages: msgs, MaxTokens: c.cfg.MaxTokens})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation failed: status %d: %s", resp.StatusCode, string(raw))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("invalid generation response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("generation failed: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("generation returned no content")
	}
	return out.Choices[0].Message.Content, nil
}
