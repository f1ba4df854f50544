package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage counts tokens as reported by the API.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Total is prompt plus completion tokens.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Client calls one model on an OpenAI-compatible chat completions endpoint.
// It is safe for concurrent use.
type Client struct {
	BaseURL string
	Model   string

	apiKey     string
	httpClient *http.Client

	promptTokens     atomic.Int64
	completionTokens atomic.Int64
}

// NewClient builds a client for model. The API key is read from the keyEnv
// environment variable; a missing key is a configuration error and is
// reported before any task runs.
func NewClient(baseURL, keyEnv, model string) (*Client, error) {
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s not set", keyEnv)
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		Model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Complete sends messages and returns the first choice's content, trimmed.
func (c *Client) Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", c.Model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%s API returned %d: %s", c.Model, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var chatResult struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage Usage `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chatResult); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(chatResult.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	c.promptTokens.Add(int64(chatResult.Usage.PromptTokens))
	c.completionTokens.Add(int64(chatResult.Usage.CompletionTokens))
	return strings.TrimSpace(chatResult.Choices[0].Message.Content), nil
}

// TotalUsage reports tokens consumed across all calls on this client.
func (c *Client) TotalUsage() Usage {
	return Usage{
		PromptTokens:     int(c.promptTokens.Load()),
		CompletionTokens: int(c.completionTokens.Load()),
	}
}
