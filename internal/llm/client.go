// Package llm is a thin client for OpenAI-compatible chat completion
// endpoints (OpenRouter, Ollama's /v1, vLLM). The quality engine treats it as
// an opaque text generator.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	provider string
	apiKey   string
	baseURL  string
	http     *resty.Client
}

// New creates a chat-completions client. baseURL is the provider root, e.g.
// https://openrouter.ai/api or http://localhost:11434/v1.
func New(provider, apiKey, baseURL string) *Client {
	return &Client{
		provider: strings.ToLower(provider),
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     resty.New().SetTimeout(30 * time.Second),
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generation mirrors quality.Generation without importing it; the app layer
// adapts between the two.
type Generation struct {
	Text         string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
}

func (c *Client) GenerateText(ctx context.Context, model, prompt string) (Generation, error) {
	var out chatResponse
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(chatRequest{
			Model:       model,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			Temperature: 0.0,
		}).
		SetResult(&out)
	if c.apiKey != "" {
		req.SetHeader("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := req.Post(c.baseURL + "/chat/completions")
	if err != nil {
		return Generation{}, fmt.Errorf("chat completion: %w", err)
	}
	if resp.IsError() {
		return Generation{}, fmt.Errorf("chat completion: %s; body: %s", resp.Status(), resp.String())
	}
	if len(out.Choices) == 0 {
		return Generation{}, fmt.Errorf("chat completion: no choices returned")
	}

	return Generation{
		Text:         out.Choices[0].Message.Content,
		Provider:     c.provider,
		Model:        model,
		InputTokens:  out.Usage.PromptTokens,
		OutputTokens: out.Usage.CompletionTokens,
	}, nil
}
