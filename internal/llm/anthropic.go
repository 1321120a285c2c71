// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/deep-research/internal/httputil"
	"github.com/pdiddy/deep-research/pkg/types"
)

// DefaultAnthropicURL is the Claude Messages API endpoint.
const DefaultAnthropicURL = "https://api.anthropic.com/v1/messages"

// AnthropicBackend calls the Claude Messages API.
type AnthropicBackend struct {
	APIKey    string
	Model     string
	MaxTokens int

	// Timeout bounds one call including rate-limit retries. Zero means no
	// timeout beyond ctx.
	Timeout time.Duration

	// MaxRetries is passed to httputil.DoWithRetry.
	MaxRetries int

	// BaseURL overrides DefaultAnthropicURL; tests point it at httptest.
	BaseURL string

	Client *http.Client
}

// NewAnthropicBackend builds a backend from the shared AI settings.
func NewAnthropicBackend(cfg types.AIConfig) *AnthropicBackend {
	return &AnthropicBackend{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		MaxTokens:  cfg.MaxTokens,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		Client:     &http.Client{},
	}
}

// anthropicRequest is the request body for the Claude Messages API.
type anthropicRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

// anthropicResponse is the response body from the Claude Messages API.
type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
}

// anthropicContent is a content block in the Claude API response.
type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Complete sends req to the Claude API and returns the concatenated text blocks.
func (a *AnthropicBackend) Complete(ctx context.Context, req Request) (string, error) {
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	model := types.ModelOr(req.Model, a.Model)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	body := anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  ensureUserTurn(append([]Message(nil), req.Messages...)),
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := a.BaseURL
	if url == "" {
		url = DefaultAnthropicURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := httputil.DoWithRetry(ctx, a.Client, httpReq, a.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(msg))
	}

	var cResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}

	var parts []string
	for _, block := range cResp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text content in Claude API response")
	}
	return trimText(parts), nil
}
