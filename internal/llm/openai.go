package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const defaultOpenAIBase = "https://api.openai.com/v1"

// OpenAIClient calls the OpenAI responses API with structured input.
type OpenAIClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

// NewOpenAIClient creates an OpenAI client. Referer and Title are ignored.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultOpenAIBase
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &OpenAIClient{apiKey: cfg.APIKey, model: cfg.Model, baseURL: base, http: hc}
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string { return c.model }

// Generate sends prompt as a single user message.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	payload := map[string]any{
		"model": c.model,
		"input": []map[string]any{
			{
				"role": "user",
				"content": []map[string]string{
					{"type": "input_text", "text": prompt},
				},
			},
		},
		"temperature": temperature,
	}

	var resp responsesBody
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := postJSON(ctx, c.http, c.baseURL+"/responses", headers, payload, &resp, "OpenAI"); err != nil {
		return "", err
	}
	text := resp.text(false)
	if text == "" {
		return "", fmt.Errorf("OpenAI: %w", ErrEmptyOutput)
	}
	return text, nil
}
