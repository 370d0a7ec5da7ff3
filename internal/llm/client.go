// Package llm calls hosted text-generation models. One Client speaks either
// the OpenRouter responses API or the Google Gemini generateContent API,
// chosen by the host of the configured base URL.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrMissingAPIKey = errors.New("llm: api key is missing")
	ErrEmptyOutput   = errors.New("llm: model returned empty output")
)

const (
	defaultGeminiBase = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout    = 90 * time.Second
	temperature       = 0.2
)

// Generator turns a prompt into model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config configures a Client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // host ending in openrouter.ai selects OpenRouter

	// Optional OpenRouter attribution headers.
	Referer string
	Title   string

	HTTPClient *http.Client
}

// Client generates text via OpenRouter or Gemini.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	referer string
	title   string
	http    *http.Client
}

// NewClient creates a client.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultGeminiBase
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: base,
		referer: cfg.Referer,
		title:   cfg.Title,
		http:    hc,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.apiKey != "" }

// Generate sends prompt to the configured provider.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if c.isOpenRouter() {
		return c.generateOpenRouter(ctx, prompt)
	}
	return c.generateGemini(ctx, prompt)
}

func (c *Client) isOpenRouter() bool {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Hostname()), "openrouter.ai")
}

func (c *Client) generateOpenRouter(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":       c.model,
		"input":       prompt,
		"temperature": temperature,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if c.referer != "" {
		headers["HTTP-Referer"] = c.referer
	}
	if c.title != "" {
		headers["X-Title"] = c.title
	}

	var resp responsesBody
	if err := postJSON(ctx, c.http, c.baseURL+"/responses", headers, payload, &resp, "OpenRouter"); err != nil {
		return "", err
	}
	text := resp.text(true)
	if text == "" {
		return "", fmt.Errorf("OpenRouter: %w", ErrEmptyOutput)
	}
	return text, nil
}

type geminiBody struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *Client) generateGemini(ctx context.Context, prompt string) (string, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))
	payload := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{"temperature": temperature},
	}

	var resp geminiBody
	if err := postJSON(ctx, c.http, endpoint, nil, payload, &resp, "Gemini"); err != nil {
		return "", err
	}

	var parts []string
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			parts = append(parts, p.Text)
		}
	}
	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if text == "" {
		return "", fmt.Errorf("Gemini: %w", ErrEmptyOutput)
	}
	return text, nil
}

// responsesBody covers the responses API and the chat-completions fallback.
type responsesBody struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
}

func (b *responsesBody) text(withChoices bool) string {
	if t := strings.TrimSpace(b.OutputText); t != "" {
		return t
	}

	var parts []string
	for _, item := range b.Output {
		for _, p := range item.Content {
			if p.Type == "output_text" && p.Text != "" {
				parts = append(parts, p.Text)
			}
		}
	}
	if t := strings.TrimSpace(strings.Join(parts, "\n")); t != "" || !withChoices {
		return t
	}

	parts = parts[:0]
	for _, ch := range b.Choices {
		if ch.Message.Content != "" {
			parts = append(parts, ch.Message.Content)
		} else {
			parts = append(parts, ch.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// postJSON posts payload and decodes a 2xx response into out. Non-2xx
// responses surface the provider's error message when present.
func postJSON(ctx context.Context, hc *http.Client, endpoint string, headers map[string]string, payload, out any, provider string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send: %w", provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error.Message != "" {
			return fmt.Errorf("%s: %s", provider, eb.Error.Message)
		}
		return fmt.Errorf("%s request failed, HTTP %d", provider, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode: %w", provider, err)
	}
	return nil
}
