package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTelegramAPIBase = "https://api.telegram.org"

var ErrTelegramNotConfigured = errors.New("telegram: bot token and chat id are required")

// TelegramNotifier sends plain-text messages via the Telegram Bot API.
// The bot token and chat are passed per call so one notifier serves every
// monitor's channel.
type TelegramNotifier struct {
	apiBase string
	client  *http.Client
}

// NewTelegramNotifier creates a Telegram notifier.
// apiBase: Bot API root, default https://api.telegram.org
func NewTelegramNotifier(apiBase string) *TelegramNotifier {
	base := strings.TrimRight(apiBase, "/")
	if base == "" {
		base = defaultTelegramAPIBase
	}
	return &TelegramNotifier{
		apiBase: base,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts text to chatID using botToken.
func (t *TelegramNotifier) Send(ctx context.Context, botToken, chatID, text string) error {
	botToken = strings.TrimSpace(botToken)
	chatID = strings.TrimSpace(chatID)
	text = strings.TrimSpace(text)
	if botToken == "" || chatID == "" {
		return ErrTelegramNotConfigured
	}
	if text == "" {
		return errors.New("telegram: message text is empty")
	}

	body, _ := json.Marshal(map[string]interface{}{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	})

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, botToken)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The URL carries the token; report only the transport cause.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	var parsed telegramResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&parsed)
	if resp.StatusCode != http.StatusOK || decodeErr != nil || !parsed.OK {
		if parsed.Description != "" {
			return fmt.Errorf("telegram: %s", parsed.Description)
		}
		return fmt.Errorf("telegram: request failed, HTTP %d", resp.StatusCode)
	}
	return nil
}
