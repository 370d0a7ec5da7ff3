package monitor

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

const (
	defaultQuote   = "USDT"
	defaultChannel = "default"
)

var (
	instIDRe     = regexp.MustCompile(`^[A-Z0-9]+-[A-Z0-9]+$`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeInstID canonicalises free-text instrument input into the
// BASE-QUOTE form, e.g. "btc/usdt", "btc usdt" and "btc" all become "BTC-USDT".
// A single run of whitespace between two codes acts as the separator when no
// explicit one is given; any other whitespace is dropped.
func NormalizeInstID(input string) (string, error) {
	raw := strings.ToUpper(strings.TrimSpace(input))
	raw = strings.ReplaceAll(raw, "/", "-")
	if fields := strings.Fields(raw); len(fields) == 2 && !strings.Contains(raw, "-") {
		raw = fields[0] + "-" + fields[1]
	}
	raw = whitespaceRe.ReplaceAllString(raw, "")

	if raw == "" {
		return "", fmt.Errorf("%w: instId is required, e.g. BTC-USDT", ErrInvalidIdentifier)
	}
	if !strings.Contains(raw, "-") {
		raw += "-" + defaultQuote
	}
	if !instIDRe.MatchString(raw) {
		return "", fmt.Errorf("%w: %q, use the BTC-USDT format", ErrInvalidIdentifier, input)
	}
	return raw, nil
}

// BuildMonitorID derives the composite identity of a monitor. The bot token
// only contributes a short SHA-1 prefix so the id is safe to expose.
func BuildMonitorID(instID, botToken, chatID string) string {
	token := strings.TrimSpace(botToken)
	chat := strings.TrimSpace(chatID)
	if chat == "" {
		chat = defaultChannel
	}
	tokenHash := defaultChannel
	if token != "" {
		sum := sha1.Sum([]byte(token))
		tokenHash = hex.EncodeToString(sum[:])[:10]
	}
	return instID + "|" + chat + "|" + tokenHash
}

// MaskChatID hides all but the last four characters of a chat id.
func MaskChatID(chatID string) string {
	v := strings.TrimSpace(chatID)
	if len(v) <= 4 {
		return v
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}
