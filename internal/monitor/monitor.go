// Package monitor runs independently scheduled MACD crossover monitors.
//
// Each monitor polls a candle source for one instrument on a fixed interval,
// recomputes the MACD series and dispatches tick and signal events through
// optional hooks. Signals are deduplicated per bar and cross type.
package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/archertao78/aistock/internal/model"
)

var (
	// ErrInvalidIdentifier is returned for malformed instrument ids.
	ErrInvalidIdentifier = errors.New("invalid instrument id")
	// ErrNotFound is returned when a monitor identity is unknown.
	ErrNotFound = errors.New("monitor not found")
	// ErrClosed is returned by Start once the registry has been closed.
	ErrClosed = errors.New("monitor registry closed")
)

const (
	// MinInterval is the fastest a monitor may poll.
	MinInterval = 15 * time.Second

	DefaultInterval = 60 * time.Second
	DefaultBar      = "30m"
	DefaultLookback = 120
)

// Hooks are the notification consumers. Either field may be nil. Errors are
// logged and never abort a check.
type Hooks struct {
	OnTick   func(ctx context.Context, ev model.TickEvent) error
	OnSignal func(ctx context.Context, ev model.SignalEvent) error
}

// Config holds the registry scheduling parameters.
type Config struct {
	Interval time.Duration // floored at MinInterval; <= 0 means DefaultInterval
	Bar      string        // candle size requested from the source
	Lookback int           // candles requested per check
	Intrabar bool          // evaluate the forming bar for early signals
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Interval < MinInterval {
		c.Interval = MinInterval
	}
	if c.Bar == "" {
		c.Bar = DefaultBar
	}
	if c.Lookback <= 0 {
		c.Lookback = DefaultLookback
	}
	return c
}

// Snapshot is the read-only projection of a monitor. It never carries the
// raw Telegram credentials.
type Snapshot struct {
	MonitorID            string           `json:"monitorId"`
	InstID               string           `json:"instId"`
	StartedAt            time.Time        `json:"startedAt"`
	LastCheckedAt        *time.Time       `json:"lastCheckedAt"`
	LastSignalAt         *time.Time       `json:"lastSignalAt"`
	LastSignalType       model.SignalType `json:"lastSignalType,omitempty"`
	HasCustomTelegram    bool             `json:"hasCustomTelegram"`
	TelegramChatIDMasked string           `json:"telegramChatIdMasked"`
}

// CheckResult is the outcome of one check. Tick is set whenever a closed bar
// was evaluated.
type CheckResult struct {
	MonitorID string           `json:"monitorId"`
	InstID    string           `json:"instId"`
	Triggered bool             `json:"triggered"`
	Reason    string           `json:"reason"`
	CheckedAt time.Time        `json:"checkedAt"`
	Tick      *model.TickEvent `json:"tick,omitempty"`
}

// monitor is one scheduled instrument/channel pair. Mutable fields are
// guarded by Registry.mu.
type monitor struct {
	id        string
	instID    string
	channel   model.TelegramChannel
	startedAt time.Time
	cancel    context.CancelFunc

	lastCheckedAt  time.Time
	lastSignalAt   time.Time
	lastSignalType model.SignalType
	lastTriggerKey string
	lastClosedTS   int64
	initialized    bool
}

func (m *monitor) snapshot() Snapshot {
	s := Snapshot{
		MonitorID:            m.id,
		InstID:               m.instID,
		StartedAt:            m.startedAt,
		LastSignalType:       m.lastSignalType,
		HasCustomTelegram:    m.channel.Configured(),
		TelegramChatIDMasked: MaskChatID(m.channel.ChatID),
	}
	if !m.lastCheckedAt.IsZero() {
		t := m.lastCheckedAt
		s.LastCheckedAt = &t
	}
	if !m.lastSignalAt.IsZero() {
		t := m.lastSignalAt
		s.LastSignalAt = &t
	}
	return s
}
