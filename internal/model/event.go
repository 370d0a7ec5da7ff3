package model

import (
	"encoding/json"
	"time"
)

// CandleStatus tells subscribers whether a tick was evaluated on a forming
// bar (provisional) or on a closed bar.
type CandleStatus string

const (
	StatusIntrabar CandleStatus = "intrabar"
	StatusClosed   CandleStatus = "closed"
)

// Reason codes attached to every check result.
const (
	ReasonInsufficientCandles = "insufficient_closed_candles"
	ReasonIntrabarCross       = "intrabar_cross_triggered"
	ReasonInitialized         = "initialized_wait_next_close"
	ReasonNoNewClosedCandle   = "no_new_closed_candle"
	ReasonCrossTriggered      = "cross_triggered"
	ReasonCrossConfirmed      = "cross_confirmed"
	ReasonNoCross             = "no_cross"
)

// TelegramChannel is a per-monitor notification destination. The bot token
// is a credential and never leaves the process in JSON.
type TelegramChannel struct {
	BotToken string `json:"-"`
	ChatID   string `json:"-"`
}

// Configured reports whether both token and chat id are set.
func (c TelegramChannel) Configured() bool {
	return c.BotToken != "" && c.ChatID != ""
}

// TickEvent is the structured payload emitted after every evaluated check.
type TickEvent struct {
	MonitorID    string          `json:"monitorId"`
	InstID       string          `json:"instId"`
	CheckedAt    time.Time       `json:"checkedAt"`
	CandleTime   time.Time       `json:"candleTime"`
	Open         float64         `json:"open"`
	High         float64         `json:"high"`
	Low          float64         `json:"low"`
	Close        float64         `json:"close"`
	MACD         float64         `json:"macd"`
	SignalLine   float64         `json:"signalLine"`
	Histogram    float64         `json:"histogram"`
	SignalType   SignalType      `json:"signalType,omitempty"`
	Triggered    bool            `json:"triggered"`
	Reason       string          `json:"reason"`
	CandleStatus CandleStatus    `json:"candleStatus"`
	Channel      TelegramChannel `json:"-"`
}

// JSON returns the JSON-encoded tick (ignoring errors for hot-path usage).
func (e *TickEvent) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// SignalEvent is emitted once per new, deduplicated cross.
type SignalEvent struct {
	MonitorID    string          `json:"monitorId"`
	InstID       string          `json:"instId"`
	SignalType   SignalType      `json:"signalType"`
	CandleTime   time.Time       `json:"candleTime"`
	Close        float64         `json:"close"`
	MACD         float64         `json:"macd"`
	SignalLine   float64         `json:"signalLine"`
	Histogram    float64         `json:"histogram"`
	CandleStatus CandleStatus    `json:"candleStatus"`
	Channel      TelegramChannel `json:"-"`
}

// JSON returns the JSON-encoded signal.
func (e *SignalEvent) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}
