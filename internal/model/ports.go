package model

import (
	"context"
	"errors"
)

// ── Port Interfaces ──
// These interfaces decouple the monitor and report logic from concrete
// adapters (OKX, Redis, SQLite, flat files). Each adapter satisfies one of them.

// ErrReportNotFound is returned by ReportStore lookups that match nothing.
var ErrReportNotFound = errors.New("report not found")

// CandleSource fetches OHLC bars for an already-normalized instrument id.
type CandleSource interface {
	// FetchCandles returns candles sorted ascending by TS.
	FetchCandles(ctx context.Context, instID, bar string, limit int) ([]Candle, error)
}

// EventPublisher fans tick and signal events out to external subscribers
// (e.g. Redis PubSub, WebSocket clients).
type EventPublisher interface {
	PublishTick(ctx context.Context, ev TickEvent) error
	PublishSignal(ctx context.Context, ev SignalEvent) error
}

// SignalJournal persists notified signals for later review.
type SignalJournal interface {
	RecordSignal(ctx context.Context, ev SignalEvent) error

	// Close releases underlying resources.
	Close() error
}

// ReportStore is a flat key-value store of research reports. "Latest" is
// defined by insertion order; there are no transactions.
type ReportStore interface {
	// Save inserts a report as the newest entry.
	Save(ctx context.Context, r Report) error

	// GetByID returns ErrReportNotFound when no report has the id.
	GetByID(ctx context.Context, id string) (Report, error)

	// List returns up to limit reports, newest first.
	List(ctx context.Context, limit int) ([]Report, error)

	// FindLatestByNameOrSymbol returns the newest report whose symbolOrName
	// matches query, or ErrReportNotFound.
	FindLatestByNameOrSymbol(ctx context.Context, query string) (Report, error)

	// Update merges the non-nil fields and stamps UpdatedAt. The id never changes.
	Update(ctx context.Context, id string, u ReportUpdate) (Report, error)

	// Delete removes a report; ErrReportNotFound if absent.
	Delete(ctx context.Context, id string) error
}
