package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/archertao78/aistock/internal/model"
)

var _ model.SignalJournal = (*Store)(nil)

// RecordSignal appends a dispatched signal to the journal.
func (s *Store) RecordSignal(ctx context.Context, ev model.SignalEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signals (monitor_id, inst_id, signal_type, candle_status, candle_ts, close, macd, signal_line, histogram)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.MonitorID,
		ev.InstID,
		string(ev.SignalType),
		string(ev.CandleStatus),
		ev.CandleTime.UnixMilli(),
		ev.Close,
		ev.MACD,
		ev.SignalLine,
		ev.Histogram,
	)
	if err != nil {
		return fmt.Errorf("sqlite insert signal: %w", err)
	}
	return nil
}

// SignalRecord represents a row from the signals table.
type SignalRecord struct {
	ID           int64            `json:"id"`
	MonitorID    string           `json:"monitorId"`
	InstID       string           `json:"instId"`
	SignalType   model.SignalType `json:"signalType"`
	CandleStatus string           `json:"candleStatus"`
	CandleTime   time.Time        `json:"candleTime"`
	Close        float64          `json:"close"`
	MACD         float64          `json:"macd"`
	SignalLine   float64          `json:"signalLine"`
	Histogram    float64          `json:"histogram"`
}

// RecentSignals returns the last limit signals, newest first. An empty
// instID returns signals for every instrument.
func (s *Store) RecentSignals(ctx context.Context, instID string, limit int) ([]SignalRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, monitor_id, inst_id, signal_type, candle_status, candle_ts, close, macd, signal_line, histogram
		 FROM signals
		 WHERE (? = '' OR inst_id = ?)
		 ORDER BY id DESC LIMIT ?`, instID, instID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query signals: %w", err)
	}
	defer rows.Close()

	var out []SignalRecord
	for rows.Next() {
		var r SignalRecord
		var ts int64
		if err := rows.Scan(&r.ID, &r.MonitorID, &r.InstID, &r.SignalType, &r.CandleStatus, &ts,
			&r.Close, &r.MACD, &r.SignalLine, &r.Histogram); err != nil {
			return nil, fmt.Errorf("sqlite scan signal: %w", err)
		}
		r.CandleTime = time.UnixMilli(ts).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
