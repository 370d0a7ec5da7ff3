package model

import "time"

// BarState tells whether a candle is final. Market-data sources do not always
// say; BarUnknown is the absence of an explicit marker.
type BarState int8

const (
	BarUnknown BarState = iota
	BarForming
	BarClosed
)

func (s BarState) String() string {
	switch s {
	case BarForming:
		return "forming"
	case BarClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Candle is one OHLC bar for an instrument. TS is the bar open time in
// Unix milliseconds and is the ordering key within a fetch.
type Candle struct {
	TS    int64    `json:"ts"`
	Open  float64  `json:"open"`
	High  float64  `json:"high"`
	Low   float64  `json:"low"`
	Close float64  `json:"close"`
	State BarState `json:"state"`
}

// Time returns the bar open time in UTC.
func (c *Candle) Time() time.Time {
	return time.UnixMilli(c.TS).UTC()
}

// Closed reports whether the source explicitly marked the bar as final.
func (c *Candle) Closed() bool {
	return c.State == BarClosed
}

// Closes extracts the close prices of candles, preserving order.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Close
	}
	return out
}

// ClosedCandles returns the candles known to be final. When the source marks
// bars explicitly only those are returned; otherwise the newest bar is assumed
// to still be forming and is dropped.
func ClosedCandles(candles []Candle) []Candle {
	closed := make([]Candle, 0, len(candles))
	for _, c := range candles {
		if c.Closed() {
			closed = append(closed, c)
		}
	}
	if len(closed) > 0 {
		return closed
	}
	if len(candles) > 1 {
		return candles[:len(candles)-1]
	}
	return candles
}
