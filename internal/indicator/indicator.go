// Package indicator computes the MACD oscillator over close-price series and
// classifies crossovers between the MACD line and its signal line.
//
// All functions are pure and operate on complete series; callers decide which
// candles (closed only, or closed plus the forming bar) feed the series.
package indicator

import "errors"

// MACD periods.
const (
	FastPeriod   = 12
	SlowPeriod   = 26
	SignalPeriod = 9

	// MinPrices is the shortest series ComputeMACDSeries accepts.
	MinPrices = 35
)

// ErrInsufficientData is returned when a series is too short to compute.
var ErrInsufficientData = errors.New("insufficient data")
