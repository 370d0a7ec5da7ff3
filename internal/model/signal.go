package model

// SignalType classifies a MACD/signal-line crossover. The zero value means
// no cross.
type SignalType string

const (
	SignalNone  SignalType = ""
	GoldenCross SignalType = "golden_cross" // bullish: MACD crosses above signal
	DeathCross  SignalType = "death_cross"  // bearish: MACD crosses below signal
)

// Label returns a short human label used in messages.
func (s SignalType) Label() string {
	switch s {
	case GoldenCross:
		return "MACD golden cross"
	case DeathCross:
		return "MACD death cross"
	default:
		return "no cross"
	}
}

// OscillatorPoint is one sample of the 12/26/9 MACD cascade, index-aligned
// with the close price that produced it.
type OscillatorPoint struct {
	FastEMA   float64 `json:"fastEma"`
	SlowEMA   float64 `json:"slowEma"`
	MACD      float64 `json:"macd"`      // FastEMA - SlowEMA
	Signal    float64 `json:"signal"`    // EMA(9) of MACD
	Histogram float64 `json:"histogram"` // MACD - Signal
}

// Diff is the MACD minus signal spread whose sign change defines a cross.
func (p OscillatorPoint) Diff() float64 {
	return p.MACD - p.Signal
}
