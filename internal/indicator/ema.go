package indicator

// EMA calculates Exponential Moving Average.
// The first value seeds the average directly; there is no SMA warm-up window.
type EMA struct {
	multiplier float64
	current    float64
	count      int
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		multiplier: 2.0 / float64(period+1),
	}
}

// Update feeds the next price and returns the new average.
func (e *EMA) Update(price float64) float64 {
	e.count++
	if e.count == 1 {
		e.current = price
		return e.current
	}

	// EMA = (Price * multiplier) + (EMA_prev * (1 - multiplier))
	e.current = (price * e.multiplier) + (e.current * (1 - e.multiplier))
	return e.current
}

// ComputeEMA returns the EMA of values, one output per input.
func ComputeEMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	ema := NewEMA(period)
	for i, v := range values {
		out[i] = ema.Update(v)
	}
	return out
}
