package indicator

import (
	"fmt"

	"github.com/archertao78/aistock/internal/model"
)

// ComputeMACDSeries returns one oscillator point per close price using the
// 12/26/9 cascade. Fewer than MinPrices prices yields ErrInsufficientData.
func ComputeMACDSeries(closes []float64) ([]model.OscillatorPoint, error) {
	if len(closes) < MinPrices {
		return nil, fmt.Errorf("macd needs %d prices, got %d: %w", MinPrices, len(closes), ErrInsufficientData)
	}

	fast := ComputeEMA(closes, FastPeriod)
	slow := ComputeEMA(closes, SlowPeriod)

	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = fast[i] - slow[i]
	}
	signal := ComputeEMA(macd, SignalPeriod)

	points := make([]model.OscillatorPoint, len(closes))
	for i := range closes {
		points[i] = model.OscillatorPoint{
			FastEMA:   fast[i],
			SlowEMA:   slow[i],
			MACD:      macd[i],
			Signal:    signal[i],
			Histogram: macd[i] - signal[i],
		}
	}
	return points, nil
}

// LastTwo returns the final two points of a series. ok is false when the
// series has fewer than two points.
func LastTwo(points []model.OscillatorPoint) (prev, curr model.OscillatorPoint, ok bool) {
	n := len(points)
	if n < 2 {
		return model.OscillatorPoint{}, model.OscillatorPoint{}, false
	}
	return points[n-2], points[n-1], true
}
