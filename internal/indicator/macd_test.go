package indicator

import (
	"errors"
	"testing"

	"github.com/archertao78/aistock/internal/model"
)

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestComputeMACDSeries_InsufficientData(t *testing.T) {
	for _, n := range []int{0, 1, 26, 34} {
		_, err := ComputeMACDSeries(linear(n, 100, 1))
		if !errors.Is(err, ErrInsufficientData) {
			t.Errorf("n=%d: expected ErrInsufficientData, got %v", n, err)
		}
	}
}

func TestComputeMACDSeries_LengthAndHistogram(t *testing.T) {
	for _, n := range []int{35, 36, 120} {
		closes := linear(n, 100, 0.25)
		points, err := ComputeMACDSeries(closes)
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if len(points) != n {
			t.Fatalf("n=%d: len = %d", n, len(points))
		}
		for i, p := range points {
			assertClose(t, "MACD", p.MACD, p.FastEMA-p.SlowEMA, 1e-9)
			assertClose(t, "Histogram", p.Histogram, p.MACD-p.Signal, 1e-9)
			if i == 0 && (p.MACD != 0 || p.Signal != 0) {
				t.Errorf("first point should be flat, got %+v", p)
			}
		}
	}
}

func TestComputeMACDSeries_FlatPrices(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 64000
	}
	points, err := ComputeMACDSeries(closes)
	if err != nil {
		t.Fatal(err)
	}
	last := points[len(points)-1]
	assertClose(t, "MACD", last.MACD, 0, 1e-9)
	assertClose(t, "Signal", last.Signal, 0, 1e-9)
	if got := DetectLatest(points); got != model.SignalNone {
		t.Errorf("flat prices should not cross, got %q", got)
	}
}

func TestComputeMACDSeries_TrendSign(t *testing.T) {
	up, _ := ComputeMACDSeries(linear(60, 100, 1))
	if up[len(up)-1].MACD <= 0 {
		t.Errorf("rising prices: expected positive MACD, got %f", up[len(up)-1].MACD)
	}
	down, _ := ComputeMACDSeries(linear(60, 100, -1))
	if down[len(down)-1].MACD >= 0 {
		t.Errorf("falling prices: expected negative MACD, got %f", down[len(down)-1].MACD)
	}
}

func TestLastTwo(t *testing.T) {
	if _, _, ok := LastTwo(nil); ok {
		t.Error("expected ok=false for empty series")
	}
	pts := []model.OscillatorPoint{{MACD: 1}, {MACD: 2}, {MACD: 3}}
	prev, curr, ok := LastTwo(pts)
	if !ok || prev.MACD != 2 || curr.MACD != 3 {
		t.Errorf("LastTwo = %+v, %+v, %v", prev, curr, ok)
	}
}
