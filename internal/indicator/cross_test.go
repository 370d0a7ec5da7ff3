package indicator

import (
	"testing"

	"github.com/archertao78/aistock/internal/model"
)

// point builds an oscillator point whose MACD-minus-signal spread is diff.
func point(diff float64) model.OscillatorPoint {
	return model.OscillatorPoint{MACD: diff, Signal: 0, Histogram: diff}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		prevDiff float64
		currDiff float64
		want     model.SignalType
	}{
		{"negative to positive", -1, 1, model.GoldenCross},
		{"positive to negative", 1, -1, model.DeathCross},
		{"zero to zero", 0, 0, model.SignalNone},
		{"negative to zero", -1, 0, model.SignalNone},
		{"zero to negative", 0, -1, model.DeathCross},
		{"zero to positive", 0, 1, model.GoldenCross},
		{"positive to zero", 1, 0, model.SignalNone},
		{"stays positive", 1, 2, model.SignalNone},
		{"stays negative", -2, -1, model.SignalNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(point(tt.prevDiff), point(tt.currDiff)); got != tt.want {
				t.Errorf("Detect(%v, %v) = %q, want %q", tt.prevDiff, tt.currDiff, got, tt.want)
			}
		})
	}
}

func TestDetectLatest_EngineeredCrosses(t *testing.T) {
	// 39 falling bars then a spike: the spread turns positive only on the last bar.
	bull := append(linear(39, 100, -0.5), 200)
	points, err := ComputeMACDSeries(bull)
	if err != nil {
		t.Fatal(err)
	}
	if got := DetectLatest(points); got != model.GoldenCross {
		t.Errorf("expected golden cross, got %q", got)
	}
	if got := DetectLatest(points[:len(points)-1]); got != model.SignalNone {
		t.Errorf("expected no cross before the spike, got %q", got)
	}

	bear := append(linear(39, 100, 0.5), 20)
	points, err = ComputeMACDSeries(bear)
	if err != nil {
		t.Fatal(err)
	}
	if got := DetectLatest(points); got != model.DeathCross {
		t.Errorf("expected death cross, got %q", got)
	}
}

func TestDetectLatest_ShortSeries(t *testing.T) {
	if got := DetectLatest([]model.OscillatorPoint{point(1)}); got != model.SignalNone {
		t.Errorf("expected none for single point, got %q", got)
	}
}
