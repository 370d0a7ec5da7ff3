package indicator

import "github.com/archertao78/aistock/internal/model"

// Detect classifies the transition from prev to curr.
//
// A diff of exactly zero is treated as non-positive on the way up and
// non-negative on the way down, so a line that touches the signal line and
// then moves away is reported as a cross.
func Detect(prev, curr model.OscillatorPoint) model.SignalType {
	prevDiff := prev.Diff()
	currDiff := curr.Diff()

	switch {
	case prevDiff <= 0 && currDiff > 0:
		return model.GoldenCross
	case prevDiff >= 0 && currDiff < 0:
		return model.DeathCross
	default:
		return model.SignalNone
	}
}

// DetectLatest runs Detect over the last two points of a series.
func DetectLatest(points []model.OscillatorPoint) model.SignalType {
	prev, curr, ok := LastTwo(points)
	if !ok {
		return model.SignalNone
	}
	return Detect(prev, curr)
}
