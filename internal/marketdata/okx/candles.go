package okx

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"github.com/archertao78/aistock/internal/model"
)

// ParseRows converts raw OKX rows into candles with strictly increasing
// timestamps. When rows share a timestamp the later row wins.
// Layout: [ts, open, high, low, close, vol, volCcy, volCcyQuote, confirm].
func ParseRows(rows [][]json.RawMessage) []model.Candle {
	out := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		c, ok := parseRow(row)
		if !ok {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS < out[j].TS })
	return dedupe(out)
}

// dedupe collapses equal timestamps in a sorted slice, keeping the last.
func dedupe(candles []model.Candle) []model.Candle {
	if len(candles) < 2 {
		return candles
	}
	out := candles[:1]
	for _, c := range candles[1:] {
		if c.TS == out[len(out)-1].TS {
			out[len(out)-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

func parseRow(row []json.RawMessage) (model.Candle, bool) {
	var vals [5]float64
	for i := range vals {
		v, present, ok := cell(row, i)
		if !present || !ok {
			return model.Candle{}, false
		}
		vals[i] = v
	}

	state := model.BarUnknown
	confirm, present, ok := cell(row, confirmIndex)
	if present {
		if !ok {
			return model.Candle{}, false
		}
		if confirm == 1 {
			state = model.BarClosed
		} else {
			state = model.BarForming
		}
	}

	return model.Candle{
		TS:    int64(vals[0]),
		Open:  vals[1],
		High:  vals[2],
		Low:   vals[3],
		Close: vals[4],
		State: state,
	}, true
}

// cell decodes row[i] as a finite number. OKX sends numbers as strings but
// bare JSON numbers are accepted too. present is false for a missing or null
// cell; ok is false when the cell is present but not a finite number.
func cell(row []json.RawMessage, i int) (v float64, present, ok bool) {
	if i >= len(row) {
		return 0, false, false
	}
	raw := row[i]
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false, false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true, false
	}
	return f, true, true
}
