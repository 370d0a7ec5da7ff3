package model

import "testing"

func TestClosedCandles(t *testing.T) {
	confirmed := []Candle{
		{TS: 1, State: BarClosed},
		{TS: 2, State: BarClosed},
		{TS: 3, State: BarForming},
	}
	if got := ClosedCandles(confirmed); len(got) != 2 || got[1].TS != 2 {
		t.Errorf("explicit flags: got %+v", got)
	}

	unmarked := []Candle{{TS: 1}, {TS: 2}, {TS: 3}}
	if got := ClosedCandles(unmarked); len(got) != 2 || got[1].TS != 2 {
		t.Errorf("unmarked: expected newest dropped, got %+v", got)
	}

	single := []Candle{{TS: 1}}
	if got := ClosedCandles(single); len(got) != 1 {
		t.Errorf("single unmarked candle should be kept, got %+v", got)
	}

	if got := ClosedCandles(nil); len(got) != 0 {
		t.Errorf("nil input: got %+v", got)
	}
}
