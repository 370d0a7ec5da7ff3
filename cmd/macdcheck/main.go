// Command macdcheck fetches candles once and prints the latest closed-bar
// MACD state and any cross between the last two closed bars.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/archertao78/aistock/internal/indicator"
	"github.com/archertao78/aistock/internal/logger"
	"github.com/archertao78/aistock/internal/marketdata/okx"
	"github.com/archertao78/aistock/internal/model"
	"github.com/archertao78/aistock/internal/monitor"
)

type result struct {
	InstID     string           `json:"instId"`
	Bar        string           `json:"bar"`
	Candles    int              `json:"candles"`
	Closed     int              `json:"closedCandles"`
	CandleTime time.Time        `json:"candleTime"`
	Close      float64          `json:"close"`
	MACD       float64          `json:"macd"`
	SignalLine float64          `json:"signalLine"`
	Histogram  float64          `json:"histogram"`
	Cross      model.SignalType `json:"cross,omitempty"`
}

func main() {
	inst := flag.String("inst", "BTC-USDT", "Instrument id, e.g. btc, eth/usdt, BTC-USDT")
	bar := flag.String("bar", monitor.DefaultBar, "OKX bar size")
	limit := flag.Int("limit", monitor.DefaultLookback, "Number of candles to fetch")
	baseURL := flag.String("base-url", "https://www.okx.com", "OKX REST base URL")
	timeout := flag.Duration("timeout", 15*time.Second, "Request timeout")
	flag.Parse()

	log := logger.Init("macdcheck", slog.LevelWarn, "text")

	instID, err := monitor.NormalizeInstID(*inst)
	if err != nil {
		log.Error("invalid instrument", "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := okx.NewClient(okx.Config{BaseURL: *baseURL})
	candles, err := client.FetchCandles(ctx, instID, *bar, *limit)
	if err != nil {
		log.Error("fetch candles", "inst_id", instID, "error", err)
		os.Exit(1)
	}

	res, err := evaluate(instID, *bar, candles)
	if err != nil {
		log.Error("evaluate", "inst_id", instID, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func evaluate(instID, bar string, candles []model.Candle) (result, error) {
	closed := model.ClosedCandles(candles)
	points, err := indicator.ComputeMACDSeries(model.Closes(closed))
	if err != nil {
		return result{}, fmt.Errorf("%d closed candles: %w", len(closed), err)
	}

	last := closed[len(closed)-1]
	p := points[len(points)-1]
	return result{
		InstID:     instID,
		Bar:        bar,
		Candles:    len(candles),
		Closed:     len(closed),
		CandleTime: last.Time(),
		Close:      last.Close,
		MACD:       p.MACD,
		SignalLine: p.Signal,
		Histogram:  p.Histogram,
		Cross:      indicator.DetectLatest(points),
	}, nil
}
