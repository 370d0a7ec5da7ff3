package okx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/archertao78/aistock/internal/model"
)

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *http.Request) {
	t.Helper()
	var seen http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = *r
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestFetchCandles_ParsesAndSorts(t *testing.T) {
	body := `{"code":"0","msg":"","data":[
		["1700001800000","101","103","100","102","5","5","5","0"],
		["1700000000000","100","102","99","101","5","5","5","1"]
	]}`
	srv, seen := newTestServer(t, http.StatusOK, body)

	c := NewClient(Config{BaseURL: srv.URL + "/"})
	candles, err := c.FetchCandles(context.Background(), "BTC-USDT", "30m", 120)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if seen.URL.Path != "/api/v5/market/candles" {
		t.Errorf("path = %s", seen.URL.Path)
	}
	q := seen.URL.Query()
	if q.Get("instId") != "BTC-USDT" || q.Get("bar") != "30m" || q.Get("limit") != "120" {
		t.Errorf("unexpected query: %s", seen.URL.RawQuery)
	}

	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[0].TS != 1700000000000 || candles[1].TS != 1700001800000 {
		t.Errorf("candles not sorted ascending: %d, %d", candles[0].TS, candles[1].TS)
	}
	if candles[0].State != model.BarClosed {
		t.Errorf("first candle state = %v, want closed", candles[0].State)
	}
	if candles[1].State != model.BarForming {
		t.Errorf("second candle state = %v, want forming", candles[1].State)
	}
	if candles[1].Close != 102 {
		t.Errorf("close = %v, want 102", candles[1].Close)
	}
}

func TestFetchCandles_NonZeroCode(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{"code":"51001","msg":"Instrument ID does not exist","data":[]}`)

	_, err := NewClient(Config{BaseURL: srv.URL}).FetchCandles(context.Background(), "NOPE-USDT", "30m", 120)
	if !errors.Is(err, ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
}

func TestFetchCandles_HTTPError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusTooManyRequests, `{"code":"50011","msg":"Too Many Requests"}`)

	_, err := NewClient(Config{BaseURL: srv.URL}).FetchCandles(context.Background(), "BTC-USDT", "30m", 120)
	if !errors.Is(err, ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
}

func TestFetchCandles_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(Config{BaseURL: url}).FetchCandles(context.Background(), "BTC-USDT", "30m", 120)
	if !errors.Is(err, ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
}

func TestFetchCandles_AllRowsInvalid(t *testing.T) {
	body := `{"code":"0","data":[
		["1700000000000","NaN","102","99","101"],
		["1700001800000","101","Infinity","100","102"],
		["1700003600000","101","103","100","102","5","5","5","maybe"]
	]}`
	srv, _ := newTestServer(t, http.StatusOK, body)

	_, err := NewClient(Config{BaseURL: srv.URL}).FetchCandles(context.Background(), "BTC-USDT", "30m", 120)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestFetchCandles_RateLimitedContextCancelled(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{"code":"0","data":[["1","1","1","1","1"]]}`)
	c := NewClient(Config{BaseURL: srv.URL, RatePerSec: 0.001})

	// First call consumes the burst token.
	if _, err := c.FetchCandles(context.Background(), "BTC-USDT", "30m", 1); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.FetchCandles(ctx, "BTC-USDT", "30m", 1); !errors.Is(err, ErrExternalService) {
		t.Fatalf("expected ErrExternalService after cancelled wait, got %v", err)
	}
}
