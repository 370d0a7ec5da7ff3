package redis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/archertao78/aistock/internal/metrics"
	"github.com/archertao78/aistock/internal/model"
)

func TestPublisher_NilClientIsNoop(t *testing.T) {
	p := NewPublisher(nil, nil)
	if p.Enabled() {
		t.Error("publisher without client should be disabled")
	}
	ctx := context.Background()
	if err := p.PublishTick(ctx, model.TickEvent{InstID: "BTC-USDT"}); err != nil {
		t.Errorf("PublishTick: %v", err)
	}
	if err := p.PublishSignal(ctx, model.SignalEvent{InstID: "BTC-USDT"}); err != nil {
		t.Errorf("PublishSignal: %v", err)
	}
}

func TestKeys(t *testing.T) {
	if got := TickChannel("BTC-USDT"); got != "pub:macd:BTC-USDT" {
		t.Errorf("TickChannel = %q", got)
	}
	if got := LatestKey("ETH-USDT"); got != "macd:latest:ETH-USDT" {
		t.Errorf("LatestKey = %q", got)
	}
}

func TestPublisher_BreakerTripsOnUnreachableServer(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	defer client.Close()

	m := metrics.NewMetrics(nil)
	p := NewPublisher(client, m)
	p.breaker = NewBreaker(1, time.Hour)
	p.breaker.OnStateChange = p.onStateChange

	ctx := context.Background()
	if err := p.PublishTick(ctx, model.TickEvent{InstID: "BTC-USDT"}); err == nil {
		t.Fatal("expected error from unreachable server")
	}
	if p.breaker.State() != StateOpen {
		t.Fatalf("expected breaker open, got %v", p.breaker.State())
	}

	// dropped while open
	if err := p.PublishSignal(ctx, model.SignalEvent{InstID: "BTC-USDT"}); err != nil {
		t.Errorf("expected nil while open, got %v", err)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		"aistock_redis_circuit_breaker_state 1",
		"aistock_redis_circuit_breaker_trips_total 1",
		"aistock_redis_dropped_events_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
