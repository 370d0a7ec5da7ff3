// Package redis fans monitor events out over Redis PubSub and keeps the
// latest tick per instrument under a plain key.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/archertao78/aistock/internal/metrics"
	"github.com/archertao78/aistock/internal/model"
)

const (
	defaultLatestTTL   = 30 * time.Minute
	defaultMaxFailures = 5
	defaultCooldown    = 10 * time.Second

	// SignalsChannel carries every signal regardless of instrument.
	SignalsChannel = "pub:macd:signals"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Connect creates a client and pings the server.
func Connect(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// TickChannel is the PubSub channel for one instrument's ticks and signals.
func TickChannel(instID string) string {
	return "pub:macd:" + instID
}

// LatestKey holds the most recent tick JSON for an instrument.
func LatestKey(instID string) string {
	return "macd:latest:" + instID
}

// Publisher implements model.EventPublisher on Redis. A nil client
// disables it; every call is then a no-op.
type Publisher struct {
	client  *goredis.Client
	breaker *Breaker
	metrics *metrics.Metrics
	log     *slog.Logger
	ttl     time.Duration
}

var _ model.EventPublisher = (*Publisher)(nil)

// NewPublisher wires a breaker whose transitions are exported to m.
func NewPublisher(client *goredis.Client, m *metrics.Metrics) *Publisher {
	p := &Publisher{
		client:  client,
		breaker: NewBreaker(defaultMaxFailures, defaultCooldown),
		metrics: m,
		log:     slog.Default().With("component", "redis"),
		ttl:     defaultLatestTTL,
	}
	p.breaker.OnStateChange = p.onStateChange
	return p
}

func (p *Publisher) onStateChange(from, to State) {
	p.log.Warn("circuit breaker state change", "from", from.String(), "to", to.String())
	if p.metrics == nil {
		return
	}
	p.metrics.RedisCircuitBreakerState.Set(float64(to))
	if to == StateOpen {
		p.metrics.RedisCircuitBreakerTrips.Inc()
	}
}

// Enabled reports whether a client is configured.
func (p *Publisher) Enabled() bool { return p.client != nil }

// PublishTick stores the tick as the instrument's latest and publishes it.
func (p *Publisher) PublishTick(ctx context.Context, ev model.TickEvent) error {
	if p.client == nil {
		return nil
	}
	data := string(ev.JSON())
	return p.exec(func() error {
		pipe := p.client.Pipeline()
		pipe.Set(ctx, LatestKey(ev.InstID), data, p.ttl)
		pipe.Publish(ctx, TickChannel(ev.InstID), data)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// PublishSignal publishes the signal on the instrument channel and on
// SignalsChannel.
func (p *Publisher) PublishSignal(ctx context.Context, ev model.SignalEvent) error {
	if p.client == nil {
		return nil
	}
	data := string(ev.JSON())
	return p.exec(func() error {
		pipe := p.client.Pipeline()
		pipe.Publish(ctx, TickChannel(ev.InstID), data)
		pipe.Publish(ctx, SignalsChannel, data)
		_, err := pipe.Exec(ctx)
		return err
	})
}

func (p *Publisher) exec(fn func() error) error {
	err := p.breaker.Do(fn)
	if errors.Is(err, ErrCircuitOpen) {
		if p.metrics != nil {
			p.metrics.RedisDroppedEvents.Inc()
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
