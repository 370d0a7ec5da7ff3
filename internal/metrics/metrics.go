// Package metrics exposes Prometheus counters for the monitor engine and a
// JSON health endpoint.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the monitor engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ChecksTotal    *prometheus.CounterVec // labels: reason
	CheckFailures  prometheus.Counter
	SignalsTotal   *prometheus.CounterVec // labels: type, status
	FetchDur       prometheus.Histogram
	ActiveMonitors prometheus.Gauge

	// Notification sinks
	NotifyFailures *prometheus.CounterVec // labels: sink

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisDroppedEvents       prometheus.Counter

	// WebSocket stream
	StreamClients prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics creates all metrics and registers them with reg. A nil reg uses
// a fresh private registry, which keeps tests independent of each other.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aistock_monitor_checks_total",
			Help: "Completed monitor checks by outcome reason",
		}, []string{"reason"}),
		CheckFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aistock_monitor_check_failures_total",
			Help: "Monitor checks aborted by a fetch or compute error",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aistock_monitor_signals_total",
			Help: "Deduplicated crosses dispatched (by type and bar status)",
		}, []string{"type", "status"}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aistock_candle_fetch_duration_seconds",
			Help:    "Candle source request latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ActiveMonitors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aistock_monitors_active",
			Help: "Monitors currently scheduled",
		}),
		NotifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aistock_notify_failures_total",
			Help: "Notification sink failures (by sink)",
		}, []string{"sink"}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aistock_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aistock_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisDroppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aistock_redis_dropped_events_total",
			Help: "Events skipped while the Redis circuit breaker was open",
		}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aistock_stream_clients",
			Help: "Connected WebSocket stream clients",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.ChecksTotal,
		m.CheckFailures,
		m.SignalsTotal,
		m.FetchDur,
		m.ActiveMonitors,
		m.NotifyFailures,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisDroppedEvents,
		m.StreamClients,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveCheck(reason string) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveCheckFailure() {
	if m == nil {
		return
	}
	m.CheckFailures.Inc()
}

func (m *Metrics) ObserveSignal(signalType, status string) {
	if m == nil {
		return
	}
	m.SignalsTotal.WithLabelValues(signalType, status).Inc()
}

func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDur.Observe(d.Seconds())
}

func (m *Metrics) SetActiveMonitors(n int) {
	if m == nil {
		return
	}
	m.ActiveMonitors.Set(float64(n))
}

func (m *Metrics) ObserveNotifyFailure(sink string) {
	if m == nil {
		return
	}
	m.NotifyFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) SetStreamClients(n int) {
	if m == nil {
		return
	}
	m.StreamClients.Set(float64(n))
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisEnabled   bool
	RedisConnected bool
	SQLiteEnabled  bool
	SQLiteOK       bool
	LastCheckTime  time.Time // last successful monitor check
	ActiveMonitors int

	// Liveness probe results
	RedisLatencyMs  float64
	SQLiteLatencyMs float64
	LastProbeAt     time.Time
	StartedAt       time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

// EnableRedis marks Redis as a dependency that counts toward health.
func (h *HealthStatus) EnableRedis() {
	h.mu.Lock()
	h.RedisEnabled = true
	h.mu.Unlock()
}

// EnableSQLite marks SQLite as a dependency that counts toward health.
func (h *HealthStatus) EnableSQLite() {
	h.mu.Lock()
	h.SQLiteEnabled = true
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCheckTime(t time.Time) {
	h.mu.Lock()
	h.LastCheckTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetActiveMonitors(n int) {
	h.mu.Lock()
	h.ActiveMonitors = n
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastProbeAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastProbeAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx is done.
// Either client may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	probe := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if rdb != nil {
			h.CheckRedis(probeCtx, rdb)
		}
		if sqlDB != nil {
			h.CheckSQLite(probeCtx, sqlDB)
		}
	}

	go func() {
		probe()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()
}

// Report is the JSON body served by the health endpoint.
type Report struct {
	Status          string  `json:"status"`
	Uptime          string  `json:"uptime"`
	ActiveMonitors  int     `json:"activeMonitors"`
	LastCheckTime   string  `json:"lastCheckTime,omitempty"`
	CheckAge        string  `json:"checkAge,omitempty"`
	RedisEnabled    bool    `json:"redisEnabled"`
	RedisConnected  bool    `json:"redisConnected"`
	RedisLatencyMs  float64 `json:"redisLatencyMs"`
	SQLiteEnabled   bool    `json:"sqliteEnabled"`
	SQLiteOK        bool    `json:"sqliteOk"`
	SQLiteLatencyMs float64 `json:"sqliteLatencyMs"`
	LastProbeAt     string  `json:"lastProbeAt,omitempty"`
}

// Snapshot computes the overall status. Disabled dependencies are ignored;
// "degraded" means one enabled dependency is down, "unhealthy" means all are.
func (h *HealthStatus) Snapshot() (Report, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	enabled, down := 0, 0
	if h.RedisEnabled {
		enabled++
		if !h.RedisConnected {
			down++
		}
	}
	if h.SQLiteEnabled {
		enabled++
		if !h.SQLiteOK {
			down++
		}
	}

	status, code := "healthy", http.StatusOK
	switch {
	case down > 0 && down == enabled:
		status, code = "unhealthy", http.StatusServiceUnavailable
	case down > 0:
		status, code = "degraded", http.StatusServiceUnavailable
	}

	r := Report{
		Status:          status,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		ActiveMonitors:  h.ActiveMonitors,
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteEnabled:   h.SQLiteEnabled,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
	}
	if !h.LastCheckTime.IsZero() {
		r.LastCheckTime = h.LastCheckTime.UTC().Format(time.RFC3339)
		r.CheckAge = time.Since(h.LastCheckTime).Round(time.Millisecond).String()
	}
	if !h.LastProbeAt.IsZero() {
		r.LastProbeAt = h.LastProbeAt.UTC().Format(time.RFC3339)
	}
	return r, code
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report, code := h.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(report)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
	log  *slog.Logger
}

// NewServer creates a metrics and health server.
func NewServer(addr string, m *Metrics, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: slog.Default().With("component", "metrics"),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
