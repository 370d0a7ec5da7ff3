package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/archertao78/aistock/internal/logger"
	"github.com/archertao78/aistock/internal/metrics"
	"github.com/archertao78/aistock/internal/model"
)

// Options carries the optional collaborators of a Registry.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Health  *metrics.HealthStatus
	Now     func() time.Time

	// Ticks returns the schedule channel for an interval and a stop func.
	// Defaults to a time.Ticker.
	Ticks func(d time.Duration) (<-chan time.Time, func())
}

func tickerTicks(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Registry owns the set of running monitors keyed by composite identity.
// Safe for concurrent use.
type Registry struct {
	source model.CandleSource
	hooks  Hooks
	cfg    Config

	log     *slog.Logger
	metrics *metrics.Metrics
	health  *metrics.HealthStatus
	now     func() time.Time
	ticks   func(time.Duration) (<-chan time.Time, func())

	mu       sync.Mutex
	monitors map[string]*monitor
	closed   bool
	wg       sync.WaitGroup
}

// NewRegistry creates an empty registry.
func NewRegistry(source model.CandleSource, hooks Hooks, cfg Config, opts Options) *Registry {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ticks := opts.Ticks
	if ticks == nil {
		ticks = tickerTicks
	}
	return &Registry{
		source:   source,
		hooks:    hooks,
		cfg:      cfg.withDefaults(),
		log:      log.With("component", "monitor"),
		metrics:  opts.Metrics,
		health:   opts.Health,
		now:      now,
		ticks:    ticks,
		monitors: make(map[string]*monitor),
	}
}

// Interval returns the effective polling interval.
func (r *Registry) Interval() time.Duration { return r.cfg.Interval }

// Start begins monitoring instID for the given channel. Starting an identity
// that is already running returns its current snapshot unchanged. The first
// check runs immediately in the background. After Close, Start returns
// ErrClosed.
func (r *Registry) Start(instID string, channel model.TelegramChannel) (Snapshot, error) {
	norm, err := NormalizeInstID(instID)
	if err != nil {
		return Snapshot{}, err
	}
	channel.BotToken = strings.TrimSpace(channel.BotToken)
	channel.ChatID = strings.TrimSpace(channel.ChatID)

	m, ctx, created, err := r.register(norm, channel)
	if err != nil {
		return Snapshot{}, err
	}
	if !created {
		r.mu.Lock()
		defer r.mu.Unlock()
		return m.snapshot(), nil
	}

	r.mu.Lock()
	snap := m.snapshot()
	count := len(r.monitors)
	r.mu.Unlock()
	r.observeActive(count)

	go func() {
		defer r.wg.Done()
		r.run(ctx, m.id, m.instID)
	}()

	r.log.Info("monitor started", "inst_id", m.instID, "monitor_id", m.id, "interval", r.cfg.Interval)
	return snap, nil
}

// register inserts a monitor record together with its cancellable schedule
// context and counts its scheduler in wg. created is false when the
// identity already existed.
func (r *Registry) register(instID string, channel model.TelegramChannel) (*monitor, context.Context, bool, error) {
	id := BuildMonitorID(instID, channel.BotToken, channel.ChatID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, nil, false, ErrClosed
	}
	if m, ok := r.monitors[id]; ok {
		return m, nil, false, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &monitor{
		id:        id,
		instID:    instID,
		channel:   channel,
		startedAt: r.now().UTC(),
		cancel:    cancel,
	}
	r.monitors[id] = m
	r.wg.Add(1)
	return m, ctx, true, nil
}

// Stop removes the monitor whose identity equals identifier. Failing that,
// identifier is read as an instrument id and every monitor on that
// instrument is removed. Returns the number of monitors removed.
//
// A check already in flight is not interrupted and may still dispatch.
func (r *Registry) Stop(identifier string) int {
	key := strings.TrimSpace(identifier)
	if key == "" {
		return 0
	}

	r.mu.Lock()
	if m, ok := r.monitors[key]; ok {
		r.removeLocked(m)
		count := len(r.monitors)
		r.mu.Unlock()
		r.observeActive(count)
		r.log.Info("monitor stopped", "inst_id", m.instID, "monitor_id", key)
		return 1
	}
	r.mu.Unlock()

	instID, err := NormalizeInstID(key)
	if err != nil {
		return 0
	}

	r.mu.Lock()
	removed := 0
	for _, m := range r.monitors {
		if m.instID == instID {
			r.removeLocked(m)
			removed++
		}
	}
	count := len(r.monitors)
	r.mu.Unlock()

	if removed > 0 {
		r.observeActive(count)
		r.log.Info("monitors stopped", "inst_id", instID, "count", removed)
	}
	return removed
}

// removeLocked cancels the timer before dropping the record. r.mu must be held.
func (r *Registry) removeLocked(m *monitor) {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	delete(r.monitors, m.id)
}

// List returns snapshots of all monitors ordered by start time.
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	out := make([]Snapshot, 0, len(r.monitors))
	for _, m := range r.monitors {
		out = append(out, m.snapshot())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].MonitorID < out[j].MonitorID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Get returns the snapshot of one monitor.
func (r *Registry) Get(id string) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.monitors[strings.TrimSpace(id)]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m.snapshot(), nil
}

// Close stops every monitor and waits for their schedulers to exit. The
// registry accepts no new monitors afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	for _, m := range r.monitors {
		r.removeLocked(m)
	}
	r.mu.Unlock()
	r.observeActive(0)
	r.wg.Wait()
}

// run performs one check immediately and then one per interval until ctx is
// cancelled. A failed check is logged and the schedule continues.
func (r *Registry) run(ctx context.Context, id, instID string) {
	ticks, stop := r.ticks(r.cfg.Interval)
	defer stop()

	r.runOnce(ctx, id, instID)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			r.runOnce(ctx, id, instID)
		}
	}
}

func (r *Registry) runOnce(ctx context.Context, id, instID string) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.metrics.ObserveCheckFailure()
			r.log.Error("check panicked", "inst_id", instID, "monitor_id", id, "panic", p)
		}
	}()

	// Stop cancels future ticks only; an in-flight tick runs to completion.
	tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.Interval)
	defer cancel()

	if _, err := r.Check(tickCtx, id); err != nil {
		r.log.Error("check failed", "inst_id", instID, "monitor_id", id, "error", err)
	}
}

func (r *Registry) observeActive(n int) {
	r.metrics.SetActiveMonitors(n)
	if r.health != nil {
		r.health.SetActiveMonitors(n)
	}
}

func (r *Registry) lookup(id string) (*monitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.monitors[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m, nil
}

func (r *Registry) traceContext(ctx context.Context, id string, at time.Time) context.Context {
	if logger.TraceID(ctx) != "" {
		return ctx
	}
	return logger.WithTraceID(ctx, logger.GenerateTraceID(id, at))
}
