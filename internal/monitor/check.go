package monitor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/archertao78/aistock/internal/indicator"
	"github.com/archertao78/aistock/internal/logger"
	"github.com/archertao78/aistock/internal/model"
)

// Check runs the per-tick pipeline for one monitor: fetch candles, evaluate
// the forming bar (when enabled) and then the newest closed bar, and
// dispatch tick and signal events. Fetch and compute errors abort only this
// check.
func (r *Registry) Check(ctx context.Context, id string) (CheckResult, error) {
	m, err := r.lookup(id)
	if err != nil {
		return CheckResult{}, err
	}

	ctx = r.traceContext(ctx, m.id, r.now())

	fetchStart := time.Now()
	candles, err := r.source.FetchCandles(ctx, m.instID, r.cfg.Bar, r.cfg.Lookback)
	r.metrics.ObserveFetch(time.Since(fetchStart))
	checkedAt := r.now().UTC()

	r.mu.Lock()
	m.lastCheckedAt = checkedAt
	r.mu.Unlock()

	if err != nil {
		r.metrics.ObserveCheckFailure()
		return CheckResult{}, fmt.Errorf("fetch %s candles: %w", m.instID, err)
	}
	if r.health != nil {
		r.health.SetLastCheckTime(checkedAt)
	}

	result := CheckResult{
		MonitorID: m.id,
		InstID:    m.instID,
		CheckedAt: checkedAt,
	}

	closed := model.ClosedCandles(candles)
	if len(closed) < indicator.MinPrices {
		result.Reason = model.ReasonInsufficientCandles
		r.metrics.ObserveCheck(result.Reason)
		r.log.Debug("not enough closed candles", append(logger.LogWithTrace(ctx), "inst_id", m.instID, "closed", len(closed))...)
		return result, nil
	}

	if r.cfg.Intrabar {
		if err := r.checkIntrabar(ctx, m, candles, checkedAt); err != nil {
			r.metrics.ObserveCheckFailure()
			return CheckResult{}, err
		}
	}

	latest := closed[len(closed)-1]

	r.mu.Lock()
	if !m.initialized {
		m.initialized = true
		m.lastClosedTS = latest.TS
		r.mu.Unlock()
		result.Reason = model.ReasonInitialized
		r.metrics.ObserveCheck(result.Reason)
		return result, nil
	}
	if latest.TS <= m.lastClosedTS {
		r.mu.Unlock()
		result.Reason = model.ReasonNoNewClosedCandle
		r.metrics.ObserveCheck(result.Reason)
		return result, nil
	}
	r.mu.Unlock()

	series, err := indicator.ComputeMACDSeries(model.Closes(closed))
	if err != nil {
		r.metrics.ObserveCheckFailure()
		return CheckResult{}, fmt.Errorf("compute %s: %w", m.instID, err)
	}
	curr := series[len(series)-1]
	signalType := indicator.DetectLatest(series)

	tick := newTick(m, checkedAt, latest, curr, signalType, model.StatusClosed)
	tick.Reason = model.ReasonNoCross

	fire := false
	r.mu.Lock()
	m.lastClosedTS = latest.TS
	if signalType != model.SignalNone {
		tick.Reason = model.ReasonCrossTriggered
		key := triggerKey(latest.TS, signalType)
		if m.lastTriggerKey != key {
			m.lastTriggerKey = key
			m.lastSignalAt = checkedAt
			m.lastSignalType = signalType
			fire = true
		} else {
			tick.Reason = model.ReasonCrossConfirmed
		}
	}
	r.mu.Unlock()

	if fire {
		r.metrics.ObserveSignal(string(signalType), string(model.StatusClosed))
		r.dispatchSignal(ctx, signalFromTick(tick))
	}
	r.dispatchTick(ctx, tick)

	result.Triggered = tick.Triggered
	result.Reason = tick.Reason
	result.Tick = &tick
	r.metrics.ObserveCheck(result.Reason)
	return result, nil
}

// checkIntrabar evaluates the series including the still-forming bar and
// dispatches a provisional signal the first time a cross appears on it.
func (r *Registry) checkIntrabar(ctx context.Context, m *monitor, candles []model.Candle, checkedAt time.Time) error {
	live := candles[len(candles)-1]
	if live.Closed() || len(candles) < indicator.MinPrices {
		return nil
	}

	series, err := indicator.ComputeMACDSeries(model.Closes(candles))
	if err != nil {
		if errors.Is(err, indicator.ErrInsufficientData) {
			return nil
		}
		return fmt.Errorf("compute intrabar %s: %w", m.instID, err)
	}
	signalType := indicator.DetectLatest(series)
	if signalType == model.SignalNone {
		return nil
	}

	key := triggerKey(live.TS, signalType)
	r.mu.Lock()
	if m.lastTriggerKey == key {
		r.mu.Unlock()
		return nil
	}
	m.lastTriggerKey = key
	m.lastSignalAt = checkedAt
	m.lastSignalType = signalType
	r.mu.Unlock()

	tick := newTick(m, checkedAt, live, series[len(series)-1], signalType, model.StatusIntrabar)
	tick.Reason = model.ReasonIntrabarCross

	r.metrics.ObserveSignal(string(signalType), string(model.StatusIntrabar))
	r.dispatchSignal(ctx, signalFromTick(tick))
	r.dispatchTick(ctx, tick)
	return nil
}

func (r *Registry) dispatchSignal(ctx context.Context, ev model.SignalEvent) {
	if r.hooks.OnSignal == nil {
		return
	}
	if err := r.hooks.OnSignal(ctx, ev); err != nil {
		r.log.Warn("signal hook failed", append(logger.LogWithTrace(ctx), "inst_id", ev.InstID, "error", err)...)
	}
}

func (r *Registry) dispatchTick(ctx context.Context, ev model.TickEvent) {
	if r.hooks.OnTick == nil {
		return
	}
	if err := r.hooks.OnTick(ctx, ev); err != nil {
		r.log.Warn("tick hook failed", append(logger.LogWithTrace(ctx), "inst_id", ev.InstID, "error", err)...)
	}
}

func triggerKey(ts int64, t model.SignalType) string {
	return strconv.FormatInt(ts, 10) + ":" + string(t)
}

func newTick(m *monitor, checkedAt time.Time, c model.Candle, p model.OscillatorPoint, t model.SignalType, status model.CandleStatus) model.TickEvent {
	return model.TickEvent{
		MonitorID:    m.id,
		InstID:       m.instID,
		CheckedAt:    checkedAt,
		CandleTime:   c.Time(),
		Open:         c.Open,
		High:         c.High,
		Low:          c.Low,
		Close:        c.Close,
		MACD:         p.MACD,
		SignalLine:   p.Signal,
		Histogram:    p.Histogram,
		SignalType:   t,
		Triggered:    t != model.SignalNone,
		CandleStatus: status,
		Channel:      m.channel,
	}
}

func signalFromTick(t model.TickEvent) model.SignalEvent {
	return model.SignalEvent{
		MonitorID:    t.MonitorID,
		InstID:       t.InstID,
		SignalType:   t.SignalType,
		CandleTime:   t.CandleTime,
		Close:        t.Close,
		MACD:         t.MACD,
		SignalLine:   t.SignalLine,
		Histogram:    t.Histogram,
		CandleStatus: t.CandleStatus,
		Channel:      t.Channel,
	}
}
