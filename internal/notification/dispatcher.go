// Package notification delivers monitor events to external channels:
// structured logs, Telegram, a generic webhook, AI commentary and any
// event publishers (Redis, WebSocket) or signal journals wired in.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/archertao78/aistock/internal/llm"
	"github.com/archertao78/aistock/internal/logger"
	"github.com/archertao78/aistock/internal/metrics"
	"github.com/archertao78/aistock/internal/model"
)

const defaultAITimeout = 2 * time.Minute

// DispatcherConfig wires the optional sinks. Nil or empty fields disable
// the corresponding sink.
type DispatcherConfig struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	Telegram        *TelegramNotifier
	DefaultTelegram model.TelegramChannel // used when a monitor has no channel of its own

	Webhook *WebhookNotifier

	// AI commentary on signals. Skipped with a warning when nil.
	AI        llm.Generator
	AITimeout time.Duration
	Bar       string

	Publishers []model.EventPublisher
	Journal    model.SignalJournal
}

// Dispatcher fans tick and signal events out to every configured sink.
// A failing sink never prevents delivery to the others.
type Dispatcher struct {
	cfg DispatcherConfig
	log *slog.Logger

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = defaultAITimeout
	}
	return &Dispatcher{
		cfg: cfg,
		log: log.With("component", "notify"),
	}
}

// OnTick publishes every tick to the event publishers.
func (d *Dispatcher) OnTick(ctx context.Context, ev model.TickEvent) error {
	d.log.Debug("tick",
		append(logger.LogWithTrace(ctx),
			"inst_id", ev.InstID,
			"reason", ev.Reason,
			"status", ev.CandleStatus,
			"histogram", llm.Round6(ev.Histogram),
		)...)

	var errs []error
	for _, p := range d.cfg.Publishers {
		if err := p.PublishTick(ctx, ev); err != nil {
			errs = append(errs, d.fail("publish", err))
		}
	}
	return errors.Join(errs...)
}

// OnSignal delivers a new cross to every sink. AI commentary runs in the
// background and is forwarded to Telegram when it completes.
func (d *Dispatcher) OnSignal(ctx context.Context, ev model.SignalEvent) error {
	d.log.Info("signal triggered",
		append(logger.LogWithTrace(ctx),
			"inst_id", ev.InstID,
			"signal_type", ev.SignalType,
			"status", ev.CandleStatus,
			"candle_time", ev.CandleTime.UTC().Format(time.RFC3339),
			"close", ev.Close,
			"macd", llm.Round6(ev.MACD),
			"signal_line", llm.Round6(ev.SignalLine),
			"histogram", llm.Round6(ev.Histogram),
		)...)

	var errs []error
	if d.cfg.Journal != nil {
		if err := d.cfg.Journal.RecordSignal(ctx, ev); err != nil {
			errs = append(errs, d.fail("journal", err))
		}
	}
	for _, p := range d.cfg.Publishers {
		if err := p.PublishSignal(ctx, ev); err != nil {
			errs = append(errs, d.fail("publish", err))
		}
	}
	if d.cfg.Webhook != nil {
		if err := d.cfg.Webhook.Send(ctx, "signal", ev); err != nil {
			errs = append(errs, d.fail("webhook", err))
		}
	}
	if err := d.sendTelegram(ctx, ev.Channel, FormatSignalMessage(ev, d.cfg.Bar)); err != nil {
		errs = append(errs, d.fail("telegram", err))
	}

	d.commentAsync(ctx, ev)
	return errors.Join(errs...)
}

// Wait blocks until background AI commentary has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) commentAsync(ctx context.Context, ev model.SignalEvent) {
	if d.cfg.AI == nil {
		d.log.Warn("AI key is missing, skipped signal analysis", "inst_id", ev.InstID)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		aiCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.AITimeout)
		defer cancel()

		analysis, err := d.cfg.AI.Generate(aiCtx, llm.BuildSignalPrompt(ev, d.cfg.Bar))
		if err != nil {
			d.cfg.Metrics.ObserveNotifyFailure("ai")
			d.log.Error("AI analysis failed", append(logger.LogWithTrace(ctx), "inst_id", ev.InstID, "error", err)...)
			return
		}
		d.log.Info("AI analysis", append(logger.LogWithTrace(ctx), "inst_id", ev.InstID, "signal_type", ev.SignalType, "analysis", analysis)...)

		text := fmt.Sprintf("%s %s AI\n\n%s", ev.InstID, llm.SignalLabel(ev.SignalType), analysis)
		if err := d.sendTelegram(aiCtx, ev.Channel, text); err != nil {
			d.fail("telegram", err)
			d.log.Warn("AI analysis not delivered", "inst_id", ev.InstID, "error", err)
		}
	}()
}

// sendTelegram prefers the monitor's own channel, then the default one.
// With neither configured it is a silent no-op.
func (d *Dispatcher) sendTelegram(ctx context.Context, ch model.TelegramChannel, text string) error {
	if d.cfg.Telegram == nil {
		return nil
	}
	target := ch
	if !target.Configured() {
		target = d.cfg.DefaultTelegram
	}
	if !target.Configured() {
		return nil
	}
	return d.cfg.Telegram.Send(ctx, target.BotToken, target.ChatID, text)
}

func (d *Dispatcher) fail(sink string, err error) error {
	d.cfg.Metrics.ObserveNotifyFailure(sink)
	return fmt.Errorf("%s: %w", sink, err)
}

// FormatSignalMessage renders a cross as a plain-text chat message.
func FormatSignalMessage(ev model.SignalEvent, bar string) string {
	status := "收盘确认"
	if ev.CandleStatus == model.StatusIntrabar {
		status = "盘中信号（K线未收盘）"
	}
	if bar == "" {
		bar = "30m"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", ev.InstID, llm.SignalLabel(ev.SignalType))
	fmt.Fprintf(&b, "周期：%s · %s\n", bar, status)
	fmt.Fprintf(&b, "K线时间：%s\n", ev.CandleTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "收盘价：%s\n", strconv.FormatFloat(ev.Close, 'f', -1, 64))
	fmt.Fprintf(&b, "MACD：%s\n", strconv.FormatFloat(llm.Round6(ev.MACD), 'f', -1, 64))
	fmt.Fprintf(&b, "Signal：%s\n", strconv.FormatFloat(llm.Round6(ev.SignalLine), 'f', -1, 64))
	fmt.Fprintf(&b, "Histogram：%s", strconv.FormatFloat(llm.Round6(ev.Histogram), 'f', -1, 64))
	return b.String()
}
