// Command aistock runs the MACD crypto monitors, the research report API
// and the live event stream.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/archertao78/aistock/config"
	"github.com/archertao78/aistock/internal/api"
	"github.com/archertao78/aistock/internal/llm"
	"github.com/archertao78/aistock/internal/logger"
	"github.com/archertao78/aistock/internal/marketdata/okx"
	"github.com/archertao78/aistock/internal/metrics"
	"github.com/archertao78/aistock/internal/model"
	"github.com/archertao78/aistock/internal/monitor"
	"github.com/archertao78/aistock/internal/notification"
	"github.com/archertao78/aistock/internal/reports"
	"github.com/archertao78/aistock/internal/store/redis"
	"github.com/archertao78/aistock/internal/store/sqlite"
	"github.com/archertao78/aistock/internal/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.Init("aistock", cfg.SlogLevel(), cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("terminated", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// ---- Metrics & health ----
	prom := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus()

	// ---- Storage ----
	var db *sqlite.Store
	if cfg.SQLitePath != "" {
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer s.Close()
		db = s
		health.EnableSQLite()
	}

	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		health.EnableRedis()
		c, err := redis.Connect(ctx, redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			log.Warn("redis unavailable, publishing disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer c.Close()
			rdb = c
			log.Info("redis connected", "addr", cfg.RedisAddr)
		}
	}

	var sqlDB *sql.DB
	if db != nil {
		sqlDB = db.DB()
	}
	health.StartLivenessChecker(ctx, rdb, sqlDB, 10*time.Second)

	// ---- Sinks ----
	hub := stream.NewHub(prom)
	publishers := []model.EventPublisher{hub}
	if rdb != nil {
		publishers = append(publishers, redis.NewPublisher(rdb, prom))
	}

	ai, aiModel := newGenerator(cfg)
	if ai == nil {
		log.Warn("no AI API key configured; commentary and report generation disabled")
	}

	dcfg := notification.DispatcherConfig{
		Logger:   log,
		Metrics:  prom,
		Telegram: notification.NewTelegramNotifier(cfg.TelegramAPIBase),
		DefaultTelegram: model.TelegramChannel{
			BotToken: cfg.TelegramBotToken,
			ChatID:   cfg.TelegramChatID,
		},
		AI:         ai,
		Bar:        cfg.MonitorBar,
		Publishers: publishers,
	}
	if cfg.WebhookURL != "" {
		dcfg.Webhook = notification.NewWebhookNotifier(cfg.WebhookURL)
	}
	if db != nil {
		dcfg.Journal = db
	}
	dispatcher := notification.NewDispatcher(dcfg)

	// ---- Monitors ----
	source := okx.NewClient(okx.Config{BaseURL: cfg.OKXBaseURL, RatePerSec: cfg.OKXRatePerSec})
	registry := monitor.NewRegistry(source,
		monitor.Hooks{OnTick: dispatcher.OnTick, OnSignal: dispatcher.OnSignal},
		monitor.Config{
			Interval: cfg.MonitorInterval(),
			Bar:      cfg.MonitorBar,
			Lookback: cfg.MonitorLookback,
			Intrabar: cfg.MonitorIntrabar,
		},
		monitor.Options{Logger: log, Metrics: prom, Health: health},
	)

	// ---- Reports ----
	var store model.ReportStore
	if cfg.ReportsBackend == "sqlite" && db != nil {
		store = db.Reports()
	} else {
		store = reports.NewFileStore(afero.NewOsFs(), cfg.ReportsFile)
	}
	reportSvc := reports.NewService(store, ai, aiModel, log)

	// ---- HTTP ----
	deps := api.Deps{
		Monitors: registry,
		Reports:  reportSvc,
		Stream:   hub,
		Logger:   log,
	}
	if db != nil {
		deps.Signals = db
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "listen_address", cfg.Addr, "monitor_interval", registry.Interval(), "bar", cfg.MonitorBar)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return metrics.NewServer(cfg.MetricsAddr, prom, health).Run(gCtx)
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down")
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	registry.Close()
	dispatcher.Wait()
	return err
}

// newGenerator picks the AI backend: the Gemini/OpenRouter key wins, then
// OpenAI. It returns a nil Generator when no key is set.
func newGenerator(cfg *config.Config) (llm.Generator, string) {
	switch {
	case cfg.GeminiAPIKey != "":
		return llm.NewClient(llm.Config{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
			Referer: cfg.OpenRouterReferer,
			Title:   cfg.OpenRouterTitle,
		}), cfg.GeminiModel
	case cfg.OpenAIAPIKey != "":
		return llm.NewOpenAIClient(llm.Config{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		}), cfg.OpenAIModel
	default:
		return nil, cfg.GeminiModel
	}
}
