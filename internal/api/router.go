// Package api exposes monitors, reports and the live event stream over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/archertao78/aistock/internal/llm"
	"github.com/archertao78/aistock/internal/model"
	"github.com/archertao78/aistock/internal/monitor"
	"github.com/archertao78/aistock/internal/reports"
	"github.com/archertao78/aistock/internal/store/sqlite"
)

// Monitors is the registry surface used by the handlers.
type Monitors interface {
	Start(instID string, channel model.TelegramChannel) (monitor.Snapshot, error)
	Stop(identifier string) int
	List() []monitor.Snapshot
	Check(ctx context.Context, id string) (monitor.CheckResult, error)
}

// Reports is the report workflow surface used by the handlers.
type Reports interface {
	Analyze(ctx context.Context, symbolOrName, thesis, target string) (reports.AnalyzeResult, error)
	Get(ctx context.Context, id string) (model.Report, error)
	List(ctx context.Context, limit int) ([]model.Report, error)
	Update(ctx context.Context, id string, u model.ReportUpdate) (model.Report, error)
	Delete(ctx context.Context, id string) error
}

// SignalLog lists journaled signals.
type SignalLog interface {
	RecentSignals(ctx context.Context, instID string, limit int) ([]sqlite.SignalRecord, error)
}

// Deps are the collaborators behind the router. Signals and Stream are
// optional; their routes are not registered when nil.
type Deps struct {
	Monitors Monitors
	Reports  Reports
	Signals  SignalLog
	Stream   http.Handler
	Logger   *slog.Logger
	Now      func() time.Time
}

type server struct {
	Deps
	log *slog.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &server{Deps: d, log: log.With("component", "api")}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.health)

	mux.HandleFunc("GET /api/crypto/monitor", s.listMonitors)
	mux.HandleFunc("POST /api/crypto/monitor", s.startMonitor)
	mux.HandleFunc("DELETE /api/crypto/monitor/{id}", s.stopMonitor)
	mux.HandleFunc("POST /api/crypto/monitor/{id}/check", s.checkMonitor)

	mux.HandleFunc("POST /api/analyze", s.analyze)
	mux.HandleFunc("GET /api/reports", s.listReports)
	mux.HandleFunc("GET /api/reports/{id}", s.getReport)
	mux.HandleFunc("PUT /api/reports/{id}", s.updateReport)
	mux.HandleFunc("DELETE /api/reports/{id}", s.deleteReport)

	if d.Signals != nil {
		mux.HandleFunc("GET /api/crypto/signals", s.listSignals)
	}
	if d.Stream != nil {
		mux.Handle("GET /ws", d.Stream)
	}

	return s.middleware(mux)
}

// middleware disables caching on API responses and recovers handler panics.
func (s *server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
			w.Header().Set("Pragma", "no-cache")
			w.Header().Set("Expires", "0")
		}
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("handler panic", "path", r.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// decode reads a JSON body of at most 2 MiB into v.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 2<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":  true,
		"now": s.Now().UTC().Format(time.RFC3339Nano),
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, monitor.ErrInvalidIdentifier),
		errors.Is(err, reports.ErrEmptyQuery),
		errors.Is(err, reports.ErrEmptyUpdate):
		return http.StatusBadRequest
	case errors.Is(err, monitor.ErrNotFound),
		errors.Is(err, reports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, llm.ErrMissingAPIKey),
		errors.Is(err, monitor.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
