package api

import (
	"net/http"
	"strings"

	"github.com/archertao78/aistock/internal/model"
	"github.com/archertao78/aistock/internal/store/sqlite"
)

type startMonitorRequest struct {
	InstID           string `json:"instId"`
	TelegramBotToken string `json:"telegramBotToken"`
	TelegramChatID   string `json:"telegramChatId"`
}

func (s *server) listMonitors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.Monitors.List()})
}

func (s *server) startMonitor(w http.ResponseWriter, r *http.Request) {
	var req startMonitorRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.InstID) == "" {
		writeError(w, http.StatusBadRequest, "Please provide instId, e.g. BTC-USDT.")
		return
	}

	snap, err := s.Monitors.Start(req.InstID, model.TelegramChannel{
		BotToken: req.TelegramBotToken,
		ChatID:   req.TelegramChatID,
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "monitor": snap})
}

func (s *server) stopMonitor(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "instId is required.")
		return
	}
	n := s.Monitors.Stop(id)
	if n == 0 {
		writeError(w, http.StatusNotFound, "Monitor not found.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "instId": id, "stopped": n})
}

// checkMonitor runs one evaluation immediately, outside the schedule.
func (s *server) checkMonitor(w http.ResponseWriter, r *http.Request) {
	res, err := s.Monitors.Check(r.Context(), r.PathValue("id"))
	if err != nil {
		s.log.Warn("manual check failed", "monitor_id", r.PathValue("id"), "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) listSignals(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	inst := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("inst")))
	recs, err := s.Signals.RecentSignals(r.Context(), inst, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []sqlite.SignalRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": recs})
}
