package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/archertao78/aistock/internal/model"
)

type analyzeRequest struct {
	SymbolOrName string `json:"symbolOrName"`
	Thesis       string `json:"thesis"`
	Target       string `json:"target"`
}

// reportSummary is the list view of a report; markdown is fetched per id.
type reportSummary struct {
	ID           string    `json:"id"`
	SymbolOrName string    `json:"symbolOrName"`
	CreatedAt    time.Time `json:"createdAt"`
	Thesis       string    `json:"thesis"`
	Target       string    `json:"target"`
}

func (s *server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SymbolOrName) == "" {
		writeError(w, http.StatusBadRequest, "Please enter a company name or ticker.")
		return
	}

	res, err := s.Reports.Analyze(r.Context(), req.SymbolOrName, req.Thesis, req.Target)
	if err != nil {
		s.log.Error("analyze failed", "symbol_or_name", req.SymbolOrName, "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) listReports(w http.ResponseWriter, r *http.Request) {
	list, err := s.Reports.List(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]reportSummary, len(list))
	for i, rep := range list {
		out[i] = reportSummary{
			ID:           rep.ID,
			SymbolOrName: rep.SymbolOrName,
			CreatedAt:    rep.CreatedAt,
			Thesis:       rep.Thesis,
			Target:       rep.Target,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) getReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Reports.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		status := statusFor(err)
		msg := err.Error()
		if status == http.StatusNotFound {
			msg = "Report not found."
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *server) updateReport(w http.ResponseWriter, r *http.Request) {
	var u model.ReportUpdate
	if !decode(w, r, &u) {
		return
	}
	rep, err := s.Reports.Update(r.Context(), r.PathValue("id"), u)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "report": rep})
}

func (s *server) deleteReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Reports.Delete(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}
