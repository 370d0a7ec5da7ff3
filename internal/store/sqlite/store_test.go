package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/archertao78/aistock/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestJournal_RecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	events := []model.SignalEvent{
		{MonitorID: "m1", InstID: "BTC-USDT", SignalType: model.GoldenCross, CandleTime: base, Close: 100, MACD: 1, SignalLine: 0.5, Histogram: 0.5, CandleStatus: model.StatusClosed},
		{MonitorID: "m2", InstID: "ETH-USDT", SignalType: model.DeathCross, CandleTime: base.Add(time.Minute), Close: 50, CandleStatus: model.StatusIntrabar},
		{MonitorID: "m1", InstID: "BTC-USDT", SignalType: model.DeathCross, CandleTime: base.Add(2 * time.Minute), Close: 99, CandleStatus: model.StatusClosed},
	}
	for _, ev := range events {
		if err := s.RecordSignal(ctx, ev); err != nil {
			t.Fatalf("RecordSignal: %v", err)
		}
	}

	all, err := s.RecentSignals(ctx, "", 10)
	if err != nil {
		t.Fatalf("RecentSignals: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 signals, got %d", len(all))
	}
	if all[0].SignalType != model.DeathCross || all[0].InstID != "BTC-USDT" {
		t.Errorf("expected newest first, got %+v", all[0])
	}

	btc, err := s.RecentSignals(ctx, "BTC-USDT", 1)
	if err != nil {
		t.Fatalf("RecentSignals: %v", err)
	}
	if len(btc) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(btc))
	}
	if !btc[0].CandleTime.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("candle time = %v", btc[0].CandleTime)
	}
	if btc[0].CandleStatus != string(model.StatusClosed) {
		t.Errorf("candle status = %q", btc[0].CandleStatus)
	}
}

func TestReports_SaveListFind(t *testing.T) {
	s := openTestStore(t)
	r := s.Reports()
	ctx := context.Background()
	now := time.Now().UTC()

	for i, name := range []string{"Apple Inc (AAPL)", "MSFT Microsoft", "AAPL Apple"} {
		rep := model.Report{
			ID:           name,
			SymbolOrName: name,
			Markdown:     "# " + name,
			Model:        "m",
			CreatedAt:    now.Add(time.Duration(i) * time.Second),
		}
		if err := r.Save(ctx, rep); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	list, err := r.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "AAPL Apple" {
		t.Fatalf("unexpected list: %+v", list)
	}

	all, err := r.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected all 3 reports, got %d", len(all))
	}

	found, err := r.FindLatestByNameOrSymbol(ctx, "aapl")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found.ID != "AAPL Apple" {
		t.Errorf("expected newest match, got %s", found.ID)
	}

	if _, err := r.FindLatestByNameOrSymbol(ctx, "tsla"); !errors.Is(err, model.ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound, got %v", err)
	}

	got, err := r.GetByID(ctx, "MSFT Microsoft")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.CreatedAt.Equal(now.Add(time.Second)) {
		t.Errorf("createdAt round trip: %v vs %v", got.CreatedAt, now.Add(time.Second))
	}
	if got.UpdatedAt != nil {
		t.Error("new report should not have updatedAt")
	}
}

func TestReports_UpdateDelete(t *testing.T) {
	s := openTestStore(t)
	r := s.Reports()
	ctx := context.Background()

	if err := r.Save(ctx, model.Report{ID: "r1", SymbolOrName: "NVDA", Markdown: "old", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	md := "new"
	updated, err := r.Update(ctx, "r1", model.ReportUpdate{Markdown: &md})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ID != "r1" || updated.Markdown != "new" || updated.SymbolOrName != "NVDA" {
		t.Errorf("unexpected update result: %+v", updated)
	}
	if updated.UpdatedAt == nil {
		t.Error("expected updatedAt to be stamped")
	}

	got, _ := r.GetByID(ctx, "r1")
	if got.Markdown != "new" || got.UpdatedAt == nil {
		t.Errorf("update not persisted: %+v", got)
	}

	if _, err := r.Update(ctx, "missing", model.ReportUpdate{Markdown: &md}); !errors.Is(err, model.ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound, got %v", err)
	}

	if err := r.Delete(ctx, "r1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := r.Delete(ctx, "r1"); !errors.Is(err, model.ErrReportNotFound) {
		t.Errorf("second delete: expected ErrReportNotFound, got %v", err)
	}
	if _, err := r.GetByID(ctx, "r1"); !errors.Is(err, model.ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound, got %v", err)
	}
}
