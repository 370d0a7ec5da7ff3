package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/archertao78/aistock/internal/model"
)

func newMemStore(t *testing.T) (*FileStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return NewFileStore(fs, "db/reports.json"), fs
}

func report(id, name string) model.Report {
	return model.Report{ID: id, SymbolOrName: name, Markdown: "# " + name, CreatedAt: time.Now().UTC()}
}

func TestFileStore_CreatesEmptyFile(t *testing.T) {
	s, fs := newMemStore(t)

	list, err := s.List(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list, got %d", len(list))
	}
	raw, err := afero.ReadFile(fs, "db/reports.json")
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "[]" {
		t.Errorf("file = %q", raw)
	}
}

func TestFileStore_SaveIsNewestFirst(t *testing.T) {
	s, _ := newMemStore(t)
	ctx := context.Background()

	for _, r := range []model.Report{report("1", "AAPL"), report("2", "MSFT"), report("3", "AAPL Apple Inc")} {
		if err := s.Save(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	list, _ := s.List(ctx, 2)
	if len(list) != 2 || list[0].ID != "3" || list[1].ID != "2" {
		t.Errorf("list = %+v", list)
	}

	latest, err := s.FindLatestByNameOrSymbol(ctx, "aapl")
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != "3" {
		t.Errorf("latest aapl = %s, want 3", latest.ID)
	}

	if _, err := s.FindLatestByNameOrSymbol(ctx, "Apple"); !errors.Is(err, ErrNotFound) {
		t.Errorf("name phrase should not partially match: %v", err)
	}
}

func TestFileStore_GetUpdateDelete(t *testing.T) {
	s, _ := newMemStore(t)
	ctx := context.Background()
	s.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	s.Save(ctx, report("a", "NVDA"))
	s.Save(ctx, report("b", "TSLA"))

	got, err := s.GetByID(ctx, "a")
	if err != nil || got.SymbolOrName != "NVDA" {
		t.Fatalf("GetByID = %+v, %v", got, err)
	}

	md := "updated"
	updated, err := s.Update(ctx, "a", model.ReportUpdate{Markdown: &md})
	if err != nil {
		t.Fatal(err)
	}
	if updated.ID != "a" || updated.Markdown != "updated" || updated.SymbolOrName != "NVDA" {
		t.Errorf("update = %+v", updated)
	}
	if updated.UpdatedAt == nil || !updated.UpdatedAt.Equal(s.now()) {
		t.Errorf("updatedAt = %v", updated.UpdatedAt)
	}

	reread, _ := s.GetByID(ctx, "a")
	if reread.Markdown != "updated" {
		t.Error("update not persisted")
	}

	if _, err := s.Update(ctx, "missing", model.ReportUpdate{Markdown: &md}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing: %v", err)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetByID(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted report still present: %v", err)
	}
	if err := s.Delete(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}

	list, _ := s.List(ctx, 0)
	if len(list) != 1 || list[0].ID != "b" {
		t.Errorf("remaining = %+v", list)
	}
}

func TestFileStore_CorruptFileReadsEmpty(t *testing.T) {
	s, fs := newMemStore(t)
	fs.MkdirAll("db", 0o755)
	afero.WriteFile(fs, "db/reports.json", []byte("{not json"), 0o644)

	list, err := s.List(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list, got %d", len(list))
	}
}
