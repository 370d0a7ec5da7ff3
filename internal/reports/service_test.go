package reports

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"github.com/archertao78/aistock/internal/llm"
	"github.com/archertao78/aistock/internal/model"
)

type stubAI struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	err     error
}

func (s *stubAI) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return "# Report", nil
}

func newService(ai llm.Generator) (*Service, *FileStore) {
	store := NewFileStore(afero.NewMemMapFs(), "db/reports.json")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, ai, "google/gemini-2.0-flash-001", log), store
}

func TestAnalyze_GeneratesThenReuses(t *testing.T) {
	ai := &stubAI{}
	svc, store := newService(ai)
	ctx := context.Background()

	first, err := svc.Analyze(ctx, "  AAPL ", " services growth ", "")
	if err != nil {
		t.Fatal(err)
	}
	if first.Reused || first.ID == "" {
		t.Fatalf("first = %+v", first)
	}
	if !strings.Contains(ai.prompts[0], "股票代码 / 公司名称：AAPL") {
		t.Error("prompt does not carry the trimmed symbol")
	}

	stored, err := store.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Thesis != "services growth" || stored.Model != "google/gemini-2.0-flash-001" || stored.Markdown != "# Report" {
		t.Errorf("stored = %+v", stored)
	}

	second, err := svc.Analyze(ctx, "aapl", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if !second.Reused || second.ID != first.ID || !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("second = %+v", second)
	}
	if ai.calls != 1 {
		t.Errorf("AI called %d times, want 1", ai.calls)
	}
}

func TestAnalyze_Validation(t *testing.T) {
	svc, _ := newService(&stubAI{})
	if _, err := svc.Analyze(context.Background(), "   ", "", ""); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestAnalyze_AIErrorSavesNothing(t *testing.T) {
	svc, store := newService(&stubAI{err: errors.New("quota")})

	if _, err := svc.Analyze(context.Background(), "MSFT", "", ""); err == nil {
		t.Fatal("expected error")
	}
	list, _ := store.List(context.Background(), 0)
	if len(list) != 0 {
		t.Errorf("expected nothing saved, got %d", len(list))
	}
}

func TestAnalyze_NoAI(t *testing.T) {
	svc, _ := newService(nil)
	if _, err := svc.Analyze(context.Background(), "MSFT", "", ""); !errors.Is(err, llm.ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestService_Update(t *testing.T) {
	svc, _ := newService(&stubAI{})
	ctx := context.Background()
	res, _ := svc.Analyze(ctx, "NVDA", "", "")

	if _, err := svc.Update(ctx, res.ID, model.ReportUpdate{}); err == nil {
		t.Error("expected error for empty update")
	}
	blank := "  "
	if _, err := svc.Update(ctx, res.ID, model.ReportUpdate{SymbolOrName: &blank}); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("blank name: %v", err)
	}

	name, target := "  NVDA Nvidia ", " 150 "
	r, err := svc.Update(ctx, res.ID, model.ReportUpdate{SymbolOrName: &name, Target: &target})
	if err != nil {
		t.Fatal(err)
	}
	if r.SymbolOrName != "NVDA Nvidia" || r.Target != "150" || r.UpdatedAt == nil {
		t.Errorf("updated = %+v", r)
	}
}

func TestService_ListDefaultLimit(t *testing.T) {
	svc, store := newService(&stubAI{})
	ctx := context.Background()
	for i := 0; i < DefaultListLimit+5; i++ {
		store.Save(ctx, model.Report{ID: strings.Repeat("x", i+1), SymbolOrName: "S"})
	}
	list, err := svc.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != DefaultListLimit {
		t.Errorf("len = %d, want %d", len(list), DefaultListLimit)
	}
}
