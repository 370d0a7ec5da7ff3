package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/archertao78/aistock/internal/llm"
	"github.com/archertao78/aistock/internal/model"
)

// DefaultListLimit applies when a caller asks for a non-positive limit.
const DefaultListLimit = 20

// AnalyzeResult identifies the report answering an Analyze call.
type AnalyzeResult struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Reused    bool      `json:"reused"`
}

// Service implements report workflows on top of a ReportStore.
type Service struct {
	store model.ReportStore
	ai    llm.Generator
	model string
	log   *slog.Logger
	now   func() time.Time

	group singleflight.Group
}

// NewService creates a report service. modelName is recorded on every
// generated report.
func NewService(store model.ReportStore, ai llm.Generator, modelName string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store: store,
		ai:    ai,
		model: modelName,
		log:   log.With("component", "reports"),
		now:   time.Now,
	}
}

// Analyze returns the newest report matching symbolOrName, or generates,
// stores and returns a new one. Concurrent calls for the same name share
// one generation.
func (s *Service) Analyze(ctx context.Context, symbolOrName, thesis, target string) (AnalyzeResult, error) {
	name := strings.TrimSpace(symbolOrName)
	if name == "" {
		return AnalyzeResult{}, ErrEmptyQuery
	}
	thesis = strings.TrimSpace(thesis)
	target = strings.TrimSpace(target)

	existing, err := s.store.FindLatestByNameOrSymbol(ctx, name)
	switch {
	case err == nil:
		return AnalyzeResult{ID: existing.ID, CreatedAt: existing.CreatedAt, Reused: true}, nil
	case !errors.Is(err, ErrNotFound):
		return AnalyzeResult{}, err
	}

	key := strings.ToLower(strings.Join(strings.Fields(name), " "))
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.generate(ctx, name, thesis, target)
	})
	if err != nil {
		return AnalyzeResult{}, err
	}
	r := v.(model.Report)
	return AnalyzeResult{ID: r.ID, CreatedAt: r.CreatedAt}, nil
}

func (s *Service) generate(ctx context.Context, name, thesis, target string) (model.Report, error) {
	if s.ai == nil {
		return model.Report{}, llm.ErrMissingAPIKey
	}
	start := time.Now()
	markdown, err := s.ai.Generate(ctx, llm.BuildResearchPrompt(name, thesis, target))
	if err != nil {
		return model.Report{}, fmt.Errorf("generate report: %w", err)
	}

	r := model.Report{
		ID:           uuid.NewString(),
		SymbolOrName: name,
		Thesis:       thesis,
		Target:       target,
		Markdown:     markdown,
		Model:        s.model,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Save(ctx, r); err != nil {
		return model.Report{}, fmt.Errorf("save report: %w", err)
	}
	s.log.Info("report generated", "id", r.ID, "symbol_or_name", name, "model", s.model, "took", time.Since(start).Round(time.Millisecond))
	return r, nil
}

// Get returns one report.
func (s *Service) Get(ctx context.Context, id string) (model.Report, error) {
	return s.store.GetByID(ctx, strings.TrimSpace(id))
}

// List returns the newest reports; limit <= 0 means DefaultListLimit.
func (s *Service) List(ctx context.Context, limit int) ([]model.Report, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.store.List(ctx, limit)
}

// Update trims the text fields and applies them. A blank symbolOrName is
// rejected, as is an update that changes nothing.
func (s *Service) Update(ctx context.Context, id string, u model.ReportUpdate) (model.Report, error) {
	if u.Empty() {
		return model.Report{}, ErrEmptyUpdate
	}
	if u.SymbolOrName != nil {
		v := strings.TrimSpace(*u.SymbolOrName)
		if v == "" {
			return model.Report{}, ErrEmptyQuery
		}
		u.SymbolOrName = &v
	}
	if u.Thesis != nil {
		v := strings.TrimSpace(*u.Thesis)
		u.Thesis = &v
	}
	if u.Target != nil {
		v := strings.TrimSpace(*u.Target)
		u.Target = &v
	}
	return s.store.Update(ctx, id, u)
}

// Delete removes a report.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
