// Package reports manages generated research reports: a flat JSON file
// store and the Analyze workflow that reuses or generates a report.
package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/archertao78/aistock/internal/model"
)

var (
	// ErrNotFound is returned when no report matches.
	ErrNotFound = model.ErrReportNotFound
	// ErrEmptyQuery is returned for a blank symbol or name.
	ErrEmptyQuery = errors.New("symbolOrName is required")
	// ErrEmptyUpdate is returned when an update carries no fields.
	ErrEmptyUpdate = errors.New("no valid fields to update")
)

// FileStore keeps all reports in one JSON array, newest first. Every
// operation rereads the file so external edits are picked up.
type FileStore struct {
	fs   afero.Fs
	path string
	now  func() time.Time

	mu sync.Mutex
}

// NewFileStore creates a store backed by path on fs.
func NewFileStore(fs afero.Fs, path string) *FileStore {
	return &FileStore{fs: fs, path: path, now: time.Now}
}

func (s *FileStore) ensure() error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("reports: mkdir: %w", err)
	}
	_, err := s.fs.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return afero.WriteFile(s.fs, s.path, []byte("[]"), 0o644)
	}
	return err
}

// read returns the stored reports. A corrupt file reads as empty.
func (s *FileStore) read() ([]model.Report, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}
	raw, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, fmt.Errorf("reports: read: %w", err)
	}
	var out []model.Report
	if err := json.Unmarshal(raw, &out); err != nil {
		return []model.Report{}, nil
	}
	return out, nil
}

func (s *FileStore) write(reports []model.Report) error {
	if reports == nil {
		reports = []model.Report{}
	}
	raw, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("reports: marshal: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, raw, 0o644); err != nil {
		return fmt.Errorf("reports: write: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("reports: rename: %w", err)
	}
	return nil
}

// Save inserts r as the newest report.
func (s *FileStore) Save(ctx context.Context, r model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports, err := s.read()
	if err != nil {
		return err
	}
	reports = append([]model.Report{r}, reports...)
	return s.write(reports)
}

func (s *FileStore) GetByID(ctx context.Context, id string) (model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports, err := s.read()
	if err != nil {
		return model.Report{}, err
	}
	for _, r := range reports {
		if r.ID == id {
			return r, nil
		}
	}
	return model.Report{}, ErrNotFound
}

// List returns up to limit reports, newest first. limit <= 0 returns all.
func (s *FileStore) List(ctx context.Context, limit int) ([]model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports, err := s.read()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

func (s *FileStore) FindLatestByNameOrSymbol(ctx context.Context, query string) (model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports, err := s.read()
	if err != nil {
		return model.Report{}, err
	}
	for _, r := range reports {
		if model.MatchesSymbolOrName(query, r.SymbolOrName) {
			return r, nil
		}
	}
	return model.Report{}, ErrNotFound
}

func (s *FileStore) Update(ctx context.Context, id string, u model.ReportUpdate) (model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports, err := s.read()
	if err != nil {
		return model.Report{}, err
	}
	for i := range reports {
		if reports[i].ID != id {
			continue
		}
		applyUpdate(&reports[i], u, s.now().UTC())
		if err := s.write(reports); err != nil {
			return model.Report{}, err
		}
		return reports[i], nil
	}
	return model.Report{}, ErrNotFound
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports, err := s.read()
	if err != nil {
		return err
	}
	for i := range reports {
		if reports[i].ID == id {
			reports = append(reports[:i], reports[i+1:]...)
			return s.write(reports)
		}
	}
	return ErrNotFound
}

// applyUpdate merges the set fields of u into r and stamps UpdatedAt.
func applyUpdate(r *model.Report, u model.ReportUpdate, at time.Time) {
	if u.SymbolOrName != nil {
		r.SymbolOrName = *u.SymbolOrName
	}
	if u.Thesis != nil {
		r.Thesis = *u.Thesis
	}
	if u.Target != nil {
		r.Target = *u.Target
	}
	if u.Markdown != nil {
		r.Markdown = *u.Markdown
	}
	r.UpdatedAt = &at
}
