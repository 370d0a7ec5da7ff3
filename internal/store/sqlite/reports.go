package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/archertao78/aistock/internal/model"
)

const reportColumns = `id, symbol_or_name, thesis, target, markdown, model, created_at, updated_at`

var _ model.ReportStore = (*Reports)(nil)

// Reports exposes the report table through model.ReportStore.
type Reports struct {
	s *Store
}

// Reports returns the report store view of s.
func (s *Store) Reports() *Reports {
	return &Reports{s: s}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (model.Report, error) {
	var r model.Report
	var created string
	var updated sql.NullString
	if err := row.Scan(&r.ID, &r.SymbolOrName, &r.Thesis, &r.Target, &r.Markdown, &r.Model, &created, &updated); err != nil {
		return model.Report{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return model.Report{}, fmt.Errorf("parse created_at: %w", err)
	}
	r.CreatedAt = t
	if updated.Valid {
		u, err := time.Parse(time.RFC3339Nano, updated.String)
		if err == nil {
			r.UpdatedAt = &u
		}
	}
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (r *Reports) Save(ctx context.Context, rep model.Report) error {
	var updated any
	if rep.UpdatedAt != nil {
		updated = formatTime(*rep.UpdatedAt)
	}
	_, err := r.s.db.ExecContext(ctx,
		`INSERT INTO reports (`+reportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.SymbolOrName, rep.Thesis, rep.Target, rep.Markdown, rep.Model, formatTime(rep.CreatedAt), updated,
	)
	if err != nil {
		return fmt.Errorf("sqlite insert report: %w", err)
	}
	return nil
}

func (r *Reports) GetByID(ctx context.Context, id string) (model.Report, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, model.ErrReportNotFound
	}
	if err != nil {
		return model.Report{}, fmt.Errorf("sqlite get report: %w", err)
	}
	return rep, nil
}

// List returns up to limit reports, newest first. limit <= 0 returns all.
func (r *Reports) List(ctx context.Context, limit int) ([]model.Report, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.s.db.QueryContext(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite list reports: %w", err)
	}
	defer rows.Close()

	out := []model.Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan report: %w", err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// FindLatestByNameOrSymbol scans newest first and applies the shared
// symbol/name matching rules in Go.
func (r *Reports) FindLatestByNameOrSymbol(ctx context.Context, query string) (model.Report, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY seq DESC`)
	if err != nil {
		return model.Report{}, fmt.Errorf("sqlite find report: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return model.Report{}, fmt.Errorf("sqlite scan report: %w", err)
		}
		if model.MatchesSymbolOrName(query, rep.SymbolOrName) {
			return rep, nil
		}
	}
	if err := rows.Err(); err != nil {
		return model.Report{}, err
	}
	return model.Report{}, model.ErrReportNotFound
}

func (r *Reports) Update(ctx context.Context, id string, u model.ReportUpdate) (model.Report, error) {
	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Report{}, err
	}
	defer tx.Rollback()

	rep, err := scanReport(tx.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, model.ErrReportNotFound
	}
	if err != nil {
		return model.Report{}, fmt.Errorf("sqlite get report: %w", err)
	}

	if u.SymbolOrName != nil {
		rep.SymbolOrName = *u.SymbolOrName
	}
	if u.Thesis != nil {
		rep.Thesis = *u.Thesis
	}
	if u.Target != nil {
		rep.Target = *u.Target
	}
	if u.Markdown != nil {
		rep.Markdown = *u.Markdown
	}
	now := time.Now().UTC()
	rep.UpdatedAt = &now

	_, err = tx.ExecContext(ctx,
		`UPDATE reports SET symbol_or_name = ?, thesis = ?, target = ?, markdown = ?, updated_at = ? WHERE id = ?`,
		rep.SymbolOrName, rep.Thesis, rep.Target, rep.Markdown, formatTime(now), id,
	)
	if err != nil {
		return model.Report{}, fmt.Errorf("sqlite update report: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Report{}, err
	}
	return rep, nil
}

func (r *Reports) Delete(ctx context.Context, id string) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite delete report: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return model.ErrReportNotFound
	}
	return nil
}
