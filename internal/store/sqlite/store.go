// Package sqlite persists signals and research reports in a single SQLite
// database opened in WAL mode.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed signal journal and report store.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open creates the parent directory if needed, opens dbPath with WAL mode
// and ensures the schema exists.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log := slog.Default().With("component", "sqlite")
	log.Info("opened database", "path", dbPath)
	return &Store{db: db, log: log}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signals (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			monitor_id    TEXT    NOT NULL,
			inst_id       TEXT    NOT NULL,
			signal_type   TEXT    NOT NULL,
			candle_status TEXT    NOT NULL,
			candle_ts     INTEGER NOT NULL,
			close         REAL    NOT NULL,
			macd          REAL    NOT NULL,
			signal_line   REAL    NOT NULL,
			histogram     REAL    NOT NULL,
			created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_signals_inst ON signals(inst_id, candle_ts);

		CREATE TABLE IF NOT EXISTS reports (
			seq            INTEGER PRIMARY KEY AUTOINCREMENT,
			id             TEXT    NOT NULL UNIQUE,
			symbol_or_name TEXT    NOT NULL,
			thesis         TEXT    NOT NULL DEFAULT '',
			target         TEXT    NOT NULL DEFAULT '',
			markdown       TEXT    NOT NULL,
			model          TEXT    NOT NULL DEFAULT '',
			created_at     TEXT    NOT NULL,
			updated_at     TEXT
		);
	`)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
