// Package store handles SQLite persistence of reported results.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/reflex/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for result records.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY,
			session_id TEXT NOT NULL,
			device_id TEXT NOT NULL,
			round_index INTEGER NOT NULL,
			difficulty INTEGER NOT NULL,
			wait_ms INTEGER NOT NULL,
			visual_ms INTEGER NOT NULL,
			tactile_ms INTEGER NOT NULL,
			total_ms INTEGER NOT NULL,
			best_ms INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_recorded_at ON results(recorded_at);`,
		`CREATE INDEX IF NOT EXISTS idx_results_session ON results(session_id, round_index);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertResult stores one completed round.
func (s *Store) InsertResult(ctx context.Context, rec model.ResultRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO results (session_id, device_id, round_index, difficulty, wait_ms, visual_ms, tactile_ms, total_ms, best_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID,
		rec.DeviceID,
		rec.RoundIndex,
		rec.Difficulty,
		rec.WaitMs,
		rec.VisualMs,
		rec.TactileMs,
		rec.TotalMs,
		rec.BestMs,
		rec.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListResults returns stored results in recording order, filtered by cfg.
func (s *Store) ListResults(ctx context.Context, cfg model.HistoryConfig) ([]model.ResultRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, cfg.SessionID)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "recorded_at >= ?")
		args = append(args, cfg.Since.UTC().Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT session_id, device_id, round_index, difficulty, wait_ms, visual_ms, tactile_ms, total_ms, best_ms, recorded_at
		FROM results
		WHERE %s
		ORDER BY recorded_at ASC, id ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var results []model.ResultRecord
	for rows.Next() {
		var rec model.ResultRecord
		var recordedAt string
		if err := rows.Scan(&rec.SessionID, &rec.DeviceID, &rec.RoundIndex, &rec.Difficulty, &rec.WaitMs,
			&rec.VisualMs, &rec.TactileMs, &rec.TotalMs, &rec.BestMs, &recordedAt); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, err
		}
		rec.RecordedAt = parsed
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if cfg.Last > 0 && len(results) > cfg.Last {
		results = results[len(results)-cfg.Last:]
	}
	return results, nil
}
