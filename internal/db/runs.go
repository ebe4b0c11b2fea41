package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/crossing.report/internal/tracking"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("detection run not found")

// Run describes one archived detection run.
type Run struct {
	ID         string          `json:"run_id"`
	Source     string          `json:"source"`
	CreatedAt  time.Time       `json:"created_at"`
	Detections int             `json:"detection_count"`
	Counts     *tracking.Tally `json:"counts,omitempty"`
}

func unixToTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

// SaveRun stores dets under a fresh run id in a single transaction and
// returns the id. Detection order is preserved.
func (db *DB) SaveRun(ctx context.Context, source string, dets []tracking.Detection) (string, error) {
	runID := uuid.NewString()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO detection_runs (run_id, source, detection_count) VALUES (?, ?, ?)`,
		runID, source, len(dets),
	); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO detections (run_id, seq, track_id, label, x, y, w, h, score, frame, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare detection insert: %w", err)
	}
	defer stmt.Close()

	for i, d := range dets {
		if _, err := stmt.ExecContext(ctx,
			runID, i, d.TrackID, d.Label, d.X, d.Y, d.W, d.H, d.Score, d.Frame, d.Timestamp,
		); err != nil {
			return "", fmt.Errorf("failed to insert detection %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

const runColumns = `run_id, source, created_unix, detection_count, clockwise, counter_clockwise`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (Run, error) {
	var (
		r       Run
		created float64
		cw, ccw sql.NullInt64
	)
	if err := s.Scan(&r.ID, &r.Source, &created, &r.Detections, &cw, &ccw); err != nil {
		return Run{}, err
	}
	r.CreatedAt = unixToTime(created)
	if cw.Valid && ccw.Valid {
		r.Counts = &tracking.Tally{Clockwise: int(cw.Int64), CounterClockwise: int(ccw.Int64)}
	}
	return r, nil
}

// GetRun returns the metadata of one run.
func (db *DB) GetRun(ctx context.Context, runID string) (Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM detection_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to read run %s: %w", runID, err)
	}
	return r, nil
}

// ListRuns returns every run, newest first.
func (db *DB) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM detection_runs ORDER BY created_unix DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadRun returns the detections of a run in the order they were saved.
func (db *DB) LoadRun(ctx context.Context, runID string) ([]tracking.Detection, error) {
	if _, err := db.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT track_id, label, x, y, w, h, score, frame, timestamp
		FROM detections
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	defer rows.Close()

	var dets []tracking.Detection
	for rows.Next() {
		var d tracking.Detection
		if err := rows.Scan(&d.TrackID, &d.Label, &d.X, &d.Y, &d.W, &d.H, &d.Score, &d.Frame, &d.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		dets = append(dets, d)
	}
	return dets, rows.Err()
}

// RecordCounts stores the crossing tally computed for a run.
func (db *DB) RecordCounts(ctx context.Context, runID string, t tracking.Tally) error {
	res, err := db.ExecContext(ctx,
		`UPDATE detection_runs SET clockwise = ?, counter_clockwise = ? WHERE run_id = ?`,
		t.Clockwise, t.CounterClockwise, runID)
	if err != nil {
		return fmt.Errorf("failed to record counts for %s: %w", runID, err)
	}
	return requireOneRow(res, runID)
}

// DeleteRun removes a run and its detections.
func (db *DB) DeleteRun(ctx context.Context, runID string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM detections WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete detections of %s: %w", runID, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM detection_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	if err := requireOneRow(res, runID); err != nil {
		return err
	}
	return tx.Commit()
}

func requireOneRow(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
