package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/mosaic/internal/monitoring"
	"github.com/banshee-data/mosaic/internal/mosaic"
	"github.com/banshee-data/mosaic/internal/tile"
	"github.com/banshee-data/mosaic/internal/timeutil"
)

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// RunParams describes a run as it starts.
type RunParams struct {
	LibraryPath  string `json:"library_path"`
	Cells        int    `json:"cells"`
	Dups         int    `json:"dups"`
	XBlocks      int    `json:"x_blocks"`
	YBlocks      int    `json:"y_blocks"`
	Flags        int    `json:"flags"`
	Wy           int    `json:"wy"`
	Wc           int    `json:"wc"`
	We           int    `json:"we"`
	WindowPolicy string `json:"window_policy"`
	WindowMargin int    `json:"window_margin"`
	Workers      int    `json:"workers"`
}

// ToJSON serialises the params for the params_json column.
func (p RunParams) ToJSON() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run params: %w", err)
	}
	return string(b), nil
}

// Run is one row of mosaic_runs.
type Run struct {
	RunID          string
	CreatedAt      time.Time
	LibraryPath    string
	Cells          int
	Dups           int
	ParamsJSON     string
	Status         string
	TilesProcessed int
	Duration       time.Duration
	Error          string
}

// Params decodes ParamsJSON.
func (r *Run) Params() (RunParams, error) {
	var p RunParams
	if err := json.Unmarshal([]byte(r.ParamsJSON), &p); err != nil {
		return p, fmt.Errorf("failed to parse params for run %s: %w", r.RunID, err)
	}
	return p, nil
}

// RunStore records runs and their assignments.
type RunStore struct {
	db    *DB
	clock timeutil.Clock
}

// NewRunStore returns a RunStore using the real clock.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db, clock: timeutil.RealClock{}}
}

// NewRunStoreWithClock returns a RunStore stamping rows from clock.
func NewRunStoreWithClock(db *DB, clock timeutil.Clock) *RunStore {
	return &RunStore{db: db, clock: clock}
}

// StartRun inserts a running row and returns its new run ID.
func (s *RunStore) StartRun(p RunParams) (string, error) {
	runID := uuid.New().String()

	paramsJSON, err := p.ToJSON()
	if err != nil {
		return "", err
	}

	_, err = s.db.Exec(`
		INSERT INTO mosaic_runs (
			run_id, created_unix_nanos, library_path, cells, dups, params_json, status
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, s.clock.Now().UnixNano(), p.LibraryPath, p.Cells, p.Dups, paramsJSON, RunStatusRunning,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	monitoring.Logf("[RunStore] Started run %s for %s", runID, p.LibraryPath)
	return runID, nil
}

// CompleteRun stores the assignments and marks the run completed in one
// transaction.
func (s *RunStore) CompleteRun(runID string, processed int, duration time.Duration, out []mosaic.Assignment) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE mosaic_runs
		SET status = ?, tiles_processed = ?, duration_ms = ?, error = ''
		WHERE run_id = ?`,
		RunStatusCompleted, processed, duration.Milliseconds(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO mosaic_assignments (
			run_id, cell, pos, ydelta, tile_id, score, committed_rank, mirrored
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare assignment insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range out {
		mirrored := 0
		if a.Orientation == tile.Mirrored {
			mirrored = 1
		}
		if _, err := stmt.Exec(runID, a.Cell, a.Pos, a.YDelta, a.TileID, a.Score, a.Rank, mirrored); err != nil {
			return fmt.Errorf("failed to insert assignment for cell %d: %w", a.Cell, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", runID, err)
	}

	monitoring.Logf("[RunStore] Completed run %s: %d tiles, %d cells in %.2fs",
		runID, processed, len(out), duration.Seconds())
	return nil
}

// FailRun marks the run failed with runErr's message.
func (s *RunStore) FailRun(runID string, processed int, duration time.Duration, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := s.db.Exec(`
		UPDATE mosaic_runs
		SET status = ?, tiles_processed = ?, duration_ms = ?, error = ?
		WHERE run_id = ?`,
		RunStatusFailed, processed, duration.Milliseconds(), msg, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	monitoring.Logf("[RunStore] Failed run %s: %s", runID, msg)
	return nil
}

const runColumns = `run_id, created_unix_nanos, library_path, cells, dups, params_json,
	status, tiles_processed, duration_ms, error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var created, durationMs int64
	if err := row.Scan(&r.RunID, &created, &r.LibraryPath, &r.Cells, &r.Dups, &r.ParamsJSON,
		&r.Status, &r.TilesProcessed, &durationMs, &r.Error); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	r.Duration = time.Duration(durationMs) * time.Millisecond
	return &r, nil
}

// GetRun returns one run.
func (s *RunStore) GetRun(runID string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM mosaic_runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *RunStore) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM mosaic_runs
		ORDER BY created_unix_nanos DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunAssignments returns a completed run's assignments in cell order.
func (s *RunStore) RunAssignments(runID string) ([]mosaic.Assignment, error) {
	rows, err := s.db.Query(`
		SELECT cell, pos, ydelta, tile_id, score, committed_rank, mirrored
		FROM mosaic_assignments WHERE run_id = ? ORDER BY cell`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []mosaic.Assignment
	for rows.Next() {
		var a mosaic.Assignment
		var mirrored int
		if err := rows.Scan(&a.Cell, &a.Pos, &a.YDelta, &a.TileID, &a.Score, &a.Rank, &mirrored); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		if mirrored != 0 {
			a.Orientation = tile.Mirrored
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
