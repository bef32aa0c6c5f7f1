// Package sqlite persists planner session runs and their per-update
// decisions for offline analysis and report generation.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SessionRun records one planner session: a run of updates produced while a
// route subscription was active.
type SessionRun struct {
	RunID       string `json:"run_id"`
	StartedAtNs int64  `json:"started_at_ns"`
	ConfigJSON  string `json:"config_json,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// UpdateRecord is the per-update decision row.
type UpdateRecord struct {
	RunID          string `json:"run_id"`
	TNs            int64  `json:"t_ns"`
	SampleCount    int    `json:"sample_count"`
	Blocked        bool   `json:"blocked"`
	OffRoute       bool   `json:"off_route"`
	PathLen        int    `json:"path_len"`
	DisplacedCount int    `json:"displaced_count"`
	AnchorCount    int    `json:"anchor_count"`
}

// SessionStore provides persistence for session runs and update records.
type SessionStore struct {
	db *sql.DB
}

// Open opens (creating if needed) a session database at path. Use ":memory:"
// for an ephemeral store in tests.
func Open(path string) (*SessionStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS session_runs (
			run_id          TEXT PRIMARY KEY,
			started_at_ns   BIGINT NOT NULL,
			config_json     TEXT,
			notes           TEXT
		);
		CREATE TABLE IF NOT EXISTS session_updates (
			run_id          TEXT NOT NULL,
			t_ns            BIGINT NOT NULL,
			sample_count    INTEGER,
			blocked         INTEGER NOT NULL,
			off_route       INTEGER NOT NULL,
			path_len        INTEGER,
			displaced_count INTEGER,
			anchor_count    INTEGER,
			FOREIGN KEY(run_id) REFERENCES session_runs(run_id)
		);
		CREATE INDEX IF NOT EXISTS idx_session_updates_run
			ON session_updates(run_id, t_ns);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create session schema: %w", err)
	}

	return &SessionStore{db: db}, nil
}

// Close releases the underlying database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// BeginRun inserts a new session run. An empty RunID gets a fresh UUID; a
// zero StartedAtNs gets the current time.
func (s *SessionStore) BeginRun(run *SessionRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAtNs == 0 {
		run.StartedAtNs = time.Now().UnixNano()
	}

	_, err := s.db.Exec(
		`INSERT INTO session_runs (run_id, started_at_ns, config_json, notes) VALUES (?, ?, ?, ?)`,
		run.RunID, run.StartedAtNs, run.ConfigJSON, run.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert session run: %w", err)
	}
	return nil
}

// RecordUpdate appends one update record to a run.
func (s *SessionStore) RecordUpdate(rec *UpdateRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("record update: run_id is required")
	}
	if rec.TNs == 0 {
		rec.TNs = time.Now().UnixNano()
	}

	_, err := s.db.Exec(
		`INSERT INTO session_updates
			(run_id, t_ns, sample_count, blocked, off_route, path_len, displaced_count, anchor_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.TNs, rec.SampleCount,
		boolToInt(rec.Blocked), boolToInt(rec.OffRoute),
		rec.PathLen, rec.DisplacedCount, rec.AnchorCount,
	)
	if err != nil {
		return fmt.Errorf("insert update record: %w", err)
	}
	return nil
}

// ListRuns returns all session runs, newest first.
func (s *SessionStore) ListRuns() ([]SessionRun, error) {
	rows, err := s.db.Query(
		`SELECT run_id, started_at_ns, COALESCE(config_json, ''), COALESCE(notes, '')
		 FROM session_runs ORDER BY started_at_ns DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []SessionRun
	for rows.Next() {
		var r SessionRun
		if err := rows.Scan(&r.RunID, &r.StartedAtNs, &r.ConfigJSON, &r.Notes); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListUpdates returns all update records of a run in time order.
func (s *SessionStore) ListUpdates(runID string) ([]UpdateRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, t_ns, sample_count, blocked, off_route, path_len, displaced_count, anchor_count
		 FROM session_updates WHERE run_id = ? ORDER BY t_ns ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list updates: %w", err)
	}
	defer rows.Close()

	var recs []UpdateRecord
	for rows.Next() {
		var rec UpdateRecord
		var blocked, offRoute int
		if err := rows.Scan(
			&rec.RunID, &rec.TNs, &rec.SampleCount,
			&blocked, &offRoute,
			&rec.PathLen, &rec.DisplacedCount, &rec.AnchorCount,
		); err != nil {
			return nil, fmt.Errorf("scan update: %w", err)
		}
		rec.Blocked = blocked != 0
		rec.OffRoute = offRoute != 0
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
