// Package store persists pipeline runs and per-pot feature values in a
// local sqlite database, one row per (run, timestamp, pot, feature).
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the sqlite handle.
type Store struct {
	db *sql.DB
}

// Run is one pipeline execution over an archive.
type Run struct {
	ID         string
	Archive    string
	Started    time.Time
	Finished   time.Time
	FramesDone int
	Status     string
}

// FeatureRow is one persisted feature value.
type FeatureRow struct {
	RunID     string
	Timestamp time.Time
	PotID     string
	Feature   string
	Value     float64
}

// Open opens (creating if needed) the feature store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	archive     TEXT NOT NULL,
	started     TIMESTAMP NOT NULL,
	finished    TIMESTAMP,
	frames_done INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'running'
);
CREATE TABLE IF NOT EXISTS pot_features (
	run_id  TEXT NOT NULL,
	ts      TIMESTAMP NOT NULL,
	pot_id  TEXT NOT NULL,
	feature TEXT NOT NULL,
	value   REAL NOT NULL,
	PRIMARY KEY (run_id, ts, pot_id, feature)
);
CREATE INDEX IF NOT EXISTS idx_pot_features_series
	ON pot_features (pot_id, feature, ts);
`)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// CreateRun records the start of a pipeline run.
func (s *Store) CreateRun(id, archive string, started time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, archive, started) VALUES (?, ?, ?)`,
		id, archive, started.UTC())
	if err != nil {
		return fmt.Errorf("store: create run %s: %w", id, err)
	}
	return nil
}

// FinishRun closes out a run with its final frame count and status.
func (s *Store) FinishRun(id string, finished time.Time, framesDone int, status string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET finished = ?, frames_done = ?, status = ? WHERE id = ?`,
		finished.UTC(), framesDone, status, id)
	if err != nil {
		return fmt.Errorf("store: finish run %s: %w", id, err)
	}
	return nil
}

// RecordFeatures inserts one frame's feature values in a single
// transaction. A re-run over the same frame replaces earlier values.
func (s *Store) RecordFeatures(rows []FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: record features: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO pot_features
		(run_id, ts, pot_id, feature, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("store: record features: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.RunID, r.Timestamp.UTC(), r.PotID, r.Feature, r.Value); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: record feature %s/%s: %w", r.PotID, r.Feature, err)
		}
	}
	return tx.Commit()
}

// FeatureSeries returns the time-ordered values of one feature for one
// pot within a run.
func (s *Store) FeatureSeries(runID, potID, feature string) ([]FeatureRow, error) {
	rows, err := s.db.Query(`SELECT run_id, ts, pot_id, feature, value
		FROM pot_features
		WHERE run_id = ? AND pot_id = ? AND feature = ?
		ORDER BY ts`, runID, potID, feature)
	if err != nil {
		return nil, fmt.Errorf("store: feature series: %w", err)
	}
	defer rows.Close()
	var out []FeatureRow
	for rows.Next() {
		var r FeatureRow
		if err := rows.Scan(&r.RunID, &r.Timestamp, &r.PotID, &r.Feature, &r.Value); err != nil {
			return nil, fmt.Errorf("store: feature series: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Pots returns the distinct pot identifiers recorded for a run, sorted.
func (s *Store) Pots(runID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT pot_id FROM pot_features WHERE run_id = ? ORDER BY pot_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: pots: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: pots: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Features returns the distinct feature names recorded for a run,
// sorted.
func (s *Store) Features(runID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT feature FROM pot_features WHERE run_id = ? ORDER BY feature`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: features: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: features: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Runs returns all recorded runs, most recent first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT id, archive, started,
		COALESCE(finished, started), frames_done, status
		FROM runs ORDER BY started DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: runs: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Archive, &r.Started, &r.Finished, &r.FramesDone, &r.Status); err != nil {
			return nil, fmt.Errorf("store: runs: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Run returns one run by identifier.
func (s *Store) Run(id string) (Run, error) {
	var r Run
	err := s.db.QueryRow(`SELECT id, archive, started,
		COALESCE(finished, started), frames_done, status
		FROM runs WHERE id = ?`, id).
		Scan(&r.ID, &r.Archive, &r.Started, &r.Finished, &r.FramesDone, &r.Status)
	if err != nil {
		return Run{}, fmt.Errorf("store: run %s: %w", id, err)
	}
	return r, nil
}
