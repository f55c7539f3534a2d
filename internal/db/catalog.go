package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/waymo2bag/internal/version"
)

// Unit status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// ConversionRun is one invocation of the converter.
type ConversionRun struct {
	RunID      string
	LoadDir    string
	SaveDir    string
	Settings   string
	Version    string
	StartedAt  time.Time
	FinishedAt *time.Time
	Units      int
	Failed     int
}

// UnitRecord is the outcome of converting one input unit.
type UnitRecord struct {
	Unit   string
	Source string
	Output string
	Status string
	Error  string
	// FailedFrame is the frame that aborted the unit, when there was one.
	FailedFrame *int
	Frames      int
	Messages    int
	DurationMS  int64
}

// FrameStat is the number of points one sensor produced in one frame.
type FrameStat struct {
	FrameIndex      int
	TimestampMicros int64
	Sensor          string
	Points          int
}

func (db *DB) nowMillis() int64 {
	return db.clock.Now().UnixMilli()
}

// StartRun inserts a new run and returns its id.
func (db *DB) StartRun(loadDir, saveDir, settings string) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO conversion_runs (run_id, load_dir, save_dir, settings_json, version, started_unix_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, loadDir, saveDir, settings, version.String(), db.nowMillis(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// FinishRun stamps the end of a run with its unit counts.
func (db *DB) FinishRun(runID string, units, failed int) error {
	res, err := db.Exec(
		`UPDATE conversion_runs SET finished_unix_ms = ?, unit_count = ?, failed_count = ? WHERE run_id = ?`,
		db.nowMillis(), units, failed, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// RecordUnit stores the result of one unit. Recording the same unit again
// replaces the earlier row.
func (db *DB) RecordUnit(runID string, u UnitRecord) error {
	var failedFrame sql.NullInt64
	if u.FailedFrame != nil {
		failedFrame = sql.NullInt64{Int64: int64(*u.FailedFrame), Valid: true}
	}
	_, err := db.Exec(
		`INSERT OR REPLACE INTO unit_results (
			run_id, unit, source_path, output_path, status, error, failed_frame,
			frame_count, message_count, duration_ms, recorded_unix_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, u.Unit, u.Source, u.Output, u.Status, u.Error, failedFrame,
		u.Frames, u.Messages, u.DurationMS, db.nowMillis(),
	)
	if err != nil {
		return fmt.Errorf("failed to record unit %s: %w", u.Unit, err)
	}
	return nil
}

// RecordFrameStats stores per-frame point counts for a unit in one
// transaction.
func (db *DB) RecordFrameStats(runID, unit string, stats []FrameStat) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO frame_stats (run_id, unit, frame_index, timestamp_micros, sensor, point_count)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range stats {
		if _, err := stmt.Exec(runID, unit, s.FrameIndex, s.TimestampMicros, s.Sensor, s.Points); err != nil {
			return fmt.Errorf("failed to record frame %d of %s: %w", s.FrameIndex, unit, err)
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(limit int) ([]ConversionRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT run_id, load_dir, save_dir, settings_json, version, started_unix_ms,
			finished_unix_ms, unit_count, failed_count
		 FROM conversion_runs ORDER BY started_unix_ms DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ConversionRun
	for rows.Next() {
		var (
			r        ConversionRun
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.RunID, &r.LoadDir, &r.SaveDir, &r.Settings, &r.Version,
			&started, &finished, &r.Units, &r.Failed); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			t := time.UnixMilli(finished.Int64)
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// UnitResults returns the units of a run in name order.
func (db *DB) UnitResults(runID string) ([]UnitRecord, error) {
	rows, err := db.Query(
		`SELECT unit, source_path, output_path, status, error, failed_frame,
			frame_count, message_count, duration_ms
		 FROM unit_results WHERE run_id = ? ORDER BY unit`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []UnitRecord
	for rows.Next() {
		var (
			u           UnitRecord
			failedFrame sql.NullInt64
		)
		if err := rows.Scan(&u.Unit, &u.Source, &u.Output, &u.Status, &u.Error, &failedFrame,
			&u.Frames, &u.Messages, &u.DurationMS); err != nil {
			return nil, err
		}
		if failedFrame.Valid {
			f := int(failedFrame.Int64)
			u.FailedFrame = &f
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// FrameStats returns the point counts of a unit ordered by frame then
// sensor.
func (db *DB) FrameStats(runID, unit string) ([]FrameStat, error) {
	rows, err := db.Query(
		`SELECT frame_index, timestamp_micros, sensor, point_count
		 FROM frame_stats WHERE run_id = ? AND unit = ? ORDER BY frame_index, sensor`, runID, unit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []FrameStat
	for rows.Next() {
		var s FrameStat
		if err := rows.Scan(&s.FrameIndex, &s.TimestampMicros, &s.Sensor, &s.Points); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
