// Package telemetry persists per-tick bridge traffic and beacon observations
// to sqlite so runs can be inspected and charted after the fact.
package telemetry

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/alexmonaco16/Mosaic2RosBridge/internal/wire"
)

// Recorder writes one row per tick and one per applied beacon, all tagged
// with a run ID so multiple simulation runs can share a database file.
//
// Recording is fire-and-forget: insert failures are logged, never surfaced
// into the step coordinator's path.
type Recorder struct {
	db        *sql.DB
	runID     string
	vehicleID string
	tick      int64
}

// NewRecorder opens (creating if needed) the telemetry database and starts a
// new run for the given vehicle.
func NewRecorder(path, vehicleID string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("telemetry: cannot open database %s: %w", path, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			vehicle_id TEXT,
			started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT,
			tick INTEGER,
			leader_distance DOUBLE,
			leader_velocity DOUBLE,
			command_sequence INTEGER,
			command_speed DOUBLE,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
		CREATE TABLE IF NOT EXISTS beacons (
			run_id TEXT,
			sequence INTEGER,
			x DOUBLE, y DOUBLE, z DOUBLE,
			speed DOUBLE,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry: cannot create schema: %w", err)
	}

	r := &Recorder{db: db, runID: uuid.New().String(), vehicleID: vehicleID}
	if _, err := db.Exec("INSERT INTO runs (run_id, vehicle_id) VALUES (?, ?)", r.runID, vehicleID); err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry: cannot start run: %w", err)
	}
	return r, nil
}

// RunID returns the identifier of the recording run.
func (r *Recorder) RunID() string { return r.runID }

// ObserveTick records one tick's outbound report and whatever command the
// drain produced (nil when the controller was silent). Satisfies the vehicle
// package's TickObserver.
func (r *Recorder) ObserveTick(report wire.HilReport, command *wire.HilCommand) {
	seq := sql.NullInt64{}
	speed := sql.NullFloat64{}
	if command != nil {
		seq = sql.NullInt64{Int64: int64(command.Sequence), Valid: true}
		speed = sql.NullFloat64{Float64: command.Speed, Valid: true}
	}
	_, err := r.db.Exec(
		"INSERT INTO ticks (run_id, tick, leader_distance, leader_velocity, command_sequence, command_speed) VALUES (?, ?, ?, ?, ?, ?)",
		r.runID, r.tick, report.LeaderDistance, report.LeaderVelocity, seq, speed,
	)
	if err != nil {
		log.Printf("telemetry: failed to record tick %d: %v", r.tick, err)
	}
	r.tick++
}

// RecordBeacon records an applied leader beacon.
func (r *Recorder) RecordBeacon(p wire.BeaconPayload) {
	_, err := r.db.Exec(
		"INSERT INTO beacons (run_id, sequence, x, y, z, speed) VALUES (?, ?, ?, ?, ?, ?)",
		r.runID, p.Sequence, p.X, p.Y, p.Z, p.Speed,
	)
	if err != nil {
		log.Printf("telemetry: failed to record beacon %d: %v", p.Sequence, err)
	}
}

// Close releases the database handle.
func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}
