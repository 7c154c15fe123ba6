package telemetry

import (
	"database/sql"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// TickSample is one recorded tick of a run, ordered by tick index.
type TickSample struct {
	Tick           int64
	LeaderDistance float64
	LeaderVelocity float64
	CommandSpeed   float64 // NaN-free: 0 when the controller was silent
	HasCommand     bool
}

// RunSummary aggregates a run's headway and command behaviour.
type RunSummary struct {
	RunID            string
	Ticks            int
	CommandedTicks   int     // ticks where a command was applied
	MeanHeadway      float64 // excludes the no-leader sentinel ticks
	StdDevHeadway    float64
	MeanCommandSpeed float64
	SentinelTicks    int // ticks reported with no leader observed
}

// sentinelDistance mirrors the tracker's no-leader policy; reports at or
// above it carry no real headway information.
const sentinelDistance = 10000.0

// Samples returns the recorded ticks of a run in order.
func (r *Recorder) Samples() ([]TickSample, error) {
	return SamplesForRun(r.db, r.runID)
}

// SamplesForRun reads a run's ticks from any handle on the telemetry schema.
func SamplesForRun(db *sql.DB, runID string) ([]TickSample, error) {
	rows, err := db.Query(
		"SELECT tick, leader_distance, leader_velocity, command_speed FROM ticks WHERE run_id = ? ORDER BY tick",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: query ticks: %w", err)
	}
	defer rows.Close()

	var samples []TickSample
	for rows.Next() {
		var s TickSample
		var speed sql.NullFloat64
		if err := rows.Scan(&s.Tick, &s.LeaderDistance, &s.LeaderVelocity, &speed); err != nil {
			return nil, fmt.Errorf("telemetry: scan tick: %w", err)
		}
		if speed.Valid {
			s.CommandSpeed = speed.Float64
			s.HasCommand = true
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Summarise computes a run's aggregate statistics.
func Summarise(db *sql.DB, runID string) (RunSummary, error) {
	samples, err := SamplesForRun(db, runID)
	if err != nil {
		return RunSummary{}, err
	}

	sum := RunSummary{RunID: runID, Ticks: len(samples)}
	var headways, speeds []float64
	for _, s := range samples {
		if s.LeaderDistance >= sentinelDistance {
			sum.SentinelTicks++
		} else {
			headways = append(headways, s.LeaderDistance)
		}
		if s.HasCommand {
			sum.CommandedTicks++
			speeds = append(speeds, s.CommandSpeed)
		}
	}
	if len(headways) > 0 {
		sum.MeanHeadway = stat.Mean(headways, nil)
		sum.StdDevHeadway = stat.StdDev(headways, nil)
	}
	if len(speeds) > 0 {
		sum.MeanCommandSpeed = stat.Mean(speeds, nil)
	}
	return sum, nil
}

// Runs lists the recorded run IDs in the database, newest first.
func Runs(db *sql.DB) ([]string, error) {
	rows, err := db.Query("SELECT run_id FROM runs ORDER BY started_at DESC")
	if err != nil {
		return nil, fmt.Errorf("telemetry: query runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("telemetry: scan run: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
