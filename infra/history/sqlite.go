// Package history keeps past charging plans in a SQLite database so that
// runs can be compared across nights.
package history

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	coremetrics "github.com/kilianp07/fleetcharge/core/metrics"
	"github.com/kilianp07/fleetcharge/core/report"
)

// PlanRecord is the stored summary of one plan.
type PlanRecord struct {
	RunID              string    `json:"run_id" yaml:"run_id"`
	SlotMode           string    `json:"slot_mode" yaml:"slot_mode"`
	Time               time.Time `json:"time" yaml:"time"`
	Vehicles           int       `json:"vehicles" yaml:"vehicles"`
	Hours              int       `json:"hours" yaml:"hours"`
	DeliveredEnergy    float64   `json:"delivered_energy" yaml:"delivered_energy"`
	UnmetEnergy        float64   `json:"unmet_energy" yaml:"unmet_energy"`
	TotalCost          float64   `json:"total_cost" yaml:"total_cost"`
	WeeklyCost         float64   `json:"weekly_cost" yaml:"weekly_cost"`
	WindowInsufficient bool      `json:"window_insufficient" yaml:"window_insufficient"`
}

// SQLiteStore persists plans and sensitivity runs in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS charging_plans (
			run_id              TEXT PRIMARY KEY,
			slot_mode           TEXT,
			ts                  INTEGER NOT NULL,
			vehicles            INTEGER,
			hours               INTEGER,
			delivered           REAL,
			unmet               REAL,
			total_cost          REAL,
			weekly_cost         REAL,
			window_insufficient INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_plans_ts ON charging_plans(ts)`,
		`CREATE TABLE IF NOT EXISTS plan_assignments (
			run_id   TEXT NOT NULL,
			hour     INTEGER NOT NULL,
			class_id INTEGER NOT NULL,
			slot     INTEGER NOT NULL,
			vehicle  INTEGER NOT NULL,
			energy   REAL,
			PRIMARY KEY(run_id, hour, class_id, slot)
		)`,
		`CREATE TABLE IF NOT EXISTS deficit_runs (
			run_id  TEXT PRIMARY KEY,
			ts      INTEGER NOT NULL,
			n       INTEGER,
			mean    REAL,
			std_dev REAL,
			min     REAL,
			max     REAL,
			p5      REAL,
			p50     REAL,
			p95     REAL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordPlan stores the plan summary and its slot log. Recording the same
// run twice replaces the previous rows.
func (s *SQLiteStore) RecordPlan(ev coremetrics.PlanEvent) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	sum := ev.Summary
	if _, err = tx.Exec(`INSERT OR REPLACE INTO charging_plans
		(run_id, slot_mode, ts, vehicles, hours, delivered, unmet, total_cost, weekly_cost, window_insufficient)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID, ev.SlotMode, ev.Time.UnixNano(), sum.Vehicles, sum.Hours,
		sum.DeliveredEnergy, sum.UnmetEnergy, sum.TotalCost, sum.WeeklyCost, boolToInt(sum.WindowInsufficient)); err != nil {
		return err
	}
	if _, err = tx.Exec(`DELETE FROM plan_assignments WHERE run_id = ?`, ev.RunID); err != nil {
		return err
	}
	for _, a := range ev.Assignments {
		if _, err = tx.Exec(`INSERT INTO plan_assignments (run_id, hour, class_id, slot, vehicle, energy)
			VALUES (?, ?, ?, ?, ?, ?)`, ev.RunID, a.Hour, a.ClassID, a.Slot, a.Vehicle, a.Energy); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecordMonteCarlo stores the summary statistics of a sensitivity run.
func (s *SQLiteStore) RecordMonteCarlo(ev coremetrics.MonteCarloEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := ev.Stats
	_, err := s.db.Exec(`INSERT OR REPLACE INTO deficit_runs
		(run_id, ts, n, mean, std_dev, min, max, p5, p50, p95)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID, ev.Time.UnixNano(), st.N, st.Mean, st.StdDev, st.Min, st.Max, st.P5, st.P50, st.P95)
	return err
}

// Plans returns the plans recorded in [start, end], oldest first.
func (s *SQLiteStore) Plans(start, end time.Time) ([]PlanRecord, error) {
	rows, err := s.db.Query(`SELECT run_id, slot_mode, ts, vehicles, hours, delivered, unmet,
		total_cost, weekly_cost, window_insufficient
		FROM charging_plans WHERE ts >= ? AND ts <= ? ORDER BY ts, run_id`,
		start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []PlanRecord
	for rows.Next() {
		var (
			r  PlanRecord
			ts int64
		)
		if err := rows.Scan(&r.RunID, &r.SlotMode, &ts, &r.Vehicles, &r.Hours, &r.DeliveredEnergy,
			&r.UnmetEnergy, &r.TotalCost, &r.WeeklyCost, &r.WindowInsufficient); err != nil {
			return nil, err
		}
		r.Time = time.Unix(0, ts).UTC()
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Assignments returns the slot log stored for runID.
func (s *SQLiteStore) Assignments(runID string) ([]report.AssignmentRecord, error) {
	rows, err := s.db.Query(`SELECT hour, class_id, slot, vehicle, energy
		FROM plan_assignments WHERE run_id = ? ORDER BY hour, class_id, slot`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []report.AssignmentRecord
	for rows.Next() {
		var a report.AssignmentRecord
		if err := rows.Scan(&a.Hour, &a.ClassID, &a.Slot, &a.Vehicle, &a.Energy); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
