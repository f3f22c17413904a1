package db

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Result status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one invocation of a benchmark over a dataset.
type Run struct {
	ID               string
	StartedUnixNanos int64
	ConfigJSON       string
	ParamsPath       string
}

// LevelCost is the stored cost of one level pair.
type LevelCost struct {
	Depth      int
	Candidates int
	LowerBits  float64
	UpperBits  float64
}

// Result is the outcome of estimating one file at one quantization step.
type Result struct {
	RunID            string
	RelPath          string
	Quant            float64
	PointCount       int
	Bits             float64
	BPP              float64
	Levels           int
	ElapsedNs        int64
	Status           string
	Error            string
	CreatedUnixNanos int64
	LevelCosts       []LevelCost
}

// ResultStore records benchmark results. It is safe for concurrent use.
type ResultStore struct {
	db  *DB
	now func() time.Time
}

func NewResultStore(db *DB) *ResultStore {
	return &ResultStore{db: db, now: time.Now}
}

// StartRun creates a run with a fresh identifier.
func (s *ResultStore) StartRun(ctx context.Context, configJSON, paramsPath string) (Run, error) {
	run := Run{
		ID:               uuid.NewString(),
		StartedUnixNanos: s.now().UnixNano(),
		ConfigJSON:       configJSON,
		ParamsPath:       paramsPath,
	}
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO bench_runs (run_id, started_unix_nanos, config_json, params_path) VALUES (?, ?, ?, ?)`,
			run.ID, run.StartedUnixNanos, run.ConfigJSON, run.ParamsPath)
		return err
	})
	if err != nil {
		return Run{}, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}

// GetRun loads a run by id.
func (s *ResultStore) GetRun(ctx context.Context, runID string) (Run, error) {
	var run Run
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, started_unix_nanos, config_json, params_path FROM bench_runs WHERE run_id = ?`, runID,
	).Scan(&run.ID, &run.StartedUnixNanos, &run.ConfigJSON, &run.ParamsPath)
	if err != nil {
		return Run{}, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return run, nil
}

// RecordResult stores r and its level costs in one transaction, replacing
// any earlier row for the same run, file and quantization step.
func (s *ResultStore) RecordResult(ctx context.Context, r Result) error {
	if r.CreatedUnixNanos == 0 {
		r.CreatedUnixNanos = s.now().UnixNano()
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM bench_level_costs WHERE run_id = ? AND rel_path = ? AND quant = ?`,
			r.RunID, r.RelPath, r.Quant); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO bench_results (
				run_id, rel_path, quant, point_count, bits, bpp, levels,
				elapsed_ns, status, error, created_unix_nanos
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, r.RelPath, r.Quant, r.PointCount, r.Bits, r.BPP, r.Levels,
			r.ElapsedNs, r.Status, r.Error, r.CreatedUnixNanos); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO bench_level_costs (
				run_id, rel_path, quant, depth, candidates, lower_bits, upper_bits
			) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, lc := range r.LevelCosts {
			if _, err := stmt.ExecContext(ctx, r.RunID, r.RelPath, r.Quant,
				lc.Depth, lc.Candidates, lc.LowerBits, lc.UpperBits); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// Completed returns the files already estimated successfully at quant in
// any run.
func (s *ResultStore) Completed(ctx context.Context, quant float64) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT rel_path FROM bench_results WHERE quant = ? AND status = ?`, quant, StatusOK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var rel string
		if err := rows.Scan(&rel); err != nil {
			return nil, err
		}
		done[rel] = true
	}
	return done, rows.Err()
}

// ListResults returns the results of a run ordered by file and step, each
// with its level costs ordered coarsest first.
func (s *ResultStore) ListResults(ctx context.Context, runID string) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, rel_path, quant, point_count, bits, bpp, levels,
		       elapsed_ns, status, error, created_unix_nanos
		FROM bench_results WHERE run_id = ?
		ORDER BY rel_path, quant`, runID)
	if err != nil {
		return nil, err
	}
	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.RunID, &r.RelPath, &r.Quant, &r.PointCount, &r.Bits, &r.BPP,
			&r.Levels, &r.ElapsedNs, &r.Status, &r.Error, &r.CreatedUnixNanos); err != nil {
			rows.Close()
			return nil, err
		}
		results = append(results, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range results {
		costs, err := s.levelCosts(ctx, results[i].RunID, results[i].RelPath, results[i].Quant)
		if err != nil {
			return nil, err
		}
		results[i].LevelCosts = costs
	}
	return results, nil
}

func (s *ResultStore) levelCosts(ctx context.Context, runID, rel string, quant float64) ([]LevelCost, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT depth, candidates, lower_bits, upper_bits
		FROM bench_level_costs
		WHERE run_id = ? AND rel_path = ? AND quant = ?
		ORDER BY depth DESC`, runID, rel, quant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var costs []LevelCost
	for rows.Next() {
		var lc LevelCost
		if err := rows.Scan(&lc.Depth, &lc.Candidates, &lc.LowerBits, &lc.UpperBits); err != nil {
			return nil, err
		}
		costs = append(costs, lc)
	}
	return costs, rows.Err()
}

// ResultCSVHeader is the column order written by ExportCSV.
var ResultCSVHeader = []string{
	"rel_path", "quant", "point_count", "bits", "bpp", "levels", "elapsed_ms", "status", "error",
}

// ExportCSV writes the results of a run as CSV with a header row.
func (s *ResultStore) ExportCSV(ctx context.Context, w io.Writer, runID string) error {
	results, err := s.ListResults(ctx, runID)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(ResultCSVHeader); err != nil {
		return err
	}
	for _, r := range results {
		rec := []string{
			r.RelPath,
			formatFloat(r.Quant),
			strconv.Itoa(r.PointCount),
			formatFloat(r.Bits),
			formatFloat(r.BPP),
			strconv.Itoa(r.Levels),
			formatFloat(float64(r.ElapsedNs) / 1e6),
			r.Status,
			r.Error,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// nullFloat maps a missing value onto SQL NULL.
func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
