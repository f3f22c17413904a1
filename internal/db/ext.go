package db

import (
	"context"
	"database/sql"
	"encoding/csv"
	"io"
	"strconv"
)

// ExtResult is one external compressor run on one file.
type ExtResult struct {
	RunID         string
	Codec         string
	RelPath       string
	Quant         float64
	PointCount    int
	BPP           float64
	Ratio         float64
	OrigBytes     int64
	CompBytes     int64
	EncodeSeconds float64
	DecodeSeconds float64
	// PSNR is nil when the codec does not report one.
	PSNR             *float64
	Status           string
	Error            string
	CreatedUnixNanos int64
}

// RecordExtResult stores r, replacing an earlier row for the same key.
func (s *ResultStore) RecordExtResult(ctx context.Context, r ExtResult) error {
	if r.CreatedUnixNanos == 0 {
		r.CreatedUnixNanos = s.now().UnixNano()
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO ext_results (
				run_id, codec, rel_path, quant, point_count, bpp, ratio,
				orig_bytes, comp_bytes, encode_seconds, decode_seconds, psnr,
				status, error, created_unix_nanos
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, r.Codec, r.RelPath, r.Quant, r.PointCount, r.BPP, r.Ratio,
			r.OrigBytes, r.CompBytes, r.EncodeSeconds, r.DecodeSeconds, nullFloat(r.PSNR),
			r.Status, r.Error, r.CreatedUnixNanos)
		return err
	})
}

// ExtCompleted returns the files codec already handled successfully at quant.
func (s *ResultStore) ExtCompleted(ctx context.Context, codec string, quant float64) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT rel_path FROM ext_results WHERE codec = ? AND quant = ? AND status = ?`,
		codec, quant, StatusOK)
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

// ListExtResults returns the external results of a run.
func (s *ResultStore) ListExtResults(ctx context.Context, runID string) ([]ExtResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, codec, rel_path, quant, point_count, bpp, ratio,
		       orig_bytes, comp_bytes, encode_seconds, decode_seconds, psnr,
		       status, error, created_unix_nanos
		FROM ext_results WHERE run_id = ?
		ORDER BY codec, quant, rel_path`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ExtResult
	for rows.Next() {
		var r ExtResult
		var psnr sql.NullFloat64
		if err := rows.Scan(&r.RunID, &r.Codec, &r.RelPath, &r.Quant, &r.PointCount, &r.BPP, &r.Ratio,
			&r.OrigBytes, &r.CompBytes, &r.EncodeSeconds, &r.DecodeSeconds, &psnr,
			&r.Status, &r.Error, &r.CreatedUnixNanos); err != nil {
			return nil, err
		}
		if psnr.Valid {
			v := psnr.Float64
			r.PSNR = &v
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ExportExtCSV writes the external results of a run as CSV.
func (s *ResultStore) ExportExtCSV(ctx context.Context, w io.Writer, runID string) error {
	results, err := s.ListExtResults(ctx, runID)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	header := []string{
		"codec", "rel_path", "quant", "point_count", "bpp", "ratio",
		"orig_bytes", "comp_bytes", "encode_time_s", "decode_time_s", "psnr", "status", "error",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range results {
		psnr := ""
		if r.PSNR != nil {
			psnr = formatFloat(*r.PSNR)
		}
		rec := []string{
			r.Codec, r.RelPath, formatFloat(r.Quant), strconv.Itoa(r.PointCount),
			formatFloat(r.BPP), formatFloat(r.Ratio),
			strconv.FormatInt(r.OrigBytes, 10), strconv.FormatInt(r.CompBytes, 10),
			formatFloat(r.EncodeSeconds), formatFloat(r.DecodeSeconds), psnr,
			r.Status, r.Error,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
