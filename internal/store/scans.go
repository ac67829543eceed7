package store

import (
	"context"
	"fmt"

	"dealscan-engine/internal/domain"
)

// StartScan records the beginning of one source's pass in a cycle and
// returns the row id the orchestrator finalizes later.
func (d *DB) StartScan(ctx context.Context, rec *domain.ScanRecord) error {
	res, err := d.Pool.ExecContext(ctx, `
INSERT INTO scan_history (source, started_at, status)
VALUES (?, ?, ?);`,
		rec.Source, timeText(rec.StartedAt), string(domain.ScanRunning))
	if err != nil {
		return fmt.Errorf("start scan: %w", err)
	}
	rec.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("start scan id: %w", err)
	}
	return nil
}

// FinishScan finalizes a scan row. Safe to call once per row only.
func (d *DB) FinishScan(ctx context.Context, rec *domain.ScanRecord) error {
	_, err := d.Pool.ExecContext(ctx, `
UPDATE scan_history
SET finished_at = ?, status = ?, found = ?, new_count = ?, updated_count = ?,
    error_count = ?, message = ?, duration_ms = ?
WHERE id = ?;`,
		timePtrText(rec.FinishedAt), string(rec.Status),
		rec.Found, rec.New, rec.Updated, rec.Errors, rec.Message, rec.DurationMS,
		rec.ID)
	if err != nil {
		return fmt.Errorf("finish scan: %w", err)
	}
	return nil
}

func (d *DB) ListScans(ctx context.Context, source string, limit int) ([]*domain.ScanRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := `
SELECT id, source, started_at, finished_at, status, found, new_count,
       updated_count, error_count, message, duration_ms
FROM scan_history`
	var args []any
	if source != "" {
		q += ` WHERE source = ?`
		args = append(args, source)
	}
	q += ` ORDER BY id DESC LIMIT ?;`
	args = append(args, limit)

	rows, err := d.Pool.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var out []*domain.ScanRecord
	for rows.Next() {
		var rec domain.ScanRecord
		var started, finished, status string
		if err := rows.Scan(&rec.ID, &rec.Source, &started, &finished, &status,
			&rec.Found, &rec.New, &rec.Updated, &rec.Errors, &rec.Message, &rec.DurationMS); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		rec.StartedAt = parseTime(started)
		rec.FinishedAt = parseTimePtr(finished)
		rec.Status = domain.ScanStatus(status)
		out = append(out, &rec)
	}
	return out, rows.Err()
}
