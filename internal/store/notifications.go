package store

import (
	"context"
	"fmt"

	"dealscan-engine/internal/domain"
)

// RecordNotification appends one delivery attempt. Failed and skipped
// attempts are recorded the same way as successes.
func (d *DB) RecordNotification(ctx context.Context, rec *domain.NotificationRecord) error {
	res, err := d.Pool.ExecContext(ctx, `
INSERT INTO notifications (listing_id, fingerprint, channel, alert_level, status, error, sent_at)
VALUES (?, ?, ?, ?, ?, ?, ?);`,
		rec.ListingID, rec.Fingerprint, rec.Channel, string(rec.AlertLevel),
		string(rec.Status), rec.Error, timeText(rec.SentAt))
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	rec.ID, _ = res.LastInsertId()
	return nil
}

func (d *DB) ListNotifications(ctx context.Context, listingID int64, limit int) ([]*domain.NotificationRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := `
SELECT id, listing_id, fingerprint, channel, alert_level, status, error, sent_at
FROM notifications`
	var args []any
	if listingID > 0 {
		q += ` WHERE listing_id = ?`
		args = append(args, listingID)
	}
	q += ` ORDER BY id DESC LIMIT ?;`
	args = append(args, limit)

	rows, err := d.Pool.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*domain.NotificationRecord
	for rows.Next() {
		var rec domain.NotificationRecord
		var level, status, sentAt string
		if err := rows.Scan(&rec.ID, &rec.ListingID, &rec.Fingerprint, &rec.Channel,
			&level, &status, &rec.Error, &sentAt); err != nil {
			return nil, fmt.Errorf("notification row: %w", err)
		}
		rec.AlertLevel = domain.AlertLevel(level)
		rec.Status = domain.NotificationStatus(status)
		rec.SentAt = parseTime(sentAt)
		out = append(out, &rec)
	}
	return out, rows.Err()
}
