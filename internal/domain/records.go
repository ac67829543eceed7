package domain

import "time"

type ScanStatus string

const (
	ScanRunning ScanStatus = "running"
	ScanSuccess ScanStatus = "success"
	ScanError   ScanStatus = "error"
)

// ScanRecord is one (source, cycle) audit row. Created when the source's scan
// starts, finalized exactly once when it ends, immutable afterwards.
type ScanRecord struct {
	ID         int64      `json:"id"`
	Source     string     `json:"source"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     ScanStatus `json:"status"`
	Found      int        `json:"found"`
	New        int        `json:"new"`
	Updated    int        `json:"updated"`
	Errors     int        `json:"errors"`
	Message    string     `json:"message,omitempty"`
	DurationMS int64      `json:"duration_ms"`
}

func (r *ScanRecord) Finish(status ScanStatus, at time.Time) {
	r.Status = status
	r.FinishedAt = &at
	r.DurationMS = at.Sub(r.StartedAt).Milliseconds()
}

type NotificationStatus string

const (
	NotifySent    NotificationStatus = "sent"
	NotifyFailed  NotificationStatus = "failed"
	NotifySkipped NotificationStatus = "skipped"
)

// NotificationRecord is one delivery attempt on one channel. Append-only.
type NotificationRecord struct {
	ID          int64              `json:"id"`
	ListingID   int64              `json:"listing_id"`
	Fingerprint string             `json:"fingerprint"`
	Channel     string             `json:"channel"`
	AlertLevel  AlertLevel         `json:"alert_level"`
	Status      NotificationStatus `json:"status"`
	Error       string             `json:"error,omitempty"`
	SentAt      time.Time          `json:"sent_at"`
}
