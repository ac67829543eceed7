package store

import (
	"context"
	"fmt"
	"time"

	"dealscan-engine/internal/health"
)

// SaveSourceStates persists the breaker snapshots so a restart does not
// reset backoff on a source that was pushing back.
func (d *DB) SaveSourceStates(ctx context.Context, states []health.SourceState) error {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save source states: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, st := range states {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO source_state (name, state, failures, last_failure_at, next_retry_at, backoff_ms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  state = excluded.state,
  failures = excluded.failures,
  last_failure_at = excluded.last_failure_at,
  next_retry_at = excluded.next_retry_at,
  backoff_ms = excluded.backoff_ms;`,
			st.Name, string(st.State), st.Failures,
			timeText(st.LastFailureAt), timeText(st.NextRetryAt),
			st.Backoff.Milliseconds()); err != nil {
			return fmt.Errorf("save source state %s: %w", st.Name, err)
		}
	}
	return tx.Commit()
}

func (d *DB) LoadSourceStates(ctx context.Context) ([]health.SourceState, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT name, state, failures, last_failure_at, next_retry_at, backoff_ms
FROM source_state ORDER BY name;`)
	if err != nil {
		return nil, fmt.Errorf("load source states: %w", err)
	}
	defer rows.Close()

	var out []health.SourceState
	for rows.Next() {
		var st health.SourceState
		var state, lastFail, nextRetry string
		var backoffMS int64
		if err := rows.Scan(&st.Name, &state, &st.Failures, &lastFail, &nextRetry, &backoffMS); err != nil {
			return nil, fmt.Errorf("source state row: %w", err)
		}
		st.State = health.BreakerState(state)
		st.LastFailureAt = parseTime(lastFail)
		st.NextRetryAt = parseTime(nextRetry)
		st.Backoff = time.Duration(backoffMS) * time.Millisecond
		out = append(out, st)
	}
	return out, rows.Err()
}
