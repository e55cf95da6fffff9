package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stillpond/breathe/internal/services/breathing/storage"
)

// AppendMetric appends one lung-capacity sample and returns its id.
func (s *Store) AppendMetric(ctx context.Context, record storage.MetricRecord) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.ready(); err != nil {
		return 0, err
	}
	record.UserID = strings.TrimSpace(record.UserID)
	if record.UserID == "" {
		return 0, fmt.Errorf("user id is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO lung_capacity_metrics (
	user_id,
	session_id,
	max_breath_hold_seconds,
	average_inhale_depth,
	average_exhale_control,
	respiratory_rate,
	comfort_level,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.UserID,
		record.SessionID,
		record.Sample.MaxBreathHoldSeconds,
		record.Sample.AverageInhaleDepth,
		record.Sample.AverageExhaleControl,
		record.Sample.RespiratoryRate,
		record.Sample.ComfortLevel,
		toMillis(record.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("append metric: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append metric id: %w", err)
	}
	return id, nil
}

// ListRecentMetrics returns the newest samples for userID, at most limit.
func (s *Store) ListRecentMetrics(ctx context.Context, userID string, limit int) ([]storage.MetricRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	id,
	user_id,
	session_id,
	max_breath_hold_seconds,
	average_inhale_depth,
	average_exhale_control,
	respiratory_rate,
	comfort_level,
	created_at
FROM lung_capacity_metrics
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`, strings.TrimSpace(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("list recent metrics: %w", err)
	}
	defer rows.Close()

	var records []storage.MetricRecord
	for rows.Next() {
		var record storage.MetricRecord
		var createdAt int64
		err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.SessionID,
			&record.Sample.MaxBreathHoldSeconds,
			&record.Sample.AverageInhaleDepth,
			&record.Sample.AverageExhaleControl,
			&record.Sample.RespiratoryRate,
			&record.Sample.ComfortLevel,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics: %w", err)
	}
	return records, nil
}
