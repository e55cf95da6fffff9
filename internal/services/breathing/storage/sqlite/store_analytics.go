package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stillpond/breathe/internal/services/breathing/domain"
	"github.com/stillpond/breathe/internal/services/breathing/storage"
)

// GetAnalytics loads the progress summary for userID.
func (s *Store) GetAnalytics(ctx context.Context, userID string) (storage.AnalyticsRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.AnalyticsRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.AnalyticsRecord{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT
	user_id,
	baseline_lung_capacity,
	current_lung_capacity,
	capacity_improvement_percent,
	total_training_minutes,
	consecutive_days_streak,
	best_streak,
	difficulty_level,
	last_session_date,
	created_at,
	updated_at
FROM user_progress_analytics
WHERE user_id = ?
`, strings.TrimSpace(userID))

	var record storage.AnalyticsRecord
	var baseline sql.NullFloat64
	var difficulty string
	var lastSession sql.NullInt64
	var createdAt, updatedAt int64
	err := row.Scan(
		&record.UserID,
		&baseline,
		&record.CurrentLungCapacity,
		&record.CapacityImprovementPercent,
		&record.TotalTrainingMinutes,
		&record.ConsecutiveDaysStreak,
		&record.BestStreak,
		&difficulty,
		&lastSession,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.AnalyticsRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.AnalyticsRecord{}, fmt.Errorf("get analytics: %w", err)
	}
	if baseline.Valid {
		value := baseline.Float64
		record.BaselineLungCapacity = &value
	}
	record.DifficultyLevel = domain.DifficultyLevel(difficulty)
	if lastSession.Valid {
		record.LastSessionDate = fromMillis(lastSession.Int64)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// PutAnalytics upserts the progress summary.
//
// The stored baseline wins over the incoming one: once fixed on first write
// it is never overwritten by later recomputes.
func (s *Store) PutAnalytics(ctx context.Context, record storage.AnalyticsRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	record.UserID = strings.TrimSpace(record.UserID)
	if record.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	var baseline any
	if record.BaselineLungCapacity != nil {
		baseline = *record.BaselineLungCapacity
	}
	var lastSession any
	if !record.LastSessionDate.IsZero() {
		lastSession = toMillis(record.LastSessionDate)
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO user_progress_analytics (
	user_id,
	baseline_lung_capacity,
	current_lung_capacity,
	capacity_improvement_percent,
	total_training_minutes,
	consecutive_days_streak,
	best_streak,
	difficulty_level,
	last_session_date,
	created_at,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
	baseline_lung_capacity = COALESCE(user_progress_analytics.baseline_lung_capacity, excluded.baseline_lung_capacity),
	current_lung_capacity = excluded.current_lung_capacity,
	capacity_improvement_percent = excluded.capacity_improvement_percent,
	total_training_minutes = excluded.total_training_minutes,
	consecutive_days_streak = excluded.consecutive_days_streak,
	best_streak = excluded.best_streak,
	difficulty_level = excluded.difficulty_level,
	last_session_date = excluded.last_session_date,
	updated_at = excluded.updated_at
`,
		record.UserID,
		baseline,
		record.CurrentLungCapacity,
		record.CapacityImprovementPercent,
		record.TotalTrainingMinutes,
		record.ConsecutiveDaysStreak,
		record.BestStreak,
		string(record.DifficultyLevel),
		lastSession,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put analytics: %w", err)
	}
	return nil
}
