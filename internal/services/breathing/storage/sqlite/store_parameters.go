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

// GetParameters loads the timing tuple for (userID, mode).
func (s *Store) GetParameters(ctx context.Context, userID string, mode domain.Mode) (storage.ParameterRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ParameterRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.ParameterRecord{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.ParameterRecord{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT
	user_id,
	mode,
	inhale_seconds,
	exhale_seconds,
	pause_seconds,
	total_duration_seconds,
	created_at,
	updated_at
FROM breathing_parameters
WHERE user_id = ? AND mode = ?
`, userID, string(mode))

	var record storage.ParameterRecord
	var rawMode string
	var createdAt, updatedAt int64
	err := row.Scan(
		&record.UserID,
		&rawMode,
		&record.Parameters.InhaleSeconds,
		&record.Parameters.ExhaleSeconds,
		&record.Parameters.PauseSeconds,
		&record.Parameters.TotalDurationSeconds,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ParameterRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.ParameterRecord{}, fmt.Errorf("get parameters: %w", err)
	}
	record.Mode = domain.Mode(rawMode)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// PutParameters upserts the timing tuple for (userID, mode).
func (s *Store) PutParameters(ctx context.Context, record storage.ParameterRecord) error {
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
	if record.Mode == "" {
		return fmt.Errorf("mode is required")
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO breathing_parameters (
	user_id,
	mode,
	inhale_seconds,
	exhale_seconds,
	pause_seconds,
	total_duration_seconds,
	created_at,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, mode) DO UPDATE SET
	inhale_seconds = excluded.inhale_seconds,
	exhale_seconds = excluded.exhale_seconds,
	pause_seconds = excluded.pause_seconds,
	total_duration_seconds = excluded.total_duration_seconds,
	updated_at = excluded.updated_at
`,
		record.UserID,
		string(record.Mode),
		record.Parameters.InhaleSeconds,
		record.Parameters.ExhaleSeconds,
		record.Parameters.PauseSeconds,
		record.Parameters.TotalDurationSeconds,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put parameters: %w", err)
	}
	return nil
}
