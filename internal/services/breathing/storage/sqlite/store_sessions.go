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

const sessionColumns = `
	id,
	user_id,
	mode,
	duration_seconds,
	completed,
	comfort_rating,
	created_at,
	updated_at
`

// InsertSession appends one session attempt and returns its id.
func (s *Store) InsertSession(ctx context.Context, record storage.SessionRecord) (int64, error) {
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
	if record.Mode == "" {
		return 0, fmt.Errorf("mode is required")
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	var rating any
	if record.ComfortRating != "" {
		rating = string(record.ComfortRating)
	}
	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO breathing_sessions (
	user_id,
	mode,
	duration_seconds,
	completed,
	comfort_rating,
	created_at,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		record.UserID,
		string(record.Mode),
		record.DurationSeconds,
		boolToInt(record.Completed),
		rating,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert session id: %w", err)
	}
	return id, nil
}

// GetSession loads one session owned by userID.
func (s *Store) GetSession(ctx context.Context, sessionID int64, userID string) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.SessionRecord{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+sessionColumns+`
FROM breathing_sessions
WHERE id = ? AND user_id = ?
`, sessionID, strings.TrimSpace(userID))
	record, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	return record, nil
}

// SetSessionCompleted marks the session completed, idempotently.
func (s *Store) SetSessionCompleted(ctx context.Context, sessionID int64, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE breathing_sessions
SET completed = 1, updated_at = ?
WHERE id = ? AND user_id = ?
`, toMillis(time.Now().UTC()), sessionID, strings.TrimSpace(userID))
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete session rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetSessionRating records the comfort rating, overwriting any prior one.
func (s *Store) SetSessionRating(ctx context.Context, sessionID int64, userID string, rating domain.ComfortRating) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if rating == "" {
		return fmt.Errorf("rating is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE breathing_sessions
SET comfort_rating = ?, updated_at = ?
WHERE id = ? AND user_id = ?
`, string(rating), toMillis(time.Now().UTC()), sessionID, strings.TrimSpace(userID))
	if err != nil {
		return fmt.Errorf("rate session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rate session rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListSessions returns the newest sessions for userID, at most limit.
func (s *Store) ListSessions(ctx context.Context, userID string, limit int) ([]storage.SessionRecord, error) {
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
SELECT `+sessionColumns+`
FROM breathing_sessions
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`, strings.TrimSpace(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ListRecentRatings returns the newest comfort ratings for (userID, mode).
func (s *Store) ListRecentRatings(ctx context.Context, userID string, mode domain.Mode, limit int) ([]domain.ComfortRating, error) {
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
SELECT comfort_rating
FROM breathing_sessions
WHERE user_id = ? AND mode = ? AND comfort_rating IS NOT NULL
ORDER BY created_at DESC, id DESC
LIMIT ?
`, strings.TrimSpace(userID), string(mode), limit)
	if err != nil {
		return nil, fmt.Errorf("list recent ratings: %w", err)
	}
	defer rows.Close()

	var ratings []domain.ComfortRating
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, domain.ComfortRating(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return ratings, nil
}

// ListCompletedSessions returns every completed session for userID, newest first.
func (s *Store) ListCompletedSessions(ctx context.Context, userID string) ([]storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+sessionColumns+`
FROM breathing_sessions
WHERE user_id = ? AND completed = 1
ORDER BY created_at DESC, id DESC
`, strings.TrimSpace(userID))
	if err != nil {
		return nil, fmt.Errorf("list completed sessions: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (storage.SessionRecord, error) {
	var record storage.SessionRecord
	var rawMode string
	var completed int
	var rating sql.NullString
	var createdAt, updatedAt int64
	err := row.Scan(
		&record.ID,
		&record.UserID,
		&rawMode,
		&record.DurationSeconds,
		&completed,
		&rating,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return storage.SessionRecord{}, err
	}
	record.Mode = domain.Mode(rawMode)
	record.Completed = completed != 0
	if rating.Valid {
		record.ComfortRating = domain.ComfortRating(rating.String)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func collectSessions(rows *sql.Rows) ([]storage.SessionRecord, error) {
	var records []storage.SessionRecord
	for rows.Next() {
		record, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return records, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
