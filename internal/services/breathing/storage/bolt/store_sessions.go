package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stillpond/breathe/internal/services/breathing/domain"
	"github.com/stillpond/breathe/internal/services/breathing/storage"
	"go.etcd.io/bbolt"
)

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

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionsBucket))
		if bucket == nil {
			return fmt.Errorf("sessions bucket is missing")
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("next session id: %w", err)
		}
		record.ID = int64(seq)
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		return bucket.Put(sequenceKey(record.ID), payload)
	})
	if err != nil {
		return 0, err
	}
	return record.ID, nil
}

// GetSession loads one session owned by userID.
func (s *Store) GetSession(ctx context.Context, sessionID int64, userID string) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.SessionRecord{}, err
	}

	var record storage.SessionRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		record, err = loadOwnedSession(tx, sessionID, strings.TrimSpace(userID))
		return err
	})
	if err != nil {
		return storage.SessionRecord{}, err
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

	return s.db.Update(func(tx *bbolt.Tx) error {
		record, err := loadOwnedSession(tx, sessionID, strings.TrimSpace(userID))
		if err != nil {
			return err
		}
		record.Completed = true
		record.UpdatedAt = time.Now().UTC()
		return storeSession(tx, record)
	})
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

	return s.db.Update(func(tx *bbolt.Tx) error {
		record, err := loadOwnedSession(tx, sessionID, strings.TrimSpace(userID))
		if err != nil {
			return err
		}
		record.ComfortRating = rating
		record.UpdatedAt = time.Now().UTC()
		return storeSession(tx, record)
	})
}

// ListSessions returns the newest sessions for userID, at most limit.
func (s *Store) ListSessions(ctx context.Context, userID string, limit int) ([]storage.SessionRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	records, err := s.collectSessions(ctx, userID, func(storage.SessionRecord) bool { return true })
	if err != nil {
		return nil, err
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// ListRecentRatings returns the newest comfort ratings for (userID, mode).
func (s *Store) ListRecentRatings(ctx context.Context, userID string, mode domain.Mode, limit int) ([]domain.ComfortRating, error) {
	if limit <= 0 {
		return nil, nil
	}
	records, err := s.collectSessions(ctx, userID, func(record storage.SessionRecord) bool {
		return record.Mode == mode && record.ComfortRating != ""
	})
	if err != nil {
		return nil, err
	}
	if len(records) > limit {
		records = records[:limit]
	}
	ratings := make([]domain.ComfortRating, 0, len(records))
	for _, record := range records {
		ratings = append(ratings, record.ComfortRating)
	}
	return ratings, nil
}

// ListCompletedSessions returns every completed session for userID, newest first.
func (s *Store) ListCompletedSessions(ctx context.Context, userID string) ([]storage.SessionRecord, error) {
	return s.collectSessions(ctx, userID, func(record storage.SessionRecord) bool {
		return record.Completed
	})
}

func (s *Store) collectSessions(ctx context.Context, userID string, keep func(storage.SessionRecord) bool) ([]storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)

	var records []storage.SessionRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionsBucket))
		if bucket == nil {
			return fmt.Errorf("sessions bucket is missing")
		}
		return bucket.ForEach(func(_, payload []byte) error {
			var record storage.SessionRecord
			if err := json.Unmarshal(payload, &record); err != nil {
				return fmt.Errorf("unmarshal session: %w", err)
			}
			if record.UserID != userID || !keep(record) {
				return nil
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortSessionsNewestFirst(records)
	return records, nil
}

func sortSessionsNewestFirst(records []storage.SessionRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
}

func loadOwnedSession(tx *bbolt.Tx, sessionID int64, userID string) (storage.SessionRecord, error) {
	bucket := tx.Bucket([]byte(sessionsBucket))
	if bucket == nil {
		return storage.SessionRecord{}, fmt.Errorf("sessions bucket is missing")
	}
	payload := bucket.Get(sequenceKey(sessionID))
	if payload == nil {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	var record storage.SessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return storage.SessionRecord{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if record.UserID != userID {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func storeSession(tx *bbolt.Tx, record storage.SessionRecord) error {
	bucket := tx.Bucket([]byte(sessionsBucket))
	if bucket == nil {
		return fmt.Errorf("sessions bucket is missing")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return bucket.Put(sequenceKey(record.ID), payload)
}
