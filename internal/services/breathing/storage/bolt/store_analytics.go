package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stillpond/breathe/internal/services/breathing/storage"
	"go.etcd.io/bbolt"
)

// GetAnalytics loads the progress summary for userID.
func (s *Store) GetAnalytics(ctx context.Context, userID string) (storage.AnalyticsRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.AnalyticsRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.AnalyticsRecord{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.AnalyticsRecord{}, fmt.Errorf("user id is required")
	}

	var record storage.AnalyticsRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(analyticsBucket))
		if bucket == nil {
			return fmt.Errorf("analytics bucket is missing")
		}
		payload := bucket.Get([]byte(userID))
		if payload == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(payload, &record); err != nil {
			return fmt.Errorf("unmarshal analytics: %w", err)
		}
		return nil
	})
	if err != nil {
		return storage.AnalyticsRecord{}, err
	}
	return record, nil
}

// PutAnalytics upserts the progress summary. The stored baseline wins over
// the incoming one: once fixed on first write it is never overwritten.
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

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(analyticsBucket))
		if bucket == nil {
			return fmt.Errorf("analytics bucket is missing")
		}
		if payload := bucket.Get([]byte(record.UserID)); payload != nil {
			var existing storage.AnalyticsRecord
			if err := json.Unmarshal(payload, &existing); err != nil {
				return fmt.Errorf("unmarshal analytics: %w", err)
			}
			if existing.BaselineLungCapacity != nil {
				record.BaselineLungCapacity = existing.BaselineLungCapacity
			}
			record.CreatedAt = existing.CreatedAt
		}
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal analytics: %w", err)
		}
		return bucket.Put([]byte(record.UserID), payload)
	})
}
