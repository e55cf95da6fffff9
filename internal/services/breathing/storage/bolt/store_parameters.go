package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stillpond/breathe/internal/services/breathing/domain"
	"github.com/stillpond/breathe/internal/services/breathing/storage"
	"go.etcd.io/bbolt"
)

func parameterKey(userID string, mode domain.Mode) []byte {
	return []byte(userID + "/" + string(mode))
}

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

	var record storage.ParameterRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(parametersBucket))
		if bucket == nil {
			return fmt.Errorf("parameters bucket is missing")
		}
		payload := bucket.Get(parameterKey(userID, mode))
		if payload == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(payload, &record); err != nil {
			return fmt.Errorf("unmarshal parameters: %w", err)
		}
		return nil
	})
	if err != nil {
		return storage.ParameterRecord{}, err
	}
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

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(parametersBucket))
		if bucket == nil {
			return fmt.Errorf("parameters bucket is missing")
		}
		return bucket.Put(parameterKey(record.UserID, record.Mode), payload)
	})
}
