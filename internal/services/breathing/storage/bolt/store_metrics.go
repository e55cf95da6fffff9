package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stillpond/breathe/internal/services/breathing/storage"
	"go.etcd.io/bbolt"
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

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(metricsBucket))
		if bucket == nil {
			return fmt.Errorf("metrics bucket is missing")
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("next metric id: %w", err)
		}
		record.ID = int64(seq)
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal metric: %w", err)
		}
		return bucket.Put(sequenceKey(record.ID), payload)
	})
	if err != nil {
		return 0, err
	}
	return record.ID, nil
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
	userID = strings.TrimSpace(userID)

	var records []storage.MetricRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(metricsBucket))
		if bucket == nil {
			return fmt.Errorf("metrics bucket is missing")
		}
		return bucket.ForEach(func(_, payload []byte) error {
			var record storage.MetricRecord
			if err := json.Unmarshal(payload, &record); err != nil {
				return fmt.Errorf("unmarshal metric: %w", err)
			}
			if record.UserID != userID {
				return nil
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
