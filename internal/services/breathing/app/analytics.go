package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/stillpond/breathe/internal/platform/errors"
	"github.com/stillpond/breathe/internal/services/breathing/domain"
	"github.com/stillpond/breathe/internal/services/breathing/storage"
)

// ProgressReport bundles the persisted summary with the recent samples the
// analytics endpoint exposes alongside it.
type ProgressReport struct {
	Analytics     storage.AnalyticsRecord
	RecentMetrics []storage.MetricRecord
}

// Analytics returns the user's progress summary and recent metric samples.
// A fresh user gets a default beginner record persisted on first read.
func (s *Service) Analytics(ctx context.Context, userID string) (ProgressReport, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	record, err := s.store.GetAnalytics(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		now := s.now()
		record = storage.AnalyticsRecord{
			UserID:          userID,
			DifficultyLevel: domain.DifficultyBeginner,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.store.PutAnalytics(ctx, record); err != nil {
			return ProgressReport{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "init analytics", err)
		}
	} else if err != nil {
		return ProgressReport{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "load analytics", err)
	}

	metrics, err := s.store.ListRecentMetrics(ctx, userID, domain.MetricWindow())
	if err != nil {
		return ProgressReport{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "load recent metrics", err)
	}
	return ProgressReport{Analytics: record, RecentMetrics: metrics}, nil
}

// recomputeAnalytics rebuilds the whole summary from the completed session
// log and recent metrics. The baseline is fixed by the first recompute and
// preserved on every later one. Must be called with the user lock held.
func (s *Service) recomputeAnalytics(ctx context.Context, userID string) error {
	sessions, err := s.store.ListCompletedSessions(ctx, userID)
	if err != nil {
		return fmt.Errorf("list completed sessions: %w", err)
	}

	totalSeconds := 0
	completedAt := make([]time.Time, 0, len(sessions))
	for _, session := range sessions {
		totalSeconds += session.DurationSeconds
		completedAt = append(completedAt, session.CreatedAt)
	}

	metrics, err := s.store.ListRecentMetrics(ctx, userID, domain.MetricWindow())
	if err != nil {
		return fmt.Errorf("list recent metrics: %w", err)
	}
	var depth, control, hold float64
	for _, metric := range metrics {
		depth += metric.Sample.AverageInhaleDepth
		control += metric.Sample.AverageExhaleControl
		hold += metric.Sample.MaxBreathHoldSeconds
	}
	if len(metrics) > 0 {
		count := float64(len(metrics))
		depth /= count
		control /= count
		hold /= count
	}
	capacity := domain.CapacityScore(depth, control, hold, len(metrics) > 0)

	existing, err := s.store.GetAnalytics(ctx, userID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load analytics: %w", err)
	}

	baseline := existing.BaselineLungCapacity
	if baseline == nil {
		value := capacity
		baseline = &value
	}

	now := s.now()
	streak := domain.ConsecutiveDayStreak(completedAt, now)
	best := existing.BestStreak
	if streak > best {
		best = streak
	}

	record := storage.AnalyticsRecord{
		UserID:                     userID,
		BaselineLungCapacity:       baseline,
		CurrentLungCapacity:        capacity,
		CapacityImprovementPercent: domain.ImprovementPercent(*baseline, capacity),
		TotalTrainingMinutes:       totalSeconds / 60,
		ConsecutiveDaysStreak:      streak,
		BestStreak:                 best,
		DifficultyLevel:            domain.DifficultyFor(capacity, streak),
		CreatedAt:                  existing.CreatedAt,
		UpdatedAt:                  now,
	}
	if len(completedAt) > 0 {
		newest := completedAt[0]
		for _, at := range completedAt[1:] {
			if at.After(newest) {
				newest = at
			}
		}
		record.LastSessionDate = newest.UTC().Truncate(24 * time.Hour)
	}

	if err := s.store.PutAnalytics(ctx, record); err != nil {
		return fmt.Errorf("store analytics: %w", err)
	}
	return nil
}
