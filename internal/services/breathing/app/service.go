// Package app implements the breathing session lifecycle on top of the
// storage contracts: parameter seeding, session creation and updates, the
// adaptation strategies, and the progress analytics recompute.
package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	apperrors "github.com/stillpond/breathe/internal/platform/errors"
	"github.com/stillpond/breathe/internal/services/breathing/domain"
	"github.com/stillpond/breathe/internal/services/breathing/storage"
)

// Strategy names an adaptation policy.
type Strategy string

const (
	// StrategyTrend conditions parameter changes on recent rating history
	// and metric averages. Default for durable multi-user deployments.
	StrategyTrend Strategy = "trend"
	// StrategyImmediate applies a delta on every lighter or heavy rating.
	// Default for the local offline deployment.
	StrategyImmediate Strategy = "immediate"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(raw) {
	case StrategyTrend:
		return StrategyTrend, nil
	case StrategyImmediate:
		return StrategyImmediate, nil
	default:
		return "", apperrors.WithMetadata(apperrors.CodeUnknown, "unknown adaptation strategy", map[string]string{"Strategy": raw})
	}
}

// Service coordinates breathing state mutations against one store.
//
// Same-user mutations are serialized with a per-user mutex so a rating
// double-submission cannot apply an adaptation rule twice.
type Service struct {
	store    storage.Store
	defaults domain.Defaults
	strategy Strategy
	now      func() time.Time
	logf     func(format string, args ...any)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds a Service over store using the given defaults and strategy.
func New(store storage.Store, defaults domain.Defaults, strategy Strategy) *Service {
	if defaults == nil {
		defaults = domain.DefaultParameters()
	}
	if strategy == "" {
		strategy = StrategyTrend
	}
	return &Service{
		store:    store,
		defaults: defaults,
		strategy: strategy,
		now:      func() time.Time { return time.Now().UTC() },
		logf:     log.Printf,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// GetParameters returns the user's timing tuple for mode, seeding the mode
// default on first access.
func (s *Service) GetParameters(ctx context.Context, userID string, mode domain.Mode) (storage.ParameterRecord, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.getOrSeedParameters(ctx, userID, mode)
}

// getOrSeedParameters must be called with the user lock held.
func (s *Service) getOrSeedParameters(ctx context.Context, userID string, mode domain.Mode) (storage.ParameterRecord, error) {
	record, err := s.store.GetParameters(ctx, userID, mode)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.ParameterRecord{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "load parameters", err)
	}

	defaults, ok := s.defaults.For(mode)
	if !ok {
		return storage.ParameterRecord{}, apperrors.WithMetadata(apperrors.CodeModeUnknown, "unknown breathing mode", map[string]string{"Mode": string(mode)})
	}
	now := s.now()
	record = storage.ParameterRecord{
		UserID:     userID,
		Mode:       mode,
		Parameters: defaults,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.PutParameters(ctx, record); err != nil {
		return storage.ParameterRecord{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "seed parameters", err)
	}
	return record, nil
}

// CreateSession starts a session for (userID, mode). A positive
// customDurationSeconds overrides the parameters' total duration.
func (s *Service) CreateSession(ctx context.Context, userID string, mode domain.Mode, customDurationSeconds int) (storage.SessionRecord, error) {
	if customDurationSeconds < 0 {
		return storage.SessionRecord{}, apperrors.New(apperrors.CodeSessionInvalidDuration, "custom duration must not be negative")
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	params, err := s.getOrSeedParameters(ctx, userID, mode)
	if err != nil {
		return storage.SessionRecord{}, err
	}

	now := s.now()
	record := storage.SessionRecord{
		UserID:          userID,
		Mode:            mode,
		DurationSeconds: params.Parameters.EffectiveDuration(customDurationSeconds),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	id, err := s.store.InsertSession(ctx, record)
	if err != nil {
		return storage.SessionRecord{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "insert session", err)
	}
	record.ID = id
	return record, nil
}

// CompleteSession marks the session completed, then recomputes the user's
// progress analytics. Re-completing is a no-op; the recompute is best effort
// and never fails the completion.
func (s *Service) CompleteSession(ctx context.Context, sessionID int64, userID string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.SetSessionCompleted(ctx, sessionID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeSessionNotFound, "session not found")
		}
		return apperrors.Wrap(apperrors.CodeStoreUnavailable, "complete session", err)
	}

	if err := s.recomputeAnalytics(ctx, userID); err != nil {
		s.logf("recompute analytics for %s: %v", userID, err)
	}
	return nil
}

// RateSession records the comfort rating, appends the supplied lung-capacity
// sample when there is one, then applies the adaptation strategy for the
// session's mode. Under the immediate strategy a bare rating appends a sample
// derived from it, since that composition has no measurement source of its
// own; the trend strategy stores only real measurements, so its metric gate
// reads missing averages as zero. Adaptation failure is logged, never rolled
// back into the rating write.
func (s *Service) RateSession(ctx context.Context, sessionID int64, userID string, rating domain.ComfortRating, sample *domain.MetricSample) error {
	if sample != nil {
		if err := sample.Validate(); err != nil {
			return err
		}
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.store.GetSession(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeSessionNotFound, "session not found")
		}
		return apperrors.Wrap(apperrors.CodeStoreUnavailable, "load session", err)
	}

	if err := s.store.SetSessionRating(ctx, sessionID, userID, rating); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeSessionNotFound, "session not found")
		}
		return apperrors.Wrap(apperrors.CodeStoreUnavailable, "rate session", err)
	}

	var recorded *domain.MetricSample
	switch {
	case sample != nil:
		recorded = sample
	case s.strategy == StrategyImmediate:
		derived := domain.DerivedMetricSample(rating)
		recorded = &derived
	}
	if recorded != nil {
		if _, err := s.store.AppendMetric(ctx, storage.MetricRecord{
			UserID:    userID,
			SessionID: sessionID,
			Sample:    *recorded,
			CreatedAt: s.now(),
		}); err != nil {
			return apperrors.Wrap(apperrors.CodeStoreUnavailable, "append metric", err)
		}
	}

	if err := s.adaptParameters(ctx, userID, session.Mode, rating); err != nil {
		s.logf("adapt parameters for %s/%s: %v", userID, session.Mode, err)
	}
	return nil
}

// RecordMetrics appends a lung-capacity sample for an owned session without
// touching its rating.
func (s *Service) RecordMetrics(ctx context.Context, sessionID int64, userID string, sample domain.MetricSample) error {
	if err := sample.Validate(); err != nil {
		return err
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.store.GetSession(ctx, sessionID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeSessionNotFound, "session not found")
		}
		return apperrors.Wrap(apperrors.CodeStoreUnavailable, "load session", err)
	}

	if _, err := s.store.AppendMetric(ctx, storage.MetricRecord{
		UserID:    userID,
		SessionID: sessionID,
		Sample:    sample,
		CreatedAt: s.now(),
	}); err != nil {
		return apperrors.Wrap(apperrors.CodeStoreUnavailable, "append metric", err)
	}
	return nil
}

// ListSessions returns the user's newest sessions, at most limit.
func (s *Service) ListSessions(ctx context.Context, userID string, limit int) ([]storage.SessionRecord, error) {
	records, err := s.store.ListSessions(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "list sessions", err)
	}
	return records, nil
}
