// Package storage defines persistence contracts for breathing trainer state.
//
// Two implementations satisfy the same contract: a durable multi-user SQLite
// store and a single-file local store for offline use. The lifecycle service
// and both engines are written against these interfaces only, so the backing
// store is swappable at composition time.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/stillpond/breathe/internal/services/breathing/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ParameterRecord stores one user's timing tuple for a mode.
type ParameterRecord struct {
	UserID     string
	Mode       domain.Mode
	Parameters domain.Parameters
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SessionRecord stores one breathing session attempt.
//
// Completed and ComfortRating are orthogonal: a session may be rated before,
// after, or never relative to completion.
type SessionRecord struct {
	ID              int64
	UserID          string
	Mode            domain.Mode
	DurationSeconds int
	Completed       bool
	// ComfortRating is empty until the user rates the session.
	ComfortRating domain.ComfortRating
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MetricRecord stores one lung-capacity sample tied to a session.
type MetricRecord struct {
	ID        int64
	UserID    string
	SessionID int64
	Sample    domain.MetricSample
	CreatedAt time.Time
}

// AnalyticsRecord stores one user's rolling progress summary.
type AnalyticsRecord struct {
	UserID string
	// BaselineLungCapacity is nil until the first recompute fixes it;
	// once set it is never overwritten.
	BaselineLungCapacity       *float64
	CurrentLungCapacity        float64
	CapacityImprovementPercent float64
	TotalTrainingMinutes       int
	ConsecutiveDaysStreak      int
	BestStreak                 int
	DifficultyLevel            domain.DifficultyLevel
	// LastSessionDate is the UTC calendar day of the most recent
	// completed session, zero when none exists.
	LastSessionDate time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ParameterStore persists per-(user, mode) timing tuples.
type ParameterStore interface {
	GetParameters(ctx context.Context, userID string, mode domain.Mode) (ParameterRecord, error)
	PutParameters(ctx context.Context, record ParameterRecord) error
}

// SessionStore persists the append-only session attempt log.
type SessionStore interface {
	InsertSession(ctx context.Context, record SessionRecord) (int64, error)
	GetSession(ctx context.Context, sessionID int64, userID string) (SessionRecord, error)
	// SetSessionCompleted marks the session completed. Re-marking an
	// already completed session succeeds without effect. Returns
	// ErrNotFound when the session does not belong to userID.
	SetSessionCompleted(ctx context.Context, sessionID int64, userID string) error
	// SetSessionRating records the comfort rating, overwriting any
	// previous one. Returns ErrNotFound when the session does not belong
	// to userID.
	SetSessionRating(ctx context.Context, sessionID int64, userID string, rating domain.ComfortRating) error
	// ListSessions returns the newest sessions first, at most limit.
	ListSessions(ctx context.Context, userID string, limit int) ([]SessionRecord, error)
	// ListRecentRatings returns the comfort ratings of the newest rated
	// sessions for (userID, mode), newest first, at most limit.
	ListRecentRatings(ctx context.Context, userID string, mode domain.Mode, limit int) ([]domain.ComfortRating, error)
	// ListCompletedSessions returns every completed session for the user.
	ListCompletedSessions(ctx context.Context, userID string) ([]SessionRecord, error)
}

// MetricStore persists append-only lung-capacity samples.
type MetricStore interface {
	AppendMetric(ctx context.Context, record MetricRecord) (int64, error)
	// ListRecentMetrics returns the newest samples first, at most limit.
	ListRecentMetrics(ctx context.Context, userID string, limit int) ([]MetricRecord, error)
}

// AnalyticsStore persists per-user progress summaries.
type AnalyticsStore interface {
	GetAnalytics(ctx context.Context, userID string) (AnalyticsRecord, error)
	PutAnalytics(ctx context.Context, record AnalyticsRecord) error
}

// Store groups the full persistence surface behind one handle.
type Store interface {
	ParameterStore
	SessionStore
	MetricStore
	AnalyticsStore
	Close() error
}
