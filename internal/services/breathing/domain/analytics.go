package domain

import (
	"math"
	"time"
)

// DifficultyLevel tiers a user's training intensity.
type DifficultyLevel string

const (
	DifficultyBeginner     DifficultyLevel = "beginner"
	DifficultyIntermediate DifficultyLevel = "intermediate"
	DifficultyAdvanced     DifficultyLevel = "advanced"
)

// Neutral capacity inputs assumed before any metric has been recorded.
const (
	neutralInhaleDepth   = 0.5
	neutralExhaleControl = 0.5
	neutralHoldSeconds   = 10.0
)

// metricWindow is how many recent metric samples feed the capacity score.
const metricWindow = 10

// MetricWindow is how many recent metric samples feed the capacity score.
func MetricWindow() int { return metricWindow }

// CapacityScore condenses recent averages into a 0-100 lung capacity score.
//
// Depth and control each weigh 30 points; breath hold weighs 40, saturating
// at a one-minute hold. Absent averages fall back to neutral values so a
// fresh user starts mid-scale rather than at zero.
func CapacityScore(avgInhaleDepth, avgExhaleControl, avgHoldSeconds float64, haveMetrics bool) float64 {
	if !haveMetrics {
		avgInhaleDepth = neutralInhaleDepth
		avgExhaleControl = neutralExhaleControl
		avgHoldSeconds = neutralHoldSeconds
	}
	holdShare := math.Min(avgHoldSeconds/60, 1)
	score := avgInhaleDepth*30 + avgExhaleControl*30 + holdShare*40
	return math.Max(0, math.Min(100, score))
}

// ImprovementPercent derives relative capacity change from a fixed baseline.
func ImprovementPercent(baseline, current float64) float64 {
	if baseline <= 0 {
		return 0
	}
	return (current - baseline) / baseline * 100
}

// ConsecutiveDayStreak walks backward from today one calendar day at a time,
// counting days that have at least one completed session, stopping at the
// first gap. No session today means a zero streak.
//
// Dates are compared by their UTC calendar day.
func ConsecutiveDayStreak(completedAt []time.Time, today time.Time) int {
	if len(completedAt) == 0 {
		return 0
	}
	days := make(map[string]struct{}, len(completedAt))
	for _, at := range completedAt {
		days[at.UTC().Format(time.DateOnly)] = struct{}{}
	}

	// The streak cannot exceed the number of distinct days, which bounds
	// the walk.
	streak := 0
	expected := today.UTC()
	for range days {
		if _, ok := days[expected.Format(time.DateOnly)]; !ok {
			break
		}
		streak++
		expected = expected.AddDate(0, 0, -1)
	}
	return streak
}

// DifficultyFor tiers difficulty from capacity and streak. Advancement needs
// both sustained practice and measured capacity.
func DifficultyFor(capacity float64, streak int) DifficultyLevel {
	switch {
	case capacity >= 75 && streak >= 14:
		return DifficultyAdvanced
	case capacity >= 60 && streak >= 7:
		return DifficultyIntermediate
	default:
		return DifficultyBeginner
	}
}
