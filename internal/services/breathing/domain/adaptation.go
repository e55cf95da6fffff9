package domain

import "math"

// Adaptation step sizes and hard bounds, shared by every strategy so that
// switching backing stores never changes how far parameters can drift.
const (
	pacedInhaleStep = 0.3
	pacedExhaleStep = 0.3
	pacedInhaleCap  = 7.0
	pacedExhaleCap  = 9.0

	resetPauseStep  = 0.15
	resetInhaleStep = 0.2
	resetPauseCap   = 3.0
	resetInhaleCap  = 5.0

	pacedExhaleBackStep = 0.3
	pacedInhaleBackStep = 0.2
	pacedExhaleFloor    = 4.0
	pacedInhaleFloor    = 3.5
	resetPauseFloor     = 0.5
)

// Thresholds for the trend strategy.
const (
	trendRatingWindow  = 5
	trendLighterNeeded = 3
	trendHeavyNeeded   = 2
	trendMetricFloor   = 0.7
)

// RatingWindow is how many recent rated sessions the trend strategy inspects.
func RatingWindow() int { return trendRatingWindow }

// TrendInput carries the history the trend strategy conditions on.
type TrendInput struct {
	LatestRating ComfortRating
	// LighterCount and HeavyCount are tallies over the most recent
	// RatingWindow() rated sessions for the same (user, mode).
	LighterCount int
	HeavyCount   int
	// AvgInhaleDepth and AvgExhaleControl are averages over the user's
	// recent metric samples; zero when no samples exist.
	AvgInhaleDepth   float64
	AvgExhaleControl float64
}

// AdaptTrend applies the history-conditioned rule table.
//
// Ease-up needs a sustained lighter trend backed by good measured form;
// back-off reacts faster, on either a repeated or an immediate heavy signal.
// Both branches may fire in one call; each field clamps independently.
func AdaptTrend(mode Mode, params Parameters, in TrendInput) (Parameters, bool) {
	next := params

	easeUp := in.LighterCount >= trendLighterNeeded &&
		in.LatestRating == RatingLighter &&
		in.AvgInhaleDepth > trendMetricFloor &&
		in.AvgExhaleControl > trendMetricFloor
	if easeUp {
		next = easeUpStep(mode, next)
	}

	if in.HeavyCount >= trendHeavyNeeded || in.LatestRating == RatingHeavy {
		next = backOffStep(mode, next)
	}

	return next, next != params
}

// AdaptImmediate applies the single-event rule table: every lighter rating
// eases up, every heavy rating backs off. Same steps and clamps as the trend
// strategy. Used when no rating or metric history is available.
func AdaptImmediate(mode Mode, params Parameters, rating ComfortRating) (Parameters, bool) {
	next := params
	switch rating {
	case RatingLighter:
		next = easeUpStep(mode, next)
	case RatingHeavy:
		next = backOffStep(mode, next)
	}
	return next, next != params
}

func easeUpStep(mode Mode, p Parameters) Parameters {
	switch mode {
	case ModeDaily, ModeSilent:
		p.InhaleSeconds = math.Min(p.InhaleSeconds+pacedInhaleStep, pacedInhaleCap)
		p.ExhaleSeconds = math.Min(p.ExhaleSeconds+pacedExhaleStep, pacedExhaleCap)
	case ModeReset:
		p.PauseSeconds = math.Min(p.PauseSeconds+resetPauseStep, resetPauseCap)
		p.InhaleSeconds = math.Min(p.InhaleSeconds+resetInhaleStep, resetInhaleCap)
	}
	return p
}

func backOffStep(mode Mode, p Parameters) Parameters {
	switch mode {
	case ModeDaily, ModeSilent:
		p.ExhaleSeconds = math.Max(p.ExhaleSeconds-pacedExhaleBackStep, pacedExhaleFloor)
		p.InhaleSeconds = math.Max(p.InhaleSeconds-pacedInhaleBackStep, pacedInhaleFloor)
	case ModeReset:
		p.PauseSeconds = math.Max(p.PauseSeconds-resetPauseStep, resetPauseFloor)
	}
	return p
}
