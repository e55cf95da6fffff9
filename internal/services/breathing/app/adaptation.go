package app

import (
	"context"
	"fmt"

	"github.com/stillpond/breathe/internal/services/breathing/domain"
)

// adaptParameters applies the configured strategy to (userID, mode) after a
// rating write. Must be called with the user lock held. A no-change outcome
// skips the parameter write entirely.
func (s *Service) adaptParameters(ctx context.Context, userID string, mode domain.Mode, rating domain.ComfortRating) error {
	record, err := s.getOrSeedParameters(ctx, userID, mode)
	if err != nil {
		return err
	}

	var next domain.Parameters
	var changed bool
	switch s.strategy {
	case StrategyImmediate:
		next, changed = domain.AdaptImmediate(mode, record.Parameters, rating)
	case StrategyTrend:
		input, err := s.trendInput(ctx, userID, mode, rating)
		if err != nil {
			return err
		}
		next, changed = domain.AdaptTrend(mode, record.Parameters, input)
	default:
		return fmt.Errorf("unknown adaptation strategy %q", s.strategy)
	}
	if !changed {
		return nil
	}

	record.Parameters = next
	record.UpdatedAt = s.now()
	if err := s.store.PutParameters(ctx, record); err != nil {
		return fmt.Errorf("store adapted parameters: %w", err)
	}
	return nil
}

// trendInput assembles the rating window and metric averages the trend
// strategy conditions on. Sessions rated before the window started do not
// count; missing metrics read as zero averages.
func (s *Service) trendInput(ctx context.Context, userID string, mode domain.Mode, latest domain.ComfortRating) (domain.TrendInput, error) {
	ratings, err := s.store.ListRecentRatings(ctx, userID, mode, domain.RatingWindow())
	if err != nil {
		return domain.TrendInput{}, fmt.Errorf("list recent ratings: %w", err)
	}

	input := domain.TrendInput{LatestRating: latest}
	for _, rating := range ratings {
		switch rating {
		case domain.RatingLighter:
			input.LighterCount++
		case domain.RatingHeavy:
			input.HeavyCount++
		}
	}

	metrics, err := s.store.ListRecentMetrics(ctx, userID, domain.RatingWindow())
	if err != nil {
		return domain.TrendInput{}, fmt.Errorf("list recent metrics: %w", err)
	}
	if len(metrics) > 0 {
		var depth, control float64
		for _, metric := range metrics {
			depth += metric.Sample.AverageInhaleDepth
			control += metric.Sample.AverageExhaleControl
		}
		input.AvgInhaleDepth = depth / float64(len(metrics))
		input.AvgExhaleControl = control / float64(len(metrics))
	}
	return input, nil
}
