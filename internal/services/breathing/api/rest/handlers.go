package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/stillpond/breathe/internal/platform/errors"
	"github.com/stillpond/breathe/internal/services/breathing/domain"
)

const defaultSessionListLimit = 50

type parametersResponse struct {
	Mode                 string  `json:"mode"`
	InhaleSeconds        float64 `json:"inhale_seconds"`
	ExhaleSeconds        float64 `json:"exhale_seconds"`
	PauseSeconds         float64 `json:"pause_seconds"`
	TotalDurationSeconds int     `json:"total_duration_seconds"`
	UpdatedAt            string  `json:"updated_at"`
}

func (h *Handler) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	userID, err := h.resolveUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	mode, err := domain.ParseMode(r.PathValue("mode"))
	if err != nil {
		writeError(w, err)
		return
	}

	record, err := h.service.GetParameters(r.Context(), userID, mode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, parametersResponse{
		Mode:                 string(record.Mode),
		InhaleSeconds:        record.Parameters.InhaleSeconds,
		ExhaleSeconds:        record.Parameters.ExhaleSeconds,
		PauseSeconds:         record.Parameters.PauseSeconds,
		TotalDurationSeconds: record.Parameters.TotalDurationSeconds,
		UpdatedAt:            record.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

type createSessionRequest struct {
	Mode           string `json:"mode"`
	CustomDuration int    `json:"custom_duration"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	userID, err := h.resolveUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createSessionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}
	mode, err := domain.ParseMode(req.Mode)
	if err != nil {
		writeError(w, err)
		return
	}

	record, err := h.service.CreateSession(r.Context(), userID, mode, req.CustomDuration)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":               record.ID,
		"mode":             string(record.Mode),
		"duration_seconds": record.DurationSeconds,
	})
}

type sessionResponse struct {
	ID              int64  `json:"id"`
	Mode            string `json:"mode"`
	DurationSeconds int    `json:"duration_seconds"`
	Completed       bool   `json:"completed"`
	ComfortRating   string `json:"comfort_rating,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID, err := h.resolveUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	limit := defaultSessionListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, apperrors.New(apperrors.CodeRequestInvalid, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	records, err := h.service.ListSessions(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	sessions := make([]sessionResponse, 0, len(records))
	for _, record := range records {
		sessions = append(sessions, sessionResponse{
			ID:              record.ID,
			Mode:            string(record.Mode),
			DurationSeconds: record.DurationSeconds,
			Completed:       record.Completed,
			ComfortRating:   string(record.ComfortRating),
			CreatedAt:       record.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

type metricPayload struct {
	MaxBreathHoldSeconds float64 `json:"max_breath_hold_seconds"`
	AverageInhaleDepth   float64 `json:"average_inhale_depth"`
	AverageExhaleControl float64 `json:"average_exhale_control"`
	RespiratoryRate      float64 `json:"respiratory_rate"`
	ComfortLevel         float64 `json:"comfort_level"`
}

type updateSessionRequest struct {
	Completed        *bool          `json:"completed"`
	ComfortRating    string         `json:"comfort_rating"`
	LungCapacityData *metricPayload `json:"lung_capacity_data"`
}

func (h *Handler) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	userID, err := h.resolveUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sessionID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, apperrors.New(apperrors.CodeSessionNotFound, "session not found"))
		return
	}
	var req updateSessionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}

	wantComplete := req.Completed != nil && *req.Completed
	if !wantComplete && req.ComfortRating == "" && req.LungCapacityData == nil {
		writeError(w, apperrors.New(apperrors.CodeUpdateEmpty, "no updates provided"))
		return
	}

	var rating domain.ComfortRating
	if req.ComfortRating != "" {
		rating, err = domain.ParseRating(req.ComfortRating)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	var sample *domain.MetricSample
	if req.LungCapacityData != nil {
		sample = &domain.MetricSample{
			MaxBreathHoldSeconds: req.LungCapacityData.MaxBreathHoldSeconds,
			AverageInhaleDepth:   req.LungCapacityData.AverageInhaleDepth,
			AverageExhaleControl: req.LungCapacityData.AverageExhaleControl,
			RespiratoryRate:      req.LungCapacityData.RespiratoryRate,
			ComfortLevel:         req.LungCapacityData.ComfortLevel,
		}
	}

	if wantComplete {
		if err := h.service.CompleteSession(r.Context(), sessionID, userID); err != nil {
			writeError(w, err)
			return
		}
	}
	switch {
	case rating != "":
		if err := h.service.RateSession(r.Context(), sessionID, userID, rating, sample); err != nil {
			writeError(w, err)
			return
		}
	case sample != nil:
		if err := h.service.RecordMetrics(r.Context(), sessionID, userID, *sample); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type analyticsResponse struct {
	BaselineLungCapacity       *float64 `json:"baseline_lung_capacity"`
	CurrentLungCapacity        float64  `json:"current_lung_capacity"`
	CapacityImprovementPercent float64  `json:"capacity_improvement_percent"`
	TotalTrainingMinutes       int      `json:"total_training_minutes"`
	ConsecutiveDaysStreak      int      `json:"consecutive_days_streak"`
	BestStreak                 int      `json:"best_streak"`
	DifficultyLevel            string   `json:"difficulty_level"`
	LastSessionDate            string   `json:"last_session_date,omitempty"`
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, err := h.resolveUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := h.service.Analytics(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	analytics := analyticsResponse{
		BaselineLungCapacity:       report.Analytics.BaselineLungCapacity,
		CurrentLungCapacity:        report.Analytics.CurrentLungCapacity,
		CapacityImprovementPercent: report.Analytics.CapacityImprovementPercent,
		TotalTrainingMinutes:       report.Analytics.TotalTrainingMinutes,
		ConsecutiveDaysStreak:      report.Analytics.ConsecutiveDaysStreak,
		BestStreak:                 report.Analytics.BestStreak,
		DifficultyLevel:            string(report.Analytics.DifficultyLevel),
	}
	if !report.Analytics.LastSessionDate.IsZero() {
		analytics.LastSessionDate = report.Analytics.LastSessionDate.UTC().Format(time.DateOnly)
	}

	metrics := make([]metricPayload, 0, len(report.RecentMetrics))
	for _, record := range report.RecentMetrics {
		metrics = append(metrics, metricPayload{
			MaxBreathHoldSeconds: record.Sample.MaxBreathHoldSeconds,
			AverageInhaleDepth:   record.Sample.AverageInhaleDepth,
			AverageExhaleControl: record.Sample.AverageExhaleControl,
			RespiratoryRate:      record.Sample.RespiratoryRate,
			ComfortLevel:         record.Sample.ComfortLevel,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"analytics":      analytics,
		"recent_metrics": metrics,
	})
}

// decodeJSON parses a request body, rejecting malformed payloads with a
// client error instead of a 500.
func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(target); err != nil {
		return apperrors.Wrap(apperrors.CodeRequestInvalid, "invalid JSON body", err)
	}
	return nil
}
