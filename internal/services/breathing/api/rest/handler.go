// Package rest exposes the breathing service as a JSON HTTP API.
package rest

import (
	"net/http"
	"strings"

	apperrors "github.com/stillpond/breathe/internal/platform/errors"
	"github.com/stillpond/breathe/internal/platform/identity"
	"github.com/stillpond/breathe/internal/services/breathing/app"
)

// Handler serves the breathing HTTP API.
type Handler struct {
	service  *app.Service
	verifier identity.Verifier
}

// New builds a Handler over service. An unconfigured verifier resolves every
// caller to the local single-user id.
func New(service *app.Service, verifier identity.Verifier) *Handler {
	return &Handler{service: service, verifier: verifier}
}

// Routes registers the API endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc(http.MethodGet+" /api/breathing/parameters/{mode}", h.handleGetParameters)
	mux.HandleFunc(http.MethodPost+" /api/breathing/sessions", h.handleCreateSession)
	mux.HandleFunc(http.MethodGet+" /api/breathing/sessions", h.handleListSessions)
	mux.HandleFunc(http.MethodPatch+" /api/breathing/sessions/{id}", h.handleUpdateSession)
	mux.HandleFunc(http.MethodGet+" /api/progress/analytics", h.handleAnalytics)
	mux.HandleFunc(http.MethodGet+" /healthz", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// resolveUser extracts the caller identity from the Authorization header.
func (h *Handler) resolveUser(r *http.Request) (string, error) {
	if !h.verifier.Configured() {
		return identity.LocalUserID, nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", apperrors.New(apperrors.CodeIdentityMissing, "bearer token is required")
	}
	return h.verifier.ResolveUserID(strings.TrimSpace(token))
}
