package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/stillpond/breathe/internal/platform/errors"
)

// writeJSON writes JSON responses with a consistent content type.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}

type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// writeError maps a service error onto its HTTP status and JSON body.
func writeError(w http.ResponseWriter, err error) {
	message := "internal error"
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}
	writeJSON(w, apperrors.HTTPStatus(err), errorBody{
		Code:  string(apperrors.CodeOf(err)),
		Error: message,
	})
}
