package rest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stillpond/breathe/internal/platform/identity"
	"github.com/stillpond/breathe/internal/services/breathing/app"
	"github.com/stillpond/breathe/internal/services/breathing/storage/sqlite"
)

func newTestMux(t *testing.T, strategy app.Strategy, verifier identity.Verifier) *http.ServeMux {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "breathing.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	mux := http.NewServeMux()
	New(app.New(store, nil, strategy), verifier).Routes(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, payload
}

func TestGetParametersSeedsDefaults(t *testing.T) {
	mux := newTestMux(t, app.StrategyImmediate, identity.Verifier{})

	rec, payload := doJSON(t, mux, http.MethodGet, "/api/breathing/parameters/daily", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if payload["mode"] != "daily" {
		t.Fatalf("mode = %v, want daily", payload["mode"])
	}
	if payload["inhale_seconds"] != 4.0 {
		t.Fatalf("inhale_seconds = %v, want 4", payload["inhale_seconds"])
	}
	if payload["total_duration_seconds"] != 360.0 {
		t.Fatalf("total_duration_seconds = %v, want 360", payload["total_duration_seconds"])
	}
}

func TestGetParametersUnknownMode(t *testing.T) {
	mux := newTestMux(t, app.StrategyImmediate, identity.Verifier{})

	rec, payload := doJSON(t, mux, http.MethodGet, "/api/breathing/parameters/box", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if payload["code"] != "MODE_UNKNOWN" {
		t.Fatalf("code = %v, want MODE_UNKNOWN", payload["code"])
	}
}

func TestCreateSession(t *testing.T) {
	mux := newTestMux(t, app.StrategyImmediate, identity.Verifier{})

	rec, payload := doJSON(t, mux, http.MethodPost, "/api/breathing/sessions", `{"mode":"reset"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if payload["id"] == nil || payload["id"].(float64) == 0 {
		t.Fatalf("id = %v, want non-zero", payload["id"])
	}
	if payload["duration_seconds"] != 60.0 {
		t.Fatalf("duration_seconds = %v, want 60", payload["duration_seconds"])
	}

	rec, payload = doJSON(t, mux, http.MethodPost, "/api/breathing/sessions", `{"mode":"reset","custom_duration":120}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if payload["duration_seconds"] != 120.0 {
		t.Fatalf("duration_seconds = %v, want 120", payload["duration_seconds"])
	}
}

func TestCreateSessionRejectsBadMode(t *testing.T) {
	mux := newTestMux(t, app.StrategyImmediate, identity.Verifier{})

	rec, payload := doJSON(t, mux, http.MethodPost, "/api/breathing/sessions", `{"mode":"zen"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if payload["code"] != "MODE_UNKNOWN" {
		t.Fatalf("code = %v, want MODE_UNKNOWN", payload["code"])
	}
}

func TestListSessions(t *testing.T) {
	mux := newTestMux(t, app.StrategyImmediate, identity.Verifier{})

	for i := 0; i < 3; i++ {
		rec, _ := doJSON(t, mux, http.MethodPost, "/api/breathing/sessions", `{"mode":"daily"}`, nil)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d, want 201", rec.Code)
		}
	}

	rec, payload := doJSON(t, mux, http.MethodGet, "/api/breathing/sessions?limit=2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	sessions := payload["sessions"].([]any)
	if len(sessions) != 2 {
		t.Fatalf("sessions len = %d, want 2", len(sessions))
	}

	rec, _ = doJSON(t, mux, http.MethodGet, "/api/breathing/sessions?limit=zero", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestUpdateSessionEmptyBody(t *testing.T) {
	mux := newTestMux(t, app.StrategyImmediate, identity.Verifier{})

	rec, payload := doJSON(t, mux, http.MethodPost, "/api/breathing/sessions", `{"mode":"daily"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", rec.Code)
	}
	id := int64(payload["id"].(float64))

	rec, payload = doJSON(t, mux, http.MethodPatch, "/api/breathing/sessions/"+itoa(id), `{}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if payload["error"] != "no updates provided" {
		t.Fatalf("error = %v, want %q", payload["error"], "no updates provided")
	}
}

func TestUpdateSessionCompleteAndAnalytics(t *testing.T) {
	mux := newTestMux(t, app.StrategyImmediate, identity.Verifier{})

	rec, payload := doJSON(t, mux, http.MethodPost, "/api/breathing/sessions", `{"mode":"daily"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", rec.Code)
	}
	id := int64(payload["id"].(float64))

	rec, payload = doJSON(t, mux, http.MethodPatch, "/api/breathing/sessions/"+itoa(id), `{"completed":true}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, want 200", rec.Code)
	}
	if payload["success"] != true {
		t.Fatalf("success = %v, want true", payload["success"])
	}

	rec, payload = doJSON(t, mux, http.MethodGet, "/api/progress/analytics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("analytics status = %d, want 200", rec.Code)
	}
	analytics := payload["analytics"].(map[string]any)
	if analytics["total_training_minutes"] != 6.0 {
		t.Fatalf("total_training_minutes = %v, want 6", analytics["total_training_minutes"])
	}
	if analytics["consecutive_days_streak"] != 1.0 {
		t.Fatalf("consecutive_days_streak = %v, want 1", analytics["consecutive_days_streak"])
	}
}

func TestUpdateSessionRatingAdaptsParameters(t *testing.T) {
	mux := newTestMux(t, app.StrategyImmediate, identity.Verifier{})

	rec, payload := doJSON(t, mux, http.MethodPost, "/api/breathing/sessions", `{"mode":"daily"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", rec.Code)
	}
	id := int64(payload["id"].(float64))

	rec, _ = doJSON(t, mux, http.MethodPatch, "/api/breathing/sessions/"+itoa(id), `{"comfort_rating":"heavy"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, want 200", rec.Code)
	}

	rec, payload = doJSON(t, mux, http.MethodGet, "/api/breathing/parameters/daily", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("parameters status = %d, want 200", rec.Code)
	}
	if payload["exhale_seconds"] != 5.7 {
		t.Fatalf("exhale_seconds = %v, want 5.7 after back-off", payload["exhale_seconds"])
	}
}

func TestUpdateSessionMetricsOnly(t *testing.T) {
	mux := newTestMux(t, app.StrategyTrend, identity.Verifier{})

	rec, payload := doJSON(t, mux, http.MethodPost, "/api/breathing/sessions", `{"mode":"daily"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", rec.Code)
	}
	id := int64(payload["id"].(float64))

	body := `{"lung_capacity_data":{"max_breath_hold_seconds":38,"average_inhale_depth":0.82,"average_exhale_control":0.76,"respiratory_rate":13,"comfort_level":0.7}}`
	rec, payload = doJSON(t, mux, http.MethodPatch, "/api/breathing/sessions/"+itoa(id), body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, want 200: %v", rec.Code, payload)
	}
	if payload["success"] != true {
		t.Fatalf("success = %v, want true", payload["success"])
	}

	rec, payload = doJSON(t, mux, http.MethodGet, "/api/progress/analytics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("analytics status = %d, want 200", rec.Code)
	}
	metrics := payload["recent_metrics"].([]any)
	if len(metrics) != 1 {
		t.Fatalf("recent_metrics len = %d, want 1", len(metrics))
	}
	sample := metrics[0].(map[string]any)
	if sample["max_breath_hold_seconds"] != 38.0 {
		t.Fatalf("max_breath_hold_seconds = %v, want 38", sample["max_breath_hold_seconds"])
	}

	rec, payload = doJSON(t, mux, http.MethodGet, "/api/breathing/sessions?limit=1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sessions status = %d, want 200", rec.Code)
	}
	sessions := payload["sessions"].([]any)
	if sessions[0].(map[string]any)["comfort_rating"] != nil {
		t.Fatalf("comfort_rating = %v, want absent", sessions[0].(map[string]any)["comfort_rating"])
	}
}

func TestUpdateSessionBadRating(t *testing.T) {
	mux := newTestMux(t, app.StrategyImmediate, identity.Verifier{})

	rec, payload := doJSON(t, mux, http.MethodPost, "/api/breathing/sessions", `{"mode":"daily"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", rec.Code)
	}
	id := int64(payload["id"].(float64))

	rec, payload = doJSON(t, mux, http.MethodPatch, "/api/breathing/sessions/"+itoa(id), `{"comfort_rating":"great"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if payload["code"] != "RATING_UNKNOWN" {
		t.Fatalf("code = %v, want RATING_UNKNOWN", payload["code"])
	}
}

func TestUpdateSessionNotFound(t *testing.T) {
	mux := newTestMux(t, app.StrategyImmediate, identity.Verifier{})

	rec, payload := doJSON(t, mux, http.MethodPatch, "/api/breathing/sessions/999", `{"completed":true}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if payload["code"] != "SESSION_NOT_FOUND" {
		t.Fatalf("code = %v, want SESSION_NOT_FOUND", payload["code"])
	}
}

func TestAnalyticsFreshUser(t *testing.T) {
	mux := newTestMux(t, app.StrategyImmediate, identity.Verifier{})

	rec, payload := doJSON(t, mux, http.MethodGet, "/api/progress/analytics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	analytics := payload["analytics"].(map[string]any)
	if analytics["difficulty_level"] != "beginner" {
		t.Fatalf("difficulty_level = %v, want beginner", analytics["difficulty_level"])
	}
	if analytics["baseline_lung_capacity"] != nil {
		t.Fatalf("baseline_lung_capacity = %v, want null", analytics["baseline_lung_capacity"])
	}
	metrics := payload["recent_metrics"].([]any)
	if len(metrics) != 0 {
		t.Fatalf("recent_metrics len = %d, want 0", len(metrics))
	}
}

func TestBearerIdentityRequired(t *testing.T) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	verifier := identity.Verifier{
		Issuer:   "https://auth.test",
		Audience: "breathing",
		Key:      public,
		Now:      time.Now,
	}
	mux := newTestMux(t, app.StrategyImmediate, verifier)

	rec, payload := doJSON(t, mux, http.MethodGet, "/api/breathing/parameters/daily", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if payload["code"] != "IDENTITY_MISSING" {
		t.Fatalf("code = %v, want IDENTITY_MISSING", payload["code"])
	}

	claims := jwt.RegisteredClaims{
		Issuer:    "https://auth.test",
		Audience:  jwt.ClaimStrings{"breathing"},
		Subject:   "user-7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(private)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	rec, payload = doJSON(t, mux, http.MethodGet, "/api/breathing/parameters/daily", "", header)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %v", rec.Code, payload)
	}

	header.Set("Authorization", "Bearer not-a-token")
	rec, payload = doJSON(t, mux, http.MethodGet, "/api/breathing/parameters/daily", "", header)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if payload["code"] != "IDENTITY_INVALID" {
		t.Fatalf("code = %v, want IDENTITY_INVALID", payload["code"])
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
