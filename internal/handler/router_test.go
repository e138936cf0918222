package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/techbirds/hospital-web-hub/internal/clinic"
	"github.com/techbirds/hospital-web-hub/internal/guard"
	"github.com/techbirds/hospital-web-hub/internal/middleware"
	"github.com/techbirds/hospital-web-hub/internal/session"
)

type stubStateSource struct {
	state session.State
}

func (s *stubStateSource) Snapshot() session.State { return s.state }

func newSiteRouter(t *testing.T, state session.State) http.Handler {
	t.Helper()

	pages, err := NewPageHandler(clinic.NewDataset(), nil, nil)
	if err != nil {
		t.Fatalf("failed to build page handler: %v", err)
	}

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	store := &mockSessionService{state: state}
	return NewRouter(&RouterDeps{
		Pages:             pages,
		Auth:              NewAuthHandler(store, nil, nil),
		Contact:           NewContactHandler(NewContactStore(), noopSanitizer{}, nil, nil),
		Guard:             guard.NewMiddleware(&stubStateSource{state: state}, pages, nil),
		RateLimiter:       rl,
		CORSAllowedOrigin: "http://localhost:3000",
	})
}

// noopSanitizer はルーターテスト用のパススルーサニタイザー。
type noopSanitizer struct{}

func (noopSanitizer) Sanitize(raw string) string     { return raw }
func (noopSanitizer) SanitizeText(raw string) string { return raw }

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Home_RendersMarketingPage(t *testing.T) {
	router := newSiteRouter(t, session.State{})

	rec := get(router, "/")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "医療機関") {
		t.Error("expected marketing copy in response")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers to be applied")
	}
}

func TestRouter_Dashboard_Unauthenticated_RedirectsToLogin(t *testing.T) {
	router := newSiteRouter(t, session.State{})

	rec := get(router, "/dashboard/hospital")

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	location := rec.Header().Get("Location")
	if !strings.HasPrefix(location, "/login?redirect=") || !strings.Contains(location, "hospital") {
		t.Errorf("unexpected redirect target: %s", location)
	}
}

func TestRouter_Dashboard_DoctorSeesHospitalDashboard(t *testing.T) {
	router := newSiteRouter(t, signedInState())

	rec := get(router, "/dashboard/hospital")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "病院ダッシュボード") {
		t.Error("expected hospital dashboard heading")
	}
	if !strings.Contains(body, "山田 太郎") {
		t.Error("expected display name from profile attributes")
	}
}

func TestRouter_Dashboard_DoctorDeniedOnPatientPortal(t *testing.T) {
	router := newSiteRouter(t, signedInState())

	rec := get(router, "/dashboard/patient")

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "doctor") {
		t.Error("expected actual role in access denied page")
	}
}

func TestRouter_ClinicSummaryAPI_GuardedByHospitalRoles(t *testing.T) {
	router := newSiteRouter(t, signedInState())

	rec := get(router, "/api/clinic/summary")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		TodayAppointments int `json:"today_appointments"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.TodayAppointments == 0 {
		t.Error("expected non-zero appointment count")
	}
}

func TestRouter_ClinicSummaryAPI_Unauthenticated_Returns401(t *testing.T) {
	router := newSiteRouter(t, session.State{})

	rec := get(router, "/api/clinic/summary")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRouter_LoginPost_WithoutCSRFToken_Returns403(t *testing.T) {
	router := newSiteRouter(t, session.State{})

	body, _ := json.Marshal(map[string]string{"email": "a@demo.com", "password": "demo123"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "CSRF_VALIDATION_FAILED") {
		t.Errorf("expected CSRF error body, got %s", rec.Body.String())
	}
}

func TestRouter_LoginPost_WithCSRFToken_ReachesHandler(t *testing.T) {
	router := newSiteRouter(t, signedInState())

	body, _ := json.Marshal(map[string]string{"email": "doctor@demo.com", "password": "demo123"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "token-value"})
	req.Header.Set("X-CSRF-Token", "token-value")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_Healthz_Returns200(t *testing.T) {
	router := newSiteRouter(t, session.State{})

	rec := get(router, "/healthz")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_LoginPage_CarriesRedirectQuery(t *testing.T) {
	router := newSiteRouter(t, session.State{})

	rec := get(router, "/login?redirect=%2Fdashboard%2Fhospital")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/dashboard/hospital") {
		t.Error("expected redirect target to be embedded in login form")
	}
}
