package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/techbirds/hospital-web-hub/internal/model"
	"github.com/techbirds/hospital-web-hub/internal/session"
)

// --- モック定義 ---

type mockSessionService struct {
	state           session.State
	signInFn        func(ctx context.Context, email, password string) error
	signUpFn        func(ctx context.Context, email, password string, partial map[string]string) error
	signOutCalled   bool
	updateProfileFn func(ctx context.Context, partial map[string]string) error
}

func (m *mockSessionService) Snapshot() session.State { return m.state }

func (m *mockSessionService) SignIn(ctx context.Context, email, password string) error {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil
}

func (m *mockSessionService) SignUp(ctx context.Context, email, password string, partial map[string]string) error {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password, partial)
	}
	return nil
}

func (m *mockSessionService) SignOut(ctx context.Context) { m.signOutCalled = true }

func (m *mockSessionService) UpdateProfile(ctx context.Context, partial map[string]string) error {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, partial)
	}
	return nil
}

type mockCollector struct {
	signIns        []string
	signOuts       int
	profileUpdates []string
	contacts       int
}

func (m *mockCollector) RecordSignIn(result string) { m.signIns = append(m.signIns, result) }

func (m *mockCollector) RecordSignOut() { m.signOuts++ }

func (m *mockCollector) RecordGuardDecision(outcome string) {}

func (m *mockCollector) RecordProfileUpdate(result string) {
	m.profileUpdates = append(m.profileUpdates, result)
}

func (m *mockCollector) RecordSessionResolution(d time.Duration) {}

func (m *mockCollector) RecordContactSubmission() { m.contacts++ }

func signedInState() session.State {
	return session.State{
		Identity: &model.Identity{SubjectID: "subj-1", Backend: model.BackendLocal},
		Profile: &model.Profile{
			SubjectID:  "subj-1",
			Email:      "doctor@demo.com",
			Role:       model.RoleDoctor,
			IsActive:   true,
			Attributes: map[string]string{"display_name": "山田 太郎"},
		},
	}
}

func doRequest(h http.HandlerFunc, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

// --- テスト ---

func TestLogin_Success_ReturnsSnapshotAndRecordsMetric(t *testing.T) {
	store := &mockSessionService{state: signedInState()}
	collector := &mockCollector{}
	h := NewAuthHandler(store, collector, nil)

	rec := doRequest(h.Login, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "doctor@demo.com", "password": "demo123",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp stateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Identity == nil || resp.Identity.SubjectID != "subj-1" {
		t.Errorf("expected identity in response, got %+v", resp.Identity)
	}
	if resp.Profile == nil || resp.Profile.Role != "doctor" {
		t.Errorf("expected doctor profile, got %+v", resp.Profile)
	}
	if len(collector.signIns) != 1 || collector.signIns[0] != "success" {
		t.Errorf("expected success metric, got %v", collector.signIns)
	}
}

func TestLogin_InvalidCredentials_Returns401(t *testing.T) {
	store := &mockSessionService{
		signInFn: func(ctx context.Context, email, password string) error {
			return model.ErrInvalidCredentials
		},
	}
	collector := &mockCollector{}
	h := NewAuthHandler(store, collector, nil)

	rec := doRequest(h.Login, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "doctor@demo.com", "password": "wrong",
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.Code != "INVALID_CREDENTIALS" {
		t.Errorf("expected INVALID_CREDENTIALS, got %s", body.Code)
	}
	if len(collector.signIns) != 1 || collector.signIns[0] != "failure" {
		t.Errorf("expected failure metric, got %v", collector.signIns)
	}
}

func TestLogin_MissingFields_Returns400(t *testing.T) {
	h := NewAuthHandler(&mockSessionService{}, nil, nil)

	rec := doRequest(h.Login, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@demo.com"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSignUp_EmailAlreadyRegistered_Returns409(t *testing.T) {
	store := &mockSessionService{
		signUpFn: func(ctx context.Context, email, password string, partial map[string]string) error {
			return model.ErrEmailAlreadyRegistered
		},
	}
	h := NewAuthHandler(store, nil, nil)

	rec := doRequest(h.SignUp, http.MethodPost, "/api/auth/signup", map[string]string{
		"email": "taken@demo.com", "password": "demo123",
	})

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestSignUp_PassesAttributesToStore(t *testing.T) {
	var gotPartial map[string]string
	store := &mockSessionService{
		state: signedInState(),
		signUpFn: func(ctx context.Context, email, password string, partial map[string]string) error {
			gotPartial = partial
			return nil
		},
	}
	h := NewAuthHandler(store, nil, nil)

	rec := doRequest(h.SignUp, http.MethodPost, "/api/auth/signup", map[string]any{
		"email":      "new@demo.com",
		"password":   "demo123",
		"attributes": map[string]string{"display_name": "新規 太郎"},
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotPartial["display_name"] != "新規 太郎" {
		t.Errorf("expected attributes forwarded, got %v", gotPartial)
	}
}

func TestLogout_ClearsSessionAndRecordsMetric(t *testing.T) {
	store := &mockSessionService{state: signedInState()}
	collector := &mockCollector{}
	h := NewAuthHandler(store, collector, nil)

	rec := doRequest(h.Logout, http.MethodPost, "/api/auth/logout", nil)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if !store.signOutCalled {
		t.Error("expected SignOut to be called")
	}
	if collector.signOuts != 1 {
		t.Errorf("expected 1 sign-out metric, got %d", collector.signOuts)
	}
}

func TestSession_ReturnsCurrentSnapshot(t *testing.T) {
	store := &mockSessionService{state: session.State{Loading: true}}
	h := NewAuthHandler(store, nil, nil)

	rec := doRequest(h.Session, http.MethodGet, "/api/auth/session", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp stateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Loading || resp.Identity != nil || resp.Profile != nil {
		t.Errorf("expected loading snapshot, got %+v", resp)
	}
}

func TestUpdateProfile_Failure_ReturnsUpdateFailed(t *testing.T) {
	store := &mockSessionService{
		updateProfileFn: func(ctx context.Context, partial map[string]string) error {
			return errors.New("backend unavailable")
		},
	}
	collector := &mockCollector{}
	h := NewAuthHandler(store, collector, nil)

	rec := doRequest(h.UpdateProfile, http.MethodPatch, "/api/auth/profile", map[string]any{
		"attributes": map[string]string{"display_name": "新名"},
	})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if len(collector.profileUpdates) != 1 || collector.profileUpdates[0] != "failure" {
		t.Errorf("expected failure metric, got %v", collector.profileUpdates)
	}
}

func TestUpdateProfile_Success_ReturnsUpdatedSnapshot(t *testing.T) {
	store := &mockSessionService{state: signedInState()}
	collector := &mockCollector{}
	h := NewAuthHandler(store, collector, nil)

	rec := doRequest(h.UpdateProfile, http.MethodPatch, "/api/auth/profile", map[string]any{
		"attributes": map[string]string{"display_name": "新名"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(collector.profileUpdates) != 1 || collector.profileUpdates[0] != "success" {
		t.Errorf("expected success metric, got %v", collector.profileUpdates)
	}
}
