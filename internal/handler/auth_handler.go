package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/techbirds/hospital-web-hub/internal/metrics"
	"github.com/techbirds/hospital-web-hub/internal/middleware"
	"github.com/techbirds/hospital-web-hub/internal/model"
	"github.com/techbirds/hospital-web-hub/internal/session"
)

// SessionService は認証ハンドラーが必要とするセッションストアのインターフェース。
type SessionService interface {
	Snapshot() session.State
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password string, partial map[string]string) error
	SignOut(ctx context.Context)
	UpdateProfile(ctx context.Context, partial map[string]string) error
}

// AuthHandler はセッション操作のJSON APIハンドラー。
type AuthHandler struct {
	store     SessionService
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。collectorはnilでもよい。
func NewAuthHandler(store SessionService, collector metrics.MetricsCollector, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{store: store, collector: collector, logger: logger}
}

// stateResponse は認証状態スナップショットのレスポンスボディ。
type stateResponse struct {
	Loading  bool              `json:"loading"`
	Identity *identityResponse `json:"identity"`
	Profile  *profileResponse  `json:"profile"`
}

type identityResponse struct {
	SubjectID string `json:"subject_id"`
	Backend   string `json:"backend"`
}

type profileResponse struct {
	SubjectID  string            `json:"subject_id"`
	Email      string            `json:"email"`
	Role       string            `json:"role"`
	IsActive   bool              `json:"is_active"`
	Attributes map[string]string `json:"attributes"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email      string            `json:"email"`
	Password   string            `json:"password"`
	Attributes map[string]string `json:"attributes"`
}

// Login はメールアドレスとパスワードでサインインする。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("メールアドレスとパスワードは必須です"))
		return
	}

	err := h.store.SignIn(r.Context(), req.Email, req.Password)
	if errors.Is(err, model.ErrInvalidCredentials) {
		h.recordSignIn("failure")
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
		return
	}
	if err != nil {
		h.recordSignIn("error")
		h.logger.Error("sign-in failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.recordSignIn("success")
	writeJSON(w, http.StatusOK, toStateResponse(h.store.Snapshot()))
}

// SignUp は新規アカウントを作成する。
// POST /api/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("メールアドレスとパスワードは必須です"))
		return
	}

	err := h.store.SignUp(r.Context(), req.Email, req.Password, req.Attributes)
	if errors.Is(err, model.ErrEmailAlreadyRegistered) {
		middleware.WriteErrorResponse(w, http.StatusConflict, model.NewEmailRegisteredError())
		return
	}
	if err != nil {
		// アカウントは作成済みでプロフィール作成に失敗した場合もここに来る。
		// Identityは設定済みのため、クライアントはプロフィール設定画面へ誘導される。
		h.logger.Error("sign-up failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusCreated, toStateResponse(h.store.Snapshot()))
}

// Logout はサインアウトする。常に成功として扱う。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.store.SignOut(r.Context())
	if h.collector != nil {
		h.collector.RecordSignOut()
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session は現在の認証状態スナップショットを返す。
// GET /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toStateResponse(h.store.Snapshot()))
}

// UpdateProfile は部分属性セットをプロフィールにマージする。
// PATCH /api/auth/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Attributes map[string]string `json:"attributes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Attributes) == 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("attributesは必須です"))
		return
	}

	if err := h.store.UpdateProfile(r.Context(), req.Attributes); err != nil {
		h.recordProfileUpdate("failure")
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewUpdateFailedError())
		return
	}

	h.recordProfileUpdate("success")
	writeJSON(w, http.StatusOK, toStateResponse(h.store.Snapshot()))
}

func (h *AuthHandler) recordSignIn(result string) {
	if h.collector != nil {
		h.collector.RecordSignIn(result)
	}
}

func (h *AuthHandler) recordProfileUpdate(result string) {
	if h.collector != nil {
		h.collector.RecordProfileUpdate(result)
	}
}

// toStateResponse はセッション状態をレスポンス形式に変換する。
func toStateResponse(state session.State) stateResponse {
	resp := stateResponse{Loading: state.Loading}
	if state.Identity != nil {
		resp.Identity = &identityResponse{
			SubjectID: state.Identity.SubjectID,
			Backend:   string(state.Identity.Backend),
		}
	}
	if state.Profile != nil {
		resp.Profile = &profileResponse{
			SubjectID:  state.Profile.SubjectID,
			Email:      state.Profile.Email,
			Role:       string(state.Profile.Role),
			IsActive:   state.Profile.IsActive,
			Attributes: state.Profile.Attributes,
		}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
