package authsrv

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/techbirds/hospital-web-hub/internal/middleware"
	"github.com/techbirds/hospital-web-hub/internal/model"
)

// Handler はアカウントサービスのHTTPハンドラー。
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler はHandlerを生成する。
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// NewRouter はアカウントサービスの全エンドポイントを構成したルーターを返す。
func NewRouter(service *Service, logger *slog.Logger) http.Handler {
	h := NewHandler(service, logger)
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(h.logger))

	r.Route("/auth/v1", func(r chi.Router) {
		r.Post("/token", h.Token)
		r.Post("/signup", h.SignUp)
		r.Post("/logout", h.Logout)
		r.Get("/user", h.User)
	})

	r.Route("/rest/v1/profiles", func(r chi.Router) {
		r.Post("/", h.CreateProfile)
		r.Get("/{subjectID}", h.GetProfile)
		r.Patch("/{subjectID}", h.PatchProfile)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}

// credentialsRequest はサインイン・サインアップの共通リクエストボディ。
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// sessionResponse はセッション発行のレスポンスボディ。
type sessionResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        userResponse `json:"user"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// profileResponse はプロフィールのレスポンスボディ。
type profileResponse struct {
	ID         string            `json:"id"`
	SubjectID  string            `json:"subject_id"`
	Email      string            `json:"email"`
	Role       string            `json:"role"`
	IsActive   bool              `json:"is_active"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Token はパスワードグラントでアクセストークンを発行する。
// POST /auth/v1/token
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("メールアドレスとパスワードは必須です"))
		return
	}

	sess, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if errors.Is(err, model.ErrInvalidCredentials) {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
		return
	}
	if err != nil {
		h.logger.Error("sign-in failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// SignUp は新規アカウントを作成してアクセストークンを発行する。
// POST /auth/v1/signup
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("メールアドレスとパスワードは必須です"))
		return
	}

	sess, err := h.service.SignUp(r.Context(), req.Email, req.Password)
	if errors.Is(err, model.ErrEmailAlreadyRegistered) {
		middleware.WriteErrorResponse(w, http.StatusConflict, model.NewEmailRegisteredError())
		return
	}
	if err != nil {
		h.logger.Error("sign-up failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// Logout はログアウトを受け付ける。
// トークンはステートレスなため、サーバー側で破棄する状態はない。
// POST /auth/v1/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// User はベアラートークンを検証して現在のセッションを返す。
// GET /auth/v1/user
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	sess, err := h.service.CurrentUser(r.Context(), token)
	if errors.Is(err, ErrInvalidToken) {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}
	if err != nil {
		h.logger.Error("session lookup failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// GetProfile はサブジェクトIDでプロフィールを返す。
// GET /rest/v1/profiles/{subjectID}
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	profile, err := h.service.FetchProfile(r.Context(), subjectID)
	if errors.Is(err, model.ErrProfileNotFound) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewProfileIncompleteError())
		return
	}
	if err != nil {
		h.logger.Error("profile fetch failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// CreateProfile はプロフィールを作成する。
// POST /rest/v1/profiles
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SubjectID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("subject_idは必須です"))
		return
	}

	role, ok := model.ParseRole(req.Role)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRoleError(req.Role))
		return
	}

	profile := &model.Profile{
		SubjectID:  req.SubjectID,
		Email:      req.Email,
		Role:       role,
		IsActive:   req.IsActive,
		Attributes: req.Attributes,
	}
	if err := h.service.CreateProfile(r.Context(), profile); err != nil {
		h.logger.Error("profile create failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusCreated, toProfileResponse(profile))
}

// PatchProfile は部分属性セットをプロフィールにマージする。
// PATCH /rest/v1/profiles/{subjectID}
func (h *Handler) PatchProfile(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	var req struct {
		Attributes map[string]string `json:"attributes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Attributes) == 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("attributesは必須です"))
		return
	}

	err := h.service.UpdateProfileAttributes(r.Context(), subjectID, req.Attributes)
	if errors.Is(err, model.ErrProfileNotFound) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewProfileIncompleteError())
		return
	}
	if err != nil {
		h.logger.Error("profile update failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// bearerToken はAuthorizationヘッダーからベアラートークンを取り出す。
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimPrefix(auth, prefix)
}

func toSessionResponse(sess *model.Session) sessionResponse {
	return sessionResponse{
		AccessToken: sess.AccessToken,
		ExpiresAt:   sess.ExpiresAt,
		User: userResponse{
			ID:    sess.SubjectID,
			Email: sess.Email,
		},
	}
}

func toProfileResponse(profile *model.Profile) profileResponse {
	return profileResponse{
		ID:         profile.ID,
		SubjectID:  profile.SubjectID,
		Email:      profile.Email,
		Role:       string(profile.Role),
		IsActive:   profile.IsActive,
		Attributes: profile.Attributes,
		CreatedAt:  profile.CreatedAt,
		UpdatedAt:  profile.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
