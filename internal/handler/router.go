package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/techbirds/hospital-web-hub/internal/guard"
	"github.com/techbirds/hospital-web-hub/internal/middleware"
	"github.com/techbirds/hospital-web-hub/internal/model"
)

// ダッシュボードごとに許可するロールセット。
// 空のロールセットは「認証済み・プロフィールありなら誰でも」を意味するため、
// ここでは全ダッシュボードに明示的なセットを与える。
var (
	hospitalRoles  = []model.Role{model.RoleAdmin, model.RoleDoctor, model.RoleNurse, model.RoleReceptionist, model.RolePharmacist, model.RoleLabTech}
	dentalRoles    = []model.Role{model.RoleAdmin, model.RolePractitioner, model.RoleAssistant, model.RoleReceptionist}
	aestheticRoles = []model.Role{model.RoleAdmin, model.RolePractitioner, model.RoleAssistant}
	patientRoles   = []model.Role{model.RolePatient}
	staffRoles     = []model.Role{model.RoleAdmin, model.RoleHRManager}
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Pages   *PageHandler
	Auth    *AuthHandler
	Contact *ContactHandler
	Guard   *guard.Middleware

	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	CookieSecure      bool

	// MetricsHandler はPrometheusスクレイプ用。nilの場合/metricsは公開しない。
	MetricsHandler http.Handler

	Logger *slog.Logger
}

// NewRouter は公開サイト全体のルーティングとミドルウェアチェーンを構成する。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → RateLimit(General) → CSRF
//
// ログイン・サインアップのPOSTにはログイン専用レート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(deps.RateLimiter.GeneralMiddleware())
	r.Use(middleware.NewCSRFMiddleware(middleware.CSRFConfig{CookieSecure: deps.CookieSecure}))

	// --- 公開ページ ---
	r.Get("/", deps.Pages.Home)
	r.Get("/product", deps.Pages.Product)
	r.Get("/specialties", deps.Pages.Specialties)
	r.Get("/roadmap", deps.Pages.Roadmap)
	r.Get("/contact", deps.Pages.Contact)
	r.Get("/login", deps.Pages.Login)

	// --- 認証API ---
	r.Route("/api/auth", func(r chi.Router) {
		// 総当たり対策としてログイン・サインアップは専用レート制限
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", deps.Auth.Login)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/signup", deps.Auth.SignUp)
		r.Post("/logout", deps.Auth.Logout)
		r.Get("/session", deps.Auth.Session)
		r.Patch("/profile", deps.Auth.UpdateProfile)
	})

	// --- お問い合わせAPI ---
	r.Post("/api/contact", deps.Contact.Submit)

	// --- 保護されたダッシュボード（HTML） ---
	r.Route("/dashboard", func(r chi.Router) {
		r.With(deps.Guard.RequireRoles(hospitalRoles...)).Get("/hospital", deps.Pages.DashboardHospital)
		r.With(deps.Guard.RequireRoles(dentalRoles...)).Get("/dental", deps.Pages.DashboardDental)
		r.With(deps.Guard.RequireRoles(aestheticRoles...)).Get("/aesthetic", deps.Pages.DashboardAesthetic)
		r.With(deps.Guard.RequireRoles(patientRoles...)).Get("/patient", deps.Pages.DashboardPatient)
		r.With(deps.Guard.RequireRoles(staffRoles...)).Get("/staff", deps.Pages.DashboardStaff)
	})

	// --- 保護されたダッシュボードAPI（JSON） ---
	r.Route("/api/clinic", func(r chi.Router) {
		r.With(deps.Guard.RequireRolesAPI(hospitalRoles...)).Get("/summary", deps.Pages.ClinicSummary)
	})

	// --- 運用エンドポイント ---
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	return r
}
