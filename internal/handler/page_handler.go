// Package handler は公開サイトのHTTPハンドラーを提供する。
package handler

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/techbirds/hospital-web-hub/internal/changelog"
	"github.com/techbirds/hospital-web-hub/internal/clinic"
	"github.com/techbirds/hospital-web-hub/internal/guard"
	"github.com/techbirds/hospital-web-hub/internal/model"
)

//go:embed views/*.html
var viewsFS embed.FS

// ChangelogSource はロードマップページが必要とするフィードサービスのインターフェース。
type ChangelogSource interface {
	Entries(ctx context.Context) ([]changelog.Entry, error)
}

// PageHandler はマーケティングページとダッシュボードのHTML描画を担う。
// ガードミドルウェアのPresenterとしても機能する。
type PageHandler struct {
	templates *template.Template
	clinic    *clinic.Dataset
	changelog ChangelogSource // nilの場合、ロードマップはプレースホルダー表示
	logger    *slog.Logger
}

// ガードのPresenterインターフェースを満たすことをコンパイル時に保証する。
var _ guard.Presenter = (*PageHandler)(nil)

// viewData は全テンプレートで共有する描画データ。
// ページごとに必要なフィールドのみ設定する。
type viewData struct {
	Title        string
	Redirect     string
	Entries      []changelog.Entry
	ActualRole   model.Role
	Profile      *model.Profile
	DisplayName  string
	Summary      clinic.Summary
	Appointments []clinic.Appointment
}

// NewPageHandler はPageHandlerを生成する。changelogはnilでもよい。
func NewPageHandler(dataset *clinic.Dataset, changelogSource ChangelogSource, logger *slog.Logger) (*PageHandler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tmpl, err := template.ParseFS(viewsFS, "views/*.html")
	if err != nil {
		return nil, err
	}
	return &PageHandler{
		templates: tmpl,
		clinic:    dataset,
		changelog: changelogSource,
		logger:    logger,
	}, nil
}

// Home はトップページを描画する。
// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, "home.html", viewData{Title: "ホーム"})
}

// Product は製品紹介ページを描画する。
// GET /product
func (h *PageHandler) Product(w http.ResponseWriter, r *http.Request) {
	h.render(w, "product.html", viewData{Title: "製品"})
}

// Specialties は診療科別ソリューションページを描画する。
// GET /specialties
func (h *PageHandler) Specialties(w http.ResponseWriter, r *http.Request) {
	h.render(w, "specialties.html", viewData{Title: "診療科別ソリューション"})
}

// Roadmap はロードマップページを描画する。
// フィードの取得に失敗してもページ自体は表示する。
// GET /roadmap
func (h *PageHandler) Roadmap(w http.ResponseWriter, r *http.Request) {
	data := viewData{Title: "ロードマップ"}
	if h.changelog != nil {
		entries, err := h.changelog.Entries(r.Context())
		if err != nil {
			h.logger.Warn("changelog feed unavailable", slog.String("error", err.Error()))
		} else {
			data.Entries = entries
		}
	}
	h.render(w, "roadmap.html", data)
}

// Contact はお問い合わせフォームを描画する。
// GET /contact
func (h *PageHandler) Contact(w http.ResponseWriter, r *http.Request) {
	h.render(w, "contact.html", viewData{Title: "お問い合わせ"})
}

// Login はログインページを描画する。
// ガードが付与したredirectクエリをフォームに引き継ぐ。
// GET /login
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login.html", viewData{
		Title:    "ログイン",
		Redirect: r.URL.Query().Get("redirect"),
	})
}

// DashboardHospital は病院ダッシュボードを描画する。
func (h *PageHandler) DashboardHospital(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, "dashboard_hospital.html", "病院ダッシュボード", true)
}

// DashboardDental は歯科ダッシュボードを描画する。
func (h *PageHandler) DashboardDental(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, "dashboard_dental.html", "歯科ダッシュボード", false)
}

// DashboardAesthetic は美容クリニックダッシュボードを描画する。
func (h *PageHandler) DashboardAesthetic(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, "dashboard_aesthetic.html", "美容クリニックダッシュボード", false)
}

// DashboardPatient は患者ポータルを描画する。
func (h *PageHandler) DashboardPatient(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, "dashboard_patient.html", "患者ポータル", true)
}

// DashboardStaff はスタッフ管理ダッシュボードを描画する。
func (h *PageHandler) DashboardStaff(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, "dashboard_staff.html", "スタッフ管理", false)
}

// RenderLoading はセッション解決中の待機ページを描画する。
func (h *PageHandler) RenderLoading(w http.ResponseWriter, r *http.Request) {
	h.render(w, "loading.html", viewData{Title: "読み込み中"})
}

// RenderProfileSetup はプロフィール設定ページを描画する。
func (h *PageHandler) RenderProfileSetup(w http.ResponseWriter, r *http.Request) {
	h.render(w, "profile_setup.html", viewData{Title: "プロフィール設定"})
}

// RenderAccessDenied はアクセス拒否ページを実際のロール付きで描画する。
func (h *PageHandler) RenderAccessDenied(w http.ResponseWriter, r *http.Request, actualRole model.Role) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	h.render(w, "access_denied.html", viewData{
		Title:      "アクセス拒否",
		ActualRole: actualRole,
	})
}

// renderDashboard はコンテキストのプロフィールとデモ診療データでダッシュボードを描画する。
func (h *PageHandler) renderDashboard(w http.ResponseWriter, r *http.Request, name, title string, withAppointments bool) {
	profile, err := guard.ProfileFromContext(r.Context())
	if err != nil {
		// ガードを通過していないルート設定ミス
		h.logger.Error("dashboard rendered without guard", slog.String("path", r.URL.Path))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data := viewData{
		Title:       title,
		Profile:     profile,
		DisplayName: displayName(profile),
		Summary:     h.clinic.Summarize(),
	}
	if withAppointments {
		data.Appointments = h.clinic.Appointments()
	}
	h.render(w, name, data)
}

// ClinicSummary は診療サマリーをJSONで返す。
// GET /api/clinic/summary（病院ロールのガード付き）
func (h *PageHandler) ClinicSummary(w http.ResponseWriter, r *http.Request) {
	summary := h.clinic.Summarize()

	type departmentCount struct {
		Department string `json:"department"`
		Count      int    `json:"count"`
	}
	resp := struct {
		TodayAppointments int               `json:"today_appointments"`
		DoneCount         int               `json:"done_count"`
		CancelledCount    int               `json:"cancelled_count"`
		Departments       []departmentCount `json:"departments"`
	}{
		TodayAppointments: summary.TodayAppointments,
		DoneCount:         summary.DoneCount,
		CancelledCount:    summary.CancelledCount,
	}
	for _, d := range summary.Departments {
		resp.Departments = append(resp.Departments, departmentCount{Department: d.Department, Count: d.Count})
	}

	writeJSON(w, http.StatusOK, resp)
}

// render はテンプレートを実行する。失敗時は500を返す。
func (h *PageHandler) render(w http.ResponseWriter, name string, data viewData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("template execution failed",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// displayName はプロフィールの表示名を返す。未設定時はメールアドレスを使う。
func displayName(profile *model.Profile) string {
	if name, ok := profile.Attributes["display_name"]; ok && name != "" {
		return name
	}
	return profile.Email
}
