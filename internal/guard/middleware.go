package guard

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/techbirds/hospital-web-hub/internal/middleware"
	"github.com/techbirds/hospital-web-hub/internal/model"
	"github.com/techbirds/hospital-web-hub/internal/session"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var profileContextKey = contextKey("profile")

// StateSource は現在の認証状態を提供するインターフェース。
// session.Storeの部分集合として定義する。
type StateSource interface {
	Snapshot() session.State
}

// Presenter は判定結果ごとのHTML描画を提供するインターフェース。
type Presenter interface {
	RenderLoading(w http.ResponseWriter, r *http.Request)
	RenderProfileSetup(w http.ResponseWriter, r *http.Request)
	RenderAccessDenied(w http.ResponseWriter, r *http.Request, actualRole model.Role)
}

// Recorder は判定結果のメトリクス記録を提供するインターフェース。
type Recorder interface {
	RecordGuardDecision(outcome string)
}

// Middleware は保護ルートへのアクセス判定をHTTP層に適用する。
type Middleware struct {
	source    StateSource
	presenter Presenter
	recorder  Recorder
	loginPath string
}

// NewMiddleware はガードミドルウェアを生成する。recorderはnilでもよい。
func NewMiddleware(source StateSource, presenter Presenter, recorder Recorder) *Middleware {
	return &Middleware{
		source:    source,
		presenter: presenter,
		recorder:  recorder,
		loginPath: "/login",
	}
}

// RequireRoles はHTMLページ向けのガードミドルウェアを返す。
// 未認証の場合は元のリクエスト先をredirectクエリに保持してサインインページへ転送する。
// 通過時はプロフィールをリクエストコンテキストに注入する。
func (m *Middleware) RequireRoles(requiredRoles ...model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := m.source.Snapshot()
			decision := Decide(state, requiredRoles)
			m.record(decision)

			switch decision.Outcome {
			case OutcomeLoading:
				m.presenter.RenderLoading(w, r)
			case OutcomeSignInRedirect:
				target := m.loginPath + "?redirect=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusFound)
			case OutcomeProfileSetup:
				m.presenter.RenderProfileSetup(w, r)
			case OutcomeAccessDenied:
				m.presenter.RenderAccessDenied(w, r, decision.ActualRole)
			case OutcomeContent:
				next.ServeHTTP(w, r.WithContext(contextWithProfile(r.Context(), state.Profile)))
			}
		})
	}
}

// RequireRolesAPI はJSON API向けのガードミドルウェアを返す。
// HTMLページと同じ順序付き規則を適用し、結果をステータスコードで表現する。
func (m *Middleware) RequireRolesAPI(requiredRoles ...model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := m.source.Snapshot()
			decision := Decide(state, requiredRoles)
			m.record(decision)

			switch decision.Outcome {
			case OutcomeLoading:
				w.Header().Set("Retry-After", "1")
				middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
					Code:     "SESSION_RESOLVING",
					Message:  "セッションを確認しています。",
					Category: "transient",
					Action:   "しばらく待ってから再度お試しください。",
				})
			case OutcomeSignInRedirect:
				middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
			case OutcomeProfileSetup:
				middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewProfileIncompleteError())
			case OutcomeAccessDenied:
				middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewAccessDeniedError(decision.ActualRole))
			case OutcomeContent:
				next.ServeHTTP(w, r.WithContext(contextWithProfile(r.Context(), state.Profile)))
			}
		})
	}
}

func (m *Middleware) record(decision Decision) {
	if m.recorder != nil {
		m.recorder.RecordGuardDecision(decision.Outcome.String())
	}
}

// ProfileFromContext はリクエストコンテキストからプロフィールを取得する。
// ガードミドルウェアを通過したリクエストでのみ有効。
func ProfileFromContext(ctx context.Context) (*model.Profile, error) {
	profile, ok := ctx.Value(profileContextKey).(*model.Profile)
	if !ok || profile == nil {
		return nil, fmt.Errorf("profile not found in context")
	}
	return profile, nil
}

// contextWithProfile はコンテキストにプロフィールを注入する。
func contextWithProfile(ctx context.Context, profile *model.Profile) context.Context {
	return context.WithValue(ctx, profileContextKey, profile)
}

// ContextWithProfile はテスト用にコンテキストへプロフィールを注入する。
func ContextWithProfile(ctx context.Context, profile *model.Profile) context.Context {
	return contextWithProfile(ctx, profile)
}
