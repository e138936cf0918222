// Package guard は保護ルートの描画判定を提供する。
// 判定は純粋関数であり、認証状態のスナップショットと必要ロール集合から
// ただひとつの結果を導出する。
package guard

import (
	"github.com/techbirds/hospital-web-hub/internal/model"
	"github.com/techbirds/hospital-web-hub/internal/session"
)

// Outcome は保護ルートに対する判定結果。
type Outcome int

const (
	// OutcomeLoading は認証状態の解決中を示す。リダイレクトもコンテンツ表示も行わない。
	OutcomeLoading Outcome = iota
	// OutcomeSignInRedirect は未認証を示す。元のリクエスト先を保持してサインインへ誘導する。
	OutcomeSignInRedirect
	// OutcomeProfileSetup は認証済みだがプロフィール未解決の状態を示す。
	OutcomeProfileSetup
	// OutcomeAccessDenied はロール不一致を示す。利用者の実際のロールを提示する。
	OutcomeAccessDenied
	// OutcomeContent は保護コンテンツの表示許可を示す。
	OutcomeContent
)

// String はログ・メトリクス用のラベルを返す。
func (o Outcome) String() string {
	switch o {
	case OutcomeLoading:
		return "loading"
	case OutcomeSignInRedirect:
		return "sign_in_redirect"
	case OutcomeProfileSetup:
		return "profile_setup"
	case OutcomeAccessDenied:
		return "access_denied"
	case OutcomeContent:
		return "content"
	default:
		return "unknown"
	}
}

// Decision は判定結果と付随情報。
type Decision struct {
	Outcome Outcome
	// ActualRole はOutcomeAccessDeniedの場合のみ設定され、
	// アクセス拒否画面に表示する利用者の実際のロールを保持する。
	ActualRole model.Role
}

// Decide は認証状態と必要ロール集合から描画判定を行う。
// 規則は順序付きで、先に一致した規則が勝つ:
//
//  1. 解決中なら他のすべてに優先してloading
//  2. Identityがなければサインインへのリダイレクト
//  3. Profileがなければプロフィール設定の案内
//  4. 必要ロール集合が空でなく、ロールが含まれなければアクセス拒否
//  5. それ以外はコンテンツ表示
//
// 必要ロール集合が空の場合、認証済みかつプロフィール確定済みの利用者は
// ロールに関わらず通過する。
func Decide(state session.State, requiredRoles []model.Role) Decision {
	if state.Loading {
		return Decision{Outcome: OutcomeLoading}
	}
	if state.Identity == nil {
		return Decision{Outcome: OutcomeSignInRedirect}
	}
	if state.Profile == nil {
		return Decision{Outcome: OutcomeProfileSetup}
	}
	if len(requiredRoles) > 0 && !containsRole(requiredRoles, state.Profile.Role) {
		return Decision{Outcome: OutcomeAccessDenied, ActualRole: state.Profile.Role}
	}
	return Decision{Outcome: OutcomeContent}
}

func containsRole(roles []model.Role, role model.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
