// Package session はセッション/認証状態の単一の信頼できる情報源を提供する。
// 交換可能な2つのIDバックエンド（リモートアカウントサービス、ローカルモック）を
// 抽象化し、サインイン/サインアウト/プロフィール更新の統一APIを公開する。
package session

import (
	"context"

	"github.com/techbirds/hospital-web-hub/internal/model"
)

// Backend はIDバックエンドの抽象化インターフェース。
// リモートアカウントサービスとローカルモックの2実装が存在する。
type Backend interface {
	// Kind はバックエンド種別（local/remote）を返す。
	Kind() model.BackendKind

	// CurrentSession は既存セッションを取得する。セッションがない場合はnilを返す。
	// 起動時の復元で1回だけ呼び出される。
	CurrentSession(ctx context.Context) (*model.Session, error)

	// OnSessionChange はセッション変更通知を購読する。
	// 返される関数を呼ぶと購読が解除される。変更通知を提供しない実装は
	// 何もしないunsubscribe関数を返す。
	OnSessionChange(fn func(*model.Session)) (unsubscribe func())

	// SignInWithPassword はメールアドレスとパスワードで認証する。
	// 認証失敗時はmodel.ErrInvalidCredentialsを返す。
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)

	// SignUp は新規アカウントを作成し、セッションを返す。
	SignUp(ctx context.Context, email, password string) (*model.Session, error)

	// SignOut はバックエンド側のセッションを破棄する。
	SignOut(ctx context.Context) error

	// FetchProfileBySubjectID はサブジェクトIDでプロフィールを取得する。
	// レコードが存在しない場合はmodel.ErrProfileNotFoundを返す。
	FetchProfileBySubjectID(ctx context.Context, subjectID string) (*model.Profile, error)

	// CreateProfile はプロフィールレコードを作成する。
	CreateProfile(ctx context.Context, profile *model.Profile) error

	// UpdateProfile は部分的な属性セットをサブジェクトIDで永続化する。
	UpdateProfile(ctx context.Context, subjectID string, partial map[string]string) error
}
