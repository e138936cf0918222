// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// センチネルエラー。サービス層とバックエンド実装が共有する。
var (
	// ErrInvalidCredentials はメールアドレスまたはパスワードの不一致を示す。
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrNotAuthenticated は認証されていない状態での操作を示す。
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrEmailAlreadyRegistered は登録済みメールアドレスでのサインアップを示す。
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	// ErrProfileNotFound はプロフィールレコードの未存在を示す。
	ErrProfileNotFound = errors.New("profile not found")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, contact, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeNotAuthenticated   = "NOT_AUTHENTICATED"
	ErrCodeAccessDenied       = "ACCESS_DENIED"
	ErrCodeProfileIncomplete  = "PROFILE_INCOMPLETE"
	ErrCodeEmailRegistered    = "EMAIL_REGISTERED"
	ErrCodeInvalidRole        = "INVALID_ROLE"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeUpdateFailed       = "UPDATE_FAILED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// NewInvalidCredentialsError は認証失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewNotAuthenticatedError は未認証エラーを生成する。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインページからサインインしてください。",
	}
}

// NewAccessDeniedError はロール不一致によるアクセス拒否エラーを生成する。
// 実際のロールをメッセージに含める。
func NewAccessDeniedError(actual Role) *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  fmt.Sprintf("このページを閲覧する権限がありません（現在のロール: %s）。", actual),
		Category: "auth",
		Action:   "権限のあるアカウントでログインし直してください。",
	}
}

// NewProfileIncompleteError はプロフィール未設定エラーを生成する。
func NewProfileIncompleteError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileIncomplete,
		Message:  "プロフィールの設定が完了していません。",
		Category: "auth",
		Action:   "ログインし直すか、管理者にお問い合わせください。",
	}
}

// NewEmailRegisteredError は登録済みメールアドレスエラーを生成する。
func NewEmailRegisteredError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailRegistered,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインページからサインインしてください。",
	}
}

// NewInvalidRoleError は未定義ロールエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("無効なロールです: %s", role),
		Category: "validation",
		Action:   "定義済みのロールを指定してください。",
	}
}

// NewInvalidInputError は入力検証エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInternalServerError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalServerError() *APIError {
	return &APIError{
		Code:     ErrCodeInternalError,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUpdateFailedError はプロフィール更新失敗エラーを生成する。
func NewUpdateFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeUpdateFailed,
		Message:  "プロフィールの更新に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
