// Package model はドメインモデルを定義する。
package model

import "time"

// BackendKind はIdentityの由来となるバックエンド種別を表す。
type BackendKind string

const (
	// BackendLocal はローカルモックバックエンドを示す。
	BackendLocal BackendKind = "local"
	// BackendRemote はリモートアカウントサービスを示す。
	BackendRemote BackendKind = "remote"
)

// Identity は「誰かがログインしている」という事実を表す。
// 認可属性（ロール等）はProfileが持ち、Identityは認証の事実のみを持つ。
type Identity struct {
	SubjectID string
	Backend   BackendKind
}

// Session はバックエンド固有の認証済み接続の表現。
// Identityはここから導出される。
type Session struct {
	SubjectID   string
	Email       string
	AccessToken string
	ExpiresAt   time.Time
}

// Expired はセッションの有効期限が過ぎているかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
