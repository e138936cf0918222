package model

import "time"

// Account はアカウントサービスが管理する認証アカウント。
// パスワードハッシュを保持するのはアカウントサービスのみであり、
// 公開サイト側のセッション層には渡らない。
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
