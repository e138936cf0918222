// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/techbirds/hospital-web-hub/internal/model"
)

// AccountRepository はアカウントデータの永続化インターフェース。
type AccountRepository interface {
	// FindByEmail はメールアドレスでアカウントを検索する（大文字小文字を区別しない）。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// Create はアカウントを作成する。
	Create(ctx context.Context, account *model.Account) error
}

// ProfileRepository はプロフィールデータの永続化インターフェース。
type ProfileRepository interface {
	// FindBySubjectID はサブジェクトIDでプロフィールを検索する。見つからない場合はnilを返す。
	FindBySubjectID(ctx context.Context, subjectID string) (*model.Profile, error)

	// Create はプロフィールを作成する。
	Create(ctx context.Context, profile *model.Profile) error

	// UpdateAttributes は部分属性セットを既存属性にマージして保存する。
	// 対象が存在しない場合はmodel.ErrProfileNotFoundを返す。
	UpdateAttributes(ctx context.Context, subjectID string, partial map[string]string) error
}
