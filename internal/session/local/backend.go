package local

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/techbirds/hospital-web-hub/internal/model"
)

// ErrSignUpNotSupported はローカルバックエンドでのサインアップ試行を示す。
var ErrSignUpNotSupported = errors.New("sign-up is not supported on the local demo backend")

// demoPassword は全デモアカウント共通のパスワード。
const demoPassword = "demo123"

// demoAccount はデモテーブルの1アカウント。
type demoAccount struct {
	subjectID string
	email     string
	role      model.Role
	attrs     map[string]string
}

// demoAccounts は固定のデモアカウントテーブル。
var demoAccounts = []demoAccount{
	{
		subjectID: "demo-admin",
		email:     "admin@demo.com",
		role:      model.RoleAdmin,
		attrs:     map[string]string{"display_name": "デモ管理者", "clinic": "中央総合病院"},
	},
	{
		subjectID: "demo-doctor",
		email:     "doctor@demo.com",
		role:      model.RoleDoctor,
		attrs:     map[string]string{"display_name": "デモ医師", "clinic": "中央総合病院", "department": "内科"},
	},
	{
		subjectID: "demo-receptionist",
		email:     "receptionist@demo.com",
		role:      model.RoleReceptionist,
		attrs:     map[string]string{"display_name": "デモ受付", "clinic": "中央総合病院"},
	},
	{
		subjectID: "demo-patient",
		email:     "patient@demo.com",
		role:      model.RolePatient,
		attrs:     map[string]string{"display_name": "デモ患者"},
	},
}

// Backend はデモアカウントの固定テーブルとローカルトークンに基づくIDバックエンド。
// IdentityとProfileは常に同時に確立されるため、
// 「identityあり・profileなし」の状態はこのバックエンドでは発生しない。
type Backend struct {
	store    TokenStore
	tokenTTL time.Duration
	now      func() time.Time

	// overrides はUpdateProfile/CreateProfileによるプロセス内の属性上書きを保持する。
	mu        sync.Mutex
	overrides map[string]map[string]string
}

// NewBackend はローカルバックエンドを生成する。
// storeがnilの場合はメモリのみのTokenStoreを使用する。
func NewBackend(store TokenStore, tokenTTL time.Duration) *Backend {
	if store == nil {
		store = NewMemoryTokenStore()
	}
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	return &Backend{
		store:     store,
		tokenTTL:  tokenTTL,
		now:       time.Now,
		overrides: make(map[string]map[string]string),
	}
}

// Kind はバックエンド種別を返す。
func (b *Backend) Kind() model.BackendKind {
	return model.BackendLocal
}

// CurrentSession は保存済みトークンからセッションを復元する。
// トークンが存在しない・期限切れ・不正な場合はストアをクリアし、
// エラーではなく「セッションなし」として扱う。
func (b *Backend) CurrentSession(ctx context.Context) (*model.Session, error) {
	token := b.store.Get(KeyToken)
	if token == "" {
		return nil, nil
	}

	subjectID, email, _, err := DecodeToken(token, b.now())
	if err != nil {
		b.clearToken()
		return nil, nil
	}

	return &model.Session{
		SubjectID:   subjectID,
		Email:       email,
		AccessToken: token,
	}, nil
}

// OnSessionChange は変更通知を提供しないため、何もしないunsubscribe関数を返す。
func (b *Backend) OnSessionChange(fn func(*model.Session)) func() {
	return func() {}
}

// SignInWithPassword はデモテーブルをメールアドレスで大文字小文字を区別せずに検索し、
// パスワードが一致すれば新しいトークンを発行して永続化する。
func (b *Backend) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	account := findAccount(email)
	if account == nil || password != demoPassword {
		return nil, model.ErrInvalidCredentials
	}

	expiresAt := b.now().Add(b.tokenTTL)
	token := MintToken(account.subjectID, account.email, account.role, expiresAt)

	if err := b.store.Set(KeyToken, token); err != nil {
		return nil, err
	}
	if err := b.store.Set(KeyEmail, account.email); err != nil {
		return nil, err
	}

	return &model.Session{
		SubjectID:   account.subjectID,
		Email:       account.email,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

// SignUp はローカルバックエンドではサポートしない。
func (b *Backend) SignUp(ctx context.Context, email, password string) (*model.Session, error) {
	return nil, ErrSignUpNotSupported
}

// SignOut は保存済みトークンを削除する。
func (b *Backend) SignOut(ctx context.Context) error {
	b.clearToken()
	return nil
}

// FetchProfileBySubjectID はデモテーブルからプロフィールを構築して返す。
// プロセス内で更新された属性があればマージする。
func (b *Backend) FetchProfileBySubjectID(ctx context.Context, subjectID string) (*model.Profile, error) {
	for _, account := range demoAccounts {
		if account.subjectID != subjectID {
			continue
		}

		attrs := make(map[string]string, len(account.attrs))
		for k, v := range account.attrs {
			attrs[k] = v
		}
		b.mu.Lock()
		for k, v := range b.overrides[subjectID] {
			attrs[k] = v
		}
		b.mu.Unlock()

		return &model.Profile{
			ID:         account.subjectID,
			SubjectID:  account.subjectID,
			Email:      account.email,
			Role:       account.role,
			IsActive:   true,
			Attributes: attrs,
		}, nil
	}
	return nil, model.ErrProfileNotFound
}

// CreateProfile はプロフィール作成を属性上書きとして記録する。
// デモテーブル外のサブジェクトに対する作成は受け付けない。
func (b *Backend) CreateProfile(ctx context.Context, profile *model.Profile) error {
	if findAccountBySubject(profile.SubjectID) == nil {
		return model.ErrProfileNotFound
	}
	b.setOverrides(profile.SubjectID, profile.Attributes)
	return nil
}

// UpdateProfile は部分属性をプロセス内の上書きテーブルにマージする。
func (b *Backend) UpdateProfile(ctx context.Context, subjectID string, partial map[string]string) error {
	if findAccountBySubject(subjectID) == nil {
		return model.ErrProfileNotFound
	}
	b.setOverrides(subjectID, partial)
	return nil
}

func (b *Backend) setOverrides(subjectID string, partial map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.overrides[subjectID] == nil {
		b.overrides[subjectID] = make(map[string]string, len(partial))
	}
	for k, v := range partial {
		b.overrides[subjectID][k] = v
	}
}

func (b *Backend) clearToken() {
	// 削除失敗はトークンなしと同義のため無視する
	_ = b.store.Delete(KeyToken)
	_ = b.store.Delete(KeyEmail)
}

func findAccount(email string) *demoAccount {
	for i := range demoAccounts {
		if strings.EqualFold(demoAccounts[i].email, email) {
			return &demoAccounts[i]
		}
	}
	return nil
}

func findAccountBySubject(subjectID string) *demoAccount {
	for i := range demoAccounts {
		if demoAccounts[i].subjectID == subjectID {
			return &demoAccounts[i]
		}
	}
	return nil
}
