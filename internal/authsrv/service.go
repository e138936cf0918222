// Package authsrv は開発・セルフホスト用のアカウントサービスを提供する。
// 公開サイトのリモートバックエンドが話すHTTP契約を実装し、
// アカウントとプロフィールをPostgreSQLに永続化する。
package authsrv

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/techbirds/hospital-web-hub/internal/model"
	"github.com/techbirds/hospital-web-hub/internal/repository"
)

// Service はアカウントの認証・登録とプロフィール管理を提供する。
// アクセストークンは署名付きJWTで、サーバー側にセッション状態を持たない。
type Service struct {
	accounts repository.AccountRepository
	profiles repository.ProfileRepository
	hasher   *Hasher
	issuer   *TokenIssuer
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(accounts repository.AccountRepository, profiles repository.ProfileRepository, hasher *Hasher, issuer *TokenIssuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		accounts: accounts,
		profiles: profiles,
		hasher:   hasher,
		issuer:   issuer,
		logger:   logger,
	}
}

// SignIn はメールアドレスとパスワードを検証し、アクセストークンを発行する。
// アカウント未存在とパスワード不一致は区別せずErrInvalidCredentialsを返す。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if account == nil {
		return nil, model.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(account.PasswordHash, password); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	return s.issueSession(account)
}

// SignUp は新規アカウントを作成し、アクセストークンを発行する。
// メールアドレスが登録済みの場合はErrEmailAlreadyRegisteredを返す。
func (s *Service) SignUp(ctx context.Context, email, password string) (*model.Session, error) {
	existing, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if existing != nil {
		return nil, model.ErrEmailAlreadyRegistered
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &model.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account created", slog.String("subject_id", account.ID))
	return s.issueSession(account)
}

// CurrentUser はアクセストークンを検証し、対応するセッションを返す。
// トークンが無効な場合はErrInvalidTokenを返す。
func (s *Service) CurrentUser(ctx context.Context, token string) (*model.Session, error) {
	subjectID, email, err := s.issuer.Validate(token)
	if err != nil {
		return nil, err
	}

	// アカウントが削除済みならトークンが有効でも拒否する
	account, err := s.accounts.FindByID(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if account == nil {
		return nil, ErrInvalidToken
	}

	return &model.Session{
		SubjectID:   subjectID,
		Email:       email,
		AccessToken: token,
	}, nil
}

// FetchProfile はサブジェクトIDでプロフィールを取得する。
func (s *Service) FetchProfile(ctx context.Context, subjectID string) (*model.Profile, error) {
	profile, err := s.profiles.FindBySubjectID(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	if profile == nil {
		return nil, model.ErrProfileNotFound
	}
	return profile, nil
}

// CreateProfile はプロフィールを作成する。IDが未設定の場合は採番する。
func (s *Service) CreateProfile(ctx context.Context, profile *model.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now()
	}
	profile.UpdatedAt = time.Now()

	if err := s.profiles.Create(ctx, profile); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// UpdateProfileAttributes は部分属性セットをプロフィールにマージする。
func (s *Service) UpdateProfileAttributes(ctx context.Context, subjectID string, partial map[string]string) error {
	return s.profiles.UpdateAttributes(ctx, subjectID, partial)
}

// issueSession はアカウントに対するアクセストークンを発行する。
func (s *Service) issueSession(account *model.Account) (*model.Session, error) {
	token, expiresAt, err := s.issuer.Issue(account.ID, account.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &model.Session{
		SubjectID:   account.ID,
		Email:       account.Email,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}
