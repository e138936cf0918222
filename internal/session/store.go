package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/techbirds/hospital-web-hub/internal/model"
)

// State はストアが公開する認証状態のスナップショット。
// Loadingは初期化の最初の解決前、およびSignIn/SignUp実行中のみtrueとなる。
type State struct {
	Identity *model.Identity
	Profile  *model.Profile
	Loading  bool
}

// Store は「誰がログインしていて、どのロールを持つか」の単一の信頼できる情報源。
// 明示的に構築・注入されるインスタンスであり、Initialize/Disposeのライフサイクルを持つ。
//
// 非同期完了（プロフィール取得、セッション変更通知）は世代カウンタで保護され、
// 古い世代の完了は適用されずに破棄される。これにより変更通知と手動サインインの
// 競合は「後勝ち」ではなく「新しい操作勝ち」として確定する。
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu          sync.Mutex
	identity    *model.Identity
	profile     *model.Profile
	loading     bool
	gen         uint64
	unsubscribe func()
	disposed    bool
}

// NewStore はStoreを生成する。Initializeが解決するまでloadingはtrue。
func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		logger:  logger,
		loading: true,
	}
}

// Snapshot は現在の(identity, profile, loading)を返す。
// 返される値はコピーであり、呼び出し元が変更してもストアには影響しない。
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Identity: cloneIdentity(s.identity),
		Profile:  s.profile.Clone(),
		Loading:  s.loading,
	}
}

// Initialize は起動時に1回呼び出され、既存セッションの復元を試みる。
// ローカルバックエンドでは保存済みトークンから同期的に復元し、
// リモートバックエンドでは既存セッション問い合わせとプロフィール取得を行う。
// プロフィール取得の失敗はログに記録されるのみで、エラーとしては返さない。
// セッション変更通知の購読もここで開始する。
func (s *Store) Initialize(ctx context.Context) error {
	g := s.begin()

	sess, err := s.backend.CurrentSession(ctx)
	if err != nil {
		// セッション解決失敗は「未ログイン」として扱う
		s.logger.Warn("session resolution failed",
			slog.String("backend", string(s.backend.Kind())),
			slog.String("error", err.Error()),
		)
		s.apply(g, nil, nil)
		s.settle(g)
	} else if sess == nil {
		s.apply(g, nil, nil)
		s.settle(g)
	} else {
		// Identityを確定させてからプロフィールを取得する
		identity := s.identityFromSession(sess)
		s.apply(g, identity, nil)

		profile := s.fetchProfile(ctx, sess.SubjectID)
		s.apply(g, identity, profile)
		s.settle(g)
	}

	// セッション変更通知の購読（リモートバックエンドのみ意味を持つ）
	unsubscribe := s.backend.OnSessionChange(func(changed *model.Session) {
		s.handleSessionChange(changed)
	})

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		unsubscribe()
		return nil
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	return nil
}

// SignIn はメールアドレスとパスワードで認証する。
// 成功時はIdentityとProfileがひとつの更新として設定されるため、
// ガードが「identityあり・profileなし」の中間状態を観測することはない。
// 認証失敗時はエラーを返し、既存の状態は変更しない。
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	g := s.begin()

	sess, err := s.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.settle(g)
		return err
	}

	profile := s.provisionAndFetchProfile(ctx, sess)

	s.apply(g, s.identityFromSession(sess), profile)
	s.settle(g)
	return nil
}

// SignUp は新規アカウントを作成し、部分属性をマージしたプロフィールを作成する。
// アカウント作成成功後のプロフィール作成失敗はロールバックせず、
// エラーをそのまま返す（孤児アカウントは手動照合に委ねる）。
func (s *Store) SignUp(ctx context.Context, email, password string, partial map[string]string) error {
	g := s.begin()

	sess, err := s.backend.SignUp(ctx, email, password)
	if err != nil {
		s.settle(g)
		return err
	}

	identity := s.identityFromSession(sess)

	newProfile := &model.Profile{
		SubjectID:  sess.SubjectID,
		Email:      sess.Email,
		Role:       model.RolePatient,
		IsActive:   true,
		Attributes: partial,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := s.backend.CreateProfile(ctx, newProfile); err != nil {
		// アカウントは作成済み。Identityは設定し、プロフィールは欠落のままとする。
		s.apply(g, identity, nil)
		s.settle(g)
		return fmt.Errorf("failed to create profile: %w", err)
	}

	profile := s.fetchProfile(ctx, sess.SubjectID)
	s.apply(g, identity, profile)
	s.settle(g)
	return nil
}

// SignOut はIdentityとProfileを無条件に即座にクリアする。
// バックエンドの呼び出しが失敗してもクリアは取り消されない（ログのみ）。
// 既にサインアウト済みの場合は冪等に何もしない。
func (s *Store) SignOut(ctx context.Context) {
	s.mu.Lock()
	s.gen++
	s.identity = nil
	s.profile = nil
	s.loading = false
	s.mu.Unlock()

	if err := s.backend.SignOut(ctx); err != nil {
		s.logger.Warn("backend sign-out failed",
			slog.String("backend", string(s.backend.Kind())),
			slog.String("error", err.Error()),
		)
	}
}

// UpdateProfile は部分属性セットをバックエンドに永続化し、
// 成功時のみ同じ属性セットをメモリ上のProfileに楽観的にマージする。
// 失敗時はメモリ上のProfileを変更せず、エラーを返す。
// Identityが存在しない場合は何もしない。
func (s *Store) UpdateProfile(ctx context.Context, partial map[string]string) error {
	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return nil
	}
	subjectID := s.identity.SubjectID
	g := s.gen
	s.mu.Unlock()

	if err := s.backend.UpdateProfile(ctx, subjectID, partial); err != nil {
		s.logger.Error("profile update failed",
			slog.String("subject_id", subjectID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to update profile: %w", err)
	}

	s.mu.Lock()
	if g == s.gen && s.profile != nil {
		s.profile = s.profile.MergeAttributes(partial)
	}
	s.mu.Unlock()
	return nil
}

// Dispose はセッション変更通知の購読を解除する。
// テストや複数インスタンス利用でのリスナーリークを防ぐ。
func (s *Store) Dispose() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.disposed = true
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// handleSessionChange はバックエンドからのセッション変更通知を処理する。
// Identityを再導出し、サインイン時と同じプロフィール取得シーケンスを実行する。
// 通知より新しい操作（手動サインイン等）が始まっていた場合、結果は破棄される。
func (s *Store) handleSessionChange(sess *model.Session) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.gen++
	g := s.gen
	s.mu.Unlock()

	if sess == nil {
		s.apply(g, nil, nil)
		return
	}

	identity := s.identityFromSession(sess)
	s.apply(g, identity, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	profile := s.fetchProfile(ctx, sess.SubjectID)
	s.apply(g, identity, profile)
}

// provisionAndFetchProfile はプロフィールを取得する。
// 初回ログインでレコードが存在しない場合は、ロールpatient・有効状態の
// デフォルトプロフィールを作成してから取得し直す。
func (s *Store) provisionAndFetchProfile(ctx context.Context, sess *model.Session) *model.Profile {
	profile, err := s.backend.FetchProfileBySubjectID(ctx, sess.SubjectID)
	if err == nil {
		return profile
	}

	if errors.Is(err, model.ErrProfileNotFound) {
		defaultProfile := &model.Profile{
			SubjectID: sess.SubjectID,
			Email:     sess.Email,
			Role:      model.RolePatient,
			IsActive:  true,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if createErr := s.backend.CreateProfile(ctx, defaultProfile); createErr != nil {
			s.logger.Error("failed to create default profile",
				slog.String("subject_id", sess.SubjectID),
				slog.String("error", createErr.Error()),
			)
			return nil
		}
		return s.fetchProfile(ctx, sess.SubjectID)
	}

	s.logger.Error("profile fetch failed",
		slog.String("subject_id", sess.SubjectID),
		slog.String("error", err.Error()),
	)
	return nil
}

// fetchProfile はプロフィールを取得する。失敗時はログに記録してnilを返す。
func (s *Store) fetchProfile(ctx context.Context, subjectID string) *model.Profile {
	profile, err := s.backend.FetchProfileBySubjectID(ctx, subjectID)
	if err != nil {
		s.logger.Error("profile fetch failed",
			slog.String("subject_id", subjectID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return profile
}

// begin は新しい操作世代を開始し、loadingをtrueにする。
func (s *Store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.loading = true
	return s.gen
}

// apply は世代gが現在の世代である場合のみ、identityとprofileを設定する。
// 古い世代の完了は破棄される。
func (s *Store) apply(g uint64, identity *model.Identity, profile *model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g != s.gen {
		return
	}
	s.identity = identity
	s.profile = profile
}

// settle は世代gが現在の世代である場合のみ、loadingをfalseにする。
func (s *Store) settle(g uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g != s.gen {
		return
	}
	s.loading = false
}

// identityFromSession はセッションからIdentityを導出する。
func (s *Store) identityFromSession(sess *model.Session) *model.Identity {
	return &model.Identity{
		SubjectID: sess.SubjectID,
		Backend:   s.backend.Kind(),
	}
}

func cloneIdentity(i *model.Identity) *model.Identity {
	if i == nil {
		return nil
	}
	clone := *i
	return &clone
}
