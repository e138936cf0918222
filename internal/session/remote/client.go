// Package remote はリモートアカウントサービスに接続するIDバックエンドを提供する。
// サービスのHTTP APIに対するクライアントであり、アクセストークンを
// プロセス内に保持してセッションを表現する。
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/techbirds/hospital-web-hub/internal/model"
)

// Config はリモートバックエンドの接続設定。
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration // 各HTTP呼び出しのタイムアウト
	PollInterval time.Duration // セッション変更監視の間隔
}

// Backend はリモートアカウントサービスへのHTTPクライアント実装。
type Backend struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
	poll       time.Duration

	mu          sync.Mutex
	accessToken string
}

// NewBackend はリモートバックエンドを生成する。
// ハングしたバックエンド呼び出しがloadingを永久にtrueのままにしないよう、
// HTTPクライアントにはタイムアウトを必ず設定する。
func NewBackend(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 30 * time.Second
	}
	return &Backend{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		poll:       poll,
	}
}

// Kind はバックエンド種別を返す。
func (b *Backend) Kind() model.BackendKind {
	return model.BackendRemote
}

// sessionResponse はアカウントサービスのセッションレスポンス。
type sessionResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// profilePayload はアカウントサービスのプロフィール表現。
type profilePayload struct {
	ID         string            `json:"id"`
	SubjectID  string            `json:"subject_id"`
	Email      string            `json:"email"`
	Role       string            `json:"role"`
	IsActive   bool              `json:"is_active"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// CurrentSession は保持中のアクセストークンでセッションの有効性を問い合わせる。
// トークンがない・無効な場合は「セッションなし」としてnilを返す。
func (b *Backend) CurrentSession(ctx context.Context) (*model.Session, error) {
	token := b.currentToken()
	if token == "" {
		return nil, nil
	}

	req, err := b.newRequest(ctx, http.MethodGet, "/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query current session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		b.setToken("")
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("account service returned status %d", resp.StatusCode)
	}

	var sr sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}
	if sr.AccessToken == "" {
		sr.AccessToken = token
	}
	return b.toSession(sr), nil
}

// OnSessionChange はポーリングによるセッション変更監視を開始する。
// サブジェクトIDの変化（ログイン、ログアウト、別アカウントへの切替）を検知すると
// コールバックを呼び出す。返される関数で監視を停止する。
func (b *Backend) OnSessionChange(fn func(*model.Session)) func() {
	stop := make(chan struct{})

	go func() {
		ticker := time.NewTicker(b.poll)
		defer ticker.Stop()

		var lastSubject string
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), b.httpClient.Timeout)
				sess, err := b.CurrentSession(ctx)
				cancel()
				if err != nil {
					b.logger.Warn("session poll failed", slog.String("error", err.Error()))
					continue
				}

				subject := ""
				if sess != nil {
					subject = sess.SubjectID
				}
				if subject != lastSubject {
					lastSubject = subject
					fn(sess)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stop) })
	}
}

// SignInWithPassword はパスワードグラントでサインインし、トークンを保持する。
func (b *Backend) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	body := map[string]string{"email": email, "password": password}

	var sr sessionResponse
	status, err := b.doJSON(ctx, http.MethodPost, "/auth/v1/token", body, &sr)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		b.setToken(sr.AccessToken)
		return b.toSession(sr), nil
	case http.StatusUnauthorized, http.StatusBadRequest:
		return nil, model.ErrInvalidCredentials
	default:
		return nil, fmt.Errorf("account service returned status %d", status)
	}
}

// SignUp は新規アカウントを作成し、発行されたセッションを保持する。
func (b *Backend) SignUp(ctx context.Context, email, password string) (*model.Session, error) {
	body := map[string]string{"email": email, "password": password}

	var sr sessionResponse
	status, err := b.doJSON(ctx, http.MethodPost, "/auth/v1/signup", body, &sr)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK, http.StatusCreated:
		b.setToken(sr.AccessToken)
		return b.toSession(sr), nil
	case http.StatusConflict:
		return nil, model.ErrEmailAlreadyRegistered
	default:
		return nil, fmt.Errorf("account service returned status %d", status)
	}
}

// SignOut はサービス側のセッションを破棄し、保持中のトークンを捨てる。
// サービス呼び出しが失敗してもトークンは破棄される。
func (b *Backend) SignOut(ctx context.Context) error {
	token := b.currentToken()
	b.setToken("")
	if token == "" {
		return nil
	}

	req, err := b.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("account service returned status %d", resp.StatusCode)
	}
	return nil
}

// FetchProfileBySubjectID はサブジェクトIDでプロフィールを取得する。
func (b *Backend) FetchProfileBySubjectID(ctx context.Context, subjectID string) (*model.Profile, error) {
	var pp profilePayload
	status, err := b.doJSON(ctx, http.MethodGet, "/rest/v1/profiles/"+subjectID, nil, &pp)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return toProfile(pp)
	case http.StatusNotFound:
		return nil, model.ErrProfileNotFound
	default:
		return nil, fmt.Errorf("account service returned status %d", status)
	}
}

// CreateProfile はプロフィールレコードを作成する。
func (b *Backend) CreateProfile(ctx context.Context, profile *model.Profile) error {
	body := profilePayload{
		SubjectID:  profile.SubjectID,
		Email:      profile.Email,
		Role:       string(profile.Role),
		IsActive:   profile.IsActive,
		Attributes: profile.Attributes,
	}
	status, err := b.doJSON(ctx, http.MethodPost, "/rest/v1/profiles", body, nil)
	if err != nil {
		return err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return fmt.Errorf("account service returned status %d", status)
	}
	return nil
}

// UpdateProfile は部分属性セットをサブジェクトIDで永続化する。
func (b *Backend) UpdateProfile(ctx context.Context, subjectID string, partial map[string]string) error {
	status, err := b.doJSON(ctx, http.MethodPatch, "/rest/v1/profiles/"+subjectID, map[string]any{"attributes": partial}, nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return model.ErrProfileNotFound
	default:
		return fmt.Errorf("account service returned status %d", status)
	}
}

// toSession はセッションレスポンスをmodel.Sessionに変換する。
// サブジェクトIDや有効期限がレスポンスに欠けている場合は、
// アクセストークンのクレーム（sub/exp）から署名検証なしで補完する。
// 署名の検証はサービス側の責務であり、クライアント側では行わない。
func (b *Backend) toSession(sr sessionResponse) *model.Session {
	sess := &model.Session{
		SubjectID:   sr.User.ID,
		Email:       sr.User.Email,
		AccessToken: sr.AccessToken,
		ExpiresAt:   sr.ExpiresAt,
	}

	if sess.SubjectID != "" && !sess.ExpiresAt.IsZero() {
		return sess
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(sr.AccessToken, claims); err != nil {
		return sess
	}
	if sess.SubjectID == "" {
		if sub, err := claims.GetSubject(); err == nil {
			sess.SubjectID = sub
		}
	}
	if sess.ExpiresAt.IsZero() {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			sess.ExpiresAt = exp.Time
		}
	}
	return sess
}

// doJSON はJSONリクエストを送信し、ステータスコードとデコード済みレスポンスを返す。
// outがnilの場合、レスポンスボディは破棄される。
func (b *Backend) doJSON(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := b.newRequest(ctx, method, path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := b.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("account service request failed: %w", err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

func (b *Backend) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "HospitalWebHub/1.0")
	if b.apiKey != "" {
		req.Header.Set("apikey", b.apiKey)
	}
	return req, nil
}

func (b *Backend) currentToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accessToken
}

func (b *Backend) setToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessToken = token
}

// toProfile はプロフィールペイロードをドメインモデルに変換する。
func toProfile(pp profilePayload) (*model.Profile, error) {
	role, ok := model.ParseRole(pp.Role)
	if !ok {
		return nil, fmt.Errorf("unknown role in profile: %s", pp.Role)
	}
	return &model.Profile{
		ID:         pp.ID,
		SubjectID:  pp.SubjectID,
		Email:      pp.Email,
		Role:       role,
		IsActive:   pp.IsActive,
		Attributes: pp.Attributes,
		CreatedAt:  pp.CreatedAt,
		UpdatedAt:  pp.UpdatedAt,
	}, nil
}
