package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Auth backend
	AuthBackend     string // "local" または "remote"
	RemoteAuthURL   string
	RemoteAuthKey   string
	TokenFile       string        // ローカルバックエンドのトークン永続化先ファイル（空ならメモリのみ）
	SessionTokenTTL time.Duration // ローカルトークンの有効期間
	SessionPoll     time.Duration // リモートセッション変更の監視間隔
	RemoteTimeout   time.Duration // リモートバックエンド呼び出しのタイムアウト

	// Auth server（開発用アカウントサービス）
	DatabaseURL    string
	AuthJWTSecret  string
	AccessTokenTTL time.Duration
	AuthServerPort string

	// Roadmap
	RoadmapFeedURL string

	// Rate Limit
	RateLimitGeneral int
	RateLimitLogin   int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// バックエンド種別の設定値。
const (
	AuthBackendLocal  = "local"
	AuthBackendRemote = "remote"
)

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// AUTH_BACKEND=remoteの場合はREMOTE_AUTH_URLも必須となる。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.AuthBackend = getEnvString("AUTH_BACKEND", AuthBackendLocal)
	if cfg.AuthBackend != AuthBackendLocal && cfg.AuthBackend != AuthBackendRemote {
		return nil, fmt.Errorf("invalid AUTH_BACKEND: %q (expected %q or %q)",
			cfg.AuthBackend, AuthBackendLocal, AuthBackendRemote)
	}

	cfg.RemoteAuthURL = os.Getenv("REMOTE_AUTH_URL")
	cfg.RemoteAuthKey = os.Getenv("REMOTE_AUTH_KEY")
	if cfg.AuthBackend == AuthBackendRemote && cfg.RemoteAuthURL == "" {
		missing = append(missing, "REMOTE_AUTH_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TokenFile = getEnvString("TOKEN_FILE", "")
	cfg.SessionTokenTTL = getEnvDuration("SESSION_TOKEN_TTL", 7*24*time.Hour)
	cfg.SessionPoll = getEnvDuration("SESSION_POLL_INTERVAL", 30*time.Second)
	cfg.RemoteTimeout = getEnvDuration("REMOTE_AUTH_TIMEOUT", 10*time.Second)
	cfg.DatabaseURL = getEnvString("DATABASE_URL", "")
	cfg.AuthJWTSecret = getEnvString("AUTH_JWT_SECRET", "")
	cfg.AccessTokenTTL = getEnvDuration("ACCESS_TOKEN_TTL", 1*time.Hour)
	cfg.AuthServerPort = getEnvString("AUTH_SERVER_PORT", "8081")
	cfg.RoadmapFeedURL = getEnvString("ROADMAP_FEED_URL", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// ValidateAuthServer はauthserver/migrateモードで追加的に必要な設定を検証する。
func (c *Config) ValidateAuthServer() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.AuthJWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set for authserver: %v", missing)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
