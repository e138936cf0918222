// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/techbirds/hospital-web-hub/internal/authsrv"
	"github.com/techbirds/hospital-web-hub/internal/changelog"
	"github.com/techbirds/hospital-web-hub/internal/clinic"
	"github.com/techbirds/hospital-web-hub/internal/config"
	"github.com/techbirds/hospital-web-hub/internal/database"
	"github.com/techbirds/hospital-web-hub/internal/guard"
	"github.com/techbirds/hospital-web-hub/internal/handler"
	"github.com/techbirds/hospital-web-hub/internal/logger"
	"github.com/techbirds/hospital-web-hub/internal/metrics"
	"github.com/techbirds/hospital-web-hub/internal/middleware"
	"github.com/techbirds/hospital-web-hub/internal/repository"
	"github.com/techbirds/hospital-web-hub/internal/security"
	"github.com/techbirds/hospital-web-hub/internal/session"
	"github.com/techbirds/hospital-web-hub/internal/session/local"
	"github.com/techbirds/hospital-web-hub/internal/session/remote"
)

// changelogCacheTTL はロードマップフィードのキャッシュ有効期間。
const changelogCacheTTL = 15 * time.Minute

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandAuthServer:
		return runAuthServer(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe は公開サイトのサーバーモードで起動する。
// 設定に応じたバックエンドでセッションストアを構築・初期化し、
// 全依存関係をワイヤリングしてHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. メトリクス
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 2. セッションバックエンドの選択
	backend, err := buildBackend(cfg)
	if err != nil {
		return err
	}

	// 3. セッションストアの構築と初期化
	store := session.NewStore(backend, slog.Default())
	defer store.Dispose()

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	started := time.Now()
	if err := store.Initialize(initCtx); err != nil {
		cancelInit()
		return fmt.Errorf("session store initialization failed: %w", err)
	}
	cancelInit()
	collector.RecordSessionResolution(time.Since(started))

	slog.Info("session store initialized",
		slog.String("backend", cfg.AuthBackend),
		slog.Duration("elapsed", time.Since(started)),
	)

	// 4. ロードマップフィード（任意設定）
	var changelogSource handler.ChangelogSource
	if cfg.RoadmapFeedURL != "" {
		changelogSource = changelog.NewService(
			cfg.RoadmapFeedURL,
			security.NewSSRFGuard(),
			security.NewContentSanitizer(),
			slog.Default(),
			changelogCacheTTL,
		)
	}

	// 5. ハンドラーの構築
	pages, err := handler.NewPageHandler(clinic.NewDataset(), changelogSource, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to build page handler: %w", err)
	}

	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Pages:             pages,
		Auth:              handler.NewAuthHandler(store, collector, slog.Default()),
		Contact:           handler.NewContactHandler(handler.NewContactStore(), security.NewContentSanitizer(), collector, slog.Default()),
		Guard:             guard.NewMiddleware(store, pages, collector),
		RateLimiter:       rateLimiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CookieSecure:      cfg.CookieSecure,
		MetricsHandler:    metrics.Handler(reg),
		Logger:            slog.Default(),
	}

	return serveHTTP(":"+cfg.ServerPort, handler.NewRouter(deps))
}

// buildBackend は設定に応じたセッションバックエンドを構築する。
func buildBackend(cfg *config.Config) (session.Backend, error) {
	switch cfg.AuthBackend {
	case config.AuthBackendRemote:
		return remote.NewBackend(remote.Config{
			BaseURL:      cfg.RemoteAuthURL,
			APIKey:       cfg.RemoteAuthKey,
			Timeout:      cfg.RemoteTimeout,
			PollInterval: cfg.SessionPoll,
		}, slog.Default()), nil
	case config.AuthBackendLocal:
		var tokenStore local.TokenStore
		if cfg.TokenFile != "" {
			tokenStore = local.NewFileTokenStore(cfg.TokenFile)
		} else {
			tokenStore = local.NewMemoryTokenStore()
		}
		return local.NewBackend(tokenStore, cfg.SessionTokenTTL), nil
	default:
		return nil, fmt.Errorf("unknown auth backend: %q", cfg.AuthBackend)
	}
}

// rateLimiterConfig は設定値（req/min単位）をレートリミッター設定に変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rlCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rlCfg.GeneralRate = rateLimitPerMinute(cfg.RateLimitGeneral)
		rlCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitLogin > 0 {
		rlCfg.LoginRate = rateLimitPerMinute(cfg.RateLimitLogin)
		rlCfg.LoginBurst = cfg.RateLimitLogin
	}
	return rlCfg
}

func rateLimitPerMinute(perMin int) rate.Limit {
	return rate.Limit(float64(perMin) / 60.0)
}

// runAuthServer は開発用アカウントサービスモードで起動する。
// DB接続を開き、アカウント・プロフィールAPIを提供する。
func runAuthServer(cfg *config.Config) error {
	if err := cfg.ValidateAuthServer(); err != nil {
		return err
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	accountRepo := repository.NewPostgresAccountRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)

	service := authsrv.NewService(
		accountRepo,
		profileRepo,
		authsrv.NewHasher(0),
		authsrv.NewTokenIssuer(cfg.AuthJWTSecret, cfg.AccessTokenTTL),
		slog.Default(),
	)

	return serveHTTP(":"+cfg.AuthServerPort, authsrv.NewRouter(service, slog.Default()))
}

// runMigrate はアカウントサービスのデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config) error {
	if err := cfg.ValidateAuthServer(); err != nil {
		return err
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// serveHTTP はHTTPサーバーを起動し、シグナル受信でグレースフルシャットダウンする。
func serveHTTP(addr string, router http.Handler) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
