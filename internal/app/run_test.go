package app

import (
	"bytes"
	"testing"
)

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	t.Setenv("BASE_URL", "")

	var buf bytes.Buffer
	err := Run(&buf, []string{"serve"})
	if err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

func TestRun_RemoteBackendWithoutURL_ReturnsError(t *testing.T) {
	setTestEnv(t)
	t.Setenv("AUTH_BACKEND", "remote")
	t.Setenv("REMOTE_AUTH_URL", "")

	var buf bytes.Buffer
	err := Run(&buf, []string{"serve"})
	if err == nil {
		t.Fatal("Run(serve) with remote backend but no URL should return error")
	}
}

func TestRun_InvalidBackend_ReturnsError(t *testing.T) {
	setTestEnv(t)
	t.Setenv("AUTH_BACKEND", "saml")

	var buf bytes.Buffer
	err := Run(&buf, []string{"serve"})
	if err == nil {
		t.Fatal("Run(serve) with unknown backend should return error")
	}
}

// TestRun_AuthServerWithoutDB_ReturnsError はauthserverコマンドが
// DATABASE_URL等の必須設定を検証することを確認する。
func TestRun_AuthServerWithoutDB_ReturnsError(t *testing.T) {
	setTestEnv(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AUTH_JWT_SECRET", "")

	var buf bytes.Buffer
	err := Run(&buf, []string{"authserver"})
	if err == nil {
		t.Fatal("Run(authserver) without DB config should return error")
	}
}

func TestRun_MigrateWithoutDB_ReturnsError(t *testing.T) {
	setTestEnv(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AUTH_JWT_SECRET", "")

	var buf bytes.Buffer
	err := Run(&buf, []string{"migrate"})
	if err == nil {
		t.Fatal("Run(migrate) without DB config should return error")
	}
}

// TestRun_Healthcheck_NoServer_ReturnsError はヘルスチェックが
// サーバー未起動時にエラーを返すことを確認する。
func TestRun_Healthcheck_NoServer_ReturnsError(t *testing.T) {
	// 未使用と思われるポートを指定する
	t.Setenv("SERVER_PORT", "59999")

	var buf bytes.Buffer
	err := Run(&buf, []string{"healthcheck"})
	if err == nil {
		t.Fatal("Run(healthcheck) without a running server should return error")
	}
}

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BASE_URL", "http://localhost:8080")
	t.Setenv("AUTH_BACKEND", "local")
}
