// Package local はデモアカウントの固定テーブルに基づくローカルモックIDバックエンドを提供する。
// トークンはbase64エンコードされたJSONであり署名を持たない。
// ローカル開発・デモ専用であり、本番での使用は想定していない。
package local

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/techbirds/hospital-web-hub/internal/model"
)

// ErrTokenExpired はトークンの有効期限切れを示す。
var ErrTokenExpired = errors.New("token expired")

// tokenPayload はローカルトークンのJSONペイロード。
type tokenPayload struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Exp   int64  `json:"exp"` // UNIX秒の絶対有効期限
}

// MintToken はサブジェクトID・メールアドレス・ロールと有効期限からトークンを生成する。
func MintToken(subjectID, email string, role model.Role, expiresAt time.Time) string {
	payload := tokenPayload{
		Sub:   subjectID,
		Email: email,
		Role:  string(role),
		Exp:   expiresAt.Unix(),
	}
	// 固定構造体のMarshalは失敗しない
	b, _ := json.Marshal(payload)
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeToken はトークンを検証つきでデコードする。
// 有効期限が過ぎている場合はErrTokenExpiredを返す。
// 期限切れトークンを有効として扱うことは決してない。
func DecodeToken(token string, now time.Time) (subjectID, email string, role model.Role, err error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", "", "", fmt.Errorf("malformed token: %w", err)
	}

	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", "", "", fmt.Errorf("malformed token payload: %w", err)
	}

	if payload.Exp <= now.Unix() {
		return "", "", "", ErrTokenExpired
	}

	parsedRole, ok := model.ParseRole(payload.Role)
	if !ok {
		return "", "", "", fmt.Errorf("unknown role in token: %s", payload.Role)
	}

	return payload.Sub, payload.Email, parsedRole, nil
}
