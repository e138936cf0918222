package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/techbirds/hospital-web-hub/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// categoryはmodel.APIErrorのカテゴリ（auth / validation / contact / system / transient）を
// そのまま透過し、フロントエンドは表示方法（再ログイン誘導、フォームエラー、トースト等）の
// 選択に使う。actionはユーザーにそのまま提示できる対処方法。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// toResponseBody はドメインのAPIErrorをレスポンスボディに変換する。
func toResponseBody(apiErr *model.APIError) ErrorResponseBody {
	return ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// 認証API・お問い合わせAPI・ガードのJSON経路すべてが同じフォーマットを返す。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(toResponseBody(apiErr)); err != nil {
		slog.Error("failed to encode error response",
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()),
		)
	}
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalServerError())
}
