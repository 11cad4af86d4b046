package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/profileman/internal/model"
)

// ErrorResponseBody はAPIエラーとフェッチ失敗で共通のエラー表現。
// Kind はフェッチ失敗の場合のみ設定される。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Kind     string `json:"kind,omitempty"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// NewFetchErrorBody はフェッチ失敗を表示用のエラー表現に変換する。
// 原因となったエラーは内部情報を含むため出力しない。
func NewFetchErrorBody(fetchErr *model.FetchError) ErrorResponseBody {
	return ErrorResponseBody{
		Code:     fetchErr.Code,
		Kind:     fetchErr.Kind.String(),
		Message:  fetchErr.Message,
		Category: fetchErr.Category,
		Action:   fetchErr.Action,
	}
}

// WriteJSON はJSONレスポンスを書き込む。ヘッダー送信後のエンコード失敗はエラーとして返す。
func WriteJSON(w http.ResponseWriter, statusCode int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(v)
}

// WriteErrorResponse はAPIエラーをHTTPエラーレスポンスとして書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	_ = WriteJSON(w, statusCode, ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は詳細を伏せた内部エラーを書き込む。詳細は呼び出し側でログに残す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
