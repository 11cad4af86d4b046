// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, profile, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidAction       = "INVALID_ACTION"
	ErrCodeControllerStopped   = "CONTROLLER_STOPPED"
	ErrCodeRateLimited         = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeServerFailure       = "SERVER_FAILURE"
	ErrCodeUnclassifiedFailure = "UNCLASSIFIED_FAILURE"
)

// NewInvalidActionError は未知のアクション名に対するエラーを生成する。
func NewInvalidActionError(action string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAction,
		Message:  fmt.Sprintf("無効なアクションです: %s", action),
		Category: "validation",
		Action:   "アクションには next、previous、refresh のいずれかを指定してください。",
	}
}

// NewControllerStoppedError はコントローラ停止後のアクション送信に対するエラーを生成する。
func NewControllerStoppedError() *APIError {
	return &APIError{
		Code:     ErrCodeControllerStopped,
		Message:  "プロフィールコントローラは停止しています。",
		Category: "system",
		Action:   "アプリケーションを再起動してください。",
	}
}

// NewRateLimitError はレート制限超過のエラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterに示された秒数を待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// FetchErrorKind はフェッチ失敗の種別。閉じた集合として扱う。
type FetchErrorKind int

const (
	// InvalidRequest はリクエスト先URLを構築できなかったことを示す。
	InvalidRequest FetchErrorKind = iota + 1
	// ResourceNotFound は指定IDのユーザーが存在しないこと（404）を示す。
	ResourceNotFound
	// ServerFailure は通信エラーまたは5xxを示す。
	ServerFailure
	// UnclassifiedFailure はデコード失敗を含むその他の失敗を示す。
	UnclassifiedFailure
)

// String は種別名を返す。メトリクスのラベルやログに使用する。
func (k FetchErrorKind) String() string {
	switch k {
	case InvalidRequest:
		return "invalid_request"
	case ResourceNotFound:
		return "resource_not_found"
	case ServerFailure:
		return "server_failure"
	case UnclassifiedFailure:
		return "unclassified_failure"
	default:
		return "unknown"
	}
}

// ユーザー向けの固定メッセージ。
const (
	MessageInvalidRequest      = "Internal Errror refresh and Try Again!!!"
	MessageResourceNotFound    = "The User doesn't exist, refresh and Try Again!!!"
	MessageServerFailure       = "Please check your internet connection  and try again!!!"
	MessageUnclassifiedFailure = "Something went wrong refresh and Try Again!!!"
)

// FetchError はプロフィール取得の失敗を表す。
// Messageは種別ごとに固定であり、Causeはログ出力用にのみ保持する。
type FetchError struct {
	Kind     FetchErrorKind
	Code     string
	Message  string
	Category string
	Action   string
	Cause    error
}

// Error はerrorインターフェースを実装する。
func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因となったエラーを返す。
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Is は種別が同じFetchErrorを同一とみなす。
// errors.Is(err, NewNotFoundError(nil)) のように種別判定に使う。
func (e *FetchError) Is(target error) bool {
	t, ok := target.(*FetchError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewFetchError は種別に対応するFetchErrorを生成する。
func NewFetchError(kind FetchErrorKind, cause error) *FetchError {
	switch kind {
	case InvalidRequest:
		return NewInvalidRequestError(cause)
	case ResourceNotFound:
		return NewNotFoundError(cause)
	case ServerFailure:
		return NewServerFailureError(cause)
	default:
		return NewUnclassifiedError(cause)
	}
}

// NewInvalidRequestError はリクエスト構築失敗エラーを生成する。
func NewInvalidRequestError(cause error) *FetchError {
	return &FetchError{
		Kind:     InvalidRequest,
		Code:     ErrCodeInvalidRequest,
		Message:  MessageInvalidRequest,
		Category: "system",
		Action:   "Refreshで最初のユーザーから読み込み直してください。",
		Cause:    cause,
	}
}

// NewNotFoundError はユーザー未検出エラーを生成する。
func NewNotFoundError(cause error) *FetchError {
	return &FetchError{
		Kind:     ResourceNotFound,
		Code:     ErrCodeUserNotFound,
		Message:  MessageResourceNotFound,
		Category: "profile",
		Action:   "Refreshで最初のユーザーに戻ってください。",
		Cause:    cause,
	}
}

// NewServerFailureError は通信失敗・サーバーエラーを生成する。
func NewServerFailureError(cause error) *FetchError {
	return &FetchError{
		Kind:     ServerFailure,
		Code:     ErrCodeServerFailure,
		Message:  MessageServerFailure,
		Category: "system",
		Action:   "ネットワーク接続を確認し、Refreshしてください。",
		Cause:    cause,
	}
}

// NewUnclassifiedError は分類不能な失敗のエラーを生成する。
func NewUnclassifiedError(cause error) *FetchError {
	return &FetchError{
		Kind:     UnclassifiedFailure,
		Code:     ErrCodeUnclassifiedFailure,
		Message:  MessageUnclassifiedFailure,
		Category: "system",
		Action:   "しばらく待ってからRefreshしてください。",
		Cause:    cause,
	}
}
