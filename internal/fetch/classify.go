package fetch

import "github.com/hitoshi/profileman/internal/model"

// FetchResult はHTTPステータスコードに基づくフェッチ結果の分類。
type FetchResult int

const (
	// FetchResultOK はフェッチ成功（200）。ボディのデコードに進む。
	FetchResultOK FetchResult = iota
	// FetchResultNotFound はユーザーが存在しない（404）。
	FetchResultNotFound
	// FetchResultServerError はサーバーエラー（5xx）。
	FetchResultServerError
	// FetchResultUnknown は上記以外のステータスコード。
	FetchResultUnknown
)

// ClassifyHTTPStatus はHTTPステータスコードをフェッチ結果に分類する。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	switch {
	case statusCode == 200:
		return FetchResultOK
	case statusCode == 404:
		return FetchResultNotFound
	case statusCode >= 500 && statusCode <= 599:
		return FetchResultServerError
	default:
		return FetchResultUnknown
	}
}

// ErrorKind は失敗に分類された結果に対応するエラー種別を返す。
// FetchResultOKに対しては0を返す。
func (r FetchResult) ErrorKind() model.FetchErrorKind {
	switch r {
	case FetchResultOK:
		return 0
	case FetchResultNotFound:
		return model.ResourceNotFound
	case FetchResultServerError:
		return model.ServerFailure
	default:
		return model.UnclassifiedFailure
	}
}
