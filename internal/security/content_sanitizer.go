// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ProfileSanitizerService はリモートAPIから取得したプロフィールの文字列を
// プレーンテキストに正規化し、表示層へのHTML/スクリプト混入を防ぐ。
// bluemondayのStrictPolicyで全タグを除去する。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/profileman/internal/model"
)

// ProfileSanitizerService はプロフィールのサニタイズ機能のインターフェースを定義する。
// JSON応答・HTML表示・TUI表示の前に使用される。
type ProfileSanitizerService interface {
	// SanitizeText はHTMLタグを全て除去したプレーンテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string

	// SanitizeUser はユーザーの各文字列フィールドをサニタイズしたコピーを返す。
	// アバターURLはhttp/httpsの絶対URL以外の場合は空文字列になる。
	SanitizeUser(u model.User) model.User
}

// profileSanitizer はProfileSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに使用できる。
type profileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerServiceの新しいインスタンスを生成する。
func NewProfileSanitizer() *profileSanitizer {
	return &profileSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText はHTMLタグを除去し、エスケープされた実体参照を元の文字に戻す。
// 出力はプレーンテキストとして扱い、HTMLへ埋め込む際は呼び出し側でエスケープする。
func (s *profileSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// SanitizeUser はユーザーの文字列フィールドをサニタイズする。
func (s *profileSanitizer) SanitizeUser(u model.User) model.User {
	return model.User{
		ID:        u.ID,
		Email:     s.SanitizeText(u.Email),
		FirstName: s.SanitizeText(u.FirstName),
		LastName:  s.SanitizeText(u.LastName),
		Avatar:    sanitizeAvatar(u.Avatar),
	}
}

// sanitizeAvatar はhttp/httpsの絶対URLのみを通過させる。
func sanitizeAvatar(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return ""
	}
	if !isAllowedScheme(parsed.Scheme) {
		return ""
	}
	return parsed.String()
}
