package model

import (
	"fmt"
	"net/url"
)

// User はリモートAPIから取得するユーザープロフィールを表す。
// イミュータブルな値として扱い、構造的に比較できる。
type User struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Avatar    string `json:"avatar"`
}

// FullName は名と姓を連結した表示名を返す。
func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// AvatarURL はアバター画像の参照をURLとしてパースして返す。
func (u User) AvatarURL() (*url.URL, error) {
	parsed, err := url.Parse(u.Avatar)
	if err != nil {
		return nil, fmt.Errorf("invalid avatar URL: %w", err)
	}
	return parsed, nil
}
