package fetch

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Session はフェッチで共有するHTTPクライアントとCookieの状態を保持する。
// Resetで保持しているCookieとアイドル接続を破棄できる。
// http.CookieJarを実装し、内部のjarを差し替えてもクライアントは変更しない。
type Session struct {
	client *http.Client

	mu  sync.RWMutex
	jar *cookiejar.Jar
}

// NewSession はclientにリセット可能なCookie jarを設定したSessionを生成する。
func NewSession(client *http.Client) (*Session, error) {
	jar, err := newJar()
	if err != nil {
		return nil, err
	}
	s := &Session{client: client, jar: jar}
	client.Jar = s
	return s, nil
}

// Client はフェッチに使用するHTTPクライアントを返す。
func (s *Session) Client() *http.Client {
	return s.client
}

// SetCookies はhttp.CookieJarを実装する。
func (s *Session) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.RLock()
	jar := s.jar
	s.mu.RUnlock()
	jar.SetCookies(u, cookies)
}

// Cookies はhttp.CookieJarを実装する。
func (s *Session) Cookies(u *url.URL) []*http.Cookie {
	s.mu.RLock()
	jar := s.jar
	s.mu.RUnlock()
	return jar.Cookies(u)
}

// Reset はCookieを全て破棄し、アイドル接続を閉じる。
func (s *Session) Reset() error {
	jar, err := newJar()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.jar = jar
	s.mu.Unlock()

	s.client.CloseIdleConnections()
	return nil
}

func newJar() (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jarの生成に失敗: %w", err)
	}
	return jar, nil
}
