// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// SSRFGuardService はプロフィールAPIへのリクエスト先を制限するインターフェース。
type SSRFGuardService interface {
	// NewSafeClient は接続先IPを検証するHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL はリクエスト前にURLを静的に検証する。
	ValidateURL(rawURL string) error
}

var (
	errEmptyURL       = errors.New("empty URL")
	errEmptyHost      = errors.New("empty host")
	errDisallowedHost = errors.New("disallowed host")
)

// sharedAddressSpace はキャリアグレードNAT (RFC 6598)。netipの判定関数では扱われない。
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// ssrfGuard はSSRFGuardServiceの実装。
// allowPrivateがtrueの場合はローカルのモックAPI向けに宛先の制限を外す。
type ssrfGuard struct {
	allowPrivate bool
}

// NewSSRFGuard はssrfGuardを生成する。
func NewSSRFGuard(allowPrivate bool) *ssrfGuard {
	return &ssrfGuard{allowPrivate: allowPrivate}
}

// NewSafeClient はsafeurlのクライアントを返す。
// 接続直前に解決済みIPを検証するため、DNS再バインディングも防ぐ。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	if g.allowPrivate {
		return &http.Client{Timeout: timeout}
	}

	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(cfg).Client
}

// ValidateURL はスキームとホストを検証する。DNS解決は行わない。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return errEmptyURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("disallowed scheme %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return errEmptyHost
	}
	if g.allowPrivate {
		return nil
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isInternalAddr(addr) {
			return fmt.Errorf("%w: %s", errDisallowedHost, addr)
		}
		return nil
	}

	if isLocalHostname(host) {
		return fmt.Errorf("%w: %s", errDisallowedHost, host)
	}
	return nil
}

// isInternalAddr は外部に公開されていないアドレスかどうかを返す。
// リンクローカルにはクラウドのメタデータIP (169.254.169.254) が含まれる。
func isInternalAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified() ||
		(addr.Is4() && addr.As4()[0] == 0) ||
		sharedAddressSpace.Contains(addr)
}

// isLocalHostname はlocalhostとその配下のホスト名かどうかを返す。
func isLocalHostname(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	return host == "localhost" || strings.HasSuffix(host, ".localhost")
}
