// Package security は外向き通信の制限と入力テキストの無害化を提供する。
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

// SSRFGuardService は外部IdPとメール送信APIへの通信に使うクライアントを提供する。
type SSRFGuardService interface {
	// NewSafeClient は接続時に解決後のIPを検証するクライアントを返す。
	NewSafeClient(timeout time.Duration) *http.Client
	// ValidateURL は設定されたエンドポイントを起動時に静的検証する。
	ValidateURL(rawURL string) error
}

// outboundPort は外向き通信で許可する唯一のポート。
const outboundPort = 443

// blockedPrefixes はValidateURLで拒否するアドレス範囲。
// 接続時の検証はsafeurl側の既定リストで行う。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

var errEmptyURL = errors.New("empty URL")

type ssrfGuard struct{}

// NewSSRFGuard はSSRFGuardServiceを生成する。
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{}
}

// NewSafeClient はhttps/443のみ許可したsafeurlクライアントを返す。
// DNS再バインディングはDialerのControlフックで防がれる。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(outboundPort).
		Build()
	return safeurl.Client(cfg).Client
}

func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return errEmptyURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return fmt.Errorf("outbound URL must use https: %q", rawURL)
	}

	host := u.Hostname()
	switch {
	case host == "":
		return fmt.Errorf("empty host in URL: %q", rawURL)
	case isInternalHostname(host):
		return fmt.Errorf("blocked host: %s", host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, p := range blockedPrefixes {
			if p.Contains(addr) {
				return fmt.Errorf("blocked IP address: %s", addr)
			}
		}
	}
	return nil
}

// isInternalHostname はクラスタ内部やローカルを指すホスト名かどうかを返す。
func isInternalHostname(host string) bool {
	h := strings.TrimSuffix(strings.ToLower(host), ".")
	return h == "localhost" || strings.HasSuffix(h, ".localhost") || strings.HasSuffix(h, ".internal")
}
