package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// maxProviderResponseSize はIdPレスポンスの読み込み上限。
const maxProviderResponseSize = 1 << 20

// OAuthUserInfo はOAuthプロバイダーから取得し正規化したユーザー情報を表す。
// EmailやProviderUserIDが空の場合もエラーにはせず、呼び出し側で判定する。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google", "microsoft", "linkedin"
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// Name はプロバイダー名を返す。URLパスとユーザーのproviderタグに使用する。
	Name() string
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ProviderRegistry は有効なプロバイダーを名前で引く。
type ProviderRegistry struct {
	providers map[string]OAuthProvider
}

// NewProviderRegistry はProviderRegistryを生成する。
func NewProviderRegistry(providers ...OAuthProvider) *ProviderRegistry {
	r := &ProviderRegistry{providers: make(map[string]OAuthProvider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get は指定名のプロバイダーを返す。
func (r *ProviderRegistry) Get(name string) (OAuthProvider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names は有効なプロバイダー名を昇順で返す。
func (r *ProviderRegistry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// oauthTokenResponse はトークンエンドポイントの共通レスポンス。
type oauthTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// exchangeAuthorizationCode はauthorization_codeグラントでアクセストークンを取得する。
func exchangeAuthorizationCode(ctx context.Context, client *http.Client, tokenURL string, data url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tokenResp oauthTokenResponse
	if err := doJSON(client, req, &tokenResp); err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}
	return tokenResp.AccessToken, nil
}

// fetchJSON はアクセストークン付きでGETし、JSONをデコードする。
func fetchJSON(ctx context.Context, client *http.Client, endpoint, accessToken string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	return doJSON(client, req, v)
}

func doJSON(client *http.Client, req *http.Request, v any) error {
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
