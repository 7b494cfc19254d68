package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const (
	defaultMicrosoftTenant     = "common"
	microsoftLoginBaseURL      = "https://login.microsoftonline.com/"
	defaultMicrosoftProfileURL = "https://graph.microsoft.com/v1.0/me"
)

// MicrosoftOAuthConfig はMicrosoft（Entra ID）OAuthプロバイダーの設定。
type MicrosoftOAuthConfig struct {
	ClientID     string
	ClientSecret string
	TenantID     string // 空の場合は"common"
	RedirectURL  string
	HTTPClient   *http.Client

	// テスト用にオーバーライド可能なURL
	AuthURL    string
	TokenURL   string
	ProfileURL string
}

// MicrosoftOAuthProvider はMicrosoft identity platform v2.0による認証を提供する。
type MicrosoftOAuthProvider struct {
	config MicrosoftOAuthConfig
}

// NewMicrosoftOAuthProvider はMicrosoftOAuthProviderを生成する。
func NewMicrosoftOAuthProvider(config MicrosoftOAuthConfig) *MicrosoftOAuthProvider {
	if config.TenantID == "" {
		config.TenantID = defaultMicrosoftTenant
	}
	base := microsoftLoginBaseURL + url.PathEscape(config.TenantID) + "/oauth2/v2.0"
	if config.AuthURL == "" {
		config.AuthURL = base + "/authorize"
	}
	if config.TokenURL == "" {
		config.TokenURL = base + "/token"
	}
	if config.ProfileURL == "" {
		config.ProfileURL = defaultMicrosoftProfileURL
	}
	return &MicrosoftOAuthProvider{config: config}
}

// Name はプロバイダー名を返す。
func (p *MicrosoftOAuthProvider) Name() string { return "microsoft" }

// GetLoginURL はMicrosoftの認証URLを生成する。
func (p *MicrosoftOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"response_mode": {"query"},
		"scope":         {"openid email profile User.Read"},
		"state":         {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// microsoftProfile はMicrosoft Graph /me のレスポンス。
type microsoftProfile struct {
	ID                string `json:"id"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	DisplayName       string `json:"displayName"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、Graphからプロフィールを取得する。
// mailが空の場合はuserPrincipalNameをメールアドレスとして扱う。
func (p *MicrosoftOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	accessToken, err := exchangeAuthorizationCode(ctx, p.config.HTTPClient, p.config.TokenURL, url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
		"scope":         {"openid email profile User.Read"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	var profile microsoftProfile
	if err := fetchJSON(ctx, p.config.HTTPClient, p.config.ProfileURL, accessToken, &profile); err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	email := profile.Mail
	if email == "" {
		email = profile.UserPrincipalName
	}

	return &OAuthUserInfo{
		ProviderUserID: profile.ID,
		Email:          email,
		Name:           profile.DisplayName,
		Provider:       p.Name(),
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*MicrosoftOAuthProvider)(nil)
