package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultLinkedInAuthURL    = "https://www.linkedin.com/oauth/v2/authorization"
	defaultLinkedInTokenURL   = "https://www.linkedin.com/oauth/v2/accessToken"
	defaultLinkedInProfileURL = "https://api.linkedin.com/v2/me"
	defaultLinkedInEmailURL   = "https://api.linkedin.com/v2/emailAddress?q=members&projection=(elements*(handle~))"
)

// LinkedInOAuthConfig はLinkedIn OAuthプロバイダーの設定。
type LinkedInOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	HTTPClient   *http.Client

	// テスト用にオーバーライド可能なURL
	AuthURL    string
	TokenURL   string
	ProfileURL string
	EmailURL   string
}

// LinkedInOAuthProvider はLinkedIn OAuth 2.0による認証を提供する。
// プロフィールとメールアドレスは別エンドポイントから取得する。
type LinkedInOAuthProvider struct {
	config LinkedInOAuthConfig
}

// NewLinkedInOAuthProvider はLinkedInOAuthProviderを生成する。
func NewLinkedInOAuthProvider(config LinkedInOAuthConfig) *LinkedInOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultLinkedInAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultLinkedInTokenURL
	}
	if config.ProfileURL == "" {
		config.ProfileURL = defaultLinkedInProfileURL
	}
	if config.EmailURL == "" {
		config.EmailURL = defaultLinkedInEmailURL
	}
	return &LinkedInOAuthProvider{config: config}
}

// Name はプロバイダー名を返す。
func (p *LinkedInOAuthProvider) Name() string { return "linkedin" }

// GetLoginURL はLinkedInの認証URLを生成する。
func (p *LinkedInOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"r_liteprofile r_emailaddress"},
		"state":         {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

type linkedInProfile struct {
	ID                 string `json:"id"`
	LocalizedFirstName string `json:"localizedFirstName"`
	LocalizedLastName  string `json:"localizedLastName"`
}

type linkedInEmailResponse struct {
	Elements []struct {
		Handle struct {
			EmailAddress string `json:"emailAddress"`
		} `json:"handle~"`
	} `json:"elements"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、プロフィールとメールアドレスを取得する。
func (p *LinkedInOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	// LinkedInはclient_secret_post方式
	accessToken, err := exchangeAuthorizationCode(ctx, p.config.HTTPClient, p.config.TokenURL, url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	var profile linkedInProfile
	if err := fetchJSON(ctx, p.config.HTTPClient, p.config.ProfileURL, accessToken, &profile); err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	var emails linkedInEmailResponse
	if err := fetchJSON(ctx, p.config.HTTPClient, p.config.EmailURL, accessToken, &emails); err != nil {
		return nil, fmt.Errorf("failed to fetch email address: %w", err)
	}

	var email string
	if len(emails.Elements) > 0 {
		email = emails.Elements[0].Handle.EmailAddress
	}

	return &OAuthUserInfo{
		ProviderUserID: profile.ID,
		Email:          email,
		Name:           strings.TrimSpace(profile.LocalizedFirstName + " " + profile.LocalizedLastName),
		Provider:       p.Name(),
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*LinkedInOAuthProvider)(nil)
