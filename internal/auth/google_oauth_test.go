package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestGoogleOAuthProvider_GetLoginURL(t *testing.T) {
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "g-client",
		RedirectURL: "https://portal.example.com/auth/google/callback",
	})

	u, err := url.Parse(provider.GetLoginURL("st-1"))
	if err != nil {
		t.Fatalf("login URL is not parseable: %v", err)
	}
	if got := u.Scheme + "://" + u.Host + u.Path; got != googleAuthorizeURL {
		t.Errorf("endpoint = %q, want %q", got, googleAuthorizeURL)
	}

	q := u.Query()
	want := map[string]string{
		"client_id":     "g-client",
		"redirect_uri":  "https://portal.example.com/auth/google/callback",
		"response_type": "code",
		"scope":         "openid email profile",
		"prompt":        "select_account",
		"state":         "st-1",
	}
	for key, value := range want {
		if got := q.Get(key); got != value {
			t.Errorf("%s = %q, want %q", key, got, value)
		}
	}
}

// newGoogleStub はトークンとプロフィールのエンドポイントを模したサーバーを返す。
func newGoogleStub(t *testing.T, tokenStatus int, profile map[string]any) *GoogleOAuthProvider {
	t.Helper()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		if got := r.PostForm.Get("client_secret"); got != "g-secret" {
			t.Errorf("client_secret = %q, want g-secret", got)
		}
		if tokenStatus != http.StatusOK {
			w.WriteHeader(tokenStatus)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "g-token", "token_type": "Bearer"})
	}))
	t.Cleanup(tokenServer.Close)

	profileServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer g-token" {
			t.Errorf("Authorization = %q, want Bearer g-token", got)
		}
		if profile == nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(profile)
	}))
	t.Cleanup(profileServer.Close)

	return NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "g-client",
		ClientSecret: "g-secret",
		TokenURL:     tokenServer.URL,
		UserInfoURL:  profileServer.URL,
	})
}

func TestGoogleOAuthProvider_ExchangeCode(t *testing.T) {
	tests := []struct {
		name      string
		profile   map[string]any
		wantID    string
		wantEmail string
	}{
		{
			name:      "確認済みメール",
			profile:   map[string]any{"sub": "g-1", "email": "ada@gmail.com", "email_verified": true, "name": "Ada"},
			wantID:    "g-1",
			wantEmail: "ada@gmail.com",
		},
		{
			name:      "email_verifiedなし",
			profile:   map[string]any{"sub": "g-1", "email": "ada@gmail.com", "name": "Ada"},
			wantID:    "g-1",
			wantEmail: "ada@gmail.com",
		},
		{
			name:      "未確認メールは欠落扱い",
			profile:   map[string]any{"sub": "g-1", "email": "ada@gmail.com", "email_verified": false},
			wantID:    "g-1",
			wantEmail: "",
		},
		{
			name:      "subなしはエラーにしない",
			profile:   map[string]any{"email": "ada@gmail.com"},
			wantID:    "",
			wantEmail: "ada@gmail.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newGoogleStub(t, http.StatusOK, tt.profile)

			info, err := provider.ExchangeCode(t.Context(), "g-code")
			if err != nil {
				t.Fatalf("ExchangeCode() error = %v", err)
			}
			if info.Provider != "google" {
				t.Errorf("provider = %q, want google", info.Provider)
			}
			if info.ProviderUserID != tt.wantID {
				t.Errorf("providerUserID = %q, want %q", info.ProviderUserID, tt.wantID)
			}
			if info.Email != tt.wantEmail {
				t.Errorf("email = %q, want %q", info.Email, tt.wantEmail)
			}
		})
	}
}

func TestGoogleOAuthProvider_ExchangeCode_Failures(t *testing.T) {
	t.Run("トークン交換の失敗", func(t *testing.T) {
		provider := newGoogleStub(t, http.StatusBadRequest, nil)
		if _, err := provider.ExchangeCode(t.Context(), "used-code"); err == nil {
			t.Error("expected error when token endpoint rejects the code")
		}
	})

	t.Run("プロフィール取得の失敗", func(t *testing.T) {
		provider := newGoogleStub(t, http.StatusOK, nil)
		if _, err := provider.ExchangeCode(t.Context(), "g-code"); err == nil {
			t.Error("expected error when profile endpoint rejects the token")
		}
	})
}
