package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/confportal/internal/auth"
	"github.com/hitoshi/confportal/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, fullName, email, password string) (*auth.Result, error)
	Login(ctx context.Context, email, password string) (*auth.Result, error)
	Logout(ctx context.Context, tokenID string, expiresAt time.Time) error
	GetLoginURL(provider, state string) (string, error)
	HandleCallback(ctx context.Context, provider, code string) (*auth.Result, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	FrontendURL  string // IdP連携の結果を返すリダイレクト先
	CookieDomain string
	CookieSecure bool
}

// AuthHandler は登録・ログイン・ログアウト・外部IdP連携のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	config.FrontendURL = strings.TrimRight(config.FrontendURL, "/")
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

type registerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse は登録・ログイン成功時のレスポンス。
type authResponse struct {
	Message string        `json:"message"`
	Token   string        `json:"token"`
	User    *userResponse `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register はメールアドレスとパスワードでユーザーを登録する。
// POST /api/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	result, err := h.service.Register(r.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Message: "User registered successfully!",
		Token:   result.Credential.Token,
		User:    toUserResponse(result.User),
	})
}

// Login はメールアドレスとパスワードで認証する。
// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Message: "Logged in successfully!",
		Token:   result.Credential.Token,
		User:    toUserResponse(result.User),
	})
}

// Logout はリクエストのクレデンシャルを失効させる。
// POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	verified, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Logout(r.Context(), verified.TokenID, verified.ExpiresAt); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Successfully logged out!"})
}

// ProviderLogin は外部IdPの認証フローを開始する。
// GET /auth/{provider}
func (h *AuthHandler) ProviderLogin(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		handleServiceError(w, r, err)
		return
	}

	loginURL, err := h.service.GetLoginURL(provider, state)
	if err != nil {
		if errors.Is(err, auth.ErrUnknownProvider) {
			writeAPIErrorResponse(w, &model.APIError{
				Code:     "UNKNOWN_PROVIDER",
				Message:  "指定された認証プロバイダーは利用できません。",
				Category: model.CategoryNotFound,
				Action:   "別のログイン方法を選択してください。",
			})
			return
		}
		handleServiceError(w, r, err)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/" + provider,
		Domain:   h.config.CookieDomain,
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, loginURL, http.StatusTemporaryRedirect)
}

// ProviderCallback は外部IdPからのコールバックを処理し、結果をフロントエンドへリダイレクトで返す。
// GET /auth/{provider}/callback?code=xxx&state=yyy
func (h *AuthHandler) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("provider", provider),
			slog.String("query_state", state),
		)
		h.redirectError(w, r, "InvalidState")
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/auth/" + provider,
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得。IdP側で拒否された場合はerrorパラメータが付く
	code := r.URL.Query().Get("code")
	if code == "" {
		slog.Warn("oauth callback without code",
			slog.String("provider", provider),
			slog.String("error", r.URL.Query().Get("error")),
		)
		h.redirectError(w, r, provider+"AuthFailed")
		return
	}

	// 3. 認証処理
	result, err := h.service.HandleCallback(r.Context(), provider, code)
	if err != nil {
		h.redirectError(w, r, callbackErrorCode(provider, err))
		return
	}

	// 4. フロントエンドにクレデンシャルを渡す
	q := url.Values{}
	q.Set("token", result.Credential.Token)
	q.Set("fullName", result.User.FullName)
	q.Set("email", result.User.Email)
	q.Set("provider", provider)
	http.Redirect(w, r, h.config.FrontendURL+"/login?"+q.Encode(), http.StatusFound)
}

// callbackErrorCode はコールバック失敗時にフロントエンドへ渡すエラーコードを決める。
func callbackErrorCode(provider string, err error) string {
	var apiErr *model.APIError
	switch {
	case errors.Is(err, auth.ErrUnknownProvider):
		return "UnknownProvider"
	case errors.Is(err, auth.ErrProviderNoEmail):
		return provider + "AuthNoEmail"
	case errors.Is(err, auth.ErrProviderNoID):
		return provider + "AuthNoId"
	case errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeEmailOwnedByOtherMethod:
		return "EmailAlreadyUsedByOtherProvider"
	}

	slog.Error("oauth callback failed",
		slog.String("provider", provider),
		slog.String("error", err.Error()),
	)
	return provider + "AuthFailed"
}

func (h *AuthHandler) redirectError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.config.FrontendURL+"/login?error="+url.QueryEscape(code), http.StatusFound)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
