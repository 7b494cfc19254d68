// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/confportal/internal/credential"
	"github.com/hitoshi/confportal/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// verifiedContextKey はリクエストコンテキストに検証済みクレデンシャルを格納するためのキー。
var verifiedContextKey = contextKey("verified_credential")

// RevocationChecker はクレデンシャルの失効確認に必要なインターフェース。
// repository.RevocationRepositoryの部分集合として定義する。
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerクレデンシャルを検証し、
// 失効していないことを確認するミドルウェアを返す。
// 検証済みのスナップショットをリクエストコンテキストに注入する。
// OPTIONSリクエストは検証せずに通過させる。
func NewAuthMiddleware(verifier credential.Verifier, revocations RevocationChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			// 1. Bearerクレデンシャルを取得
			token, ok := bearerToken(r)
			if !ok {
				WriteAPIError(w, model.NewUnauthorizedError())
				return
			}

			// 2. 署名と有効期限を検証
			verified, err := verifier.Verify(token)
			if err != nil {
				if errors.Is(err, credential.ErrExpired) {
					WriteAPIError(w, model.NewTokenExpiredError())
					return
				}
				WriteAPIError(w, model.NewTokenInvalidError())
				return
			}

			// 3. 失効台帳を確認。台帳が参照できない場合は認証しない
			revoked, err := revocations.IsRevoked(r.Context(), verified.TokenID)
			if err != nil {
				slog.Error("failed to check revocation",
					slog.String("jti", verified.TokenID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if revoked {
				WriteAPIError(w, model.NewTokenRevokedError())
				return
			}

			// 4. 検証済みクレデンシャルをコンテキストに注入
			recordRequestUser(r.Context(), verified.Snapshot.ID)
			next.ServeHTTP(w, r.WithContext(ContextWithVerified(r.Context(), verified)))
		})
	}
}

// RequireRole はスナップショットのロールが指定ロールのいずれかであることを要求するミドルウェアを返す。
// NewAuthMiddlewareの後に配置する。
func RequireRole(roles ...model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			verified, ok := VerifiedFromContext(r.Context())
			if !ok {
				WriteAPIError(w, model.NewUnauthorizedError())
				return
			}

			for _, role := range roles {
				if verified.Snapshot.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			slog.Warn("role check failed",
				slog.String("user_id", verified.Snapshot.ID),
				slog.String("role", string(verified.Snapshot.Role)),
				slog.String("path", r.URL.Path),
			)
			WriteAPIError(w, model.NewForbiddenError("この操作を行う権限がありません。"))
		})
	}
}

// RequireOwnerOrAdmin はURLパラメータparamのユーザーIDが本人であるか、
// 管理者であることを要求するミドルウェアを返す。
func RequireOwnerOrAdmin(param string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			verified, ok := VerifiedFromContext(r.Context())
			if !ok {
				WriteAPIError(w, model.NewUnauthorizedError())
				return
			}

			owner := chi.URLParam(r, param)
			if verified.Snapshot.ID != owner && verified.Snapshot.Role != model.RoleAdmin {
				WriteAPIError(w, model.NewForbiddenError("他のユーザーの情報は変更できません。"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken はAuthorizationヘッダーからBearerクレデンシャルを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// VerifiedFromContext はリクエストコンテキストから検証済みクレデンシャルを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func VerifiedFromContext(ctx context.Context) (*credential.Verified, bool) {
	v, ok := ctx.Value(verifiedContextKey).(*credential.Verified)
	return v, ok && v != nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	v, ok := VerifiedFromContext(ctx)
	if !ok || v.Snapshot.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return v.Snapshot.ID, nil
}

// ContextWithVerified はコンテキストに検証済みクレデンシャルを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithVerified(ctx context.Context, v *credential.Verified) context.Context {
	return context.WithValue(ctx, verifiedContextKey, v)
}
