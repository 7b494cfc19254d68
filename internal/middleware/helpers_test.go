package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/confportal/internal/credential"
	"github.com/hitoshi/confportal/internal/model"
)

// --- モック ---

type mockVerifier struct {
	verifyFn func(token string) (*credential.Verified, error)
}

func (m *mockVerifier) Verify(token string) (*credential.Verified, error) {
	return m.verifyFn(token)
}

type mockRevocationChecker struct {
	isRevokedFn func(ctx context.Context, jti string) (bool, error)
	calls       int
}

func (m *mockRevocationChecker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	m.calls++
	if m.isRevokedFn != nil {
		return m.isRevokedFn(ctx, jti)
	}
	return false, nil
}

// --- compile-time interface checks ---
var _ credential.Verifier = (*mockVerifier)(nil)
var _ RevocationChecker = (*mockRevocationChecker)(nil)

// --- ヘルパー ---

func verifiedFor(userID string, role model.Role) *credential.Verified {
	return &credential.Verified{
		Snapshot: model.Snapshot{
			ID:       userID,
			FullName: "Test User",
			Email:    userID + "@example.com",
			Role:     role,
			Status:   model.UserStatusActive,
			Provider: model.ProviderEmail,
		},
		TokenID:   "jti-" + userID,
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

// withUser は認証ミドルウェアを通過した状態のリクエストを返す。
func withUser(r *http.Request, userID string, role model.Role) *http.Request {
	return r.WithContext(ContextWithVerified(r.Context(), verifiedFor(userID, role)))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
