package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/confportal/internal/credential"
	"github.com/hitoshi/confportal/internal/model"
)

// serveLogged はnextをロギングミドルウェア越しに1回呼び、出力されたログレコードを返す。
func serveLogged(t *testing.T, next http.Handler, req *http.Request) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	NewLoggingMiddleware(logger)(next).ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

func TestLoggingMiddleware_RequestRecord(t *testing.T) {
	entry := serveLogged(t, statusHandler(http.StatusCreated), httptest.NewRequest(http.MethodPost, "/api/teams", nil))

	if entry["msg"] != "http_request" {
		t.Errorf("msg = %v, want http_request", entry["msg"])
	}
	if entry["method"] != "POST" || entry["path"] != "/api/teams" {
		t.Errorf("method/path = %v %v, want POST /api/teams", entry["method"], entry["path"])
	}
	if entry["status"] != float64(http.StatusCreated) {
		t.Errorf("status = %v, want 201", entry["status"])
	}
	if d, ok := entry["duration_ms"].(float64); !ok || d < 0 {
		t.Errorf("duration_ms = %v, want non-negative number", entry["duration_ms"])
	}
	if _, ok := entry["user_id"]; ok {
		t.Errorf("user_id should be omitted for anonymous requests, got %v", entry["user_id"])
	}
}

func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNoContent, "INFO"},
		{http.StatusUnauthorized, "WARN"},
		{http.StatusConflict, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
		{http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			entry := serveLogged(t, statusHandler(tt.status), httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
			if entry["level"] != tt.level {
				t.Errorf("level = %v, want %s", entry["level"], tt.level)
			}
			if entry["status"] != float64(tt.status) {
				t.Errorf("status = %v, want %d", entry["status"], tt.status)
			}
		})
	}
}

func TestLoggingMiddleware_ImplicitOKOnWrite(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	entry := serveLogged(t, next, httptest.NewRequest(http.MethodGet, "/health", nil))
	if entry["status"] != float64(http.StatusOK) {
		t.Errorf("status = %v, want 200", entry["status"])
	}
}

func TestLoggingMiddleware_UserID(t *testing.T) {
	t.Run("外側で確定済み", func(t *testing.T) {
		req := withUser(httptest.NewRequest(http.MethodGet, "/api/teams", nil), "user-123", model.RoleRegularUser)
		entry := serveLogged(t, okHandler(), req)
		if entry["user_id"] != "user-123" {
			t.Errorf("user_id = %v, want user-123", entry["user_id"])
		}
	})

	t.Run("内側の認証ミドルウェアで確定", func(t *testing.T) {
		verifier := &mockVerifier{
			verifyFn: func(string) (*credential.Verified, error) {
				return verifiedFor("user-inner", model.RoleMentor), nil
			},
		}
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		req.Header.Set("Authorization", "Bearer t")

		entry := serveLogged(t, NewAuthMiddleware(verifier, &mockRevocationChecker{})(okHandler()), req)
		if entry["user_id"] != "user-inner" {
			t.Errorf("user_id = %v, want user-inner", entry["user_id"])
		}
	})
}
