package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/confportal/internal/auth"
	"github.com/hitoshi/confportal/internal/credential"
	"github.com/hitoshi/confportal/internal/middleware"
	"github.com/hitoshi/confportal/internal/model"
	"github.com/hitoshi/confportal/internal/notify"
	"github.com/hitoshi/confportal/internal/team"
	"github.com/hitoshi/confportal/internal/user"
)

// コンパイル時にインターフェースの実装を検証
var (
	_ AuthServiceInterface    = (*auth.Service)(nil)
	_ UserServiceInterface    = (*user.Service)(nil)
	_ TeamServiceInterface    = (*team.Service)(nil)
	_ ContactServiceInterface = (*notify.Service)(nil)
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn       func(ctx context.Context, fullName, email, password string) (*auth.Result, error)
	loginFn          func(ctx context.Context, email, password string) (*auth.Result, error)
	logoutFn         func(ctx context.Context, tokenID string, expiresAt time.Time) error
	getLoginURLFn    func(provider, state string) (string, error)
	handleCallbackFn func(ctx context.Context, provider, code string) (*auth.Result, error)
}

func (m *mockAuthService) Register(ctx context.Context, fullName, email, password string) (*auth.Result, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, fullName, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.Result, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, tokenID, expiresAt)
	}
	return nil
}

func (m *mockAuthService) GetLoginURL(provider, state string) (string, error) {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(provider, state)
	}
	return "", nil
}

func (m *mockAuthService) HandleCallback(ctx context.Context, provider, code string) (*auth.Result, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, provider, code)
	}
	return nil, nil
}

type mockUserService struct {
	dashboardFn       func(ctx context.Context, userID string) (*user.Result, error)
	updateInterestsFn func(ctx context.Context, userID string, interests []string) (*user.Result, error)
	listAllFn         func(ctx context.Context) ([]*model.User, error)
	updateStatusFn    func(ctx context.Context, userID string, role model.Role, status model.UserStatus) (*user.Result, error)
	searchMentorsFn   func(ctx context.Context, term, skill string) ([]*model.User, error)
	connectMentorFn   func(ctx context.Context, requesterID, mentorID string) error
	findTeammatesFn   func(ctx context.Context, caller model.Snapshot, term string) ([]*model.User, error)
}

func (m *mockUserService) Dashboard(ctx context.Context, userID string) (*user.Result, error) {
	if m.dashboardFn != nil {
		return m.dashboardFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockUserService) UpdateInterests(ctx context.Context, userID string, interests []string) (*user.Result, error) {
	if m.updateInterestsFn != nil {
		return m.updateInterestsFn(ctx, userID, interests)
	}
	return nil, nil
}

func (m *mockUserService) ListAll(ctx context.Context) ([]*model.User, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func (m *mockUserService) UpdateStatus(ctx context.Context, userID string, role model.Role, status model.UserStatus) (*user.Result, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, userID, role, status)
	}
	return nil, nil
}

func (m *mockUserService) SearchMentors(ctx context.Context, term, skill string) ([]*model.User, error) {
	if m.searchMentorsFn != nil {
		return m.searchMentorsFn(ctx, term, skill)
	}
	return nil, nil
}

func (m *mockUserService) ConnectMentor(ctx context.Context, requesterID, mentorID string) error {
	if m.connectMentorFn != nil {
		return m.connectMentorFn(ctx, requesterID, mentorID)
	}
	return nil
}

func (m *mockUserService) FindTeammates(ctx context.Context, caller model.Snapshot, term string) ([]*model.User, error) {
	if m.findTeammatesFn != nil {
		return m.findTeammatesFn(ctx, caller, term)
	}
	return nil, nil
}

type mockTeamService struct {
	listFn    func(ctx context.Context, q model.TeamSearch) ([]model.TeamWithLeader, error)
	createFn  func(ctx context.Context, leaderID string, in team.CreateInput) (*team.Result, error)
	joinFn    func(ctx context.Context, teamID, userID string) (*team.Result, error)
	leaveFn   func(ctx context.Context, teamID, userID string) (*team.Result, error)
	disbandFn func(ctx context.Context, teamID, requesterID string) (*team.Result, error)
}

func (m *mockTeamService) List(ctx context.Context, q model.TeamSearch) ([]model.TeamWithLeader, error) {
	if m.listFn != nil {
		return m.listFn(ctx, q)
	}
	return nil, nil
}

func (m *mockTeamService) Create(ctx context.Context, leaderID string, in team.CreateInput) (*team.Result, error) {
	if m.createFn != nil {
		return m.createFn(ctx, leaderID, in)
	}
	return nil, nil
}

func (m *mockTeamService) Join(ctx context.Context, teamID, userID string) (*team.Result, error) {
	if m.joinFn != nil {
		return m.joinFn(ctx, teamID, userID)
	}
	return nil, nil
}

func (m *mockTeamService) Leave(ctx context.Context, teamID, userID string) (*team.Result, error) {
	if m.leaveFn != nil {
		return m.leaveFn(ctx, teamID, userID)
	}
	return nil, nil
}

func (m *mockTeamService) Disband(ctx context.Context, teamID, requesterID string) (*team.Result, error) {
	if m.disbandFn != nil {
		return m.disbandFn(ctx, teamID, requesterID)
	}
	return nil, nil
}

type mockContactService struct {
	sendContactFn func(ctx context.Context, in notify.ContactInput) error
}

func (m *mockContactService) SendContact(ctx context.Context, in notify.ContactInput) error {
	if m.sendContactFn != nil {
		return m.sendContactFn(ctx, in)
	}
	return nil
}

// --- テストヘルパー ---

func testUser(id string) *model.User {
	return &model.User{
		ID:        id,
		FullName:  "Ada Lovelace",
		Email:     "ada@example.com",
		Role:      model.RoleRegularUser,
		Status:    model.UserStatusActive,
		Provider:  model.ProviderEmail,
		Interests: []string{"ai"},
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testIssued() *credential.Issued {
	now := time.Now()
	return &credential.Issued{
		Token:     "issued-token",
		TokenID:   "jti-1",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
}

// withVerified は認証ミドルウェアを通過した状態のリクエストを作る。
func withVerified(r *http.Request, id string, role model.Role) *http.Request {
	v := &credential.Verified{
		Snapshot: model.Snapshot{
			ID:        id,
			FullName:  "Ada Lovelace",
			Email:     "ada@example.com",
			Role:      role,
			Status:    model.UserStatusActive,
			Interests: []string{"ai"},
		},
		TokenID:   "jti-" + id,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return r.WithContext(middleware.ContextWithVerified(r.Context(), v))
}

// decodeBody はレスポンスボディを読み進めずにデコードする。後続のw.Body.String()でも全文を参照できる。
func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Errorf("status = %d, want %d (body: %s)", w.Code, want, w.Body.String())
	}
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, want string) {
	t.Helper()
	body := decodeBody[middleware.ErrorResponseBody](t, w)
	if body.Code != want {
		t.Errorf("code = %q, want %q", body.Code, want)
	}
}
