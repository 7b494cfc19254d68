package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/hitoshi/confportal/internal/model"
	"github.com/hitoshi/confportal/internal/user"
)

// --- GET /api/dashboard ---

func TestUserHandler_Dashboard_Success(t *testing.T) {
	svc := &mockUserService{
		dashboardFn: func(_ context.Context, userID string) (*user.Result, error) {
			if userID != "u1" {
				t.Errorf("userID = %q, want u1", userID)
			}
			return &user.Result{User: testUser("u1"), Credential: testIssued()}, nil
		},
	}
	h := NewUserHandler(svc)

	req := withVerified(httptest.NewRequest(http.MethodGet, "/api/dashboard", nil), "u1", model.RoleRegularUser)
	w := httptest.NewRecorder()
	h.Dashboard(w, req)

	assertStatus(t, w, http.StatusOK)
	resp := decodeBody[dashboardResponse](t, w)
	if resp.Message != "Welcome to your dashboard, Ada Lovelace!" {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Token == nil || *resp.Token != "issued-token" {
		t.Errorf("token = %v, want issued-token", resp.Token)
	}
	if !reflect.DeepEqual(resp.ConferenceInfo, user.DefaultConferenceInfo()) {
		t.Errorf("conferenceInfo = %+v", resp.ConferenceInfo)
	}
}

func TestUserHandler_Dashboard_UserDeleted(t *testing.T) {
	svc := &mockUserService{
		dashboardFn: func(context.Context, string) (*user.Result, error) {
			return nil, model.NewUserNotFoundError()
		},
	}
	h := NewUserHandler(svc)

	req := withVerified(httptest.NewRequest(http.MethodGet, "/api/dashboard", nil), "u1", model.RoleRegularUser)
	w := httptest.NewRecorder()
	h.Dashboard(w, req)

	assertStatus(t, w, http.StatusNotFound)
	assertErrorCode(t, w, model.ErrCodeUserNotFound)
}

// --- PUT /api/users/{id}/interests ---

func TestUserHandler_UpdateInterests_UsesPathID(t *testing.T) {
	svc := &mockUserService{
		updateInterestsFn: func(_ context.Context, userID string, interests []string) (*user.Result, error) {
			if userID != "target" {
				t.Errorf("userID = %q, want target", userID)
			}
			if len(interests) != 2 || interests[1] != "robotics" {
				t.Errorf("interests = %v", interests)
			}
			u := testUser(userID)
			u.Interests = interests
			return &user.Result{User: u, Credential: testIssued()}, nil
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/users/target/interests", strings.NewReader(`{"interests":["ai","robotics"]}`))
	req = withVerified(withURLParam(req, "id", "target"), "admin-1", model.RoleAdmin)
	w := httptest.NewRecorder()
	h.UpdateInterests(w, req)

	assertStatus(t, w, http.StatusOK)
	resp := decodeBody[userTokenResponse](t, w)
	if resp.User == nil || len(resp.User.Interests) != 2 {
		t.Errorf("user = %+v", resp.User)
	}
}

func TestUserHandler_UpdateInterests_RejectsNonStringList(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"文字列", `{"interests":"ai"}`},
		{"数値の要素", `{"interests":["ai",1]}`},
		{"nullの要素", `{"interests":["ai",null]}`},
		{"null", `{"interests":null}`},
		{"未指定", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := NewUserHandler(&mockUserService{
				updateInterestsFn: func(context.Context, string, []string) (*user.Result, error) {
					called = true
					return nil, nil
				},
			})

			req := httptest.NewRequest(http.MethodPut, "/api/users/u1/interests", strings.NewReader(tt.body))
			req = withURLParam(req, "id", "u1")
			w := httptest.NewRecorder()
			h.UpdateInterests(w, req)

			assertStatus(t, w, http.StatusBadRequest)
			assertErrorCode(t, w, model.ErrCodeInvalidRequest)
			if called {
				t.Error("service should not be called for invalid interests")
			}
		})
	}
}

func TestUserHandler_UpdateInterests_EmptyListAllowed(t *testing.T) {
	var got []string
	h := NewUserHandler(&mockUserService{
		updateInterestsFn: func(_ context.Context, userID string, interests []string) (*user.Result, error) {
			got = interests
			return &user.Result{User: testUser(userID), Credential: testIssued()}, nil
		},
	})

	req := withURLParam(httptest.NewRequest(http.MethodPut, "/api/users/u1/interests", strings.NewReader(`{"interests":[]}`)), "id", "u1")
	w := httptest.NewRecorder()
	h.UpdateInterests(w, req)

	assertStatus(t, w, http.StatusOK)
	if got == nil || len(got) != 0 {
		t.Errorf("interests = %#v, want empty non-nil slice", got)
	}
}

// --- 管理者 ---

func TestUserHandler_ListUsers(t *testing.T) {
	svc := &mockUserService{
		listAllFn: func(context.Context) ([]*model.User, error) {
			return []*model.User{testUser("u1"), testUser("u2")}, nil
		},
	}
	h := NewUserHandler(svc)

	w := httptest.NewRecorder()
	h.ListUsers(w, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))

	assertStatus(t, w, http.StatusOK)
	resp := decodeBody[map[string][]userResponse](t, w)
	if len(resp["users"]) != 2 {
		t.Errorf("users = %d, want 2", len(resp["users"]))
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Error("response should not contain password fields")
	}
}

func TestUserHandler_UpdateStatus(t *testing.T) {
	svc := &mockUserService{
		updateStatusFn: func(_ context.Context, userID string, role model.Role, status model.UserStatus) (*user.Result, error) {
			if userID != "u2" || role != model.RoleMentor || status != model.UserStatusActive {
				t.Errorf("args = (%q, %q, %q)", userID, role, status)
			}
			u := testUser(userID)
			u.Role, u.Status = role, status
			return &user.Result{User: u, Credential: testIssued()}, nil
		},
	}
	h := NewUserHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/users/u2/status", strings.NewReader(`{"role":"Mentor","status":"active"}`))
	req = withURLParam(req, "id", "u2")
	w := httptest.NewRecorder()
	h.UpdateStatus(w, req)

	assertStatus(t, w, http.StatusOK)
	resp := decodeBody[userTokenResponse](t, w)
	if resp.User.Role != "Mentor" || resp.User.Status != "active" {
		t.Errorf("user = %+v", resp.User)
	}
}

func TestUserHandler_UpdateStatus_InvalidRole(t *testing.T) {
	svc := &mockUserService{
		updateStatusFn: func(context.Context, string, model.Role, model.UserStatus) (*user.Result, error) {
			return nil, model.NewValidationError("invalid role")
		},
	}
	h := NewUserHandler(svc)

	req := withURLParam(httptest.NewRequest(http.MethodPut, "/api/admin/users/u2/status", strings.NewReader(`{"role":"Wizard","status":"active"}`)), "id", "u2")
	w := httptest.NewRecorder()
	h.UpdateStatus(w, req)

	assertStatus(t, w, http.StatusBadRequest)
}

// --- メンター ---

func TestUserHandler_ListMentors_PassesQuery(t *testing.T) {
	svc := &mockUserService{
		searchMentorsFn: func(_ context.Context, term, skill string) ([]*model.User, error) {
			if term != "ada" || skill != "go" {
				t.Errorf("args = (%q, %q)", term, skill)
			}
			return []*model.User{}, nil
		},
	}
	h := NewUserHandler(svc)

	w := httptest.NewRecorder()
	h.ListMentors(w, httptest.NewRequest(http.MethodGet, "/api/mentors?search=ada&skill=go", nil))

	assertStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"mentors":[]`) {
		t.Errorf("body = %s, want empty mentors array", w.Body.String())
	}
}

func TestUserHandler_ConnectMentor(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"成功", nil, http.StatusOK},
		{"自分自身", model.NewSelfConnectError(), http.StatusBadRequest},
		{"メンター以外", model.NewMentorNotFoundError(), http.StatusNotFound},
		{"内部エラー", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUserService{
				connectMentorFn: func(_ context.Context, requesterID, mentorID string) error {
					if requesterID != "u1" || mentorID != "m1" {
						t.Errorf("args = (%q, %q)", requesterID, mentorID)
					}
					return tt.err
				},
			}
			h := NewUserHandler(svc)

			req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/mentors/m1/connect", nil), "id", "m1")
			req = withVerified(req, "u1", model.RoleRegularUser)
			w := httptest.NewRecorder()
			h.ConnectMentor(w, req)

			assertStatus(t, w, tt.wantStatus)
		})
	}
}

// --- GET /api/teammates ---

func TestUserHandler_ListTeammates_UsesEmbeddedSnapshot(t *testing.T) {
	svc := &mockUserService{
		findTeammatesFn: func(_ context.Context, caller model.Snapshot, term string) ([]*model.User, error) {
			if caller.ID != "u1" || len(caller.Interests) != 1 || caller.Interests[0] != "ai" {
				t.Errorf("caller = %+v", caller)
			}
			if term != "bob" {
				t.Errorf("term = %q, want bob", term)
			}
			return []*model.User{testUser("u2")}, nil
		},
	}
	h := NewUserHandler(svc)

	req := withVerified(httptest.NewRequest(http.MethodGet, "/api/teammates?search=bob", nil), "u1", model.RoleRegularUser)
	w := httptest.NewRecorder()
	h.ListTeammates(w, req)

	assertStatus(t, w, http.StatusOK)
	resp := decodeBody[map[string][]userResponse](t, w)
	if len(resp["teammates"]) != 1 {
		t.Errorf("teammates = %d, want 1", len(resp["teammates"]))
	}
}
