package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/confportal/internal/model"
	"github.com/hitoshi/confportal/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Dashboard(ctx context.Context, userID string) (*user.Result, error)
	UpdateInterests(ctx context.Context, userID string, interests []string) (*user.Result, error)
	ListAll(ctx context.Context) ([]*model.User, error)
	UpdateStatus(ctx context.Context, userID string, role model.Role, status model.UserStatus) (*user.Result, error)
	SearchMentors(ctx context.Context, term, skill string) ([]*model.User, error)
	ConnectMentor(ctx context.Context, requesterID, mentorID string) error
	FindTeammates(ctx context.Context, caller model.Snapshot, term string) ([]*model.User, error)
}

// UserHandler はダッシュボード・プロフィール・管理者機能・メンター・チームメイト検索のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

type dashboardResponse struct {
	Message        string              `json:"message"`
	User           *userResponse       `json:"user"`
	ConferenceInfo user.ConferenceInfo `json:"conferenceInfo"`
	Token          *string             `json:"token"`
}

type userTokenResponse struct {
	Message string        `json:"message,omitempty"`
	User    *userResponse `json:"user"`
	Token   *string       `json:"token"`
}

// interestsRequest はnullのリストや要素を文字列と区別するためポインタで受ける。
type interestsRequest struct {
	Interests *[]*string `json:"interests"`
}

func (req interestsRequest) values() ([]string, *model.APIError) {
	if req.Interests == nil {
		return nil, model.NewValidationError("interestsは文字列のリストで指定してください。")
	}
	out := make([]string, 0, len(*req.Interests))
	for _, v := range *req.Interests {
		if v == nil {
			return nil, model.NewValidationError("interestsの要素は文字列で指定してください。")
		}
		out = append(out, *v)
	}
	return out, nil
}

type statusRequest struct {
	Role   string `json:"role"`
	Status string `json:"status"`
}

// Dashboard はユーザーを再取得し、最新状態のクレデンシャルとカンファレンス情報を返す。
// GET /api/dashboard
func (h *UserHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	verified, ok := currentUser(w, r)
	if !ok {
		return
	}

	result, err := h.service.Dashboard(r.Context(), verified.Snapshot.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		Message:        fmt.Sprintf("Welcome to your dashboard, %s!", result.User.FullName),
		User:           toUserResponse(result.User),
		ConferenceInfo: user.DefaultConferenceInfo(),
		Token:          tokenOf(result.Credential),
	})
}

// UpdateInterests はユーザーの興味タグを更新する。本人または管理者のみ。
// PUT /api/users/{id}/interests
func (h *UserHandler) UpdateInterests(w http.ResponseWriter, r *http.Request) {
	var req interestsRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}
	interests, apiErr := req.values()
	if apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	result, err := h.service.UpdateInterests(r.Context(), chi.URLParam(r, "id"), interests)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userTokenResponse{
		Message: "Interests updated successfully!",
		User:    toUserResponse(result.User),
		Token:   tokenOf(result.Credential),
	})
}

// ListUsers は全ユーザーを返す。管理者のみ。
// GET /api/admin/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": toUserResponses(users)})
}

// UpdateStatus は対象ユーザーのロールと状態を変更する。管理者のみ。
// 返すクレデンシャルは対象ユーザーのもの。
// PUT /api/admin/users/{id}/status
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	result, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), model.Role(req.Role), model.UserStatus(req.Status))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userTokenResponse{
		Message: "User status updated successfully!",
		User:    toUserResponse(result.User),
		Token:   tokenOf(result.Credential),
	})
}

// ListMentors は活動中のメンターを検索する。
// GET /api/mentors?search=&skill=
func (h *UserHandler) ListMentors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mentors, err := h.service.SearchMentors(r.Context(), q.Get("search"), q.Get("skill"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"mentors": toUserResponses(mentors)})
}

// ConnectMentor はメンターへの接続を申請する。
// POST /api/mentors/{id}/connect
func (h *UserHandler) ConnectMentor(w http.ResponseWriter, r *http.Request) {
	verified, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.service.ConnectMentor(r.Context(), verified.Snapshot.ID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Connection request sent to mentor."})
}

// ListTeammates はチーム未所属で興味タグが重なるユーザーを返す。
// 興味タグはクレデンシャルに埋め込まれた値を使う。
// GET /api/teammates?search=
func (h *UserHandler) ListTeammates(w http.ResponseWriter, r *http.Request) {
	verified, ok := currentUser(w, r)
	if !ok {
		return
	}

	mates, err := h.service.FindTeammates(r.Context(), verified.Snapshot, r.URL.Query().Get("search"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"teammates": toUserResponses(mates)})
}
