package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/confportal/internal/model"
	"github.com/hitoshi/confportal/internal/team"
)

// TeamServiceInterface はチームハンドラーが必要とするサービスインターフェース。
type TeamServiceInterface interface {
	List(ctx context.Context, q model.TeamSearch) ([]model.TeamWithLeader, error)
	Create(ctx context.Context, leaderID string, in team.CreateInput) (*team.Result, error)
	Join(ctx context.Context, teamID, userID string) (*team.Result, error)
	Leave(ctx context.Context, teamID, userID string) (*team.Result, error)
	Disband(ctx context.Context, teamID, requesterID string) (*team.Result, error)
}

// TeamHandler はチーム管理のHTTPハンドラー。
type TeamHandler struct {
	service TeamServiceInterface
}

// NewTeamHandler はTeamHandlerを生成する。
func NewTeamHandler(service TeamServiceInterface) *TeamHandler {
	return &TeamHandler{service: service}
}

// teamResponse はチーム情報のAPIレスポンス。
type teamResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	LeaderID       string    `json:"leader_id"`
	Members        []string  `json:"members"`
	CurrentMembers int       `json:"current_members"`
	MaxMembers     int       `json:"max_members"`
	Status         string    `json:"status"`
	SkillsNeeded   []string  `json:"skills_needed"`
	CreatedAt      time.Time `json:"created_at"`
}

// teamListItem は一覧表示用のチーム情報。statusは人数比から算出した表示用の値。
type teamListItem struct {
	teamResponse
	Leader *leaderResponse `json:"leader"`
}

type leaderResponse struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// teamMutationResponse はチーム操作後のレスポンス。
// 解散時はteamを含めない。
type teamMutationResponse struct {
	Message string        `json:"message"`
	Team    *teamResponse `json:"team,omitempty"`
	User    *userResponse `json:"user"`
	Token   *string       `json:"token"`
}

type createTeamRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	MaxMembers   int      `json:"maxMembers"`
	SkillsNeeded []string `json:"skillsNeeded"`
}

// toTeamResponse はドメインのTeamをAPIレスポンス型に変換する。statusは永続化された値。
func toTeamResponse(t *model.Team) *teamResponse {
	if t == nil {
		return nil
	}
	members := t.Members
	if members == nil {
		members = []string{}
	}
	skills := t.SkillsNeeded
	if skills == nil {
		skills = []string{}
	}
	return &teamResponse{
		ID:             t.ID,
		Name:           t.Name,
		Description:    t.Description,
		Category:       t.Category,
		LeaderID:       t.LeaderID,
		Members:        members,
		CurrentMembers: len(t.Members),
		MaxMembers:     t.MaxMembers,
		Status:         string(t.Status),
		SkillsNeeded:   skills,
		CreatedAt:      t.CreatedAt,
	}
}

// ListTeams はチーム一覧を返す。
// GET /api/teams?search=&category=
func (h *TeamHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	teams, err := h.service.List(r.Context(), model.TeamSearch{
		Term:     q.Get("search"),
		Category: q.Get("category"),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	items := make([]teamListItem, len(teams))
	for i := range teams {
		t := &teams[i]
		item := teamListItem{teamResponse: *toTeamResponse(&t.Team)}
		item.Status = string(t.DisplayStatus())
		if t.Leader != nil {
			item.Leader = &leaderResponse{
				ID:       t.Leader.ID,
				FullName: t.Leader.FullName,
				Email:    t.Leader.Email,
			}
		}
		items[i] = item
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": items})
}

// CreateTeam はチームを作成し、作成者をリーダーとして所属させる。
// POST /api/teams
func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	verified, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req createTeamRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	result, err := h.service.Create(r.Context(), verified.Snapshot.ID, team.CreateInput{
		Name:         req.Name,
		Description:  req.Description,
		Category:     req.Category,
		MaxMembers:   req.MaxMembers,
		SkillsNeeded: req.SkillsNeeded,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, teamMutationResponse{
		Message: "Team created successfully!",
		Team:    toTeamResponse(result.Team),
		User:    toUserResponse(result.User),
		Token:   tokenOf(result.Credential),
	})
}

// JoinTeam はチームに参加する。
// POST /api/teams/{id}/join
func (h *TeamHandler) JoinTeam(w http.ResponseWriter, r *http.Request) {
	verified, ok := currentUser(w, r)
	if !ok {
		return
	}

	result, err := h.service.Join(r.Context(), chi.URLParam(r, "id"), verified.Snapshot.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, teamMutationResponse{
		Message: fmt.Sprintf("Successfully joined team '%s'!", result.Team.Name),
		Team:    toTeamResponse(result.Team),
		User:    toUserResponse(result.User),
		Token:   tokenOf(result.Credential),
	})
}

// LeaveTeam はチームを脱退する。リーダーは脱退できない。
// POST /api/teams/{id}/leave
func (h *TeamHandler) LeaveTeam(w http.ResponseWriter, r *http.Request) {
	verified, ok := currentUser(w, r)
	if !ok {
		return
	}

	result, err := h.service.Leave(r.Context(), chi.URLParam(r, "id"), verified.Snapshot.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, teamMutationResponse{
		Message: fmt.Sprintf("Successfully left team '%s'.", result.Team.Name),
		Team:    toTeamResponse(result.Team),
		User:    toUserResponse(result.User),
		Token:   tokenOf(result.Credential),
	})
}

// DisbandTeam はチームを解散する。リーダーのみ。
// DELETE /api/teams/{id}/disband
func (h *TeamHandler) DisbandTeam(w http.ResponseWriter, r *http.Request) {
	verified, ok := currentUser(w, r)
	if !ok {
		return
	}

	result, err := h.service.Disband(r.Context(), chi.URLParam(r, "id"), verified.Snapshot.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, teamMutationResponse{
		Message: fmt.Sprintf("Team '%s' disbanded successfully.", result.TeamName),
		User:    toUserResponse(result.User),
		Token:   tokenOf(result.Credential),
	})
}
