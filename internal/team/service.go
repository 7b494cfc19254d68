// Package team はチームの作成・参加・脱退・解散のドメインロジックを提供する。
//
// チームの更新とユーザーの所属情報の更新は別々の書き込みで行う。
// 2つ目の書き込みが失敗した場合は不整合としてログとメトリクスに記録し、
// 1つ目の書き込みを取り消す補償処理を行う。
package team

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/confportal/internal/credential"
	"github.com/hitoshi/confportal/internal/metrics"
	"github.com/hitoshi/confportal/internal/model"
	"github.com/hitoshi/confportal/internal/repository"
	"github.com/hitoshi/confportal/internal/security"
)

// 定員の許容範囲。
const (
	MinMaxMembers = 1
	MaxMaxMembers = 50
)

// 操作名。ログとメトリクスのラベルに使用する。
const (
	OpCreate  = "create"
	OpJoin    = "join"
	OpLeave   = "leave"
	OpDisband = "disband"
)

// CreateInput はチーム作成の入力。
type CreateInput struct {
	Name         string
	Description  string
	Category     string
	MaxMembers   int
	SkillsNeeded []string
}

// Result はチーム操作の結果。
// 解散時はTeamがnil、要求者が見つからない場合はUserとCredentialがnil。
type Result struct {
	Team       *model.Team
	TeamName   string // 解散時はTeamがnilのため名前のみ保持する
	User       *model.User
	Credential *credential.Issued
}

// Service はチーム管理のサービス層。
type Service struct {
	teams     repository.TeamRepository
	users     repository.UserRepository
	issuer    credential.Issuer
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	teams repository.TeamRepository,
	users repository.UserRepository,
	issuer credential.Issuer,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		teams:     teams,
		users:     users,
		issuer:    issuer,
		sanitizer: sanitizer,
		metrics:   collector,
	}
}

// List は条件に一致するチームをリーダー情報付きで返す。
// Statusは永続化された値のままで、表示用の状態はDisplayStatusで算出する。
func (s *Service) List(ctx context.Context, q model.TeamSearch) ([]model.TeamWithLeader, error) {
	teams, err := s.teams.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("チーム一覧の取得に失敗しました: %w", err)
	}

	leaderIDs := make([]string, 0, len(teams))
	for _, t := range teams {
		leaderIDs = append(leaderIDs, t.LeaderID)
	}
	leaders, err := s.users.FindByIDs(ctx, leaderIDs)
	if err != nil {
		return nil, fmt.Errorf("リーダー情報の取得に失敗しました: %w", err)
	}
	byID := make(map[string]*model.User, len(leaders))
	for _, u := range leaders {
		byID[u.ID] = u
	}

	results := make([]model.TeamWithLeader, 0, len(teams))
	for _, t := range teams {
		results = append(results, model.TeamWithLeader{Team: *t, Leader: byID[t.LeaderID]})
	}
	return results, nil
}

// Create はチームを作成し、要求者をリーダーとして所属させる。
func (s *Service) Create(ctx context.Context, leaderID string, in CreateInput) (res *Result, err error) {
	defer func() { s.record(OpCreate, err) }()

	name := s.sanitizer.Sanitize(in.Name)
	description := s.sanitizer.Sanitize(in.Description)
	category := s.sanitizer.Sanitize(in.Category)
	if name == "" || description == "" || category == "" {
		return nil, model.NewValidationError("チーム名、説明、カテゴリは必須です。")
	}
	if in.MaxMembers < MinMaxMembers || in.MaxMembers > MaxMaxMembers {
		return nil, model.NewValidationError(fmt.Sprintf("定員は%d〜%d人で指定してください。", MinMaxMembers, MaxMaxMembers))
	}

	leader, err := s.users.FindByID(ctx, leaderID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if leader == nil {
		return nil, model.NewUserNotFoundError()
	}
	if leader.HasTeam() {
		return nil, model.NewAlreadyOnTeamError()
	}

	existing, err := s.teams.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("チームの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateTeamNameError(name)
	}

	team := &model.Team{
		ID:           uuid.New().String(),
		Name:         name,
		Description:  description,
		Category:     category,
		LeaderID:     leader.ID,
		Members:      []string{leader.ID},
		MaxMembers:   in.MaxMembers,
		Status:       model.TeamStatusLookingForMembers,
		SkillsNeeded: s.sanitizer.SanitizeList(in.SkillsNeeded),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.teams.Create(ctx, team); err != nil {
		if errors.Is(err, repository.ErrDuplicateTeamName) {
			return nil, model.NewDuplicateTeamNameError(name)
		}
		return nil, fmt.Errorf("チームの作成に失敗しました: %w", err)
	}

	if err := s.users.SetTeam(ctx, leader.ID, team.ID, team.Name); err != nil {
		conflict := errors.Is(err, repository.ErrUserHasTeam)
		if !conflict {
			s.logInconsistency(OpCreate, team.ID, leader.ID, "set_user_team", err)
		}
		if cerr := s.teams.Delete(context.WithoutCancel(ctx), team.ID); cerr != nil {
			s.logInconsistency(OpCreate, team.ID, leader.ID, "compensate_delete_team", cerr)
			return nil, model.NewInconsistentStateError()
		}
		s.logCompensated(OpCreate, team.ID, leader.ID)
		if conflict {
			// 同時に別チームへ所属した
			return nil, model.NewAlreadyOnTeamError()
		}
		return nil, model.NewInconsistentStateError()
	}

	leader.TeamID, leader.TeamName = team.ID, team.Name
	issued, err := s.issuer.Issue(leader.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("クレデンシャルの発行に失敗しました: %w", err)
	}

	slog.Info("team created",
		slog.String("team_id", team.ID),
		slog.String("leader_id", leader.ID),
	)
	return &Result{Team: team, User: leader, Credential: issued}, nil
}

// Join はチームに参加する。
// 定員と重複の判定はリポジトリの条件付き更新で確定する。
func (s *Service) Join(ctx context.Context, teamID, userID string) (res *Result, err error) {
	defer func() { s.record(OpJoin, err) }()

	team, err := s.findTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.LeaderID == userID {
		return nil, model.NewAlreadyLeaderError()
	}
	if team.HasMember(userID) {
		return nil, model.NewAlreadyMemberError()
	}
	if team.IsFull() {
		return nil, model.NewTeamFullError()
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	if user.HasTeam() {
		return nil, model.NewAlreadyOnAnotherTeamError()
	}

	updated, err := s.teams.AddMember(ctx, team.ID, userID)
	if err != nil {
		return nil, mapMembershipError(team.ID, err)
	}

	if err := s.users.SetTeam(ctx, userID, updated.ID, updated.Name); err != nil {
		conflict := errors.Is(err, repository.ErrUserHasTeam)
		if !conflict {
			s.logInconsistency(OpJoin, team.ID, userID, "set_user_team", err)
		}
		if _, cerr := s.teams.RemoveMember(context.WithoutCancel(ctx), team.ID, userID); cerr != nil {
			s.logInconsistency(OpJoin, team.ID, userID, "compensate_remove_member", cerr)
			return nil, model.NewInconsistentStateError()
		}
		s.logCompensated(OpJoin, team.ID, userID)
		if conflict {
			return nil, model.NewAlreadyOnAnotherTeamError()
		}
		return nil, model.NewInconsistentStateError()
	}

	user.TeamID, user.TeamName = updated.ID, updated.Name
	issued, err := s.issuer.Issue(user.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("クレデンシャルの発行に失敗しました: %w", err)
	}

	slog.Info("team joined",
		slog.String("team_id", updated.ID),
		slog.String("user_id", userID),
		slog.Int("members", len(updated.Members)),
	)
	return &Result{Team: updated, User: user, Credential: issued}, nil
}

// Leave はチームから脱退する。リーダーは脱退できず、解散のみ可能。
func (s *Service) Leave(ctx context.Context, teamID, userID string) (res *Result, err error) {
	defer func() { s.record(OpLeave, err) }()

	team, err := s.findTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !team.HasMember(userID) {
		return nil, model.NewNotAMemberError()
	}
	if team.LeaderID == userID {
		return nil, model.NewLeaderCannotLeaveError()
	}

	updated, err := s.teams.RemoveMember(ctx, team.ID, userID)
	if err != nil {
		return nil, mapMembershipError(team.ID, err)
	}

	if err := s.users.ClearTeam(ctx, userID, team.ID); err != nil {
		s.logInconsistency(OpLeave, team.ID, userID, "clear_user_team", err)
		if _, cerr := s.teams.AddMember(context.WithoutCancel(ctx), team.ID, userID); cerr != nil {
			s.logInconsistency(OpLeave, team.ID, userID, "compensate_add_member", cerr)
		} else {
			s.logCompensated(OpLeave, team.ID, userID)
		}
		return nil, model.NewInconsistentStateError()
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	issued, err := s.issuer.Issue(user.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("クレデンシャルの発行に失敗しました: %w", err)
	}

	slog.Info("team left",
		slog.String("team_id", team.ID),
		slog.String("user_id", userID),
	)
	return &Result{Team: updated, User: user, Credential: issued}, nil
}

// Disband はチームを解散する。リーダーのみ実行できる。
// 全メンバーの所属解除とチーム削除はリポジトリ内の単一トランザクションで行う。
func (s *Service) Disband(ctx context.Context, teamID, requesterID string) (res *Result, err error) {
	defer func() { s.record(OpDisband, err) }()

	team, err := s.findTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.LeaderID != requesterID {
		return nil, model.NewNotLeaderError()
	}

	former, err := s.teams.Disband(ctx, team.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewTeamNotFoundError(teamID)
		}
		return nil, fmt.Errorf("チームの解散に失敗しました: %w", err)
	}

	slog.Info("team disbanded",
		slog.String("team_id", team.ID),
		slog.String("leader_id", requesterID),
		slog.Int("former_members", len(former)),
	)

	requester, err := s.users.FindByID(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if requester == nil {
		return &Result{TeamName: team.Name}, nil
	}
	issued, err := s.issuer.Issue(requester.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("クレデンシャルの発行に失敗しました: %w", err)
	}
	return &Result{TeamName: team.Name, User: requester, Credential: issued}, nil
}

func (s *Service) findTeam(ctx context.Context, teamID string) (*model.Team, error) {
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("チームの取得に失敗しました: %w", err)
	}
	if team == nil {
		return nil, model.NewTeamNotFoundError(teamID)
	}
	return team, nil
}

// mapMembershipError はリポジトリの判定エラーをAPIErrorに変換する。
func mapMembershipError(teamID string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.NewTeamNotFoundError(teamID)
	case errors.Is(err, repository.ErrAlreadyMember):
		return model.NewAlreadyMemberError()
	case errors.Is(err, repository.ErrTeamFull):
		return model.NewTeamFullError()
	case errors.Is(err, repository.ErrNotAMember):
		return model.NewNotAMemberError()
	}
	return fmt.Errorf("メンバーの更新に失敗しました: %w", err)
}

func (s *Service) record(op string, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultFailure
	}
	s.metrics.RecordTeamOperation(op, result)
}

// logInconsistency はチームとユーザーの所属情報の不整合を記録する。
// 補償に失敗した記録はログから手動で修復する。
func (s *Service) logInconsistency(op, teamID, userID, step string, err error) {
	slog.Error("team membership inconsistency",
		slog.String("op", op),
		slog.String("team_id", teamID),
		slog.String("user_id", userID),
		slog.String("step", step),
		slog.String("error", err.Error()),
	)
	s.metrics.RecordSagaInconsistency(op)
}

func (s *Service) logCompensated(op, teamID, userID string) {
	slog.Warn("team membership change compensated",
		slog.String("op", op),
		slog.String("team_id", teamID),
		slog.String("user_id", userID),
	)
}
