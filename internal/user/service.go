// Package user はユーザー向け機能（ダッシュボード、興味タグ、管理者によるロール変更、
// メンター検索、チームメイト検索）のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/confportal/internal/credential"
	"github.com/hitoshi/confportal/internal/model"
	"github.com/hitoshi/confportal/internal/repository"
	"github.com/hitoshi/confportal/internal/security"
)

// RoleChangeNotifier はロール・状態の変更通知インターフェース。
// 送信失敗は実装側で処理し、呼び出し元には返さない。
type RoleChangeNotifier interface {
	NotifyRoleChange(ctx context.Context, user *model.User, oldRole model.Role, oldStatus model.UserStatus)
}

// ConferenceInfo はダッシュボードに表示するカンファレンス情報。
type ConferenceInfo struct {
	Title                  string   `json:"title"`
	Date                   string   `json:"date"`
	Location               string   `json:"location"`
	Description            string   `json:"description"`
	Tracks                 []string `json:"tracks"`
	ParticipationTimelines string   `json:"participationTimelines"`
}

// DefaultConferenceInfo は開催中のカンファレンス情報を返す。
func DefaultConferenceInfo() ConferenceInfo {
	return ConferenceInfo{
		Title:       "mAIple Global AI Conference 2025",
		Date:        "October 26-28, 2025",
		Location:    "Virtual & Chicago, IL",
		Description: "Explore the cutting edge of Artificial Intelligence. Featuring leading experts, groundbreaking research, and interactive workshops.",
		Tracks: []string{
			"Generative AI & LLMs",
			"AI Ethics & Governance",
			"AI in Healthcare",
			"Robotics & Automation",
			"Computer Vision",
			"Natural Language Processing",
		},
		ParticipationTimelines: "Early Bird Registration ends August 15, 2025. Speaker applications close July 30, 2025.",
	}
}

// Result は更新後のユーザーと再発行したクレデンシャル。
type Result struct {
	User       *model.User
	Credential *credential.Issued
}

// Service はユーザー管理のサービス層。
type Service struct {
	users     repository.UserRepository
	issuer    credential.Issuer
	sanitizer security.TextSanitizer
	notifier  RoleChangeNotifier
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	users repository.UserRepository,
	issuer credential.Issuer,
	sanitizer security.TextSanitizer,
	notifier RoleChangeNotifier,
) *Service {
	return &Service{
		users:     users,
		issuer:    issuer,
		sanitizer: sanitizer,
		notifier:  notifier,
	}
}

// Dashboard はユーザーを再取得し、現在の状態でクレデンシャルを再発行する。
// クライアントが保持するスナップショットを最新化するため、読み取りのたびに発行する。
func (s *Service) Dashboard(ctx context.Context, userID string) (*Result, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.reissue(user)
}

// UpdateInterests はユーザーの興味タグを置き換える。
// 本人または管理者であることの確認はミドルウェアで行う。
func (s *Service) UpdateInterests(ctx context.Context, userID string, interests []string) (*Result, error) {
	if interests == nil {
		return nil, model.NewValidationError("interestsは文字列のリストで指定してください。")
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Interests = s.sanitizer.SanitizeList(interests)
	if err := s.update(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("user interests updated",
		slog.String("user_id", user.ID),
		slog.Int("count", len(user.Interests)),
	)
	return s.reissue(user)
}

// ListAll は全ユーザーを返す。管理者向け。
func (s *Service) ListAll(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// UpdateStatus は管理者がユーザーのロールと状態を変更する。
// 変更があった場合は通知メールを非同期で送信する。
// 返すクレデンシャルは対象ユーザーのもの。
func (s *Service) UpdateStatus(ctx context.Context, userID string, role model.Role, status model.UserStatus) (*Result, error) {
	if role == "" || status == "" {
		return nil, model.NewValidationError("roleとstatusは必須です。")
	}
	if !role.Valid() {
		return nil, model.NewValidationError(fmt.Sprintf("不正なロールです: %s", role))
	}
	if !status.Valid() {
		return nil, model.NewValidationError(fmt.Sprintf("不正な状態です: %s", status))
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	oldRole, oldStatus := user.Role, user.Status
	user.Role = role
	user.Status = status
	if err := s.update(ctx, user); err != nil {
		return nil, err
	}

	if oldRole != role || oldStatus != status {
		slog.Info("user role updated",
			slog.String("user_id", user.ID),
			slog.String("old_role", string(oldRole)),
			slog.String("new_role", string(role)),
			slog.String("old_status", string(oldStatus)),
			slog.String("new_status", string(status)),
		)
		if s.notifier != nil {
			s.notifier.NotifyRoleChange(ctx, user, oldRole, oldStatus)
		}
	}

	return s.reissue(user)
}

// SearchMentors は活動中のメンターを検索する。
// termは氏名・所属・肩書き・紹介文、skillは専門タグに一致させる。
func (s *Service) SearchMentors(ctx context.Context, term, skill string) ([]*model.User, error) {
	mentors, err := s.users.Search(ctx, model.UserSearch{
		Role:      model.RoleMentor,
		Status:    model.UserStatusActive,
		Term:      term,
		Expertise: skill,
	})
	if err != nil {
		return nil, fmt.Errorf("メンターの検索に失敗しました: %w", err)
	}
	return mentors, nil
}

// ConnectMentor はメンターへの接続申請を記録する。
func (s *Service) ConnectMentor(ctx context.Context, requesterID, mentorID string) error {
	if requesterID == mentorID {
		return model.NewSelfConnectError()
	}

	mentor, err := s.users.FindByID(ctx, mentorID)
	if err != nil {
		return fmt.Errorf("メンターの取得に失敗しました: %w", err)
	}
	if mentor == nil || mentor.Role != model.RoleMentor || mentor.Status != model.UserStatusActive {
		return model.NewMentorNotFoundError()
	}

	slog.Info("mentor connection requested",
		slog.String("requester_id", requesterID),
		slog.String("mentor_id", mentorID),
	)
	return nil
}

// FindTeammates はチーム未所属の一般ユーザーから、呼び出し元と興味タグが重なる人を探す。
// 興味タグはクレデンシャルのスナップショットの値を使う。
func (s *Service) FindTeammates(ctx context.Context, caller model.Snapshot, term string) ([]*model.User, error) {
	mates, err := s.users.Search(ctx, model.UserSearch{
		Role:      model.RoleRegularUser,
		Term:      term,
		ExcludeID: caller.ID,
		NoTeam:    true,
		Interests: caller.Interests,
	})
	if err != nil {
		return nil, fmt.Errorf("チームメイトの検索に失敗しました: %w", err)
	}
	return mates, nil
}

func (s *Service) findUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

func (s *Service) update(ctx context.Context, user *model.User) error {
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) reissue(user *model.User) (*Result, error) {
	issued, err := s.issuer.Issue(user.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("クレデンシャルの発行に失敗しました: %w", err)
	}
	return &Result{User: user, Credential: issued}, nil
}
