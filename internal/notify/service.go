package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/confportal/internal/model"
)

// 通知メールの固定値。
const (
	SupportTeamName   = "mAIple Support Team"
	roleAssignedTitle = "Role Assignment Update"
	contactTitle      = "New Contact Message"
)

// roleChangeTimeout はバックグラウンド送信1件あたりの上限時間。
const roleChangeTimeout = 30 * time.Second

// ContactInput はお問い合わせフォームの入力。
type ContactInput struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// Service は通知メールの組み立てと送信を行う。
type Service struct {
	sender      Sender
	adminEmail  string
	frontendURL string
	wg          sync.WaitGroup
}

// NewService はServiceを生成する。
func NewService(sender Sender, adminEmail, frontendURL string) *Service {
	return &Service{
		sender:      sender,
		adminEmail:  adminEmail,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// NotifyRoleChange はロールまたは状態の変更をユーザーへ通知する。
// 送信はバックグラウンドで行い、失敗はログに記録するのみで呼び出し元へは返さない。
func (s *Service) NotifyRoleChange(ctx context.Context, user *model.User, oldRole model.Role, oldStatus model.UserStatus) {
	msg := Message{
		To:       user.Email,
		Subject:  roleAssignedTitle,
		Template: TemplateRoleAssigned,
		Params: map[string]string{
			"user_name":     user.FullName,
			"user_email":    user.Email,
			"old_role":      string(oldRole),
			"new_role":      string(user.Role),
			"old_status":    string(oldStatus),
			"new_status":    string(user.Status),
			"dashboard_url": s.frontendURL + "/dashboard",
			"title":         roleAssignedTitle,
		},
	}
	msg.Body = fmt.Sprintf("Hello %s,\n\nYour role has changed from %s to %s and your status from %s to %s.\n\nDashboard: %s\n",
		user.FullName, oldRole, user.Role, oldStatus, user.Status, msg.Params["dashboard_url"])

	// リクエスト終了後も送信を継続する
	bg := context.WithoutCancel(ctx)
	userID := user.ID

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sendCtx, cancel := context.WithTimeout(bg, roleChangeTimeout)
		defer cancel()

		if err := s.sender.Send(sendCtx, msg); err != nil {
			slog.Warn("role change notification failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			return
		}
		slog.Info("role change notification sent", slog.String("user_id", userID))
	}()
}

// SendContact はお問い合わせ内容を管理者宛てに送信する。
func (s *Service) SendContact(ctx context.Context, in ContactInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)

	if in.Name == "" || in.Email == "" || in.Subject == "" || in.Message == "" {
		return model.NewValidationError("氏名、メールアドレス、件名、本文は必須です。")
	}

	msg := Message{
		To:       s.adminEmail,
		ReplyTo:  in.Email,
		Subject:  fmt.Sprintf("[%s] %s", contactTitle, in.Subject),
		Body:     fmt.Sprintf("From: %s <%s>\n\n%s\n", in.Name, in.Email, in.Message),
		Template: TemplateContact,
		Params: map[string]string{
			"from_name":  in.Name,
			"from_email": in.Email,
			"subject":    in.Subject,
			"message":    in.Message,
			"to_name":    SupportTeamName,
			"title":      contactTitle,
		},
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		slog.Error("contact message delivery failed",
			slog.String("from_email", in.Email),
			slog.String("error", err.Error()),
		)
		return model.NewNotificationFailedError()
	}

	slog.Info("contact message sent", slog.String("from_email", in.Email))
	return nil
}

// Wait はバックグラウンド送信の完了を待つ。シャットダウン時に使用する。
func (s *Service) Wait() {
	s.wg.Wait()
}
