// Package notify はメール通知の送信を提供する。
// 送信手段（ログ出力、EmailJS、Amazon SES）はSenderとして差し替えられる。
package notify

import (
	"context"
	"errors"
	"log/slog"
)

// テンプレート種別。EmailJSではテンプレートIDに対応付ける。
const (
	TemplateRoleAssigned = "role_assigned"
	TemplateContact      = "contact"
)

// ErrSendFailed は送信手段がメールを受け付けなかったことを表す。
var ErrSendFailed = errors.New("email send failed")

// Message は送信するメールを表す。
// テンプレート型の送信手段はTemplateとParamsを、本文型の送信手段はSubjectとBodyを使用する。
type Message struct {
	To       string
	ReplyTo  string
	Subject  string
	Body     string
	Template string
	Params   map[string]string
}

// Sender はメールを送信する。
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender はメールを送信せずにログへ出力する。開発環境用。
type LogSender struct{}

// NewLogSender はLogSenderを生成する。
func NewLogSender() *LogSender {
	return &LogSender{}
}

// Send はメールの内容をログに出力する。
func (s *LogSender) Send(_ context.Context, msg Message) error {
	slog.Info("email not sent (log sender)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("template", msg.Template),
	)
	return nil
}

// compile-time interface check
var _ Sender = (*LogSender)(nil)
