package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DefaultEmailJSEndpoint はEmailJSのサーバーサイド送信API。
const DefaultEmailJSEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

// EmailJSConfig はEmailJSSenderの設定。
type EmailJSConfig struct {
	Endpoint  string
	ServiceID string
	PublicKey string
	// Templates はテンプレート種別からEmailJSのテンプレートIDへの対応。
	Templates  map[string]string
	HTTPClient *http.Client
}

// EmailJSSender はEmailJSのテンプレートでメールを送信する。
type EmailJSSender struct {
	config EmailJSConfig
}

// NewEmailJSSender はEmailJSSenderを生成する。
func NewEmailJSSender(config EmailJSConfig) (*EmailJSSender, error) {
	if config.ServiceID == "" || config.PublicKey == "" {
		return nil, fmt.Errorf("emailjs service ID and public key are required")
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultEmailJSEndpoint
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	return &EmailJSSender{config: config}, nil
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

// Send はテンプレート変数に宛先を加えてEmailJSへ送信する。
func (s *EmailJSSender) Send(ctx context.Context, msg Message) error {
	templateID, ok := s.config.Templates[msg.Template]
	if !ok || templateID == "" {
		return fmt.Errorf("emailjs template not configured: %s", msg.Template)
	}

	params := make(map[string]string, len(msg.Params)+1)
	for k, v := range msg.Params {
		params[k] = v
	}
	params["to_email"] = msg.To

	body, err := json.Marshal(emailJSRequest{
		ServiceID:      s.config.ServiceID,
		TemplateID:     templateID,
		UserID:         s.config.PublicKey,
		TemplateParams: params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode emailjs request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create emailjs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: emailjs status %d: %s", ErrSendFailed, resp.StatusCode, string(detail))
	}
	return nil
}

// compile-time interface check
var _ Sender = (*EmailJSSender)(nil)
