package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
)

func TestLogSender_Send(t *testing.T) {
	s := NewLogSender()
	if err := s.Send(t.Context(), Message{To: "a@example.com", Subject: "hi"}); err != nil {
		t.Errorf("Send returned error: %v", err)
	}
}

func TestNewEmailJSSender_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name   string
		config EmailJSConfig
	}{
		{"service IDなし", EmailJSConfig{PublicKey: "pk"}},
		{"public keyなし", EmailJSConfig{ServiceID: "svc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEmailJSSender(tt.config); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEmailJSSender_Send(t *testing.T) {
	var got emailJSRequest
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewEmailJSSender(EmailJSConfig{
		Endpoint:   srv.URL,
		ServiceID:  "svc",
		PublicKey:  "pk",
		Templates:  map[string]string{TemplateContact: "tpl_contact"},
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewEmailJSSender returned error: %v", err)
	}

	err = s.Send(t.Context(), Message{
		To:       "admin@example.com",
		Template: TemplateContact,
		Params:   map[string]string{"from_name": "Ada"},
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("Content-Type = %q", contentType)
	}
	if got.ServiceID != "svc" || got.TemplateID != "tpl_contact" || got.UserID != "pk" {
		t.Errorf("request = %+v", got)
	}
	if got.TemplateParams["to_email"] != "admin@example.com" || got.TemplateParams["from_name"] != "Ada" {
		t.Errorf("template_params = %v", got.TemplateParams)
	}
}

func TestEmailJSSender_Send_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "The Public Key is invalid", http.StatusBadRequest)
	}))
	defer srv.Close()

	s, err := NewEmailJSSender(EmailJSConfig{
		Endpoint:   srv.URL,
		ServiceID:  "svc",
		PublicKey:  "pk",
		Templates:  map[string]string{TemplateContact: "tpl_contact"},
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewEmailJSSender returned error: %v", err)
	}

	t.Run("非2xx", func(t *testing.T) {
		err := s.Send(t.Context(), Message{To: "a@example.com", Template: TemplateContact})
		if !errors.Is(err, ErrSendFailed) {
			t.Errorf("err = %v, want ErrSendFailed", err)
		}
	})

	t.Run("テンプレート未設定", func(t *testing.T) {
		err := s.Send(t.Context(), Message{To: "a@example.com", Template: TemplateRoleAssigned})
		if err == nil || errors.Is(err, ErrSendFailed) {
			t.Errorf("err = %v, want configuration error", err)
		}
	})
}

type mockSESClient struct {
	sendEmailFn func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *mockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.sendEmailFn(ctx, params, optFns...)
}

// compile-time interface check
var _ SESAPI = (*mockSESClient)(nil)

func TestSESSender_Send(t *testing.T) {
	var got *ses.SendEmailInput
	client := &mockSESClient{
		sendEmailFn: func(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			got = params
			return &ses.SendEmailOutput{}, nil
		},
	}

	s := NewSESSender(client, "noreply@example.com")
	err := s.Send(t.Context(), Message{
		To:      "admin@example.com",
		ReplyTo: "ada@example.com",
		Subject: "Hello",
		Body:    "body",
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	if *got.Source != "noreply@example.com" {
		t.Errorf("Source = %q", *got.Source)
	}
	if len(got.Destination.ToAddresses) != 1 || got.Destination.ToAddresses[0] != "admin@example.com" {
		t.Errorf("ToAddresses = %v", got.Destination.ToAddresses)
	}
	if len(got.ReplyToAddresses) != 1 || got.ReplyToAddresses[0] != "ada@example.com" {
		t.Errorf("ReplyToAddresses = %v", got.ReplyToAddresses)
	}
	if *got.Message.Subject.Data != "Hello" || *got.Message.Body.Text.Data != "body" {
		t.Errorf("message = %q / %q", *got.Message.Subject.Data, *got.Message.Body.Text.Data)
	}
}

func TestSESSender_Send_Error(t *testing.T) {
	client := &mockSESClient{
		sendEmailFn: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, errors.New("MessageRejected")
		},
	}

	s := NewSESSender(client, "noreply@example.com")
	if err := s.Send(t.Context(), Message{To: "a@example.com"}); !errors.Is(err, ErrSendFailed) {
		t.Errorf("err = %v, want ErrSendFailed", err)
	}
}
