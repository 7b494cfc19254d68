// Package auth はメールアドレス・パスワード認証、外部IdP連携によるログイン、
// ログアウト（クレデンシャル失効）を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/confportal/internal/credential"
	"github.com/hitoshi/confportal/internal/metrics"
	"github.com/hitoshi/confportal/internal/model"
	"github.com/hitoshi/confportal/internal/repository"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 8

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// 外部IdP連携の失敗種別。ハンドラーでリダイレクト時のエラーコードに変換する。
var (
	ErrUnknownProvider  = errors.New("unknown identity provider")
	ErrProviderExchange = errors.New("identity provider exchange failed")
	ErrProviderNoEmail  = errors.New("identity provider returned no email")
	ErrProviderNoID     = errors.New("identity provider returned no id")
)

// Result は認証成功時のユーザーと発行したクレデンシャル。
type Result struct {
	User       *model.User
	Credential *credential.Issued
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users       repository.UserRepository
	revocations repository.RevocationRepository
	issuer      credential.Issuer
	hasher      *PasswordHasher
	providers   *ProviderRegistry
	metrics     metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	revocations repository.RevocationRepository,
	issuer credential.Issuer,
	hasher *PasswordHasher,
	providers *ProviderRegistry,
	collector metrics.MetricsCollector,
) *Service {
	if providers == nil {
		providers = NewProviderRegistry()
	}
	return &Service{
		users:       users,
		revocations: revocations,
		issuer:      issuer,
		hasher:      hasher,
		providers:   providers,
		metrics:     collector,
	}
}

// NormalizeEmail はメールアドレスを比較用に正規化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register はメールアドレスとパスワードでユーザーを登録し、クレデンシャルを発行する。
// 新規ユーザーはRegular User / pending で作成される。
func (s *Service) Register(ctx context.Context, fullName, email, password string) (*Result, error) {
	fullName = strings.TrimSpace(fullName)
	email = NormalizeEmail(email)

	if fullName == "" || email == "" || password == "" {
		s.metrics.RecordRegistration(metrics.ResultFailure)
		return nil, model.NewValidationError("氏名、メールアドレス、パスワードは必須です。")
	}
	if !emailPattern.MatchString(email) {
		s.metrics.RecordRegistration(metrics.ResultFailure)
		return nil, model.NewInvalidEmailError()
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		s.metrics.RecordRegistration(metrics.ResultFailure)
		return nil, model.NewWeakPasswordError(MinPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		s.metrics.RecordRegistration(metrics.ResultFailure)
		return nil, model.NewValidationError(fmt.Sprintf("パスワードは%dバイト以内で指定してください。", maxPasswordBytes))
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		s.metrics.RecordRegistration(metrics.ResultFailure)
		return nil, model.NewDuplicateEmailError()
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           uuid.New().String(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleRegularUser,
		Status:       model.UserStatusPending,
		Provider:     model.ProviderEmail,
		Interests:    []string{},
		CreatedAt:    time.Now().UTC(),
	}

	// 事前確認をすり抜けた同時登録は一意制約で検出する
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.metrics.RecordRegistration(metrics.ResultFailure)
			return nil, model.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	issued, err := s.issuer.Issue(user.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to issue credential: %w", err)
	}

	s.metrics.RecordRegistration(metrics.ResultSuccess)
	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("provider", user.Provider),
	)

	return &Result{User: user, Credential: issued}, nil
}

// Login はメールアドレスとパスワードで認証し、クレデンシャルを発行する。
// パスワードでのログインはprovider=emailのアカウントのみ許可する。
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		s.metrics.RecordLogin(model.ProviderEmail, metrics.ResultFailure)
		return nil, model.NewValidationError("メールアドレスとパスワードは必須です。")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if user == nil || user.Provider != model.ProviderEmail || !s.hasher.Verify(user.PasswordHash, password) {
		s.metrics.RecordLogin(model.ProviderEmail, metrics.ResultFailure)
		return nil, model.NewInvalidCredentialsError()
	}

	issued, err := s.issuer.Issue(user.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to issue credential: %w", err)
	}

	s.metrics.RecordLogin(model.ProviderEmail, metrics.ResultSuccess)
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("provider", user.Provider),
	)

	return &Result{User: user, Credential: issued}, nil
}

// Logout はクレデンシャルのjtiを失効させる。失効済みの場合もエラーにしない。
func (s *Service) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return fmt.Errorf("token ID is required")
	}

	if err := s.revocations.Revoke(ctx, tokenID, expiresAt); err != nil {
		return fmt.Errorf("failed to revoke credential: %w", err)
	}

	s.metrics.RecordRevocation()
	slog.Info("user logged out", slog.String("jti", tokenID))
	return nil
}

// Providers は有効な外部IdPの名前を返す。
func (s *Service) Providers() []string {
	return s.providers.Names()
}

// GetLoginURL は指定プロバイダーの認証URLを生成する。
func (s *Service) GetLoginURL(provider, state string) (string, error) {
	p, ok := s.providers.Get(provider)
	if !ok {
		return "", ErrUnknownProvider
	}
	return p.GetLoginURL(state), nil
}

// HandleCallback は外部IdPのコールバックを処理し、ユーザーを照合してクレデンシャルを発行する。
//
// 照合順序:
//  1. (provider, provider_id) で連携済みのユーザーがいれば氏名とメールアドレスを更新する
//  2. 同じメールアドレスのユーザーが別の方式で登録済みならEmailOwnedByOtherMethod
//  3. それ以外はstatus=pendingで新規作成する
func (s *Service) HandleCallback(ctx context.Context, provider, code string) (*Result, error) {
	p, ok := s.providers.Get(provider)
	if !ok {
		return nil, ErrUnknownProvider
	}

	info, err := p.ExchangeCode(ctx, code)
	if err != nil {
		s.metrics.RecordLogin(provider, metrics.ResultFailure)
		return nil, fmt.Errorf("%w: %v", ErrProviderExchange, err)
	}

	email := NormalizeEmail(info.Email)
	if email == "" {
		s.metrics.RecordLogin(provider, metrics.ResultFailure)
		return nil, ErrProviderNoEmail
	}
	if info.ProviderUserID == "" {
		s.metrics.RecordLogin(provider, metrics.ResultFailure)
		return nil, ErrProviderNoID
	}
	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = email
	}

	user, err := s.reconcile(ctx, provider, info.ProviderUserID, email, name)
	if err != nil {
		s.metrics.RecordLogin(provider, metrics.ResultFailure)
		return nil, err
	}

	issued, err := s.issuer.Issue(user.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to issue credential: %w", err)
	}

	s.metrics.RecordLogin(provider, metrics.ResultSuccess)
	return &Result{User: user, Credential: issued}, nil
}

// reconcile は外部IdPのプロフィールを既存ユーザーと照合する。
func (s *Service) reconcile(ctx context.Context, provider, providerID, email, name string) (*model.User, error) {
	linked, err := s.users.FindByProviderLink(ctx, provider, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by provider link: %w", err)
	}

	if linked != nil {
		linked.FullName = name
		linked.Email = email
		if err := s.users.Update(ctx, linked); err != nil {
			// IdP側でメールアドレスが別ユーザーのものに変わった場合
			if errors.Is(err, repository.ErrDuplicateEmail) {
				return nil, model.NewEmailOwnedByOtherMethodError()
			}
			return nil, fmt.Errorf("failed to update linked user: %w", err)
		}
		slog.Info("existing user logged in",
			slog.String("user_id", linked.ID),
			slog.String("provider", provider),
		)
		return linked, nil
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		slog.Warn("email already registered with another method",
			slog.String("user_id", existing.ID),
			slog.String("existing_provider", existing.Provider),
			slog.String("provider", provider),
		)
		return nil, model.NewEmailOwnedByOtherMethodError()
	}

	user := &model.User{
		ID:         uuid.New().String(),
		FullName:   name,
		Email:      email,
		Role:       model.RoleRegularUser,
		Status:     model.UserStatusPending,
		Provider:   provider,
		ProviderID: providerID,
		Interests:  []string{},
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, model.NewEmailOwnedByOtherMethodError()
		case errors.Is(err, repository.ErrDuplicateProviderLink):
			// 同じIdPアカウントの同時コールバック。先に作成された方を使う
			winner, findErr := s.users.FindByProviderLink(ctx, provider, providerID)
			if findErr != nil {
				return nil, fmt.Errorf("failed to find user by provider link: %w", findErr)
			}
			if winner == nil {
				return nil, model.NewDuplicateProviderLinkError(provider)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("failed to create federated user: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("provider", provider),
	)
	return user, nil
}
