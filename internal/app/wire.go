package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/confportal/internal/auth"
	"github.com/hitoshi/confportal/internal/config"
	"github.com/hitoshi/confportal/internal/notify"
	"github.com/hitoshi/confportal/internal/repository"
	"github.com/hitoshi/confportal/internal/security"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// outboundTimeout は外部IdP・メール送信APIへのリクエストのタイムアウト。
const outboundTimeout = 10 * time.Second

// revocationStore は失効台帳と、その後始末をまとめたもの。
// purgerはTTLで自動失効するバックエンドではnil。
type revocationStore struct {
	repo   repository.RevocationRepository
	purger repository.RevocationPurger
	close  func() error
}

// newRevocationStore は設定に応じた失効台帳を構築する。
func newRevocationStore(ctx context.Context, cfg *config.Config, db *sqlx.DB) (*revocationStore, error) {
	switch cfg.RevocationBackend {
	case config.RevocationBackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("revocation ledger backend selected", slog.String("backend", "redis"))
		return &revocationStore{
			repo:  repository.NewRedisRevocationRepo(rdb),
			close: rdb.Close,
		}, nil
	default:
		repo := repository.NewPostgresRevocationRepo(db)
		slog.Info("revocation ledger backend selected", slog.String("backend", "postgres"))
		return &revocationStore{
			repo:   repo,
			purger: repo,
			close:  func() error { return nil },
		}, nil
	}
}

// newProviderRegistry はIDとシークレットが設定された外部IdPのみを登録する。
func newProviderRegistry(cfg *config.Config, client *http.Client) *auth.ProviderRegistry {
	var providers []auth.OAuthProvider

	if cfg.Google.Enabled() {
		providers = append(providers, auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.CallbackURL("google"),
			HTTPClient:   client,
		}))
	}
	if cfg.Microsoft.Enabled() {
		providers = append(providers, auth.NewMicrosoftOAuthProvider(auth.MicrosoftOAuthConfig{
			ClientID:     cfg.Microsoft.ClientID,
			ClientSecret: cfg.Microsoft.ClientSecret,
			TenantID:     cfg.MicrosoftTenant,
			RedirectURL:  cfg.CallbackURL("microsoft"),
			HTTPClient:   client,
		}))
	}
	if cfg.LinkedIn.Enabled() {
		providers = append(providers, auth.NewLinkedInOAuthProvider(auth.LinkedInOAuthConfig{
			ClientID:     cfg.LinkedIn.ClientID,
			ClientSecret: cfg.LinkedIn.ClientSecret,
			RedirectURL:  cfg.CallbackURL("linkedin"),
			HTTPClient:   client,
		}))
	}

	registry := auth.NewProviderRegistry(providers...)
	slog.Info("identity providers enabled", slog.Any("providers", registry.Names()))
	return registry
}

// newSender はEMAIL_PROVIDERに応じたメール送信実装を構築する。
func newSender(ctx context.Context, cfg *config.Config, guard security.SSRFGuardService, client *http.Client) (notify.Sender, error) {
	switch cfg.EmailProvider {
	case config.EmailProviderEmailJS:
		if err := guard.ValidateURL(notify.DefaultEmailJSEndpoint); err != nil {
			return nil, fmt.Errorf("invalid emailjs endpoint: %w", err)
		}
		return notify.NewEmailJSSender(notify.EmailJSConfig{
			ServiceID: cfg.EmailJSServiceID,
			PublicKey: cfg.EmailJSPublicKey,
			Templates: map[string]string{
				notify.TemplateContact:      cfg.EmailJSTemplateContactID,
				notify.TemplateRoleAssigned: cfg.EmailJSTemplateRoleAssignedID,
			},
			HTTPClient: client,
		})
	case config.EmailProviderSES:
		return notify.NewSESSenderFromEnv(ctx, cfg.AWSRegion, cfg.EmailFrom)
	default:
		return notify.NewLogSender(), nil
	}
}
