package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 失効台帳のバックエンド。
const (
	RevocationBackendPostgres = "postgres"
	RevocationBackendRedis    = "redis"
)

// メール送信方式。
const (
	EmailProviderLog     = "log"
	EmailProviderEmailJS = "emailjs"
	EmailProviderSES     = "ses"
)

// OAuthClient は外部IdPのクライアント設定。
type OAuthClient struct {
	ClientID     string
	ClientSecret string
}

// Enabled はIDとシークレットの両方が設定されているかを返す。
func (c OAuthClient) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Credential
	JWTSecretKey string
	JWTTTL       time.Duration

	// Revocation
	RevocationBackend string
	RedisURL          string
	RevocationGrace   time.Duration
	CleanupInterval   time.Duration

	// OAuth
	Google          OAuthClient
	Microsoft       OAuthClient
	MicrosoftTenant string
	LinkedIn        OAuthClient

	// Email
	EmailProvider                 string
	EmailJSServiceID              string
	EmailJSPublicKey              string
	EmailJSTemplateContactID      string
	EmailJSTemplateRoleAssignedID string
	AWSRegion                     string
	EmailFrom                     string
	AdminEmail                    string

	// Rate Limit
	RateLimitGeneral int
	RateLimitAuth    int

	// Logging
	LogLevel string

	// Server
	ServerPort  string
	BaseURL     string
	FrontendURL string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は不足分をまとめたエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecretKey = os.Getenv("JWT_SECRET_KEY")
	if cfg.JWTSecretKey == "" {
		missing = append(missing, "JWT_SECRET_KEY")
	}

	cfg.FrontendURL = strings.TrimRight(os.Getenv("FRONTEND_URL"), "/")
	if cfg.FrontendURL == "" {
		missing = append(missing, "FRONTEND_URL")
	}

	cfg.BaseURL = strings.TrimRight(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.RevocationBackend = strings.ToLower(getEnvString("REVOCATION_BACKEND", RevocationBackendPostgres))
	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RevocationBackend == RevocationBackendRedis && cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	switch cfg.RevocationBackend {
	case RevocationBackendPostgres, RevocationBackendRedis:
	default:
		return nil, fmt.Errorf("invalid REVOCATION_BACKEND: %q", cfg.RevocationBackend)
	}

	cfg.EmailProvider = strings.ToLower(getEnvString("EMAIL_PROVIDER", EmailProviderLog))
	switch cfg.EmailProvider {
	case EmailProviderLog, EmailProviderEmailJS, EmailProviderSES:
	default:
		return nil, fmt.Errorf("invalid EMAIL_PROVIDER: %q", cfg.EmailProvider)
	}

	// Optional fields with defaults
	cfg.JWTTTL = getEnvDuration("JWT_TTL", 24*time.Hour)
	cfg.RevocationGrace = getEnvDuration("REVOCATION_GRACE", time.Hour)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", time.Hour)

	cfg.Google = OAuthClient{ClientID: os.Getenv("GOOGLE_CLIENT_ID"), ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET")}
	cfg.Microsoft = OAuthClient{ClientID: os.Getenv("MICROSOFT_CLIENT_ID"), ClientSecret: os.Getenv("MICROSOFT_CLIENT_SECRET")}
	cfg.MicrosoftTenant = getEnvString("MICROSOFT_TENANT_ID", "common")
	cfg.LinkedIn = OAuthClient{ClientID: os.Getenv("LINKEDIN_CLIENT_ID"), ClientSecret: os.Getenv("LINKEDIN_CLIENT_SECRET")}

	cfg.EmailJSServiceID = os.Getenv("EMAILJS_SERVICE_ID")
	cfg.EmailJSPublicKey = os.Getenv("EMAILJS_PUBLIC_KEY")
	cfg.EmailJSTemplateContactID = os.Getenv("EMAILJS_TEMPLATE_CONTACT_US_ID")
	cfg.EmailJSTemplateRoleAssignedID = os.Getenv("EMAILJS_TEMPLATE_ROLE_ASSIGNED_ID")
	cfg.AWSRegion = getEnvString("AWS_REGION", "us-east-1")
	cfg.EmailFrom = os.Getenv("EMAIL_FROM")
	cfg.AdminEmail = os.Getenv("ADMIN_EMAIL")

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.FrontendURL)

	return cfg, nil
}

// CallbackURL は外部IdPに登録するコールバックURLを返す。
func (c *Config) CallbackURL(provider string) string {
	return c.BaseURL + "/auth/" + provider + "/callback"
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
