package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/confportal/internal/credential"
	"github.com/hitoshi/confportal/internal/middleware"
	"github.com/hitoshi/confportal/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Verifier          credential.Verifier
	Revocations       middleware.RevocationChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           middleware.StatusRecorder
	MetricsHandler    http.Handler // nilの場合 /metrics を公開しない

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	UserService    UserServiceInterface
	TeamService    TeamServiceInterface
	ContactService ContactServiceInterface

	// ヘルスチェック
	DB Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Metrics → Logging → SecurityHeaders → CORS
//	  → [認証不要] RateLimit(Auth)
//	  → [認証必須] Auth → RateLimit(General) → RequireRole / RequireOwnerOrAdmin
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)
	teamHandler := NewTeamHandler(deps.TeamService)
	contactHandler := NewContactHandler(deps.ContactService)

	// --- 運用エンドポイント ---
	if deps.DB != nil {
		r.Get("/health", NewHealthHandler(deps.DB).Health)
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証不要のルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())

		r.Post("/api/register", authHandler.Register)
		r.Post("/api/login", authHandler.Login)

		// 外部IdP連携
		r.Get("/auth/{provider}", authHandler.ProviderLogin)
		r.Get("/auth/{provider}/callback", authHandler.ProviderCallback)

		// メールを同期送信するためIP単位で制限する
		r.Post("/api/contact", contactHandler.Submit)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Verifier, deps.Revocations))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/api/logout", authHandler.Logout)
		r.Get("/api/dashboard", userHandler.Dashboard)

		r.With(middleware.RequireOwnerOrAdmin("id")).
			Put("/api/users/{id}/interests", userHandler.UpdateInterests)

		// 管理者
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleAdmin))
			r.Get("/users", userHandler.ListUsers)
			r.Put("/users/{id}/status", userHandler.UpdateStatus)
		})

		// メンター
		r.Get("/api/mentors", userHandler.ListMentors)
		r.Post("/api/mentors/{id}/connect", userHandler.ConnectMentor)

		// チーム
		r.Route("/api/teams", func(r chi.Router) {
			r.Get("/", teamHandler.ListTeams)
			r.With(middleware.RequireRole(model.RoleRegularUser)).Post("/", teamHandler.CreateTeam)

			r.Route("/{id}", func(r chi.Router) {
				r.With(middleware.RequireRole(model.RoleRegularUser)).Post("/join", teamHandler.JoinTeam)
				r.Post("/leave", teamHandler.LeaveTeam)
				r.Delete("/disband", teamHandler.DisbandTeam)
			})
		})

		r.Get("/api/teammates", userHandler.ListTeammates)
	})

	return r
}
