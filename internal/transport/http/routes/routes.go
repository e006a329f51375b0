package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ledgerdesk/platform-auth/internal/core/port"
	"github.com/ledgerdesk/platform-auth/internal/infra/config"
	appredis "github.com/ledgerdesk/platform-auth/internal/infra/redis"
	"github.com/ledgerdesk/platform-auth/internal/infra/telemetry"
	"github.com/ledgerdesk/platform-auth/internal/transport/http/handlers"
	"github.com/ledgerdesk/platform-auth/internal/transport/http/middleware"
	"github.com/ledgerdesk/platform-auth/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          *usecase.AuthService
	Registration  *usecase.RegistrationService
	PasswordReset *usecase.PasswordResetService
	MFA           *usecase.MFAService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Telemetry   *telemetry.Provider
	Services    ServiceSet
	Sessions    port.SessionRegistry
	Database    *pgxpool.Pool
	Cache       *appredis.Client
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.CORSOrigins))
	if deps.Telemetry != nil {
		r.Use(middleware.Metrics(deps.Telemetry))
	}

	healthHandler := handlers.NewHealthHandler(deps.Database, deps.Cache)
	healthHandler.RegisterRoutes(&r.RouterGroup)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")

		authHandler := handlers.NewAuthHandler(deps.Services.Auth)
		authHandler.RegisterRoutes(authGroup, rateLimitRule(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts)...)

		registrationHandler := handlers.NewRegistrationHandler(deps.Services.Registration, deps.Services.Auth)
		registrationHandler.RegisterRoutes(authGroup, rateLimitRule(deps, "auth_register_ip", deps.Config.RateLimit.RegisterMaxAttempts)...)

		passwordHandler := handlers.NewPasswordHandler(deps.Services.PasswordReset, deps.Services.Auth)
		passwordHandler.RegisterRoutes(authGroup, rateLimitRule(deps, "password_reset_ip", deps.Config.RateLimit.PasswordResetMaxAttempts)...)

		mfaHandler := handlers.NewMFAHandler(deps.Services.MFA, deps.Services.Auth)
		mfaHandler.RegisterRoutes(authGroup)

		sessionHandler := handlers.NewSessionHandler(deps.Sessions, deps.Services.Auth)
		sessionHandler.RegisterRoutes(api)
	}

	return r
}

func rateLimitRule(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
