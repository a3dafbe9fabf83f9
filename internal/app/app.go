package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/tasklane/internal/config"
	"github.com/prperemyshlev/tasklane/internal/email"
	"github.com/prperemyshlev/tasklane/internal/handler"
	"github.com/prperemyshlev/tasklane/internal/repository"
	"github.com/prperemyshlev/tasklane/internal/service"
	"github.com/prperemyshlev/tasklane/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 5 * time.Second
	serviceName     = "tasklane-auth"
)

type App struct {
	infra  Infrastructure
	config *config.Config
	router *gin.Engine
	server *http.Server
}

// Services is the auth core wired over one set of repositories
type Services struct {
	Sessions   service.SessionService
	MagicLinks service.MagicLinkService
	Devices    service.DeviceAuthService
	Users      service.UserService
	Sweeper    *service.Sweeper
}

// NewServices wires the auth services over repos
func NewServices(repos *repository.Repositories, mailer email.Sender, cfg *config.Config, logger *zap.Logger, opts ...service.Option) *Services {
	sessions := service.NewSessionService(
		repos.Session,
		cfg.Session.TTL.Duration,
		cfg.Session.RenewThreshold.Duration,
		logger,
		opts...,
	)

	magicLinks := service.NewMagicLinkService(
		repos.MagicLink,
		repos.User,
		sessions,
		mailer,
		cfg.MagicLink.BaseURL,
		cfg.MagicLink.TTL.Duration,
		logger,
		opts...,
	)

	devices := service.NewDeviceAuthService(
		repos.DeviceCode,
		sessions,
		cfg.Device.VerificationURL,
		cfg.Device.TTL.Duration,
		cfg.Device.PollInterval.Duration,
		logger,
		opts...,
	)

	return &Services{
		Sessions:   sessions,
		MagicLinks: magicLinks,
		Devices:    devices,
		Users:      service.NewUserService(repos.User, sessions, logger),
		Sweeper:    service.NewSweeper(sessions, magicLinks, devices, logger),
	}
}

// NewMailer returns the Postmark sender, or nil when no token is configured
func NewMailer(cfg config.EmailConfig, logger *zap.Logger) email.Sender {
	client := email.NewPostmarkClient(cfg.PostmarkToken, cfg.From)
	if !client.Configured() {
		logger.Warn("Postmark is not configured, sign-in links will only be logged")
		return nil
	}
	return client
}

func NewApp(infra Infrastructure, cfg *config.Config) *App {
	logger := infra.Logger()
	repos := repository.NewRepositories(infra.Postgres())

	services := NewServices(repos, NewMailer(cfg.Email, logger), cfg, logger)
	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra)

	router := NewRouter(cfg, services, rateLimiter, healthChecker.Handler, infra.MetricsHandler(), logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:  infra,
		config: cfg,
		router: router,
		server: srv,
	}
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// NewRouter builds the HTTP router. A nil limiter disables rate limiting.
func NewRouter(
	cfg *config.Config,
	services *Services,
	limiter service.Limiter,
	health gin.HandlerFunc,
	metricsHandler http.Handler,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(handler.LoggerMiddleware(logger))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	cookie := handler.SessionCookie{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.CookieSecure,
		MaxAge: cfg.Session.TTL.Duration,
	}
	legacy := handler.LegacyToken{
		Token:  cfg.Legacy.APIToken,
		UserID: cfg.Legacy.UserID,
	}

	authHandler := handler.NewAuthHandler(services.MagicLinks, services.Sessions, services.Users, cookie, cfg.MagicLink.RedirectURL, logger)
	deviceHandler := handler.NewDeviceHandler(services.Devices, logger)
	adminHandler := handler.NewAdminHandler(services.Users, logger)

	requireAuth := handler.AuthMiddleware(services.Sessions, services.Users, cookie, legacy, logger)
	window := cfg.Security.RateLimitWindow.Duration
	strictLimit := handler.RateLimitMiddleware(limiter, cfg.Security.RateLimitRequests, window, handler.RouteKey, logger)
	pollLimit := handler.RateLimitMiddleware(limiter, cfg.Security.PollRateLimit, window, handler.RouteKey, logger)

	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", health)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/magic-link", strictLimit, authHandler.RequestMagicLink)
			auth.GET("/verify", authHandler.VerifyRedirect)
			auth.POST("/verify", authHandler.Verify)

			auth.POST("/device/code", strictLimit, deviceHandler.Initiate)
			auth.POST("/device/token", pollLimit, deviceHandler.Token)

			authed := auth.Group("", requireAuth)
			{
				authed.GET("/device/lookup", deviceHandler.Lookup)
				authed.POST("/device/approve", deviceHandler.Approve)
				authed.POST("/device/deny", deviceHandler.Deny)
				authed.POST("/logout", authHandler.Logout)
				authed.GET("/me", authHandler.GetMe)
				authed.GET("/sessions", authHandler.ListSessions)
				authed.DELETE("/sessions/:id", authHandler.RevokeSession)
			}
		}

		admin := api.Group("/admin", requireAuth, handler.RequireAdmin())
		{
			admin.PUT("/users/:id/blocked", adminHandler.SetBlocked)
		}
	}

	return router
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
