package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/tasklane/internal/auth"
	"github.com/prperemyshlev/tasklane/internal/domain"
	"github.com/prperemyshlev/tasklane/internal/dto"
	"github.com/prperemyshlev/tasklane/internal/service"
	"github.com/prperemyshlev/tasklane/internal/utils"
	"go.uber.org/zap"
)

// LegacyToken is the deprecated fixed shared-secret bearer credential. It maps
// to a single configured user and bypasses the session table. Do not extend it.
type LegacyToken struct {
	Token  string
	UserID string
}

// Enabled reports whether the legacy credential is configured
func (l LegacyToken) Enabled() bool {
	return l.Token != "" && l.UserID != ""
}

// AuthMiddleware authenticates the request by session cookie, then bearer
// session token, then the legacy shared secret
func AuthMiddleware(
	sessions service.SessionService,
	users service.UserService,
	cookie SessionCookie,
	legacy LegacyToken,
	logger *zap.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		bearer := bearerToken(c)

		session, err := validateFirst(c, sessions, cookie.read(c), bearer)
		if err != nil {
			logger.Error("Failed to validate session", zap.Error(err))
			abortInternal(c)
			return
		}

		if session != nil {
			user, err := users.GetUser(ctx, session.UserID)
			if err != nil {
				if errors.Is(err, service.ErrUserNotFound) {
					abortUnauthorized(c)
					return
				}
				logger.Error("Failed to load session user", zap.String("user_id", session.UserID), zap.Error(err))
				abortInternal(c)
				return
			}

			if user.IsBlocked {
				if err := sessions.DeleteByID(ctx, session.ID); err != nil {
					logger.Error("Failed to delete blocked user session", zap.String("session_id", session.ID), zap.Error(err))
				}
				cookie.clear(c)
				c.JSON(http.StatusForbidden, dto.ErrorResponse{
					Error:   "Forbidden",
					Message: "account is blocked",
				})
				c.Abort()
				return
			}

			publish(c, &auth.Principal{
				UserID:    user.ID,
				SessionID: session.ID,
				IsAdmin:   user.IsAdmin,
			})
			c.Next()
			return
		}

		// Deprecated: remove once no client sends the shared secret
		if legacy.Enabled() && bearer != "" && utils.SecureCompare(bearer, legacy.Token) {
			logger.Warn("Request authenticated with deprecated legacy token",
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
			publish(c, &auth.Principal{UserID: legacy.UserID, Legacy: true})
			c.Next()
			return
		}

		abortUnauthorized(c)
	}
}

// RequireAdmin rejects principals without the admin flag. It must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := auth.FromContext(c.Request.Context())
		if principal == nil || !principal.IsAdmin {
			c.JSON(http.StatusForbidden, dto.ErrorResponse{
				Error:   "Forbidden",
				Message: "admin privileges required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// validateFirst returns the session for the first credential that validates.
// A nil session with a nil error means no credential was accepted.
func validateFirst(c *gin.Context, sessions service.SessionService, credentials ...string) (*domain.Session, error) {
	for _, raw := range credentials {
		if raw == "" {
			continue
		}
		session, err := sessions.Validate(c.Request.Context(), raw)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, service.ErrSessionNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

func publish(c *gin.Context, principal *auth.Principal) {
	c.Set("user_id", principal.UserID)
	if principal.SessionID != "" {
		c.Set("session_id", principal.SessionID)
	}
	c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), principal))
}

func abortUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
		Error:   "Unauthorized",
		Message: "authentication required",
	})
	c.Abort()
}

func abortInternal(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
		Error:   "Internal server error",
		Message: "an unexpected error occurred",
	})
	c.Abort()
}
