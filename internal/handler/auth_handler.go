package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/tasklane/internal/auth"
	"github.com/prperemyshlev/tasklane/internal/domain"
	"github.com/prperemyshlev/tasklane/internal/dto"
	"github.com/prperemyshlev/tasklane/internal/service"
	"go.uber.org/zap"
)

// AuthHandler handles magic-link sign-in and session management requests
type AuthHandler struct {
	links       service.MagicLinkService
	sessions    service.SessionService
	users       service.UserService
	cookie      SessionCookie
	redirectURL string
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	links service.MagicLinkService,
	sessions service.SessionService,
	users service.UserService,
	cookie SessionCookie,
	redirectURL string,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		links:       links,
		sessions:    sessions,
		users:       users,
		cookie:      cookie,
		redirectURL: redirectURL,
		logger:      logger,
	}
}

// RequestMagicLink handles sign-in link requests
// @Summary Request a sign-in link
// @Description Email a single-use sign-in link. The response does not reveal whether the account exists.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.MagicLinkRequest true "Sign-in request"
// @Success 202 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /auth/magic-link [post]
func (h *AuthHandler) RequestMagicLink(c *gin.Context) {
	var req dto.MagicLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	if err := h.links.RequestSignIn(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, service.ErrInvalidEmail) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Message: err.Error(),
			})
			return
		}
		h.logger.Error("Failed to request sign-in", zap.Error(err))
		abortInternal(c)
		return
	}

	c.JSON(http.StatusAccepted, dto.SuccessResponse{
		Message: "If the address can receive email, a sign-in link is on its way",
	})
}

// VerifyRedirect redeems a link clicked in the browser, sets the session
// cookie and redirects into the app
// @Summary Redeem a sign-in link
// @Tags auth
// @Param token query string true "Magic-link token"
// @Success 303
// @Failure 401 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /auth/verify [get]
func (h *AuthHandler) VerifyRedirect(c *gin.Context) {
	result, ok := h.redeem(c, c.Query("token"))
	if !ok {
		return
	}

	h.cookie.set(c, result.Session.Token)
	c.Redirect(http.StatusSeeOther, h.landingURL(result.NewUser))
}

// Verify redeems a sign-in token for API clients
// @Summary Redeem a sign-in token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.VerifyRequest true "Token"
// @Success 200 {object} dto.SignInResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /auth/verify [post]
func (h *AuthHandler) Verify(c *gin.Context) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	result, ok := h.redeem(c, req.Token)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, dto.NewSignInResponse(result))
}

// Logout revokes the presented session and clears the cookie
// @Summary Logout
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if sessionID := c.GetString("session_id"); sessionID != "" {
		if err := h.sessions.DeleteByID(c.Request.Context(), sessionID); err != nil {
			h.logger.Error("Failed to delete session", zap.String("session_id", sessionID), zap.Error(err))
			abortInternal(c)
			return
		}
	}

	h.cookie.clear(c)

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Logged out successfully",
	})
}

// GetMe handles getting current user profile
// @Summary Get current user profile
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.UserResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "Not found",
				Message: err.Error(),
			})
			return
		}
		h.logger.Error("Failed to get user", zap.Error(err))
		abortInternal(c)
		return
	}

	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// ListSessions lists the caller's active sessions
// @Summary List sessions
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {array} dto.SessionResponse
// @Router /auth/sessions [get]
func (h *AuthHandler) ListSessions(c *gin.Context) {
	sessions, err := h.sessions.ListForUser(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		h.logger.Error("Failed to list sessions", zap.Error(err))
		abortInternal(c)
		return
	}

	current := c.GetString("session_id")
	resp := make([]dto.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, dto.NewSessionResponse(s, s.ID == current))
	}

	c.JSON(http.StatusOK, resp)
}

// RevokeSession deletes one of the caller's sessions
// @Summary Revoke a session
// @Tags auth
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /auth/sessions/{id} [delete]
func (h *AuthHandler) RevokeSession(c *gin.Context) {
	sessionID := c.Param("id")

	err := h.sessions.RevokeForUser(c.Request.Context(), c.GetString("user_id"), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "Not found",
				Message: err.Error(),
			})
			return
		}
		h.logger.Error("Failed to revoke session", zap.String("session_id", sessionID), zap.Error(err))
		abortInternal(c)
		return
	}

	if sessionID == c.GetString("session_id") {
		h.cookie.clear(c)
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Session revoked",
	})
}

func (h *AuthHandler) redeem(c *gin.Context, token string) (*service.SignInResult, bool) {
	result, err := h.links.Redeem(c.Request.Context(), token, clientMetadata(c))
	if err == nil {
		return result, true
	}

	switch {
	case errors.Is(err, service.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: err.Error(),
		})
	case errors.Is(err, service.ErrAccountBlocked):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error:   "Forbidden",
			Message: err.Error(),
		})
	default:
		h.logger.Error("Failed to redeem magic link", zap.Error(err))
		abortInternal(c)
	}
	return nil, false
}

func (h *AuthHandler) landingURL(newUser bool) string {
	if !newUser {
		return h.redirectURL
	}

	u, err := url.Parse(h.redirectURL)
	if err != nil {
		return h.redirectURL
	}
	q := u.Query()
	q.Set("welcome", "1")
	u.RawQuery = q.Encode()
	return u.String()
}

func clientMetadata(c *gin.Context) domain.ClientMetadata {
	return domain.ClientMetadata{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	}
}

// principalUserID returns the authenticated user id published by AuthMiddleware
func principalUserID(c *gin.Context) string {
	return auth.UserID(c.Request.Context())
}
