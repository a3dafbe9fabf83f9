package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/tasklane/internal/dto"
	"github.com/prperemyshlev/tasklane/internal/service"
	"go.uber.org/zap"
)

// AdminHandler handles account administration
type AdminHandler struct {
	users  service.UserService
	logger *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(users service.UserService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{users: users, logger: logger}
}

// SetBlocked blocks or unblocks a user. Blocking signs the user out everywhere.
// @Summary Block or unblock a user
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body dto.SetBlockedRequest true "Blocked flag"
// @Success 200 {object} dto.UserResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/users/{id}/blocked [put]
func (h *AdminHandler) SetBlocked(c *gin.Context) {
	var req dto.SetBlockedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	userID := c.Param("id")

	if err := h.users.SetBlocked(ctx, userID, *req.Blocked); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "Not found",
				Message: err.Error(),
			})
			return
		}
		h.logger.Error("Failed to update blocked flag", zap.String("user_id", userID), zap.Error(err))
		abortInternal(c)
		return
	}

	h.logger.Info("Blocked flag updated",
		zap.String("user_id", userID),
		zap.Bool("blocked", *req.Blocked),
		zap.String("by", principalUserID(c)),
	)

	user, err := h.users.GetUser(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to reload user", zap.String("user_id", userID), zap.Error(err))
		abortInternal(c)
		return
	}

	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}
