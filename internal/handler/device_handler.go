package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/tasklane/internal/dto"
	"github.com/prperemyshlev/tasklane/internal/service"
	"go.uber.org/zap"
)

// DeviceHandler handles the CLI device-authorization flow
type DeviceHandler struct {
	devices service.DeviceAuthService
	logger  *zap.Logger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(devices service.DeviceAuthService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{devices: devices, logger: logger}
}

// Initiate starts a device authorization
// @Summary Start device authorization
// @Tags device
// @Produce json
// @Success 200 {object} dto.DeviceAuthorizationResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /auth/device/code [post]
func (h *DeviceHandler) Initiate(c *gin.Context) {
	authorization, err := h.devices.Initiate(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to initiate device authorization", zap.Error(err))
		abortInternal(c)
		return
	}

	c.JSON(http.StatusOK, dto.NewDeviceAuthorizationResponse(authorization))
}

// Token is polled by the CLI until the handshake settles
// @Summary Poll device authorization
// @Tags device
// @Accept json
// @Produce json
// @Param request body dto.DeviceTokenRequest true "Device code"
// @Success 200 {object} dto.DevicePollResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /auth/device/token [post]
func (h *DeviceHandler) Token(c *gin.Context) {
	var req dto.DeviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	result, err := h.devices.Poll(c.Request.Context(), req.DeviceCode)
	if err != nil {
		h.logger.Error("Failed to poll device authorization", zap.Error(err))
		abortInternal(c)
		return
	}

	c.JSON(http.StatusOK, dto.DevicePollResponse{
		Status: string(result.Status),
		Token:  result.Token,
	})
}

// Lookup shows a pending authorization to the signed-in user
// @Summary Look up a device authorization
// @Tags device
// @Security BearerAuth
// @Produce json
// @Param code query string true "User code"
// @Success 200 {object} dto.DeviceLookupResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /auth/device/lookup [get]
func (h *DeviceHandler) Lookup(c *gin.Context) {
	info, err := h.devices.Lookup(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.deviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.DeviceLookupResponse{
		UserCode:  info.UserCode,
		ExpiresAt: info.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Approve binds a pending authorization to the caller
// @Summary Approve a device
// @Tags device
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.UserCodeRequest true "User code"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /auth/device/approve [post]
func (h *DeviceHandler) Approve(c *gin.Context) {
	var req dto.UserCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	if err := h.devices.Approve(c.Request.Context(), req.UserCode, principalUserID(c), clientMetadata(c)); err != nil {
		h.deviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Device approved",
	})
}

// Deny rejects a pending authorization
// @Summary Deny a device
// @Tags device
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.UserCodeRequest true "User code"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /auth/device/deny [post]
func (h *DeviceHandler) Deny(c *gin.Context) {
	var req dto.UserCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	if err := h.devices.Deny(c.Request.Context(), req.UserCode); err != nil {
		h.deviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Device denied",
	})
}

func (h *DeviceHandler) deviceError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrDeviceCodeNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "Not found",
			Message: err.Error(),
		})
		return
	}
	h.logger.Error("Device authorization request failed", zap.Error(err))
	abortInternal(c)
}
