package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ledgerdesk/platform-auth/internal/transport/http/middleware"
	"github.com/ledgerdesk/platform-auth/internal/usecase"
)

// MFAHandler exposes second-factor enrollment and verification endpoints.
// All routes require an authenticated session.
type MFAHandler struct {
	mfa  *usecase.MFAService
	auth *usecase.AuthService
}

// NewMFAHandler constructs MFAHandler.
func NewMFAHandler(mfa *usecase.MFAService, auth *usecase.AuthService) *MFAHandler {
	return &MFAHandler{mfa: mfa, auth: auth}
}

// RegisterRoutes binds MFA routes under an authenticated group.
func (h *MFAHandler) RegisterRoutes(r *gin.RouterGroup) {
	grp := r.Group("/mfa", middleware.RequireAuth(h.auth))
	grp.POST("/setup", h.setup)
	grp.GET("/qr", h.qrCode)
	grp.POST("/enable", h.enable)
	grp.POST("/disable", h.disable)
	grp.POST("/verify", h.verify)
	grp.POST("/backup/verify", h.verifyBackup)
	grp.POST("/backup/regenerate", h.regenerateBackup)
}

func (h *MFAHandler) setup(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	setup, err := h.mfa.SetupTOTP(c.Request.Context(), userID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrMFAAlreadyEnabled, Status: http.StatusConflict, Message: "two-factor authentication is already enabled"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "setup failed")
		return
	}

	c.JSON(http.StatusOK, MFASetupResponse{
		Secret:      setup.Secret,
		URI:         setup.URI,
		BackupCodes: setup.BackupCodes,
	})
}

func (h *MFAHandler) qrCode(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	size := 256
	if raw := c.Query("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 64 || parsed > 1024 {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "size must be between 64 and 1024"))
			return
		}
		size = parsed
	}

	png, err := h.mfa.QRCode(c.Request.Context(), userID, size)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrMFANotConfigured, Status: http.StatusConflict, Message: "two-factor authentication is not configured"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "qr generation failed")
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func (h *MFAHandler) enable(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req MFACodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	if err := h.mfa.EnableMFA(c.Request.Context(), userID, req.Code); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidMFACode, Status: http.StatusUnauthorized, Message: "invalid two-factor code"},
			{Err: usecase.ErrMFAAlreadyEnabled, Status: http.StatusConflict, Message: "two-factor authentication is already enabled"},
			{Err: usecase.ErrMFANotConfigured, Status: http.StatusConflict, Message: "two-factor authentication is not configured"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "enable failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "two-factor authentication enabled"})
}

func (h *MFAHandler) disable(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req MFAPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	if err := h.mfa.DisableMFA(c.Request.Context(), userID, req.Password); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCurrentPassword, Status: http.StatusUnauthorized, Message: "current password is incorrect"},
			{Err: usecase.ErrMFANotEnabled, Status: http.StatusConflict, Message: "two-factor authentication is not enabled"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "disable failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "two-factor authentication disabled"})
}

func (h *MFAHandler) verify(c *gin.Context) {
	h.verifyWith(c, h.mfa.VerifyCodeForUser)
}

func (h *MFAHandler) verifyBackup(c *gin.Context) {
	h.verifyWith(c, h.mfa.VerifyBackupCodeForUser)
}

func (h *MFAHandler) verifyWith(c *gin.Context, verify func(ctx context.Context, userID, code string) (bool, error)) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req MFACodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	valid, err := verify(c.Request.Context(), userID, req.Code)
	if err != nil {
		if errors.Is(err, usecase.ErrMFANotConfigured) || errors.Is(err, usecase.ErrInvalidMFAMethod) {
			c.JSON(http.StatusConflict, NewErrorResponse(c, "two-factor authentication is not configured"))
			return
		}
		if errors.Is(err, usecase.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "user not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "verification failed"))
		return
	}

	c.JSON(http.StatusOK, MFAVerifyResponse{Valid: valid})
}

func (h *MFAHandler) regenerateBackup(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req MFAPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	codes, err := h.mfa.RegenerateBackupCodes(c.Request.Context(), userID, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCurrentPassword, Status: http.StatusUnauthorized, Message: "current password is incorrect"},
			{Err: usecase.ErrMFANotEnabled, Status: http.StatusConflict, Message: "two-factor authentication is not enabled"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "regeneration failed")
		return
	}

	c.JSON(http.StatusOK, BackupCodesResponse{BackupCodes: codes})
}
