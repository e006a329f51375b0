package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledgerdesk/platform-auth/internal/infra/security"
	"github.com/ledgerdesk/platform-auth/internal/transport/http/middleware"
	"github.com/ledgerdesk/platform-auth/internal/usecase"
)

// PasswordHandler exposes forgot/reset/change endpoints and the strength probe.
type PasswordHandler struct {
	reset *usecase.PasswordResetService
	auth  *usecase.AuthService
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(reset *usecase.PasswordResetService, auth *usecase.AuthService) *PasswordHandler {
	return &PasswordHandler{reset: reset, auth: auth}
}

// RegisterRoutes binds password routes. The forgot endpoints take the shared
// reset rate limit ahead of the handler.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup, forgotMiddlewares ...gin.HandlerFunc) {
	forgot := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, forgotMiddlewares...), handler)
	}

	r.POST("/forgot-password", forgot(h.forgotPassword)...)
	r.POST("/forgot-password/code", forgot(h.forgotPasswordByCode)...)
	r.POST("/forgot-password/phone", forgot(h.forgotPasswordByPhone)...)

	r.POST("/reset-password", h.resetPasswordByToken)
	r.POST("/reset-password/code", h.resetPasswordByCode)
	r.POST("/reset-password/phone", h.resetPasswordByPhoneCode)

	r.POST("/password-strength", h.passwordStrength)
	r.POST("/change-password", middleware.RequireAuth(h.auth), h.changePassword)
}

// Every forgot variant answers identically for known and unknown identifiers.
const forgotResponseMessage = "if the account exists, reset instructions have been sent"

func (h *PasswordHandler) forgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	if err := h.reset.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "request failed"))
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: forgotResponseMessage})
}

func (h *PasswordHandler) forgotPasswordByCode(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	if err := h.reset.ForgotPasswordByCode(c.Request.Context(), req.Email); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "request failed"))
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: forgotResponseMessage})
}

func (h *PasswordHandler) forgotPasswordByPhone(c *gin.Context) {
	var req ForgotPasswordPhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	if err := h.reset.ForgotPasswordByPhone(c.Request.Context(), req.PhoneNumber); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "request failed"))
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: forgotResponseMessage})
}

func (h *PasswordHandler) resetPasswordByToken(c *gin.Context) {
	var req ResetPasswordTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	err := h.reset.ResetPasswordByToken(c.Request.Context(), req.Token, req.NewPassword)
	h.respondReset(c, err)
}

func (h *PasswordHandler) resetPasswordByCode(c *gin.Context) {
	var req ResetPasswordCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	err := h.reset.ResetPasswordByCode(c.Request.Context(), req.Email, req.Code, req.NewPassword)
	h.respondReset(c, err)
}

func (h *PasswordHandler) resetPasswordByPhoneCode(c *gin.Context) {
	var req ResetPasswordPhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	err := h.reset.ResetPasswordByPhoneCode(c.Request.Context(), req.PhoneNumber, req.Code, req.NewPassword)
	h.respondReset(c, err)
}

func (h *PasswordHandler) respondReset(c *gin.Context, err error) {
	if err != nil {
		var policyErr *security.PasswordValidationError
		if errors.As(err, &policyErr) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, policyErr.Message))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidResetToken, Status: http.StatusBadRequest, Message: "reset token is invalid or expired"},
			{Err: usecase.ErrInvalidOrExpiredCode, Status: http.StatusBadRequest, Message: "reset code is invalid or expired"},
			{Err: usecase.ErrPasswordRecentlyUsed, Status: http.StatusConflict, Message: "password was used recently"},
		}, http.StatusInternalServerError, "reset failed")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "password has been reset"})
}

func (h *PasswordHandler) changePassword(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	err := h.reset.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		var policyErr *security.PasswordValidationError
		if errors.As(err, &policyErr) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, policyErr.Message))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCurrentPassword, Status: http.StatusUnauthorized, Message: "current password is incorrect"},
			{Err: usecase.ErrPasswordRecentlyUsed, Status: http.StatusConflict, Message: "password was used recently"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "change failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed"})
}

func (h *PasswordHandler) passwordStrength(c *gin.Context) {
	var req PasswordStrengthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	tokens := make([]string, 0, 2)
	if req.Email != "" {
		tokens = append(tokens, req.Email)
	}
	if req.FullName != "" {
		tokens = append(tokens, req.FullName)
	}

	result, acceptable := security.ValidatePasswordStrength(req.Password, tokens)

	c.JSON(http.StatusOK, PasswordStrengthResponse{
		Score:        result.Score,
		Level:        string(result.Level),
		Acceptable:   acceptable,
		Requirements: result.Requirements,
	})
}
