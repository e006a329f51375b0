package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledgerdesk/platform-auth/internal/core/domain"
	"github.com/ledgerdesk/platform-auth/internal/infra/security"
	"github.com/ledgerdesk/platform-auth/internal/transport/http/middleware"
	"github.com/ledgerdesk/platform-auth/internal/usecase"
)

// RegistrationHandler exposes account creation and verification endpoints.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
	auth         *usecase.AuthService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registration *usecase.RegistrationService, auth *usecase.AuthService) *RegistrationHandler {
	return &RegistrationHandler{registration: registration, auth: auth}
}

// RegisterRoutes binds registration and verification routes.
func (h *RegistrationHandler) RegisterRoutes(r *gin.RouterGroup, registerMiddlewares ...gin.HandlerFunc) {
	register := append(append([]gin.HandlerFunc{}, registerMiddlewares...), h.register)
	r.POST("/register", register...)

	r.POST("/verify-email", h.verifyEmailByCode)
	r.GET("/verify-email", h.verifyEmailByToken)
	r.POST("/resend-verification", h.resendVerification)

	r.POST("/phone/request-verification", middleware.RequireAuth(h.auth), h.requestPhoneVerification)
	r.POST("/phone/verify", middleware.RequireAuth(h.auth), h.verifyPhone)
}

func (h *RegistrationHandler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	reqCtx := middleware.GetRequestContext(c)
	user, err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FullName:    req.FullName,
		Role:        domain.Role(req.Role),
		PhoneNumber: req.PhoneNumber,
		IP:          reqCtx.IP,
		UserAgent:   reqCtx.UserAgent,
	})
	if err != nil {
		var policyErr *security.PasswordValidationError
		if errors.As(err, &policyErr) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, policyErr.Message))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrEmailExists, Status: http.StatusConflict, Message: "email is already registered"},
			{Err: usecase.ErrPhoneExists, Status: http.StatusConflict, Message: "phone number is already registered"},
			{Err: usecase.ErrDisposableEmail, Status: http.StatusBadRequest, Message: "disposable email addresses are not accepted"},
		}, http.StatusInternalServerError, "registration failed")
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		User:                 newUserSummary(*user),
		RequiresVerification: true,
		Message:              "verification code sent",
	})
}

func (h *RegistrationHandler) verifyEmailByCode(c *gin.Context) {
	var req VerifyEmailCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verification payload"))
		return
	}

	err := h.registration.VerifyEmailByCode(c.Request.Context(), req.Email, req.Code)
	h.respondVerification(c, err)
}

func (h *RegistrationHandler) verifyEmailByToken(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "missing verification token"))
		return
	}

	err := h.registration.VerifyEmailByToken(c.Request.Context(), token)
	h.respondVerification(c, err)
}

func (h *RegistrationHandler) respondVerification(c *gin.Context, err error) {
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidOrExpiredCode, Status: http.StatusBadRequest, Message: "verification code is invalid or expired"},
			{Err: usecase.ErrAlreadyVerified, Status: http.StatusConflict, Message: "email is already verified"},
		}, http.StatusInternalServerError, "verification failed")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "email verified"})
}

func (h *RegistrationHandler) resendVerification(c *gin.Context) {
	var req ResendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid payload"))
		return
	}

	if err := h.registration.ResendVerification(c.Request.Context(), req.Email); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "resend failed"))
		return
	}

	// Same response whether or not the email belongs to an account.
	c.JSON(http.StatusOK, MessageResponse{Message: "if the address is registered, a new code has been sent"})
}

func (h *RegistrationHandler) requestPhoneVerification(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.registration.RequestPhoneVerification(c.Request.Context(), userID); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "no phone number on file"},
			{Err: usecase.ErrAlreadyVerified, Status: http.StatusConflict, Message: "phone number is already verified"},
		}, http.StatusInternalServerError, "request failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "verification code sent"})
}

func (h *RegistrationHandler) verifyPhone(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req VerifyPhoneCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verification payload"))
		return
	}

	if err := h.registration.VerifyPhoneByCode(c.Request.Context(), userID, req.Code); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidOrExpiredCode, Status: http.StatusBadRequest, Message: "verification code is invalid or expired"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "verification failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "phone number verified"})
}
