package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ledgerdesk/platform-auth/internal/infra/security"
	"github.com/ledgerdesk/platform-auth/internal/transport/http/middleware"
	"github.com/ledgerdesk/platform-auth/internal/usecase"
)

// AuthHandler exposes the login, second-factor, and logout endpoints.
type AuthHandler struct {
	auth *usecase.AuthService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRoutes binds authentication routes, applying optional middleware
// ahead of the login handlers.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	login := append(append([]gin.HandlerFunc{}, loginMiddlewares...), h.login)
	verify := append(append([]gin.HandlerFunc{}, loginMiddlewares...), h.verifyMFA)

	r.POST("/login", login...)
	r.POST("/login/verify-mfa", verify...)
	r.POST("/logout", middleware.RequireAuth(h.auth), h.logout)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	reqCtx := middleware.GetRequestContext(c)
	result, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IP:        reqCtx.IP,
		UserAgent: reqCtx.UserAgent,
	})
	if err != nil {
		var lockedErr *usecase.AccountLockedError
		if errors.As(err, &lockedErr) {
			c.Header("Retry-After", lockedErr.Until.UTC().Format(time.RFC1123))
			c.JSON(http.StatusLocked, NewErrorResponse(c, lockedErr.Error()))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
			{Err: usecase.ErrAccountDeactivated, Status: http.StatusForbidden, Message: "account is deactivated"},
			{Err: usecase.ErrAccountLocked, Status: http.StatusLocked, Message: "account is temporarily locked"},
			{Err: usecase.ErrEmailNotVerified, Status: http.StatusForbidden, Message: "email address is not verified"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	if result.RequiresMFA {
		c.JSON(http.StatusOK, MFAPendingResponse{
			MFARequired: true,
			TempToken:   result.TempToken,
			Method:      result.MFAMethod,
			Message:     "second factor required",
		})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		SessionID:   result.Session.SessionID,
		User:        newUserSummary(result.User),
	})
}

func (h *AuthHandler) verifyMFA(c *gin.Context) {
	var req MFAVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verification payload"))
		return
	}

	reqCtx := middleware.GetRequestContext(c)
	result, err := h.auth.VerifyMFAAndLogin(c.Request.Context(), usecase.VerifyMFAInput{
		TempToken: req.TempToken,
		Code:      req.Code,
		IP:        reqCtx.IP,
		UserAgent: reqCtx.UserAgent,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidMFAVerification, Status: http.StatusUnauthorized, Message: "invalid or expired verification"},
		}, http.StatusInternalServerError, "verification failed")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		SessionID:   result.Session.SessionID,
		User:        newUserSummary(result.User),
	})
}

func (h *AuthHandler) logout(c *gin.Context) {
	claimsVal, exists := c.Get("claims")
	if !exists {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}
	claims, ok := claimsVal.(*security.AccessClaims)
	if !ok {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "invalid claims format"))
		return
	}

	h.auth.Logout(c.Request.Context(), claims)
	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}
