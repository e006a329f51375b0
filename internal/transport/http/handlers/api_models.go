package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ledgerdesk/platform-auth/internal/core/domain"
	"github.com/ledgerdesk/platform-auth/internal/infra/security"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with the trace ID from context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary describes the user view returned by the API.
type UserSummary struct {
	ID              string               `json:"id"`
	Email           string               `json:"email"`
	FullName        string               `json:"full_name"`
	Role            domain.Role          `json:"role"`
	AccountStatus   domain.AccountStatus `json:"account_status"`
	IsEmailVerified bool                 `json:"is_email_verified"`
	IsPhoneVerified bool                 `json:"is_phone_verified"`
	MFAEnabled      bool                 `json:"mfa_enabled"`
	PhoneNumber     *string              `json:"phone_number,omitempty"`
	LastLogin       *time.Time           `json:"last_login,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// LoginRequest defines the payload for the password step of login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is returned for a fully established session.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	SessionID   string      `json:"session_id"`
	User        UserSummary `json:"user"`
}

// MFAPendingResponse is returned when login requires the second-factor step.
type MFAPendingResponse struct {
	MFARequired bool                   `json:"mfa_required"`
	TempToken   string                 `json:"temp_token"`
	Method      domain.TwoFactorMethod `json:"method"`
	Message     string                 `json:"message"`
}

// MFAVerifyRequest carries the second-factor step payload.
type MFAVerifyRequest struct {
	TempToken string `json:"temp_token" binding:"required"`
	Code      string `json:"code" binding:"required"`
}

// RegisterRequest defines the account registration payload.
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	FullName    string `json:"full_name" binding:"required"`
	Role        string `json:"role"`
	PhoneNumber string `json:"phone_number"`
}

// RegisterResponse contains registration results and next steps.
type RegisterResponse struct {
	User                 UserSummary `json:"user"`
	RequiresVerification bool        `json:"requires_verification"`
	Message              string      `json:"message,omitempty"`
}

// VerifyEmailCodeRequest holds the code-based email verification payload.
type VerifyEmailCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

// ResendVerificationRequest asks for a fresh verification code.
type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// VerifyPhoneCodeRequest holds the phone OTP verification payload.
type VerifyPhoneCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// ForgotPasswordRequest initiates an email-based reset.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPasswordPhoneRequest initiates an SMS-based reset.
type ForgotPasswordPhoneRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
}

// ResetPasswordTokenRequest completes a link-based reset.
type ResetPasswordTokenRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// ResetPasswordCodeRequest completes an email-code reset.
type ResetPasswordCodeRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// ResetPasswordPhoneRequest completes an SMS-code reset.
type ResetPasswordPhoneRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// ChangePasswordRequest captures an authenticated password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// PasswordStrengthRequest asks for a strength evaluation.
type PasswordStrengthRequest struct {
	Password string `json:"password" binding:"required"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// PasswordStrengthResponse reports the score, level, and per-requirement results.
type PasswordStrengthResponse struct {
	Score        int                           `json:"score"`
	Level        string                        `json:"level"`
	Acceptable   bool                          `json:"acceptable"`
	Requirements security.StrengthRequirements `json:"requirements"`
}

// MFASetupResponse carries the artifacts of TOTP enrollment.
type MFASetupResponse struct {
	Secret      string   `json:"secret"`
	URI         string   `json:"uri"`
	BackupCodes []string `json:"backup_codes"`
}

// MFACodeRequest carries a bare second-factor code.
type MFACodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// MFAPasswordRequest carries a password re-confirmation.
type MFAPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// MFAVerifyResponse reports whether a code was accepted.
type MFAVerifyResponse struct {
	Valid bool `json:"valid"`
}

// BackupCodesResponse returns a regenerated recovery code set.
type BackupCodesResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

// SessionSummary is the API view of one in-memory session.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	LastActivity time.Time `json:"last_activity"`
	IP           string    `json:"ip,omitempty"`
}

// RoleActivitySummary aggregates active sessions for one role.
type RoleActivitySummary struct {
	Role     domain.Role      `json:"role"`
	Count    int              `json:"count"`
	Sessions []SessionSummary `json:"sessions,omitempty"`
}

// ActiveSessionsResponse is the session dashboard payload.
type ActiveSessionsResponse struct {
	Total   int                   `json:"total"`
	ByRole  []RoleActivitySummary `json:"by_role"`
	Fetched time.Time             `json:"fetched_at"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// newUserSummary converts a domain user to the API view.
func newUserSummary(user domain.UserAccount) UserSummary {
	return UserSummary{
		ID:              user.ID,
		Email:           user.Email,
		FullName:        user.FullName,
		Role:            user.Role,
		AccountStatus:   user.AccountStatus,
		IsEmailVerified: user.IsEmailVerified,
		IsPhoneVerified: user.IsPhoneVerified,
		MFAEnabled:      user.MFAEnabled,
		PhoneNumber:     user.PhoneNumber,
		LastLogin:       user.LastLogin,
		CreatedAt:       user.CreatedAt,
	}
}

func newSessionSummary(sess domain.ActiveSession) SessionSummary {
	return SessionSummary{
		SessionID:    sess.SessionID,
		UserID:       sess.UserID,
		Email:        sess.Email,
		FullName:     sess.FullName,
		LastActivity: sess.LastActivity,
		IP:           sess.IP,
	}
}
