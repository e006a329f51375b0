package domain

import "time"

// Audit actions emitted by the authentication core.
const (
	AuditUserLogin              = "USER_LOGIN"
	AuditUserRegistered         = "USER_REGISTERED"
	AuditMFAVerified            = "MFA_VERIFIED"
	AuditMFAEnabled             = "MFA_ENABLED"
	AuditMFADisabled            = "MFA_DISABLED"
	AuditEmailVerified          = "EMAIL_VERIFIED"
	AuditPhoneVerified          = "PHONE_VERIFIED"
	AuditPasswordResetRequested = "PASSWORD_RESET_REQUESTED"
	AuditPasswordResetCompleted = "PASSWORD_RESET_COMPLETED"
	AuditPasswordChanged        = "PASSWORD_CHANGED"
	AuditAccountLocked          = "ACCOUNT_LOCKED"
	AuditSessionRevoked         = "SESSION_REVOKED"
)

// AuditEvent captures a security-relevant action for the audit trail.
// IP and UserAgent are opaque metadata supplied by the caller; they carry no
// authorization weight.
type AuditEvent struct {
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	IP         string         `json:"ip_address,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	At         time.Time      `json:"at"`
}
