package domain

import "time"

// Role enumerates the access roles known to the platform.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleAgent  Role = "AGENT"
	RoleClient Role = "CLIENT"
)

// AccountStatus enumerates account lifecycle states.
type AccountStatus string

const (
	StatusPending   AccountStatus = "PENDING"
	StatusActive    AccountStatus = "ACTIVE"
	StatusSuspended AccountStatus = "SUSPENDED"
)

// TwoFactorMethod enumerates supported second factors.
type TwoFactorMethod string

const (
	MethodTOTP  TwoFactorMethod = "TOTP"
	MethodEmail TwoFactorMethod = "EMAIL"
	MethodSMS   TwoFactorMethod = "SMS"
)

// UserAccount mirrors the persisted representation in the users table.
// Email is stored lowercase; PasswordHash never leaves the service boundary.
type UserAccount struct {
	ID           string
	Email        string
	FullName     string
	Role         Role
	PasswordHash string

	IsActive        bool
	AccountStatus   AccountStatus
	IsEmailVerified bool
	IsPhoneVerified bool

	FailedLoginAttempts int
	LockedUntil         *time.Time

	EmailVerificationToken       *string
	EmailVerificationExpires     *time.Time
	EmailVerificationCode        *string
	EmailVerificationCodeExpires *time.Time

	PasswordResetToken       *string
	PasswordResetExpires     *time.Time
	PasswordResetCode        *string
	PasswordResetCodeExpires *time.Time

	PhoneNumber               *string
	PhoneVerificationCode     *string
	PhoneVerificationExpires  *time.Time
	PhonePasswordResetCode    *string
	PhonePasswordResetExpires *time.Time

	MFAEnabled          bool
	MFASecret           *string
	MFABackupCodes      []string
	TwoFactorMethod     *TwoFactorMethod
	MFAChallengeCode    *string
	MFAChallengeExpires *time.Time

	LastLogin *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Locked reports whether the account is inside an active lockout window.
func (u *UserAccount) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// ClearEmailVerification drops any pending email verification artifacts.
func (u *UserAccount) ClearEmailVerification() {
	u.EmailVerificationToken = nil
	u.EmailVerificationExpires = nil
	u.EmailVerificationCode = nil
	u.EmailVerificationCodeExpires = nil
}

// ClearPasswordReset drops any pending password reset artifacts, both link and code flavors.
func (u *UserAccount) ClearPasswordReset() {
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
	u.PasswordResetCode = nil
	u.PasswordResetCodeExpires = nil
	u.PhonePasswordResetCode = nil
	u.PhonePasswordResetExpires = nil
}

// ClearPhoneVerification drops any pending phone verification code.
func (u *UserAccount) ClearPhoneVerification() {
	u.PhoneVerificationCode = nil
	u.PhoneVerificationExpires = nil
}

// ClearMFAChallenge drops a pending email/SMS second-factor challenge.
func (u *UserAccount) ClearMFAChallenge() {
	u.MFAChallengeCode = nil
	u.MFAChallengeExpires = nil
}

// ResetLockout clears the failure counter and any active lockout window.
func (u *UserAccount) ResetLockout() {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
}

// Sanitized returns a copy safe to hand outward: credential material and
// pending secrets are stripped.
func (u UserAccount) Sanitized() UserAccount {
	u.PasswordHash = ""
	u.MFASecret = nil
	u.MFABackupCodes = nil
	u.EmailVerificationToken = nil
	u.EmailVerificationCode = nil
	u.PasswordResetToken = nil
	u.PasswordResetCode = nil
	u.PhoneVerificationCode = nil
	u.PhonePasswordResetCode = nil
	u.MFAChallengeCode = nil
	return u
}

// PasswordHistoryRecord tracks historical password hashes for reuse prevention.
type PasswordHistoryRecord struct {
	ID           string
	UserID       string
	PasswordHash string
	CreatedAt    time.Time
}
