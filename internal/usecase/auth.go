package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerdesk/platform-auth/internal/core/domain"
	"github.com/ledgerdesk/platform-auth/internal/core/port"
	"github.com/ledgerdesk/platform-auth/internal/infra/config"
	"github.com/ledgerdesk/platform-auth/internal/infra/logger"
	"github.com/ledgerdesk/platform-auth/internal/infra/security"
	"github.com/ledgerdesk/platform-auth/internal/infra/telemetry"
	"github.com/ledgerdesk/platform-auth/internal/repository"
)

var (
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrAccountDeactivated     = errors.New("account is deactivated")
	ErrAccountLocked          = errors.New("account is temporarily locked")
	ErrEmailNotVerified       = errors.New("email address is not verified")
	ErrInvalidMFAVerification = errors.New("invalid or expired verification")
	ErrInvalidAccessToken     = errors.New("invalid access token")
	ErrExpiredAccessToken     = errors.New("access token expired")
	ErrUserNotFound           = errors.New("user not found")
)

// AccountLockedError carries the unlock time alongside the lockout sentinel.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account is temporarily locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *AccountLockedError) Unwrap() error { return ErrAccountLocked }

// LoginInput is the credential payload for the password step of login.
type LoginInput struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
}

// LoginResult is the outcome of the password step. When RequiresMFA is set,
// TempToken and MFAMethod are populated and the session fields are empty;
// otherwise AccessToken and Session describe the established session.
type LoginResult struct {
	RequiresMFA bool
	TempToken   string
	MFAMethod   domain.TwoFactorMethod

	AccessToken string
	Session     *domain.ActiveSession
	User        domain.UserAccount
}

// VerifyMFAInput is the payload for the second-factor step of login.
type VerifyMFAInput struct {
	TempToken string
	Code      string
	IP        string
	UserAgent string
}

// AuthService orchestrates login, the second-factor step, and session
// lifecycle.
type AuthService struct {
	cfg      *config.SecuritySettings
	users    port.UserRepository
	hasher   *security.PasswordHasher
	tokens   *security.TokenService
	sessions port.SessionRegistry
	mfa      *MFAService
	audit    port.AuditPublisher
	metrics  *telemetry.Provider
	log      *zap.Logger

	now func() time.Time
}

func NewAuthService(
	cfg *config.SecuritySettings,
	users port.UserRepository,
	hasher *security.PasswordHasher,
	tokens *security.TokenService,
	sessions port.SessionRegistry,
	mfa *MFAService,
	audit port.AuditPublisher,
	metrics *telemetry.Provider,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		cfg:      cfg,
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		sessions: sessions,
		mfa:      mfa,
		audit:    audit,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Login runs the password step. Credential failures are reported with a
// single generic error regardless of whether the email exists, so the
// endpoint cannot be used to enumerate accounts. Lockout state is checked
// before the password so a locked account leaks nothing about the password's
// correctness.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.countLogin("invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !user.IsActive {
		s.countLogin("deactivated")
		return nil, ErrAccountDeactivated
	}

	now := s.now()
	if user.Locked(now) {
		s.countLogin("locked")
		return nil, &AccountLockedError{Until: *user.LockedUntil}
	}

	ok, err := s.hasher.Compare(in.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return nil, s.recordFailedAttempt(ctx, user, in)
	}

	// Successful password check clears the failure counter even when a later
	// gate (verification, MFA) stops the login.
	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		user.ResetLockout()
		if err := s.users.Update(ctx, *user); err != nil {
			return nil, fmt.Errorf("reset lockout: %w", err)
		}
	}

	if !user.IsEmailVerified || user.AccountStatus != domain.StatusActive {
		s.countLogin("unverified")
		return nil, ErrEmailNotVerified
	}

	if user.MFAEnabled {
		return s.beginMFALogin(ctx, user)
	}

	return s.establishSession(ctx, user, in.IP, in.UserAgent)
}

// VerifyMFAAndLogin runs the second-factor step: it validates the pending
// token issued by Login and the submitted code (TOTP, challenge code, or a
// backup code as fallback), then establishes the session. All verification
// failures collapse into one generic error.
func (s *AuthService) VerifyMFAAndLogin(ctx context.Context, in VerifyMFAInput) (*LoginResult, error) {
	claims, err := s.tokens.ParsePendingMFA(in.TempToken)
	if err != nil {
		s.countLogin("mfa_failed")
		return nil, ErrInvalidMFAVerification
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.countLogin("mfa_failed")
			return nil, ErrInvalidMFAVerification
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !user.IsActive || !user.MFAEnabled {
		s.countLogin("mfa_failed")
		return nil, ErrInvalidMFAVerification
	}

	valid, err := s.mfa.VerifyCode(ctx, user, in.Code)
	if err != nil && !errors.Is(err, ErrMFANotConfigured) && !errors.Is(err, ErrInvalidMFAMethod) {
		return nil, err
	}
	if !valid {
		// Recovery path: a backup code satisfies the second factor once.
		valid, err = s.mfa.VerifyBackupCode(ctx, user, in.Code)
		if err != nil {
			return nil, err
		}
	}
	if !valid {
		s.countLogin("mfa_failed")
		return nil, ErrInvalidMFAVerification
	}

	s.publishAudit(ctx, user, domain.AuditMFAVerified, in.IP, in.UserAgent, nil)
	return s.establishSession(ctx, user, in.IP, in.UserAgent)
}

// Logout removes the session from the registry. Removing an unknown session
// is a no-op: the token may simply have outlived a swept-out session.
func (s *AuthService) Logout(ctx context.Context, claims *security.AccessClaims) {
	if claims.SessionID == "" {
		return
	}
	if s.sessions.Remove(claims.SessionID) {
		s.publishAudit(ctx, &domain.UserAccount{ID: claims.UserID, Email: claims.Email}, domain.AuditSessionRevoked, "", "", map[string]any{
			"session_id": claims.SessionID,
		})
	}
}

// ParseAccessToken validates a bearer token and maps token-layer errors onto
// the service's sentinels.
func (s *AuthService) ParseAccessToken(token string) (*security.AccessClaims, error) {
	claims, err := s.tokens.ParseAccess(token)
	if err != nil {
		if errors.Is(err, security.ErrExpiredToken) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

// TouchSession records request activity for the session, keeping it out of
// the idle sweep.
func (s *AuthService) TouchSession(sessionID string) {
	if sessionID != "" {
		s.sessions.UpdateActivity(sessionID)
	}
}

func (s *AuthService) beginMFALogin(ctx context.Context, user *domain.UserAccount) (*LoginResult, error) {
	method := resolveMethod(user)
	if method == domain.MethodEmail || method == domain.MethodSMS {
		if err := s.mfa.SendChallenge(ctx, user); err != nil {
			// The user can still fall back to a backup code, so a delivery
			// failure downgrades to a warning.
			s.log.Warn("mfa challenge delivery failed",
				zap.String("user_id", user.ID),
				zap.String("method", string(method)),
				zap.Error(err),
			)
		}
	}

	temp, err := s.tokens.IssuePendingMFA(*user)
	if err != nil {
		return nil, fmt.Errorf("issue pending token: %w", err)
	}

	s.countLogin("mfa_pending")
	return &LoginResult{
		RequiresMFA: true,
		TempToken:   temp,
		MFAMethod:   method,
		User:        user.Sanitized(),
	}, nil
}

func (s *AuthService) establishSession(ctx context.Context, user *domain.UserAccount, ip, userAgent string) (*LoginResult, error) {
	now := s.now()
	user.LastLogin = &now
	if err := s.users.Update(ctx, *user); err != nil {
		return nil, fmt.Errorf("record last login: %w", err)
	}

	session := s.sessions.Add(*user, ip, userAgent)
	token, err := s.tokens.IssueAccess(*user, session.SessionID)
	if err != nil {
		s.sessions.Remove(session.SessionID)
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	s.countLogin("success")
	s.publishAudit(ctx, user, domain.AuditUserLogin, ip, userAgent, nil)
	s.log.Info("login succeeded",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
		zap.String("ip", logger.MaskIP(ip)),
	)

	return &LoginResult{
		AccessToken: token,
		Session:     &session,
		User:        user.Sanitized(),
	}, nil
}

// recordFailedAttempt bumps the failure counter and trips the lockout when
// the threshold is reached. The read-increment-write is not serialized across
// instances; overlapping failures may briefly undercount, which errs toward
// one extra attempt rather than an early lock.
func (s *AuthService) recordFailedAttempt(ctx context.Context, user *domain.UserAccount, in LoginInput) error {
	user.FailedLoginAttempts++
	locked := user.FailedLoginAttempts >= s.cfg.MaxFailedLogins
	if locked {
		until := s.now().Add(s.cfg.LockoutDuration)
		user.LockedUntil = &until
	}

	if err := s.users.Update(ctx, *user); err != nil {
		return fmt.Errorf("record failed attempt: %w", err)
	}

	if locked {
		s.metricsCountLockout()
		s.countLogin("locked_out")
		s.publishAudit(ctx, user, domain.AuditAccountLocked, in.IP, in.UserAgent, map[string]any{
			"failed_attempts": user.FailedLoginAttempts,
			"locked_until":    user.LockedUntil.UTC().Format(time.RFC3339),
		})
		s.log.Warn("account locked after repeated failures",
			zap.String("user_id", user.ID),
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Int("failed_attempts", user.FailedLoginAttempts),
		)
		return &AccountLockedError{Until: *user.LockedUntil}
	}

	s.countLogin("invalid_credentials")
	return ErrInvalidCredentials
}

func (s *AuthService) publishAudit(ctx context.Context, user *domain.UserAccount, action, ip, userAgent string, details map[string]any) {
	if s.audit == nil {
		return
	}
	event := domain.AuditEvent{
		Action:     action,
		EntityType: "user",
		EntityID:   user.ID,
		ActorID:    user.ID,
		Details:    details,
		IP:         ip,
		UserAgent:  userAgent,
		At:         s.now(),
	}
	if err := s.audit.Publish(ctx, event); err != nil {
		s.log.Warn("audit publish failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *AuthService) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.CountLogin(outcome)
	}
}

func (s *AuthService) metricsCountLockout() {
	if s.metrics != nil {
		s.metrics.CountLockout()
	}
}
