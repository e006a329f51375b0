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
	"github.com/ledgerdesk/platform-auth/internal/infra/notify"
	"github.com/ledgerdesk/platform-auth/internal/infra/security"
	"github.com/ledgerdesk/platform-auth/internal/repository"
)

var (
	ErrMFANotConfigured  = errors.New("two-factor authentication is not configured")
	ErrMFAAlreadyEnabled = errors.New("two-factor authentication is already enabled")
	ErrMFANotEnabled     = errors.New("two-factor authentication is not enabled")
	ErrInvalidMFACode    = errors.New("invalid two-factor code")
	ErrInvalidMFAMethod  = errors.New("unsupported two-factor method")
)

// TOTPSetup is returned by SetupTOTP so the client can provision an
// authenticator app and store recovery codes.
type TOTPSetup struct {
	Secret      string
	URI         string
	BackupCodes []string
}

// MFAService manages second-factor enrollment and verification. TOTP codes
// are checked against the stored secret; EMAIL and SMS methods use one-shot
// challenge codes kept on the user record.
type MFAService struct {
	cfg    *config.MFASettings
	users  port.UserRepository
	hasher *security.PasswordHasher
	email  port.EmailSender
	sms    port.SMSSender
	audit  port.AuditPublisher
	log    *zap.Logger

	sendTimeout time.Duration
	now         func() time.Time
}

func NewMFAService(
	cfg *config.MFASettings,
	users port.UserRepository,
	hasher *security.PasswordHasher,
	email port.EmailSender,
	sms port.SMSSender,
	audit port.AuditPublisher,
	sendTimeout time.Duration,
	log *zap.Logger,
) *MFAService {
	return &MFAService{
		cfg:         cfg,
		users:       users,
		hasher:      hasher,
		email:       email,
		sms:         sms,
		audit:       audit,
		log:         log,
		sendTimeout: sendTimeout,
		now:         time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *MFAService) WithClock(now func() time.Time) *MFAService {
	s.now = now
	return s
}

// SetupTOTP generates a fresh TOTP secret and backup code set for the user.
// MFA stays disabled until the user confirms a valid code via EnableMFA, so
// calling SetupTOTP again simply rotates the pending secret.
func (s *MFAService) SetupTOTP(ctx context.Context, userID string) (*TOTPSetup, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.MFAEnabled {
		return nil, ErrMFAAlreadyEnabled
	}

	prov, err := security.GenerateTOTPSecret(s.cfg.Issuer, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	codes, err := security.GenerateBackupCodes(s.cfg.BackupCodeCount, s.cfg.BackupCodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate backup codes: %w", err)
	}

	method := domain.MethodTOTP
	user.MFASecret = &prov.Secret
	user.MFABackupCodes = codes
	user.TwoFactorMethod = &method

	if err := s.users.Update(ctx, *user); err != nil {
		return nil, fmt.Errorf("store totp secret: %w", err)
	}

	return &TOTPSetup{Secret: prov.Secret, URI: prov.URI, BackupCodes: codes}, nil
}

// QRCode renders the user's TOTP provisioning URI as a PNG image.
func (s *MFAService) QRCode(ctx context.Context, userID string, size int) ([]byte, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.MFASecret == nil {
		return nil, ErrMFANotConfigured
	}
	uri := security.BuildTOTPURI(s.cfg.Issuer, user.Email, *user.MFASecret)
	return security.RenderQRPNG(uri, size)
}

// EnableMFA turns the second factor on after the user proves possession of
// the enrolled secret with a valid TOTP code.
func (s *MFAService) EnableMFA(ctx context.Context, userID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}
	if user.MFAEnabled {
		return ErrMFAAlreadyEnabled
	}
	if user.MFASecret == nil {
		return ErrMFANotConfigured
	}

	valid, err := security.VerifyTOTP(*user.MFASecret, code, s.cfg.TOTPSkewSteps, s.now())
	if err != nil {
		return fmt.Errorf("verify totp: %w", err)
	}
	if !valid {
		return ErrInvalidMFACode
	}

	user.MFAEnabled = true
	if err := s.users.Update(ctx, *user); err != nil {
		return fmt.Errorf("enable mfa: %w", err)
	}

	s.publishAudit(ctx, user.ID, domain.AuditMFAEnabled, map[string]any{"method": methodLabel(user.TwoFactorMethod)})
	return nil
}

// DisableMFA turns the second factor off. The current password is required so
// a hijacked session cannot silently weaken the account.
func (s *MFAService) DisableMFA(ctx context.Context, userID, password string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}
	if !user.MFAEnabled {
		return ErrMFANotEnabled
	}

	ok, err := s.hasher.Compare(password, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return ErrInvalidCurrentPassword
	}

	user.MFAEnabled = false
	user.MFASecret = nil
	user.MFABackupCodes = nil
	user.TwoFactorMethod = nil
	user.ClearMFAChallenge()

	if err := s.users.Update(ctx, *user); err != nil {
		return fmt.Errorf("disable mfa: %w", err)
	}

	s.publishAudit(ctx, user.ID, domain.AuditMFADisabled, nil)
	return nil
}

// VerifyCode checks a second-factor code against the user's configured
// method. EMAIL and SMS challenge codes are one-shot: a successful match
// clears the stored challenge before reporting success.
func (s *MFAService) VerifyCode(ctx context.Context, user *domain.UserAccount, code string) (bool, error) {
	switch resolveMethod(user) {
	case domain.MethodTOTP:
		if user.MFASecret == nil {
			return false, ErrMFANotConfigured
		}
		return security.VerifyTOTP(*user.MFASecret, code, s.cfg.TOTPSkewSteps, s.now())
	case domain.MethodEmail, domain.MethodSMS:
		if user.MFAChallengeCode == nil || user.MFAChallengeExpires == nil {
			return false, nil
		}
		if s.now().After(*user.MFAChallengeExpires) || *user.MFAChallengeCode != code {
			return false, nil
		}
		user.ClearMFAChallenge()
		if err := s.users.Update(ctx, *user); err != nil {
			return false, fmt.Errorf("consume challenge code: %w", err)
		}
		return true, nil
	default:
		return false, ErrInvalidMFAMethod
	}
}

// VerifyBackupCode consumes one recovery code. Each code works exactly once.
func (s *MFAService) VerifyBackupCode(ctx context.Context, user *domain.UserAccount, code string) (bool, error) {
	idx := -1
	for i, c := range user.MFABackupCodes {
		if c == code {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	user.MFABackupCodes = append(user.MFABackupCodes[:idx], user.MFABackupCodes[idx+1:]...)
	if err := s.users.Update(ctx, *user); err != nil {
		return false, fmt.Errorf("consume backup code: %w", err)
	}
	return true, nil
}

// VerifyCodeForUser resolves the user and delegates to VerifyCode.
func (s *MFAService) VerifyCodeForUser(ctx context.Context, userID, code string) (bool, error) {
	user, err := s.loadEnabledUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.VerifyCode(ctx, user, code)
}

// VerifyBackupCodeForUser resolves the user and delegates to VerifyBackupCode.
func (s *MFAService) VerifyBackupCodeForUser(ctx context.Context, userID, code string) (bool, error) {
	user, err := s.loadEnabledUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.VerifyBackupCode(ctx, user, code)
}

func (s *MFAService) loadEnabledUser(ctx context.Context, userID string) (*domain.UserAccount, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.MFAEnabled {
		return nil, ErrMFANotConfigured
	}
	return user, nil
}

// RegenerateBackupCodes replaces the full recovery code set. Password-gated
// for the same reason as DisableMFA.
func (s *MFAService) RegenerateBackupCodes(ctx context.Context, userID, password string) ([]string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.MFAEnabled {
		return nil, ErrMFANotEnabled
	}

	ok, err := s.hasher.Compare(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCurrentPassword
	}

	codes, err := security.GenerateBackupCodes(s.cfg.BackupCodeCount, s.cfg.BackupCodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate backup codes: %w", err)
	}
	user.MFABackupCodes = codes
	if err := s.users.Update(ctx, *user); err != nil {
		return nil, fmt.Errorf("store backup codes: %w", err)
	}
	return codes, nil
}

// SendChallenge issues a fresh one-shot challenge code for EMAIL or SMS
// second factors and dispatches it over the configured channel. A new
// challenge overwrites any previous unconsumed one.
func (s *MFAService) SendChallenge(ctx context.Context, user *domain.UserAccount) error {
	method := resolveMethod(user)
	if method != domain.MethodEmail && method != domain.MethodSMS {
		return ErrInvalidMFAMethod
	}

	code, err := security.GenerateNumericCode(6)
	if err != nil {
		return fmt.Errorf("generate challenge code: %w", err)
	}
	expires := s.now().Add(s.cfg.ChallengeCodeTTL)
	user.MFAChallengeCode = &code
	user.MFAChallengeExpires = &expires

	if err := s.users.Update(ctx, *user); err != nil {
		return fmt.Errorf("store challenge code: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	switch method {
	case domain.MethodEmail:
		subject, body := notify.MFAChallengeEmail(user.FullName, code)
		if err := s.email.Send(sendCtx, port.EmailMessage{To: user.Email, Subject: subject, HTML: body}); err != nil {
			return fmt.Errorf("send challenge email: %w", err)
		}
	case domain.MethodSMS:
		if user.PhoneNumber == nil {
			return ErrMFANotConfigured
		}
		if err := s.sms.SendVerificationCode(sendCtx, *user.PhoneNumber, code); err != nil {
			return fmt.Errorf("send challenge sms: %w", err)
		}
	}

	s.log.Debug("mfa challenge dispatched",
		zap.String("user_id", user.ID),
		zap.String("method", string(method)),
		zap.String("email", logger.MaskEmail(user.Email)),
	)
	return nil
}

func (s *MFAService) publishAudit(ctx context.Context, userID, action string, details map[string]any) {
	if s.audit == nil {
		return
	}
	event := domain.AuditEvent{
		Action:     action,
		EntityType: "user",
		EntityID:   userID,
		ActorID:    userID,
		Details:    details,
		At:         s.now(),
	}
	if err := s.audit.Publish(ctx, event); err != nil {
		s.log.Warn("audit publish failed", zap.String("action", action), zap.Error(err))
	}
}

// resolveMethod falls back to TOTP when a secret exists but no explicit
// method is stored, which covers accounts enrolled before EMAIL/SMS support.
func resolveMethod(user *domain.UserAccount) domain.TwoFactorMethod {
	if user.TwoFactorMethod != nil {
		return *user.TwoFactorMethod
	}
	if user.MFASecret != nil {
		return domain.MethodTOTP
	}
	return ""
}

func methodLabel(m *domain.TwoFactorMethod) string {
	if m == nil {
		return string(domain.MethodTOTP)
	}
	return string(*m)
}
