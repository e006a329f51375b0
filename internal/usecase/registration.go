package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
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
	ErrEmailExists          = errors.New("email is already registered")
	ErrPhoneExists          = errors.New("phone number is already registered")
	ErrDisposableEmail      = errors.New("disposable email addresses are not accepted")
	ErrInvalidOrExpiredCode = errors.New("verification code is invalid or expired")
	ErrAlreadyVerified      = errors.New("already verified")
)

// RegisterInput is the payload for account creation.
type RegisterInput struct {
	Email       string
	Password    string
	FullName    string
	Role        domain.Role
	PhoneNumber string
	IP          string
	UserAgent   string
}

// RegistrationService creates accounts and drives email and phone
// verification. New accounts start PENDING and move to ACTIVE when the email
// is confirmed, by code or by link.
type RegistrationService struct {
	cfg     *config.SecuritySettings
	baseURL string
	users   port.UserRepository
	hasher  *security.PasswordHasher
	email   port.EmailSender
	sms     port.SMSSender
	audit   port.AuditPublisher
	log     *zap.Logger

	now func() time.Time
}

func NewRegistrationService(
	cfg *config.SecuritySettings,
	baseURL string,
	users port.UserRepository,
	hasher *security.PasswordHasher,
	email port.EmailSender,
	sms port.SMSSender,
	audit port.AuditPublisher,
	log *zap.Logger,
) *RegistrationService {
	return &RegistrationService{
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		users:   users,
		hasher:  hasher,
		email:   email,
		sms:     sms,
		audit:   audit,
		log:     log,
		now:     time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *RegistrationService) WithClock(now func() time.Time) *RegistrationService {
	s.now = now
	return s
}

// Register creates a PENDING account and dispatches both verification
// artifacts: a 6-digit code and a signed-link token. A delivery failure does
// not fail registration; the user can request a resend.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput) (*domain.UserAccount, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if security.IsDisposableEmail(email) {
		return nil, ErrDisposableEmail
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	phone := strings.TrimSpace(in.PhoneNumber)
	if phone != "" {
		if _, err := s.users.GetByPhoneNumber(ctx, phone); err == nil {
			return nil, ErrPhoneExists
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("check phone: %w", err)
		}
	}

	validator := security.DefaultPasswordValidator(userIdentityTokens(email, in.FullName)...)
	if err := validator.Validate(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	code, err := security.GenerateNumericCode(6)
	if err != nil {
		return nil, fmt.Errorf("generate verification code: %w", err)
	}
	token, err := security.GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	role := in.Role
	if role == "" {
		role = domain.RoleClient
	}

	now := s.now()
	codeExpires := now.Add(s.cfg.EmailVerifyCodeTTL)
	tokenExpires := now.Add(s.cfg.EmailVerifyTokenTTL)

	user := domain.UserAccount{
		ID:            uuid.NewString(),
		Email:         email,
		FullName:      strings.TrimSpace(in.FullName),
		Role:          role,
		PasswordHash:  hash,
		IsActive:      true,
		AccountStatus: domain.StatusPending,

		EmailVerificationToken:       &token,
		EmailVerificationExpires:     &tokenExpires,
		EmailVerificationCode:        &code,
		EmailVerificationCodeExpires: &codeExpires,

		CreatedAt: now,
		UpdatedAt: now,
	}
	if phone != "" {
		user.PhoneNumber = &phone
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.sendVerificationEmail(ctx, user, code, token)
	s.publishAudit(ctx, user.ID, domain.AuditUserRegistered, in.IP, in.UserAgent, map[string]any{
		"role": string(role),
	})
	s.log.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	sanitized := user.Sanitized()
	return &sanitized, nil
}

// VerifyEmailByCode confirms the account with the 6-digit code. The code is
// one-shot: both code and link artifacts are cleared on success.
func (s *RegistrationService) VerifyEmailByCode(ctx context.Context, email, code string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("load user: %w", err)
	}
	if user.IsEmailVerified {
		return ErrAlreadyVerified
	}
	if user.EmailVerificationCode == nil || user.EmailVerificationCodeExpires == nil ||
		*user.EmailVerificationCode != code || s.now().After(*user.EmailVerificationCodeExpires) {
		return ErrInvalidOrExpiredCode
	}

	return s.markEmailVerified(ctx, user)
}

// VerifyEmailByToken confirms the account with the emailed link token.
func (s *RegistrationService) VerifyEmailByToken(ctx context.Context, token string) error {
	user, err := s.users.GetByEmailVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("load user: %w", err)
	}
	if user.IsEmailVerified {
		return ErrAlreadyVerified
	}
	if user.EmailVerificationExpires == nil || s.now().After(*user.EmailVerificationExpires) {
		return ErrInvalidOrExpiredCode
	}

	return s.markEmailVerified(ctx, user)
}

// ResendVerification regenerates the code and link for an unverified account.
// Unknown and already verified emails return success so the endpoint does not
// confirm which addresses hold accounts.
func (s *RegistrationService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}
	if user.IsEmailVerified {
		return nil
	}

	code, err := security.GenerateNumericCode(6)
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}
	token, err := security.GenerateSecureToken(32)
	if err != nil {
		return fmt.Errorf("generate verification token: %w", err)
	}

	now := s.now()
	codeExpires := now.Add(s.cfg.EmailVerifyCodeTTL)
	tokenExpires := now.Add(s.cfg.EmailVerifyTokenTTL)
	user.EmailVerificationCode = &code
	user.EmailVerificationCodeExpires = &codeExpires
	user.EmailVerificationToken = &token
	user.EmailVerificationExpires = &tokenExpires

	if err := s.users.Update(ctx, *user); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}

	s.sendVerificationEmail(ctx, *user, code, token)
	return nil
}

// RequestPhoneVerification issues a fresh OTP to the account's phone number.
func (s *RegistrationService) RequestPhoneVerification(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}
	if user.PhoneNumber == nil {
		return ErrUserNotFound
	}
	if user.IsPhoneVerified {
		return ErrAlreadyVerified
	}

	code, err := security.GenerateNumericCode(6)
	if err != nil {
		return fmt.Errorf("generate phone code: %w", err)
	}
	expires := s.now().Add(s.cfg.PhoneCodeTTL)
	user.PhoneVerificationCode = &code
	user.PhoneVerificationExpires = &expires

	if err := s.users.Update(ctx, *user); err != nil {
		return fmt.Errorf("store phone code: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.NotificationTimeout)
	defer cancel()
	if err := s.sms.SendVerificationCode(sendCtx, *user.PhoneNumber, code); err != nil {
		s.log.Warn("phone verification sms failed",
			zap.String("user_id", user.ID),
			zap.String("phone", logger.MaskPhone(*user.PhoneNumber)),
			zap.Error(err),
		)
	}
	return nil
}

// VerifyPhoneByCode confirms the account's phone number with the OTP.
func (s *RegistrationService) VerifyPhoneByCode(ctx context.Context, userID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}
	if user.PhoneVerificationCode == nil || user.PhoneVerificationExpires == nil ||
		*user.PhoneVerificationCode != code || s.now().After(*user.PhoneVerificationExpires) {
		return ErrInvalidOrExpiredCode
	}

	user.IsPhoneVerified = true
	user.ClearPhoneVerification()
	if err := s.users.Update(ctx, *user); err != nil {
		return fmt.Errorf("mark phone verified: %w", err)
	}

	s.publishAudit(ctx, user.ID, domain.AuditPhoneVerified, "", "", nil)
	return nil
}

func (s *RegistrationService) markEmailVerified(ctx context.Context, user *domain.UserAccount) error {
	user.IsEmailVerified = true
	user.AccountStatus = domain.StatusActive
	user.ClearEmailVerification()

	if err := s.users.Update(ctx, *user); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}

	s.publishAudit(ctx, user.ID, domain.AuditEmailVerified, "", "", nil)
	s.log.Info("email verified",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)
	return nil
}

func (s *RegistrationService) sendVerificationEmail(ctx context.Context, user domain.UserAccount, code, token string) {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.NotificationTimeout)
	defer cancel()

	link := fmt.Sprintf("%s/auth/verify-email?token=%s", s.baseURL, token)
	subject, body := notify.VerificationCodeEmail(user.FullName, code)
	_, linkBody := notify.VerificationLinkEmail(user.FullName, link)
	// Single message carrying both paths: code for in-app entry, link for
	// one-click confirmation.
	body += linkBody

	if err := s.email.Send(sendCtx, port.EmailMessage{To: user.Email, Subject: subject, HTML: body}); err != nil {
		s.log.Warn("verification email failed",
			zap.String("user_id", user.ID),
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Error(err),
		)
	}
}

func (s *RegistrationService) publishAudit(ctx context.Context, userID, action, ip, userAgent string, details map[string]any) {
	if s.audit == nil {
		return
	}
	event := domain.AuditEvent{
		Action:     action,
		EntityType: "user",
		EntityID:   userID,
		ActorID:    userID,
		Details:    details,
		IP:         ip,
		UserAgent:  userAgent,
		At:         s.now(),
	}
	if err := s.audit.Publish(ctx, event); err != nil {
		s.log.Warn("audit publish failed", zap.String("action", action), zap.Error(err))
	}
}

// userIdentityTokens extracts identity fragments the password must not
// contain: email local part and each word of the full name.
func userIdentityTokens(email, fullName string) []string {
	tokens := make([]string, 0, 4)
	if at := strings.IndexByte(email, '@'); at > 0 {
		tokens = append(tokens, email[:at])
	}
	for _, part := range strings.Fields(fullName) {
		if len(part) >= 3 {
			tokens = append(tokens, part)
		}
	}
	return tokens
}
