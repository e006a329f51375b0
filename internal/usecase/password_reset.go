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
	ErrInvalidResetToken      = errors.New("reset token is invalid or expired")
	ErrPasswordRecentlyUsed   = errors.New("password was used recently")
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
)

// PasswordResetService drives the forgot/reset flows (link, email code, and
// SMS code variants) and authenticated password changes. Forgot requests are
// enumeration-safe: they report success whether or not the identifier matches
// an account.
type PasswordResetService struct {
	cfg     *config.SecuritySettings
	baseURL string
	users   port.UserRepository
	history port.PasswordHistoryRepository
	hasher  *security.PasswordHasher
	email   port.EmailSender
	sms     port.SMSSender
	audit   port.AuditPublisher
	log     *zap.Logger

	now func() time.Time
}

func NewPasswordResetService(
	cfg *config.SecuritySettings,
	baseURL string,
	users port.UserRepository,
	history port.PasswordHistoryRepository,
	hasher *security.PasswordHasher,
	email port.EmailSender,
	sms port.SMSSender,
	audit port.AuditPublisher,
	log *zap.Logger,
) *PasswordResetService {
	return &PasswordResetService{
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		users:   users,
		history: history,
		hasher:  hasher,
		email:   email,
		sms:     sms,
		audit:   audit,
		log:     log,
		now:     time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *PasswordResetService) WithClock(now func() time.Time) *PasswordResetService {
	s.now = now
	return s
}

// ForgotPassword issues a reset link token and emails it. Always returns nil
// for unknown emails.
func (s *PasswordResetService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}

	token, err := security.GenerateSecureToken(32)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	// Only the hash is persisted; the raw token travels in the email link,
	// so a leaked user row cannot complete a reset.
	hashed := security.HashToken(token)
	expires := s.now().Add(s.cfg.PasswordResetTokenTTL)
	user.PasswordResetToken = &hashed
	user.PasswordResetExpires = &expires

	if err := s.users.Update(ctx, *user); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link := fmt.Sprintf("%s/auth/reset-password?token=%s", s.baseURL, token)
	subject, body := notify.PasswordResetLinkEmail(user.FullName, link)
	s.sendEmail(ctx, user, subject, body)
	s.publishAudit(ctx, user.ID, domain.AuditPasswordResetRequested, map[string]any{"channel": "email_link"})
	return nil
}

// ForgotPasswordByCode issues a short numeric reset code and emails it.
// Always returns nil for unknown emails.
func (s *PasswordResetService) ForgotPasswordByCode(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}

	code, err := security.GenerateNumericCode(6)
	if err != nil {
		return fmt.Errorf("generate reset code: %w", err)
	}
	expires := s.now().Add(s.cfg.PasswordResetCodeTTL)
	user.PasswordResetCode = &code
	user.PasswordResetCodeExpires = &expires

	if err := s.users.Update(ctx, *user); err != nil {
		return fmt.Errorf("store reset code: %w", err)
	}

	subject, body := notify.PasswordResetCodeEmail(user.FullName, code)
	s.sendEmail(ctx, user, subject, body)
	s.publishAudit(ctx, user.ID, domain.AuditPasswordResetRequested, map[string]any{"channel": "email_code"})
	return nil
}

// ForgotPasswordByPhone issues a reset code over SMS. Always returns nil for
// unknown phone numbers.
func (s *PasswordResetService) ForgotPasswordByPhone(ctx context.Context, phone string) error {
	user, err := s.users.GetByPhoneNumber(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}

	code, err := security.GenerateNumericCode(6)
	if err != nil {
		return fmt.Errorf("generate reset code: %w", err)
	}
	expires := s.now().Add(s.cfg.PasswordResetCodeTTL)
	user.PhonePasswordResetCode = &code
	user.PhonePasswordResetExpires = &expires

	if err := s.users.Update(ctx, *user); err != nil {
		return fmt.Errorf("store reset code: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.NotificationTimeout)
	defer cancel()
	if err := s.sms.SendPasswordResetCode(sendCtx, phone, code); err != nil {
		s.log.Warn("reset sms failed",
			zap.String("user_id", user.ID),
			zap.String("phone", logger.MaskPhone(phone)),
			zap.Error(err),
		)
	}
	s.publishAudit(ctx, user.ID, domain.AuditPasswordResetRequested, map[string]any{"channel": "sms_code"})
	return nil
}

// ResetPasswordByToken completes a link-based reset. The stored artifact is
// the token's hash, so the lookup hashes the submitted value first.
func (s *PasswordResetService) ResetPasswordByToken(ctx context.Context, token, newPassword string) error {
	user, err := s.users.GetByPasswordResetToken(ctx, security.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("load user: %w", err)
	}
	if user.PasswordResetExpires == nil || s.now().After(*user.PasswordResetExpires) {
		return ErrInvalidResetToken
	}

	return s.completeReset(ctx, user, newPassword, "email_link")
}

// ResetPasswordByCode completes a code-based reset delivered over email.
func (s *PasswordResetService) ResetPasswordByCode(ctx context.Context, email, code, newPassword string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("load user: %w", err)
	}
	if user.PasswordResetCode == nil || user.PasswordResetCodeExpires == nil ||
		*user.PasswordResetCode != code || s.now().After(*user.PasswordResetCodeExpires) {
		return ErrInvalidOrExpiredCode
	}

	return s.completeReset(ctx, user, newPassword, "email_code")
}

// ResetPasswordByPhoneCode completes a code-based reset delivered over SMS.
func (s *PasswordResetService) ResetPasswordByPhoneCode(ctx context.Context, phone, code, newPassword string) error {
	user, err := s.users.GetByPhoneNumber(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredCode
		}
		return fmt.Errorf("load user: %w", err)
	}
	if user.PhonePasswordResetCode == nil || user.PhonePasswordResetExpires == nil ||
		*user.PhonePasswordResetCode != code || s.now().After(*user.PhonePasswordResetExpires) {
		return ErrInvalidOrExpiredCode
	}

	return s.completeReset(ctx, user, newPassword, "sms_code")
}

// ChangePassword rotates the password for an authenticated user after
// re-confirming the current one.
func (s *PasswordResetService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}

	ok, err := s.hasher.Compare(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return ErrInvalidCurrentPassword
	}

	if err := security.RequireDifferentFrom(currentPassword).Validate(newPassword); err != nil {
		return err
	}

	if err := s.applyNewPassword(ctx, user, newPassword); err != nil {
		return err
	}

	s.publishAudit(ctx, user.ID, domain.AuditPasswordChanged, nil)
	return nil
}

// completeReset applies the new password and clears every outstanding reset
// artifact, so no second flavor of the same request can be replayed. A reset
// also clears any lockout: the user has just proven control of the account's
// recovery channel.
func (s *PasswordResetService) completeReset(ctx context.Context, user *domain.UserAccount, newPassword, channel string) error {
	if err := s.applyNewPassword(ctx, user, newPassword); err != nil {
		return err
	}

	s.publishAudit(ctx, user.ID, domain.AuditPasswordResetCompleted, map[string]any{"channel": channel})
	s.log.Info("password reset completed",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
		zap.String("channel", channel),
	)
	return nil
}

func (s *PasswordResetService) applyNewPassword(ctx context.Context, user *domain.UserAccount, newPassword string) error {
	validator := security.DefaultPasswordValidator(userIdentityTokens(user.Email, user.FullName)...)
	if err := validator.Validate(newPassword); err != nil {
		return err
	}

	recent, err := s.history.ListRecent(ctx, user.ID, s.cfg.PasswordHistoryDepth)
	if err != nil {
		return fmt.Errorf("load password history: %w", err)
	}
	candidates := make([]string, 0, len(recent)+1)
	candidates = append(candidates, user.PasswordHash)
	for _, rec := range recent {
		candidates = append(candidates, rec.PasswordHash)
	}
	for _, hash := range candidates {
		match, err := s.hasher.Compare(newPassword, hash)
		if err != nil {
			return fmt.Errorf("compare against history: %w", err)
		}
		if match {
			return ErrPasswordRecentlyUsed
		}
	}

	previousHash := user.PasswordHash
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user.PasswordHash = hash
	user.ClearPasswordReset()
	user.ResetLockout()

	if err := s.users.Update(ctx, *user); err != nil {
		return fmt.Errorf("store new password: %w", err)
	}

	record := domain.PasswordHistoryRecord{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		PasswordHash: previousHash,
		CreatedAt:    s.now(),
	}
	if err := s.history.Append(ctx, record); err != nil {
		return fmt.Errorf("append password history: %w", err)
	}
	if err := s.history.Prune(ctx, user.ID, s.cfg.PasswordHistoryDepth); err != nil {
		return fmt.Errorf("prune password history: %w", err)
	}
	return nil
}

func (s *PasswordResetService) sendEmail(ctx context.Context, user *domain.UserAccount, subject, body string) {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.NotificationTimeout)
	defer cancel()
	if err := s.email.Send(sendCtx, port.EmailMessage{To: user.Email, Subject: subject, HTML: body}); err != nil {
		s.log.Warn("reset email failed",
			zap.String("user_id", user.ID),
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Error(err),
		)
	}
}

func (s *PasswordResetService) publishAudit(ctx context.Context, userID, action string, details map[string]any) {
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
