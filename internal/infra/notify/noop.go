package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/ledgerdesk/platform-auth/internal/core/port"
	"github.com/ledgerdesk/platform-auth/internal/infra/logger"
)

// LogEmailSender logs instead of sending. Used when no email provider is
// configured (local development, tests).
type LogEmailSender struct {
	log *zap.Logger
}

// NewLogEmailSender constructs a logging-only email sender.
func NewLogEmailSender(log *zap.Logger) *LogEmailSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogEmailSender{log: log}
}

// Send logs the message envelope.
func (s *LogEmailSender) Send(_ context.Context, msg port.EmailMessage) error {
	s.log.Info("email (log sender)",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// LogSMSSender logs instead of sending.
type LogSMSSender struct {
	log *zap.Logger
}

// NewLogSMSSender constructs a logging-only SMS sender.
func NewLogSMSSender(log *zap.Logger) *LogSMSSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSMSSender{log: log}
}

// SendVerificationCode logs the dispatch.
func (s *LogSMSSender) SendVerificationCode(_ context.Context, phone, _ string) error {
	s.log.Info("sms verification code (log sender)", zap.String("to", logger.MaskPhone(phone)))
	return nil
}

// SendPasswordResetCode logs the dispatch.
func (s *LogSMSSender) SendPasswordResetCode(_ context.Context, phone, _ string) error {
	s.log.Info("sms password reset code (log sender)", zap.String("to", logger.MaskPhone(phone)))
	return nil
}
