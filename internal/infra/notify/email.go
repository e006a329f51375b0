package notify

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"github.com/ledgerdesk/platform-auth/internal/core/port"
	"github.com/ledgerdesk/platform-auth/internal/infra/config"
	"github.com/ledgerdesk/platform-auth/internal/infra/logger"
)

// ResendEmailSender implements port.EmailSender using the Resend API.
type ResendEmailSender struct {
	client *resend.Client
	from   string
	log    *zap.Logger
}

// NewResendEmailSender constructs a Resend-backed email sender.
func NewResendEmailSender(cfg config.NotifySettings, log *zap.Logger) (*ResendEmailSender, error) {
	if cfg.ResendAPIKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("from email is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &ResendEmailSender{
		client: resend.NewClient(cfg.ResendAPIKey),
		from:   fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail),
		log:    log,
	}, nil
}

// Send dispatches the message, bounded by the caller's context.
func (s *ResendEmailSender) Send(ctx context.Context, msg port.EmailMessage) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	s.log.Info("email dispatched",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
		zap.String("message_id", sent.Id),
	)

	return nil
}
