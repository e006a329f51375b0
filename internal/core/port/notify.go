package port

import "context"

// EmailMessage is the transport-agnostic email payload.
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
}

// EmailSender dispatches transactional email. Implementations bound their own
// I/O with the supplied context; senders never block a caller indefinitely.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SMSSender dispatches one-time codes over SMS.
type SMSSender interface {
	SendVerificationCode(ctx context.Context, phone, code string) error
	SendPasswordResetCode(ctx context.Context, phone, code string) error
}
