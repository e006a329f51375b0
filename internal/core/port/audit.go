package port

import (
	"context"

	"github.com/ledgerdesk/platform-auth/internal/core/domain"
)

// AuditPublisher delivers audit events to the message bus. Callers treat
// publishing as best-effort: a failed publish is logged, never propagated
// into the primary operation's result.
type AuditPublisher interface {
	Publish(ctx context.Context, event domain.AuditEvent) error
}
