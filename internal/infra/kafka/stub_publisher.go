package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/ledgerdesk/platform-auth/internal/core/domain"
)

// StubPublisher logs audit events instead of publishing them. Used when no
// Kafka brokers are configured (local development, tests).
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a logging-only audit publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

// Publish logs the event at debug level.
func (p *StubPublisher) Publish(_ context.Context, event domain.AuditEvent) error {
	p.logger.Debug("audit event (stub publisher)",
		zap.String("action", event.Action),
		zap.String("entity_type", event.EntityType),
		zap.String("entity_id", event.EntityID),
	)
	return nil
}
