package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerdesk/platform-auth/internal/core/domain"
	"github.com/ledgerdesk/platform-auth/internal/infra/config"
)

const schemaVersion = "1.0"

const auditTopicEventType = "audit_log"

// AuditPublisher implements port.AuditPublisher on top of the Kafka producer.
type AuditPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewAuditPublisher constructs a Kafka-backed audit publisher.
func NewAuditPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *AuditPublisher {
	return &AuditPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type auditEnvelope struct {
	EventID   string            `json:"event_id"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Event     domain.AuditEvent `json:"event"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Publish serializes the audit event and hands it to the async producer.
// Delivery failures surface on the producer's error channel, not here.
func (p *AuditPublisher) Publish(ctx context.Context, event domain.AuditEvent) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	envelope := auditEnvelope{
		EventID:   uuid.NewString(),
		Timestamp: event.At,
		Version:   schemaVersion,
		Event:     event,
		Metadata: map[string]string{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal audit envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(auditTopicEventType),
		Key:   sarama.StringEncoder(event.EntityID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
