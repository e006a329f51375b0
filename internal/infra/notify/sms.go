package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerdesk/platform-auth/internal/infra/config"
	"github.com/ledgerdesk/platform-auth/internal/infra/logger"
)

// ErrSMSSendFailed indicates the SMS gateway rejected or failed the dispatch.
var ErrSMSSendFailed = errors.New("sms send failed")

// GatewaySMSSender implements port.SMSSender against a JSON HTTP gateway.
type GatewaySMSSender struct {
	url    string
	apiKey string
	client *http.Client
	log    *zap.Logger
}

// NewGatewaySMSSender constructs an SMS sender for the configured gateway.
func NewGatewaySMSSender(cfg config.NotifySettings, log *zap.Logger) (*GatewaySMSSender, error) {
	if cfg.SMSGatewayURL == "" {
		return nil, fmt.Errorf("sms gateway url is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &GatewaySMSSender{
		url:    cfg.SMSGatewayURL,
		apiKey: cfg.SMSAPIKey,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}, nil
}

// SendVerificationCode delivers a phone verification code.
func (s *GatewaySMSSender) SendVerificationCode(ctx context.Context, phone, code string) error {
	return s.send(ctx, phone, fmt.Sprintf("Your verification code is %s. It expires shortly.", code))
}

// SendPasswordResetCode delivers a password reset code.
func (s *GatewaySMSSender) SendPasswordResetCode(ctx context.Context, phone, code string) error {
	return s.send(ctx, phone, fmt.Sprintf("Your password reset code is %s. It expires shortly.", code))
}

func (s *GatewaySMSSender) send(ctx context.Context, phone, message string) error {
	payload, err := json.Marshal(map[string]string{
		"to":   phone,
		"body": message,
	})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSMSSendFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: gateway returned %d", ErrSMSSendFailed, resp.StatusCode)
	}

	s.log.Info("sms dispatched", zap.String("to", logger.MaskPhone(phone)))

	return nil
}
