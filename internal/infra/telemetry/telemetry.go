package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ledgerdesk/platform-auth/internal/infra/config"
)

// Provider holds the service's Prometheus collectors.
type Provider struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	loginAttempts *prometheus.CounterVec
	lockouts      prometheus.Counter
}

// Attach registers the service metrics with the default registry.
func Attach(cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	return &Provider{
		httpRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "auth",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		loginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
		lockouts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "account_lockouts_total",
			Help:      "Accounts locked after repeated failures",
		}),
	}, nil
}

// ObserveHTTPRequest records one completed HTTP request.
func (p *Provider) ObserveHTTPRequest(method, path, status string, seconds float64) {
	if p == nil {
		return
	}
	p.httpRequests.WithLabelValues(method, path, status).Inc()
	p.httpDuration.WithLabelValues(method, path).Observe(seconds)
}

// CountLogin records a login attempt outcome (success, invalid_credentials,
// locked, mfa_required, ...).
func (p *Provider) CountLogin(outcome string) {
	if p == nil {
		return
	}
	p.loginAttempts.WithLabelValues(outcome).Inc()
}

// CountLockout records an account transitioning into the locked state.
func (p *Provider) CountLockout() {
	if p == nil {
		return
	}
	p.lockouts.Inc()
}
