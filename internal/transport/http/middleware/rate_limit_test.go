package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

type stubAttemptStore struct {
	count     int
	oldest    time.Time
	hasOldest bool
	failWith  error

	recordedKeys []string
}

func (s *stubAttemptStore) TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error {
	return s.failWith
}

func (s *stubAttemptStore) CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	return s.count, s.failWith
}

func (s *stubAttemptStore) RecordAttempt(ctx context.Context, identifier string, at time.Time) error {
	s.recordedKeys = append(s.recordedKeys, identifier)
	return s.failWith
}

func (s *stubAttemptStore) OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	return s.oldest, s.hasOldest, s.failWith
}

var limiterNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func limitedRouter(t *testing.T, store *stubAttemptStore, rule RateLimitRule) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	limiter := NewRateLimiter(store, zaptest.NewLogger(t)).WithClock(func() time.Time { return limiterNow })

	r := gin.New()
	r.Use(limiter.RateLimit(rule))
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func loginRule(limit int) RateLimitRule {
	return RateLimitRule{
		Name:   "auth_login_ip",
		Limit:  limit,
		Window: time.Minute,
		Identifier: func(c *gin.Context) (string, bool) {
			return "198.51.100.7", true
		},
	}
}

func TestRateLimiterAllowsAndReportsRemaining(t *testing.T) {
	store := &stubAttemptStore{
		count:     2,
		oldest:    limiterNow.Add(-30 * time.Second),
		hasOldest: true,
	}

	rr := httptest.NewRecorder()
	limitedRouter(t, store, loginRule(5)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(store.recordedKeys) != 1 {
		t.Fatalf("expected one recorded attempt, got %d", len(store.recordedKeys))
	}
	if got := store.recordedKeys[0]; got != "auth_login_ip:198.51.100.7" {
		t.Fatalf("unexpected storage key %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Fatalf("expected limit header 5, got %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "2" {
		t.Fatalf("expected remaining header 2, got %q", got)
	}
	wantReset := strconv.FormatInt(store.oldest.Add(time.Minute).Unix(), 10)
	if got := rr.Header().Get("X-RateLimit-Reset"); got != wantReset {
		t.Fatalf("expected reset header %s, got %q", wantReset, got)
	}
	if got := rr.Header().Get("Retry-After"); got != "" {
		t.Fatalf("unexpected retry-after header %q", got)
	}
}

func TestRateLimiterBlocksWithProblemPayload(t *testing.T) {
	store := &stubAttemptStore{
		count:     5,
		oldest:    limiterNow.Add(-30 * time.Second),
		hasOldest: true,
	}

	rr := httptest.NewRecorder()
	limitedRouter(t, store, loginRule(5)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if len(store.recordedKeys) != 0 {
		t.Fatalf("blocked request must not record an attempt, got %d", len(store.recordedKeys))
	}
	if got := rr.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("expected retry-after 30, got %q", got)
	}

	var problem ProblemDetails
	if err := json.Unmarshal(rr.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to decode problem payload: %v", err)
	}
	if problem.Status != http.StatusTooManyRequests {
		t.Fatalf("unexpected problem status %d", problem.Status)
	}
	if problem.RetryAfter != 30 {
		t.Fatalf("expected problem retry_after 30, got %d", problem.RetryAfter)
	}
	if problem.Instance != "/login" {
		t.Fatalf("expected instance /login, got %q", problem.Instance)
	}
}

func TestRateLimiterFailsOpenWhenStoreIsDown(t *testing.T) {
	store := &stubAttemptStore{failWith: errors.New("connection refused")}

	rr := httptest.NewRecorder()
	limitedRouter(t, store, loginRule(5)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 when failing open, got %d", rr.Code)
	}
}

func TestRateLimiterSkipsRuleWithoutIdentifier(t *testing.T) {
	store := &stubAttemptStore{}
	rule := loginRule(5)
	rule.Identifier = func(c *gin.Context) (string, bool) { return "", false }

	rr := httptest.NewRecorder()
	limitedRouter(t, store, rule).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(store.recordedKeys) != 0 {
		t.Fatalf("expected no recorded attempts, got %d", len(store.recordedKeys))
	}
}
