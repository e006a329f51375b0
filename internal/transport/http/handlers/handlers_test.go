package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ledgerdesk/platform-auth/internal/core/domain"
	"github.com/ledgerdesk/platform-auth/internal/infra/security"
	"github.com/ledgerdesk/platform-auth/internal/usecase"
)

// staticRegistry is a canned port.SessionRegistry for dashboard tests.
type staticRegistry struct {
	byRole map[domain.Role]domain.RoleActivity
}

func (r *staticRegistry) Add(user domain.UserAccount, ip, userAgent string) domain.ActiveSession {
	return domain.ActiveSession{SessionID: "static", UserID: user.ID}
}
func (r *staticRegistry) UpdateActivity(string) bool { return true }
func (r *staticRegistry) Remove(string) bool         { return false }
func (r *staticRegistry) ActiveCount() int           { return 0 }
func (r *staticRegistry) ActiveUsersByRole(int) map[domain.Role]domain.RoleActivity {
	return r.byRole
}
func (r *staticRegistry) Shutdown() {}

func newTestAuthService(t *testing.T, registry *staticRegistry) (*usecase.AuthService, *security.TokenService) {
	t.Helper()
	tokens, err := security.NewTokenService("handler-test-secret", "ledgerdesk-auth", time.Hour, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	auth := usecase.NewAuthService(nil, nil, nil, tokens, registry, nil, nil, nil, nil)
	return auth, tokens
}

func performJSON(t *testing.T, engine *gin.Engine, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestPasswordStrengthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	handler := NewPasswordHandler(nil, nil)
	engine.POST("/password-strength", func(c *gin.Context) { handler.passwordStrength(c) })

	rec := performJSON(t, engine, http.MethodPost, "/password-strength",
		`{"password":"Tr0ub4dor&3xpand!2024"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp PasswordStrengthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Acceptable {
		t.Error("strong password reported unacceptable")
	}
	if resp.Score < 90 || resp.Level != "VERY_STRONG" {
		t.Errorf("score=%d level=%s, want >=90 VERY_STRONG", resp.Score, resp.Level)
	}
}

func TestPasswordStrengthEndpointWeakPassword(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	handler := NewPasswordHandler(nil, nil)
	engine.POST("/password-strength", func(c *gin.Context) { handler.passwordStrength(c) })

	rec := performJSON(t, engine, http.MethodPost, "/password-strength",
		`{"password":"password123"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp PasswordStrengthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Acceptable {
		t.Error("common password reported acceptable")
	}
	if resp.Requirements.NotCommon {
		t.Error("common password passed the dictionary requirement")
	}
}

func TestPasswordStrengthEndpointUsesIdentityTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	handler := NewPasswordHandler(nil, nil)
	engine.POST("/password-strength", func(c *gin.Context) { handler.passwordStrength(c) })

	rec := performJSON(t, engine, http.MethodPost, "/password-strength",
		`{"password":"Alice!Sup3rSecret99","email":"alice","full_name":"Alice Smith"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp PasswordStrengthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Requirements.NotUserInfo {
		t.Error("password containing the user's name passed the identity requirement")
	}
	if resp.Acceptable {
		t.Error("identity-bearing password reported acceptable")
	}
}

func TestPasswordStrengthEndpointRejectsMissingPassword(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	handler := NewPasswordHandler(nil, nil)
	engine.POST("/password-strength", func(c *gin.Context) { handler.passwordStrength(c) })

	rec := performJSON(t, engine, http.MethodPost, "/password-strength", `{}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestActiveSessionsRequiresAdminRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := &staticRegistry{byRole: map[domain.Role]domain.RoleActivity{}}
	auth, tokens := newTestAuthService(t, registry)

	engine := gin.New()
	group := engine.Group("/api/v1")
	NewSessionHandler(registry, auth).RegisterRoutes(group)

	// No token at all.
	rec := performJSON(t, engine, http.MethodGet, "/api/v1/sessions/active", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without token = %d, want 401", rec.Code)
	}

	// Authenticated but not an admin.
	clientToken, err := tokens.IssueAccess(domain.UserAccount{ID: "u1", Role: domain.RoleClient}, "sess-1")
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}
	rec = performJSON(t, engine, http.MethodGet, "/api/v1/sessions/active", "", clientToken)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status with client token = %d, want 403", rec.Code)
	}

	// A pending-MFA token is not a session token, even when it names an
	// admin: the second factor has not been presented yet.
	pendingToken, err := tokens.IssuePendingMFA(domain.UserAccount{ID: "a1", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("IssuePendingMFA() error = %v", err)
	}
	rec = performJSON(t, engine, http.MethodGet, "/api/v1/sessions/active", "", pendingToken)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status with pending token = %d, want 401", rec.Code)
	}
}

func TestActiveSessionsDashboard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	registry := &staticRegistry{byRole: map[domain.Role]domain.RoleActivity{
		domain.RoleClient: {
			Role:  domain.RoleClient,
			Count: 2,
			Sessions: []domain.ActiveSession{
				{SessionID: "s1", UserID: "c1", Role: domain.RoleClient, Email: "c1@example.com", LastActivity: now},
				{SessionID: "s2", UserID: "c2", Role: domain.RoleClient, Email: "c2@example.com", LastActivity: now},
			},
		},
		domain.RoleAdmin: {
			Role:  domain.RoleAdmin,
			Count: 1,
			Sessions: []domain.ActiveSession{
				{SessionID: "s3", UserID: "a1", Role: domain.RoleAdmin, Email: "a1@example.com", LastActivity: now},
			},
		},
	}}
	auth, tokens := newTestAuthService(t, registry)

	engine := gin.New()
	group := engine.Group("/api/v1")
	NewSessionHandler(registry, auth).RegisterRoutes(group)

	adminToken, err := tokens.IssueAccess(domain.UserAccount{ID: "a1", Role: domain.RoleAdmin}, "sess-a")
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}

	rec := performJSON(t, engine, http.MethodGet, "/api/v1/sessions/active", "", adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp ActiveSessionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}
	if len(resp.ByRole) != 2 {
		t.Fatalf("role groups = %d, want 2", len(resp.ByRole))
	}
	// Sorted by count descending.
	if resp.ByRole[0].Role != domain.RoleClient || resp.ByRole[0].Count != 2 {
		t.Errorf("first group = %+v, want CLIENT with count 2", resp.ByRole[0])
	}
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	group := engine.Group("")
	NewHealthHandler(nil, nil).RegisterRoutes(group)

	rec := performJSON(t, engine, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status field = %q, want ok", resp.Status)
	}
}
