package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerdesk/platform-auth/internal/core/domain"
	"github.com/ledgerdesk/platform-auth/internal/core/port"
	"github.com/ledgerdesk/platform-auth/internal/infra/config"
	"github.com/ledgerdesk/platform-auth/internal/infra/security"
	"github.com/ledgerdesk/platform-auth/internal/repository"
)

// memoryUserRepository is an in-memory port.UserRepository used across the
// service tests.
type memoryUserRepository struct {
	mu    sync.Mutex
	users map[string]domain.UserAccount
}

func newMemoryUserRepository(users ...domain.UserAccount) *memoryUserRepository {
	repo := &memoryUserRepository{users: make(map[string]domain.UserAccount)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *memoryUserRepository) Create(_ context.Context, user domain.UserAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *memoryUserRepository) GetByID(_ context.Context, id string) (*domain.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		copied := user
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = strings.ToLower(email)
	for _, user := range r.users {
		if user.Email == email {
			copied := user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryUserRepository) GetByEmailVerificationToken(_ context.Context, token string) (*domain.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.EmailVerificationToken != nil && *user.EmailVerificationToken == token {
			copied := user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryUserRepository) GetByPasswordResetToken(_ context.Context, token string) (*domain.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.PasswordResetToken != nil && *user.PasswordResetToken == token {
			copied := user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryUserRepository) GetByPhoneNumber(_ context.Context, phone string) (*domain.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.PhoneNumber != nil && *user.PhoneNumber == phone {
			copied := user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryUserRepository) Update(_ context.Context, user domain.UserAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	r.users[user.ID] = user
	return nil
}

func (r *memoryUserRepository) stored(id string) domain.UserAccount {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

// memoryHistoryRepository is an in-memory port.PasswordHistoryRepository.
type memoryHistoryRepository struct {
	mu      sync.Mutex
	records map[string][]domain.PasswordHistoryRecord
}

func newMemoryHistoryRepository() *memoryHistoryRepository {
	return &memoryHistoryRepository{records: make(map[string][]domain.PasswordHistoryRecord)}
}

func (r *memoryHistoryRepository) Append(_ context.Context, record domain.PasswordHistoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.UserID] = append([]domain.PasswordHistoryRecord{record}, r.records[record.UserID]...)
	return nil
}

func (r *memoryHistoryRepository) ListRecent(_ context.Context, userID string, limit int) ([]domain.PasswordHistoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := r.records[userID]
	if len(records) > limit {
		records = records[:limit]
	}
	out := make([]domain.PasswordHistoryRecord, len(records))
	copy(out, records)
	return out, nil
}

func (r *memoryHistoryRepository) Prune(_ context.Context, userID string, keep int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if records := r.records[userID]; len(records) > keep {
		r.records[userID] = records[:keep]
	}
	return nil
}

// captureAuditPublisher records every published event.
type captureAuditPublisher struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (p *captureAuditPublisher) Publish(_ context.Context, event domain.AuditEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *captureAuditPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	actions := make([]string, 0, len(p.events))
	for _, e := range p.events {
		actions = append(actions, e.Action)
	}
	return actions
}

func (p *captureAuditPublisher) has(action string) bool {
	for _, a := range p.actions() {
		if a == action {
			return true
		}
	}
	return false
}

// captureEmailSender records outbound email instead of delivering it.
type captureEmailSender struct {
	mu       sync.Mutex
	messages []port.EmailMessage
	err      error
}

func (s *captureEmailSender) Send(_ context.Context, msg port.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *captureEmailSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// captureSMSSender records outbound SMS codes.
type captureSMSSender struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (s *captureSMSSender) SendVerificationCode(_ context.Context, _, code string) error {
	return s.record(code)
}

func (s *captureSMSSender) SendPasswordResetCode(_ context.Context, _, code string) error {
	return s.record(code)
}

func (s *captureSMSSender) record(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.codes = append(s.codes, code)
	return nil
}

// fakeRegistry is a minimal port.SessionRegistry for login tests.
type fakeRegistry struct {
	mu       sync.Mutex
	sessions map[string]domain.ActiveSession
	removed  []string
	seq      int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{sessions: make(map[string]domain.ActiveSession)}
}

func (r *fakeRegistry) Add(user domain.UserAccount, ip, userAgent string) domain.ActiveSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	sess := domain.ActiveSession{
		SessionID:    user.ID + "-sess",
		UserID:       user.ID,
		Role:         user.Role,
		Email:        user.Email,
		FullName:     user.FullName,
		LastActivity: time.Now(),
		IP:           ip,
		UserAgent:    userAgent,
	}
	r.sessions[sess.SessionID] = sess
	return sess
}

func (r *fakeRegistry) UpdateActivity(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[sessionID]
	return ok
}

func (r *fakeRegistry) Remove(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return false
	}
	delete(r.sessions, sessionID)
	r.removed = append(r.removed, sessionID)
	return true
}

func (r *fakeRegistry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *fakeRegistry) ActiveUsersByRole(int) map[domain.Role]domain.RoleActivity {
	return nil
}

func (r *fakeRegistry) Shutdown() {}

func testSecuritySettings() *config.SecuritySettings {
	return &config.SecuritySettings{
		BcryptCost:            security.MinBcryptCost,
		MaxFailedLogins:       5,
		LockoutDuration:       30 * time.Minute,
		PasswordHistoryDepth:  5,
		EmailVerifyTokenTTL:   24 * time.Hour,
		EmailVerifyCodeTTL:    10 * time.Minute,
		PasswordResetTokenTTL: time.Hour,
		PasswordResetCodeTTL:  15 * time.Minute,
		PhoneCodeTTL:          15 * time.Minute,
		NotificationTimeout:   5 * time.Second,
	}
}

func testMFASettings() *config.MFASettings {
	return &config.MFASettings{
		Issuer:           "LedgerDesk",
		BackupCodeCount:  10,
		BackupCodeLength: 8,
		TOTPSkewSteps:    2,
		ChallengeCodeTTL: 10 * time.Minute,
	}
}

func testTokenService() *security.TokenService {
	ts, err := security.NewTokenService("test-secret-0123456789", "ledgerdesk-auth", time.Hour, 5*time.Minute)
	if err != nil {
		panic(err)
	}
	return ts
}

func testHasher() *security.PasswordHasher {
	return security.NewPasswordHasher(security.MinBcryptCost)
}

func mustHash(hasher *security.PasswordHasher, password string) string {
	hash, err := hasher.Hash(password)
	if err != nil {
		panic(err)
	}
	return hash
}

func nopLogger() *zap.Logger { return zap.NewNop() }
