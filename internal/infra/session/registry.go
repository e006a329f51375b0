package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerdesk/platform-auth/internal/core/domain"
	"github.com/ledgerdesk/platform-auth/internal/infra/security"
)

const (
	defaultIdleTimeout   = 30 * time.Minute
	defaultSweepInterval = 5 * time.Minute
)

// Registry tracks active sessions in process memory. A background sweeper
// evicts sessions idle past the timeout; readers additionally filter by
// timestamp so a stale session counts as inactive even before removal.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*domain.ActiveSession

	idleTimeout   time.Duration
	sweepInterval time.Duration
	logger        *zap.Logger
	now           func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Registry.
type Option func(*Registry)

// WithIdleTimeout overrides the idle eviction threshold.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.idleTimeout = d
		}
	}
}

// WithSweepInterval overrides the background sweep period.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.sweepInterval = d
		}
	}
}

// WithClock overrides the internal clock, used in tests.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewRegistry constructs the registry and starts the sweeper goroutine.
// Callers own the lifecycle and must call Shutdown on teardown.
func NewRegistry(logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{
		sessions:      make(map[string]*domain.ActiveSession),
		idleTimeout:   defaultIdleTimeout,
		sweepInterval: defaultSweepInterval,
		logger:        logger,
		now:           time.Now,
		stop:          make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	go r.sweeper()

	return r
}

// Add registers a new active session for the user and returns it.
func (r *Registry) Add(user domain.UserAccount, ip, userAgent string) domain.ActiveSession {
	now := r.now().UTC()
	sess := domain.ActiveSession{
		SessionID:    newSessionID(user.ID, now),
		UserID:       user.ID,
		Role:         user.Role,
		Email:        user.Email,
		FullName:     user.FullName,
		LastActivity: now,
		IP:           ip,
		UserAgent:    userAgent,
	}

	r.mu.Lock()
	stored := sess
	r.sessions[sess.SessionID] = &stored
	r.mu.Unlock()

	return sess
}

// UpdateActivity bumps the session's last-activity timestamp. A missing
// session is a no-op returning false.
func (r *Registry) UpdateActivity(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return false
	}

	sess.LastActivity = r.now().UTC()
	return true
}

// Remove deletes the session, returning whether it existed.
func (r *Registry) Remove(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return false
	}

	delete(r.sessions, sessionID)
	return true
}

// ActiveCount returns the number of sessions within the idle timeout.
func (r *Registry) ActiveCount() int {
	now := r.now().UTC()

	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, sess := range r.sessions {
		if !sess.Idle(now, r.idleTimeout) {
			count++
		}
	}

	return count
}

// ActiveUsersByRole aggregates active sessions per role with a bounded detail
// list. Intended for operational dashboards, not authorization decisions.
func (r *Registry) ActiveUsersByRole(detailLimit int) map[domain.Role]domain.RoleActivity {
	if detailLimit < 0 {
		detailLimit = 0
	}
	now := r.now().UTC()

	r.mu.RLock()
	active := make([]domain.ActiveSession, 0, len(r.sessions))
	for _, sess := range r.sessions {
		if !sess.Idle(now, r.idleTimeout) {
			active = append(active, *sess)
		}
	}
	r.mu.RUnlock()

	sort.Slice(active, func(i, j int) bool {
		return active[i].LastActivity.After(active[j].LastActivity)
	})

	result := make(map[domain.Role]domain.RoleActivity)
	for _, sess := range active {
		entry := result[sess.Role]
		entry.Role = sess.Role
		entry.Count++
		if len(entry.Sessions) < detailLimit {
			entry.Sessions = append(entry.Sessions, sess)
		}
		result[sess.Role] = entry
	}

	return result
}

// Shutdown stops the sweeper. Safe to call more than once.
func (r *Registry) Shutdown() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}

func (r *Registry) sweeper() {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stop:
			return
		}
	}
}

func (r *Registry) sweep() {
	now := r.now().UTC()

	r.mu.Lock()
	evicted := 0
	for id, sess := range r.sessions {
		if sess.Idle(now, r.idleTimeout) {
			delete(r.sessions, id)
			evicted++
		}
	}
	remaining := len(r.sessions)
	r.mu.Unlock()

	if evicted > 0 {
		r.logger.Info("evicted idle sessions",
			zap.Int("evicted", evicted),
			zap.Int("remaining", remaining),
		)
	}
}

func newSessionID(userID string, now time.Time) string {
	suffix, err := security.GenerateSecureToken(9)
	if err != nil {
		suffix = fmt.Sprintf("%d", now.UnixNano()%1_000_000)
	}
	return fmt.Sprintf("%s_%d_%s", userID, now.UnixNano(), suffix)
}
