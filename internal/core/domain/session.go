package domain

import "time"

// ActiveSession is the in-process record of an authenticated session.
// It lives only for the process lifetime and is evicted after the idle timeout.
type ActiveSession struct {
	SessionID    string
	UserID       string
	Role         Role
	Email        string
	FullName     string
	LastActivity time.Time
	IP           string
	UserAgent    string
}

// Idle reports whether the session has been inactive for at least the timeout.
func (s *ActiveSession) Idle(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) >= timeout
}

// RoleActivity aggregates active sessions for a single role.
type RoleActivity struct {
	Role     Role
	Count    int
	Sessions []ActiveSession
}
