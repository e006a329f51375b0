package port

import (
	"github.com/ledgerdesk/platform-auth/internal/core/domain"
)

// SessionRegistry tracks live sessions in process memory. All methods are
// safe for concurrent use; idle sessions are swept in the background and are
// treated as inactive by readers even before physical removal.
type SessionRegistry interface {
	Add(user domain.UserAccount, ip, userAgent string) domain.ActiveSession
	UpdateActivity(sessionID string) bool
	Remove(sessionID string) bool
	ActiveCount() int
	ActiveUsersByRole(detailLimit int) map[domain.Role]domain.RoleActivity
	Shutdown()
}
