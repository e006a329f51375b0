package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ledgerdesk/platform-auth/internal/core/domain"
	"github.com/ledgerdesk/platform-auth/internal/core/port"
	"github.com/ledgerdesk/platform-auth/internal/transport/http/middleware"
	"github.com/ledgerdesk/platform-auth/internal/usecase"
)

// sessionDetailLimit caps how many per-session rows the dashboard returns per
// role.
const sessionDetailLimit = 50

// SessionHandler exposes the admin dashboard over the in-memory session
// registry.
type SessionHandler struct {
	registry port.SessionRegistry
	auth     *usecase.AuthService
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(registry port.SessionRegistry, auth *usecase.AuthService) *SessionHandler {
	return &SessionHandler{registry: registry, auth: auth}
}

// RegisterRoutes binds the session dashboard routes; they are admin-only.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	grp := r.Group("/sessions", middleware.RequireAuth(h.auth), middleware.RequireRole(domain.RoleAdmin))
	grp.GET("/active", h.activeSessions)
}

func (h *SessionHandler) activeSessions(c *gin.Context) {
	byRole := h.registry.ActiveUsersByRole(sessionDetailLimit)

	summaries := make([]RoleActivitySummary, 0, len(byRole))
	total := 0
	for _, activity := range byRole {
		total += activity.Count
		entry := RoleActivitySummary{
			Role:  activity.Role,
			Count: activity.Count,
		}
		for _, sess := range activity.Sessions {
			entry.Sessions = append(entry.Sessions, newSessionSummary(sess))
		}
		summaries = append(summaries, entry)
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Count != summaries[j].Count {
			return summaries[i].Count > summaries[j].Count
		}
		return summaries[i].Role < summaries[j].Role
	})

	c.JSON(http.StatusOK, ActiveSessionsResponse{
		Total:   total,
		ByRole:  summaries,
		Fetched: time.Now().UTC(),
	})
}
