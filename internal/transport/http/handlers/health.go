package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	appredis "github.com/ledgerdesk/platform-auth/internal/infra/redis"
)

const dependencyCheckTimeout = 2 * time.Second

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	pool      *pgxpool.Pool
	redis     *appredis.Client
	startedAt time.Time
}

// NewHealthHandler constructs HealthHandler.
func NewHealthHandler(pool *pgxpool.Pool, redis *appredis.Client) *HealthHandler {
	return &HealthHandler{
		pool:      pool,
		redis:     redis,
		startedAt: time.Now().UTC(),
	}
}

// RegisterRoutes binds the probe endpoints.
func (h *HealthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		StartedAt: h.startedAt,
		Timestamp: time.Now().UTC(),
	})
}

func (h *HealthHandler) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dependencyCheckTimeout)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if h.pool != nil {
		if err := h.pool.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		} else {
			checks["postgres"] = "ok"
		}
	}

	if h.redis != nil {
		if err := h.redis.Client().Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	statusLabel := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		statusLabel = "degraded"
	}

	c.JSON(status, ReadyResponse{
		Status:    statusLabel,
		Checks:    checks,
		Timestamp: time.Now().UTC(),
	})
}
