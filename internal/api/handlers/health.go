package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/tradecraft/pkg/database"
	"github.com/wonny/tradecraft/pkg/redis"
)

// HealthHandler reports service and backing store health
type HealthHandler struct {
	service string
	db      *database.DB
	redis   *redis.Client
	now     func() time.Time
}

// NewHealthHandler creates a health handler. db and rdb may be nil.
func NewHealthHandler(service string, db *database.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{service: service, db: db, redis: rdb, now: time.Now}
}

// Health returns "ok", or "degraded" with 503 when a configured store fails
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	body := map[string]interface{}{
		"status":    "ok",
		"service":   h.service,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if h.db != nil {
		dbStatus := h.db.HealthCheck(ctx)
		body["database"] = dbStatus
		if !dbStatus.Healthy {
			status = http.StatusServiceUnavailable
		}
	}

	if h.redis != nil && h.redis.Enabled() {
		redisStatus := map[string]interface{}{"healthy": true}
		if err := h.redis.Ping(ctx); err != nil {
			redisStatus["healthy"] = false
			redisStatus["error"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		body["redis"] = redisStatus
	}

	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	respondJSON(w, status, body)
}
