package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Pinger checks a backing dependency.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	Env     string
	Version string
	Mongo   Pinger
	Redis   Pinger // nil when Redis is not configured
}

func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "env": h.Env, "version": h.Version})
}

// Ready reports 503 when MongoDB is unreachable and "degraded" when only Redis is.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	status := "ok"
	code := http.StatusOK

	if h.Mongo != nil {
		if err := h.Mongo(ctx); err != nil {
			log.Warn().Err(err).Msg("readiness: mongo ping failed")
			checks["mongo"] = "down"
			status = "unavailable"
			code = http.StatusServiceUnavailable
		} else {
			checks["mongo"] = "up"
		}
	}

	if h.Redis != nil {
		if err := h.Redis(ctx); err != nil {
			log.Warn().Err(err).Msg("readiness: redis ping failed")
			checks["redis"] = "down"
			if code == http.StatusOK {
				status = "degraded"
			}
		} else {
			checks["redis"] = "up"
		}
	}

	c.JSON(code, gin.H{"status": status, "checks": checks})
}
