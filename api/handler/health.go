package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/chapterwatch/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports the configured engine chain and degrades status when it is empty.
func Health(engines []string, activeRenders func() int, runs *Runs, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		if len(engines) == 0 {
			status = "degraded"
		}

		active := 0
		if activeRenders != nil {
			active = activeRenders()
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:        status,
			Uptime:        time.Since(startTime).Round(time.Second).String(),
			Engines:       engines,
			ActiveRenders: active,
			RunActive:     runs != nil && runs.Active() != "",
			Version:       Version,
		})
	}
}
