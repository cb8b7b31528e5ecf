package handler

import (
	"context"
	"net/http"
	"time"

	"tillcore/internal/infra"
	"tillcore/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// Checks DB and Redis connectivity, reports the report-queue DLQ backlog and
// the provider circuit state; never exposes credentials or internals.
func Health(db *gorm.DB, rdb *redis.Client, pspCB *infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		var dlqBacklog int64
		if rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		} else {
			dlqBacklog, _ = worker.DLQLength(ctx, rdb, worker.QueueSessionClosed)
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":          status == http.StatusOK,
			"db":          dbStatus,
			"redis":       redisStatus,
			"dlq_backlog": dlqBacklog,
			"psp_circuit": pspCB.State().String(),
		})
	}
}
