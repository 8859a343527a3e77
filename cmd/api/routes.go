package main

import (
	"database/sql"
	"net/http"
	"time"

	"callkit/internal/gateway"
	"callkit/internal/httpapi"
	"callkit/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, authMW gin.HandlerFunc, h httpapi.Handlers, hub *gateway.Hub, db *sql.DB, rdb *redis.Client) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		calls := v1.Group("/calls")
		{
			calls.POST("", h.InitiateCall)
			calls.GET("/:call_id", h.GetCall)
			calls.POST("/:call_id/accept", h.AcceptCall)
			calls.POST("/:call_id/reject", h.RejectCall)
			calls.POST("/:call_id/end", h.EndCall)
			calls.POST("/:call_id/camera", h.SetCamera)
		}

		v1.GET("/call-logs", h.ListCallLogs)
		v1.GET("/call-logs/summary", h.CallLogSummary)

		v1.GET("/minutes/balance", h.GetBalance)
		v1.POST("/minutes/topup", h.TopUp)

		// Realtime events: incoming calls and the push relay.
		v1.GET("/ws", hub.ServeWS)
	}
}
