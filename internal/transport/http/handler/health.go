package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lucansdev/project-ai-document/internal/bootstrap"
)

type HealthHandler struct {
	app *bootstrap.App
}

func NewHealthHandler(app *bootstrap.App) *HealthHandler {
	return &HealthHandler{app: app}
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Check pings every backing dependency and reports 503 if any is down.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]func(context.Context) error{
		"database": h.pingDatabase,
		"redis":    h.pingRedis,
		"rabbitmq": h.pingRabbitMQ,
	}

	statusCode := http.StatusOK
	results := make(map[string]dependencyStatus, len(checks))
	for name, check := range checks {
		if err := check(ctx); err != nil {
			results[name] = dependencyStatus{Message: err.Error()}
			statusCode = http.StatusServiceUnavailable
			continue
		}
		results[name] = dependencyStatus{OK: true}
	}

	c.JSON(statusCode, gin.H{
		"app":          h.app.Config.App.Name,
		"env":          h.app.Config.App.Env,
		"uptime_sec":   int(time.Since(h.app.StartedAt).Seconds()),
		"dependencies": results,
	})
}

func (h *HealthHandler) pingDatabase(ctx context.Context) error {
	sqlDB, err := h.app.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (h *HealthHandler) pingRedis(ctx context.Context) error {
	return h.app.Redis.Ping(ctx).Err()
}

func (h *HealthHandler) pingRabbitMQ(context.Context) error {
	if h.app.MQConn == nil || h.app.MQConn.IsClosed() {
		return errMQClosed
	}
	return nil
}

var errMQClosed = errors.New("connection closed")
