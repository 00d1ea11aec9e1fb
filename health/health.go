// Package health exposes a Cassandra liveness endpoint for gin routers.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/JIeeiroSst/cassutils/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Second

// Pinger reports the server version or why it cannot be reached.
type Pinger interface {
	Ping(ctx context.Context) (string, error)
}

type PingerFunc func(ctx context.Context) (string, error)

func (f PingerFunc) Ping(ctx context.Context) (string, error) {
	return f(ctx)
}

type MessageStatus struct {
	Message string      `json:"message,omitempty"`
	Error   bool        `json:"error"`
	Data    interface{} `json:"data,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
}

type Status struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

func Handler(p Pinger, timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return func(c *gin.Context) {
		ctx := logger.EnsureTraceID(c.Request.Context())
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		traceID := logger.TraceID(ctx)
		version, err := p.Ping(ctx)
		if err != nil {
			logger.WithContext(ctx).Warn("cassandra health check failed", zap.Error(err))
			respond(c, http.StatusServiceUnavailable, MessageStatus{
				Message: err.Error(),
				Error:   true,
				TraceID: traceID,
			})
			return
		}

		respond(c, http.StatusOK, MessageStatus{
			Data:    Status{Status: "UP", Version: version},
			TraceID: traceID,
		})
	}
}

// respond writes the failure envelope for any non-200 code and the data
// envelope otherwise.
func respond(c *gin.Context, code int, msg MessageStatus) {
	if code != http.StatusOK {
		c.JSON(code, gin.H{
			"message":  msg.Message,
			"error":    msg.Error,
			"trace_id": msg.TraceID,
		})
		return
	}

	c.JSON(code, gin.H{
		"trace_id": msg.TraceID,
		"data":     msg.Data,
	})
}

func Register(r gin.IRouter, p Pinger) {
	r.GET("/health", Handler(p, defaultTimeout))
}
