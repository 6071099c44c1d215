package middleware

import (
	"errors"
	"time"

	"job-sync/internal/metrics"
	"job-sync/internal/pkg/logger"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const HeaderRequestID = "X-Request-ID"

// AccessLogMiddleware tags each request with an id, logs it and records it
// in the HTTP request counter.
type AccessLogMiddleware struct {
	log     logger.Logger
	metrics *metrics.Metrics
}

func NewAccessLogMiddleware(log logger.Logger, m *metrics.Metrics) *AccessLogMiddleware {
	if log == nil {
		log = logger.NewNop()
	}
	return &AccessLogMiddleware{log: log, metrics: m}
}

func (m *AccessLogMiddleware) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		rid := c.Get(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(HeaderRequestID, rid)

		err := c.Next()

		status := c.Response().StatusCode()
		var appErr *AppError
		var fe *fiber.Error
		switch {
		case errors.As(err, &appErr) && appErr.StatusCode > 0:
			status = appErr.StatusCode
		case errors.As(err, &fe):
			status = fe.Code
		}

		route := c.Route().Path
		if route == "" {
			route = "unmatched"
		}
		m.metrics.HTTPRequest(c.Method(), route, status)

		m.log.Info("http access",
			zap.String("request_id", rid),
			zap.String("ip", c.IP()),
			zap.String("method", c.Method()),
			zap.String("path", c.OriginalURL()),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Int("req_bytes", c.Request().Header.ContentLength()),
			zap.String("ua", c.Get("User-Agent")),
		)
		return err
	}
}
