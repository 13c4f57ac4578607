package middleware

import (
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type AccessLogMiddleware struct {
	logger *log.Logger
	skip   map[string]struct{}
}

// NewAccessLogMiddleware logs one line per request. Paths in skip (health
// probes, the websocket upgrade) are not logged.
func NewAccessLogMiddleware(logger *log.Logger, skip ...string) *AccessLogMiddleware {
	if logger == nil {
		logger = log.Default()
	}
	m := &AccessLogMiddleware{logger: logger, skip: map[string]struct{}{}}
	for _, p := range skip {
		m.skip[strings.TrimSpace(p)] = struct{}{}
	}
	return m
}

func (m *AccessLogMiddleware) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		rid := c.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("X-Request-ID", rid)

		err := c.Next()

		if _, ok := m.skip[c.Path()]; ok {
			return err
		}
		status := c.Response().StatusCode()
		if err != nil {
			status, _, _ = normalizeError(err)
		}
		m.logger.Printf(
			"component=http rid=%s ip=%s method=%s path=%s status=%d latency=%s req_bytes=%d",
			rid, c.IP(), c.Method(), c.OriginalURL(), status, time.Since(start), c.Request().Header.ContentLength(),
		)
		return err
	}
}
