package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Redis keys for request statistics, read back by the health endpoints.
const (
	KeyReqTotal   = "health:edustack:req_total"
	KeyReqErrors  = "health:edustack:req_errors"
	KeyResTime    = "health:edustack:res_time_total"
	KeyResCount   = "health:edustack:res_count"
	KeyStartTime  = "health:edustack:start_time"
	KeyLastReq    = "health:edustack:last_request"
	KeyErrorLog   = "health:edustack:error_log"
	KeyRedirects  = "health:edustack:gate_redirects"
	errorLogLimit = 100
)

// HealthMarker records request stats in Redis. Health, metrics and favicon
// requests are not counted.
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil || skipHealthMark(c.Path()) {
			return c.Next()
		}

		start := time.Now()
		b, _ := json.Marshal(map[string]interface{}{
			"time":   start,
			"ip":     c.IP(),
			"path":   c.OriginalURL(),
			"method": c.Method(),
		})
		ctx := context.Background()
		pipe := rdb.Pipeline()
		pipe.Set(ctx, KeyLastReq, b, 0)
		pipe.Incr(ctx, KeyReqTotal)
		_, _ = pipe.Exec(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		pipe = rdb.Pipeline()
		pipe.Incr(ctx, KeyResCount)
		pipe.IncrByFloat(ctx, KeyResTime, float64(time.Since(start).Milliseconds()))
		if status >= 500 {
			pipe.Incr(ctx, KeyReqErrors)
		}
		if status == fiber.StatusFound {
			pipe.Incr(ctx, KeyRedirects)
		}
		_, _ = pipe.Exec(ctx)
		return err
	}
}

func skipHealthMark(path string) bool {
	return path == "/" || strings.HasPrefix(path, "/health") || path == "/metrics" || strings.HasPrefix(path, "/favicon")
}
