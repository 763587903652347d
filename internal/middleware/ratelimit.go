package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"plannr/internal/config"
)

// RateLimit is a fixed window counter per client IP and route. Redis errors
// let the request through.
func RateLimit(client *redis.Client, cfg config.RateLimitConfig, log zerolog.Logger) gin.HandlerFunc {
	if client == nil || cfg.Requests <= 0 || cfg.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	windowMillis := cfg.Window.Milliseconds()
	if windowMillis < 1 {
		windowMillis = 1
	}
	retryAfter := int((cfg.Window + time.Second - 1) / time.Second)

	return func(c *gin.Context) {
		window := time.Now().UnixMilli() / windowMillis
		key := fmt.Sprintf("ratelimit:%s:%s:%d", c.FullPath(), c.ClientIP(), window)

		ctx := c.Request.Context()
		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			log.Warn().Err(err).Msg("rate limit counter unavailable")
			c.Next()
			return
		}
		if count == 1 {
			client.Expire(ctx, key, cfg.Window)
		}

		remaining := cfg.Requests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Writer.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
		c.Writer.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > cfg.Requests {
			c.Writer.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			abortJSON(c, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}

		c.Next()
	}
}
