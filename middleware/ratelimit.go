package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/uday169/split-it-app-backend/utils"
)

// RateLimiter is a fixed-window, per-client-IP request limit kept in redis.
type RateLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
	log    *zap.Logger
}

func NewRateLimiter(rdb *redis.Client, limit int, window time.Duration, prefix string, log *zap.Logger) *RateLimiter {
	return &RateLimiter{rdb: rdb, limit: limit, window: window, prefix: prefix, log: log}
}

// Handler lets every request through when redis is absent or failing.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rdb == nil || rl.limit <= 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := rl.prefix + ":ip:" + c.ClientIP()

		count, err := rl.rdb.Incr(ctx, key).Result()
		if err != nil {
			rl.log.Warn("rate limiter unavailable, allowing request", zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			rl.rdb.Expire(ctx, key, rl.window)
		}

		ttl, _ := rl.rdb.TTL(ctx, key).Result()
		remaining := rl.limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > int64(rl.limit) {
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			utils.ErrorResponse(c, http.StatusTooManyRequests, utils.CodeRateLimited, "Too many requests, try again in "+ttl.String())
			return
		}
		c.Next()
	}
}
