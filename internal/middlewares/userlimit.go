package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ProNet/utils/ratelimit"
)

// UserRateLimitMiddleware 按用户限流（分布式，基于 Redis 计数窗口）
// 挂在写接口上，防止单用户刷消息；limiter 为 nil 时直接放行。
func UserRateLimitMiddleware(limiter ratelimit.Limiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		userID, exists := c.Get("userID")
		if !exists {
			// 认证中间件在前，不应该走到这里
			c.Next()
			return
		}

		key := fmt.Sprintf("user:%d", userID.(uint))
		allowed, err := limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			// 限流器故障不阻断业务（limiter 自身已按 fail-open/fail-closed 策略处理）
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, slow down",
			})
			return
		}

		c.Next()
	}
}
