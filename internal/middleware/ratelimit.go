package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/park285/dong-server/internal/cache"
	"github.com/park285/dong-server/internal/config"
	"github.com/park285/dong-server/internal/httperror"
)

// RateLimit 는 IP별 분당 요청 제한 미들웨어다.
// 일일 한도(ledger)와 별개로 짧은 시간의 폭주만 막는다.
func RateLimit(cfg config.HTTPRateLimitConfig) gin.HandlerFunc {
	limit := cfg.RequestsPerMinute
	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if cacheTTL < time.Minute {
		cacheTTL = time.Minute
	}
	counter := cache.NewTTLCache[string, int](cfg.CacheSize, cacheTTL)

	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}

		if c.Request.Method == http.MethodOptions || !strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.Next()
			return
		}

		identity := "ip:" + GetClientIP(c)
		window := time.Now().Unix() / 60
		key := fmt.Sprintf("%s:%d", identity, window)

		count := counter.Update(key, func(current int, _ bool) int { return current + 1 })
		if count > limit {
			c.Header("Retry-After", fmt.Sprintf("%d", 60-time.Now().Unix()%60))
			details := map[string]any{
				"path":             c.Request.URL.Path,
				"identity":         identity,
				"limit_per_minute": limit,
			}
			apiErr := httperror.NewRateLimitExceeded(details)
			c.AbortWithStatusJSON(apiErr.Status, apiErr.Body(GetRequestID(c)))
			return
		}

		c.Next()
	}
}
