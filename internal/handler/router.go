package handler

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/park285/dong-server/internal/config"
	"github.com/park285/dong-server/internal/handler/shared"
	"github.com/park285/dong-server/internal/health"
	"github.com/park285/dong-server/internal/metrics"
	"github.com/park285/dong-server/internal/middleware"
)

// NewRouter 는 HTTP 라우터를 구성한다. tracing 은 텔레메트리 비활성 시 nil 이다.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	calculateHandler *CalculateHandler,
	usageHandler *UsageHandler,
	checker *health.Checker,
	metricsStore *metrics.Store,
	tracing gin.HandlerFunc,
) (*gin.Engine, error) {
	setGinMode(cfg.Logging.Level)
	if err := shared.RegisterBindingValidators(); err != nil {
		return nil, fmt.Errorf("register binding validators: %w", err)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	if tracing != nil {
		router.Use(tracing)
	}
	router.Use(
		middleware.ClientIP(cfg.Ledger.TrustForwarded),
		middleware.RequestLogger(logger),
		gin.Recovery(),
		newGzipMiddleware(),
		middleware.RateLimit(cfg.HTTPRateLimit),
	)

	RegisterHealthRoutes(router, cfg, checker, metricsStore)
	calculateHandler.RegisterRoutes(router)
	usageHandler.RegisterRoutes(router, middleware.APIKeyAuth(cfg.HTTPAuth.APIKeys))

	return router, nil
}

func newGzipMiddleware() gin.HandlerFunc {
	return gzip.Gzip(gzip.DefaultCompression, gzip.WithCustomShouldCompressFn(func(c *gin.Context) bool {
		// 헬스 체크와 Prometheus scrape 는 압축하지 않음
		path := c.Request.URL.Path
		if path == "/metrics" || strings.HasPrefix(path, "/health") {
			return false
		}
		return strings.Contains(c.GetHeader("Accept-Encoding"), "gzip")
	}))
}

func setGinMode(level string) {
	if strings.EqualFold(strings.TrimSpace(level), "debug") {
		gin.SetMode(gin.DebugMode)
		return
	}
	gin.SetMode(gin.ReleaseMode)
}
