package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/park285/dong-server/internal/config"
	"github.com/park285/dong-server/internal/health"
	"github.com/park285/dong-server/internal/metrics"
)

// ModelConfigResponse: 모델 설정 응답입니다.
type ModelConfigResponse struct {
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	DefaultMode    string  `json:"default_mode"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_output_tokens"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	DailyLimit     int     `json:"daily_limit"`
	HTTP2Enabled   bool    `json:"http2_enabled"`
	TransportMode  string  `json:"transport_mode"`
}

// RegisterHealthRoutes: 상태 확인과 메트릭 라우트를 등록합니다.
func RegisterHealthRoutes(router gin.IRouter, cfg *config.Config, checker *health.Checker, metricsStore *metrics.Store) {
	router.GET("/health", func(c *gin.Context) {
		// Liveness 는 외부 의존성(DB/Valkey)을 확인하지 않는다.
		c.JSON(http.StatusOK, checker.Collect(c.Request.Context(), false))
	})

	router.GET("/health/ready", func(c *gin.Context) {
		payload := checker.Collect(c.Request.Context(), true)
		status := http.StatusOK
		if !payload.Ready() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, payload)
	})

	if metricsStore != nil {
		router.GET("/metrics", gin.WrapH(metricsStore.Handler()))
	}

	router.GET("/health/models", func(c *gin.Context) {
		transportMode := "h1"
		if cfg.HTTP.HTTP2Enabled {
			transportMode = "h2c"
		}

		c.JSON(http.StatusOK, ModelConfigResponse{
			Provider:       cfg.LLM.Provider,
			Model:          cfg.LLM.Model,
			DefaultMode:    cfg.Prompt.DefaultMode,
			Temperature:    cfg.LLM.Temperature,
			MaxTokens:      cfg.LLM.MaxOutputTokens,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
			DailyLimit:     cfg.Ledger.DailyLimit,
			HTTP2Enabled:   cfg.HTTP.HTTP2Enabled,
			TransportMode:  transportMode,
		})
	})
}
