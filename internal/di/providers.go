package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/park285/dong-server/internal/completion"
	"github.com/park285/dong-server/internal/config"
	"github.com/park285/dong-server/internal/logging"
	"github.com/park285/dong-server/internal/metrics"
	"github.com/park285/dong-server/internal/resultcache"
)

// ProvideLogger: 로거를 구성해 반환합니다.
// OTel이 활성화된 경우 로그에 trace_id/span_id가 자동으로 추가됩니다.
func ProvideLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.NewLoggerWithOTel(cfg.Logging, cfg.Telemetry.Enabled)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// ProvideProvider: 설정된 채팅 완성 공급자를 만든다.
// API 키가 없으면 기동은 하되 모든 계산이 503 으로 응답하는 공급자를 돌려준다.
func ProvideProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (completion.Provider, error) {
	provider, err := completion.NewProvider(ctx, cfg.LLM)
	if errors.Is(err, completion.ErrMissingAPIKey) {
		logger.Warn("llm_api_key_missing", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
		return completion.NewUnconfiguredProvider(cfg.LLM), nil
	}
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	return provider, nil
}

// ProvideGateway: 결과 캐시와 메트릭을 붙인 Gateway 를 만든다. store 는 비활성 시 nil 이다.
func ProvideGateway(
	cfg *config.Config,
	provider completion.Provider,
	store *resultcache.Store,
	metricsStore *metrics.Store,
	logger *slog.Logger,
) (*completion.Gateway, error) {
	opts := []completion.GatewayOption{
		completion.WithMetrics(metricsStore),
		completion.WithTimeout(cfg.LLM.Timeout()),
	}
	// nil *Store 를 인터페이스에 넣으면 nil 이 아니게 되므로 분기한다.
	if store != nil {
		opts = append(opts, completion.WithCache(store))
	}
	return completion.NewGateway(provider, logging.Component(logger, "completion"), opts...)
}
