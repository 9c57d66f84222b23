package completion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/park285/dong-server/internal/calculation"
	"github.com/park285/dong-server/internal/config"
	"github.com/park285/dong-server/internal/metrics"
	"github.com/park285/dong-server/internal/prompt"
	"github.com/park285/dong-server/internal/telemetry"
)

// Cache 는 모델 응답 캐시다. 구현체는 resultcache 패키지에 있다.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Result 는 계산 한 건의 모델 응답이다.
type Result struct {
	Mode string
	// Body 는 클라이언트에 그대로 보낼 바이트다. structured 모드에서는 모델 JSON 원문이다.
	Body []byte
	// Parsed 는 structured 모드에서 디코딩에 성공했을 때만 채워진다.
	Parsed *calculation.Result
	Model  string
	Usage  Usage
	Cached bool
}

// Text 는 narrative 모드의 응답 텍스트를 반환한다.
func (r Result) Text() string {
	return string(r.Body)
}

// Gateway 는 공급자 호출, 응답 정리, 캐시, 중복 호출 병합을 담당한다.
// 실패는 모두 ErrUnavailable 로 감싸며 재시도하지 않는다.
type Gateway struct {
	provider Provider
	cache    Cache
	metrics  *metrics.Store
	logger   *slog.Logger
	timeout  time.Duration
	group    singleflight.Group
}

// GatewayOption 은 Gateway 선택 설정이다.
type GatewayOption func(*Gateway)

// WithCache 는 결과 캐시를 설정한다. nil 이면 캐시를 쓰지 않는다.
func WithCache(cache Cache) GatewayOption {
	return func(g *Gateway) {
		g.cache = cache
	}
}

// WithMetrics 는 통계 저장소를 설정한다.
func WithMetrics(store *metrics.Store) GatewayOption {
	return func(g *Gateway) {
		g.metrics = store
	}
}

// WithTimeout 은 공급자 호출 제한 시간을 설정한다.
func WithTimeout(timeout time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.timeout = timeout
	}
}

// NewGateway 는 Gateway 를 생성한다.
func NewGateway(provider Provider, logger *slog.Logger, opts ...GatewayOption) (*Gateway, error) {
	if provider == nil {
		return nil, errors.New("provider is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{provider: provider, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Provider 는 설정된 공급자를 반환한다.
func (g *Gateway) Provider() Provider {
	return g.provider
}

// Calculate 는 렌더링된 프롬프트를 공급자에 보내고 모드에 맞게 응답을 정리한다.
func (g *Gateway) Calculate(ctx context.Context, p prompt.Prompt) (Result, error) {
	mode := p.Mode
	if mode == "" {
		mode = config.PromptModeStructured
	}
	key := g.cacheKey(mode, p)

	if cached, ok := g.lookup(ctx, key); ok {
		result, err := g.finish(mode, cached, Response{Model: g.provider.Model()})
		if err == nil {
			result.Cached = true
			return result, nil
		}
		g.logger.Warn("completion_cache_entry_invalid", "key", key[:12], "err", err)
	}

	ch := g.group.DoChan(key, func() (any, error) {
		return g.generate(context.WithoutCancel(ctx), mode, key, p)
	})

	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	case out := <-ch:
		if out.Err != nil {
			return Result{}, out.Err
		}
		result, ok := out.Val.(Result)
		if !ok {
			return Result{}, fmt.Errorf("%w: unexpected result type", ErrUnavailable)
		}
		return result, nil
	}
}

func (g *Gateway) generate(ctx context.Context, mode string, key string, p prompt.Prompt) (Result, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	ctx, span := telemetry.Tracer().Start(ctx, "completion.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", g.provider.Name()),
		attribute.String("llm.model", g.provider.Model()),
		attribute.String("prompt.mode", mode),
	)

	req := Request{System: p.System, User: p.User}
	if mode == config.PromptModeStructured {
		req.JSONSchema = p.Schema
		if req.JSONSchema == nil {
			req.JSONSchema = calculation.ResultSchema()
		}
	}

	startedAt := time.Now()
	resp, err := g.provider.Generate(ctx, req)
	elapsed := time.Since(startedAt)
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = ErrEmptyResponse
	}
	if err == nil {
		var result Result
		result, err = g.finish(mode, resp.Text, resp)
		if err == nil {
			g.metrics.RecordSuccess(g.provider.Name(), elapsed, resp.Usage.InputTokens, resp.Usage.OutputTokens)
			g.store(ctx, key, result.Body)
			g.logger.Info("completion_succeeded",
				"provider", g.provider.Name(),
				"model", result.Model,
				"mode", mode,
				"latency", elapsed,
				"input_tokens", resp.Usage.InputTokens,
				"output_tokens", resp.Usage.OutputTokens,
			)
			return result, nil
		}
	}

	g.metrics.RecordError(g.provider.Name(), elapsed)
	span.RecordError(err)
	span.SetStatus(codes.Error, "completion failed")
	g.logger.Warn("completion_failed",
		"provider", g.provider.Name(),
		"model", g.provider.Model(),
		"mode", mode,
		"latency", elapsed,
		"err", err,
	)
	return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// finish 는 모드별로 응답 본문을 정리한다.
func (g *Gateway) finish(mode string, text string, resp Response) (Result, error) {
	model := resp.Model
	if model == "" {
		model = g.provider.Model()
	}
	result := Result{Mode: mode, Model: model, Usage: resp.Usage}

	if mode != config.PromptModeStructured {
		result.Body = []byte(text)
		return result, nil
	}

	body, payload, err := parseStructured(text)
	if err != nil {
		return Result{}, err
	}
	result.Body = body

	parsed, err := decodeResult(payload)
	if err != nil {
		g.logger.Warn("completion_result_shape_mismatch", "model", model, "err", err)
		return result, nil
	}
	result.Parsed = &parsed
	return result, nil
}

func (g *Gateway) lookup(ctx context.Context, key string) (string, bool) {
	if g.cache == nil {
		return "", false
	}
	value, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		g.logger.Warn("completion_cache_get_failed", "err", err)
		return "", false
	}
	g.metrics.RecordCacheLookup(ok)
	if !ok {
		return "", false
	}
	return string(value), true
}

func (g *Gateway) store(ctx context.Context, key string, body []byte) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Set(ctx, key, body); err != nil {
		g.logger.Warn("completion_cache_set_failed", "err", err)
	}
}

// cacheKey 는 모드, 모델, 프롬프트 전체로 만든 SHA-256 키다.
func (g *Gateway) cacheKey(mode string, p prompt.Prompt) string {
	hasher := sha256.New()
	for _, part := range []string{mode, g.provider.Name(), g.provider.Model(), p.System, p.User} {
		hasher.Write([]byte(part))
		hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
