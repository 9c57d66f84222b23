package telemetry

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/park285/dong-server/internal/config"
)

const instrumentationName = "github.com/park285/dong-server"

// Provider 는 OTLP 로 span 을 내보내는 TracerProvider 를 감싼다.
// 비활성 상태에서는 아무것도 내보내지 않고 글로벌 설정도 건드리지 않는다.
type Provider struct {
	tp      *sdktrace.TracerProvider
	service string
}

// NewProvider: 활성화돼 있으면 OTLP/gRPC exporter 로 TracerProvider 를 만들어 글로벌로 등록합니다.
func NewProvider(ctx context.Context, cfg config.TelemetryConfig) (*Provider, error) {
	p := &Provider{service: cfg.ServiceName}
	if !cfg.Enabled {
		return p, nil
	}

	exporter, err := otlptracegrpc.New(ctx, exporterOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	p.tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(serviceResource(cfg)),
		sdktrace.WithSampler(newSampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(p.tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return p, nil
}

func exporterOptions(cfg config.TelemetryConfig) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return opts
}

// serviceResource 는 resource.Default() 와 합치지 않는다. 두 schema URL 이 다르면 Merge 가 실패한다.
func serviceResource(cfg config.TelemetryConfig) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	)
}

// newSampler 는 부모 샘플링 결정을 따르고 루트 span 만 비율로 고른다.
func newSampler(rate float64) sdktrace.Sampler {
	root := sdktrace.TraceIDRatioBased(rate)
	if rate >= 1 {
		root = sdktrace.AlwaysSample()
	} else if rate <= 0 {
		root = sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(root)
}

// Middleware 는 활성화된 경우 otelgin 미들웨어를, 아니면 nil 을 돌려준다.
func (p *Provider) Middleware() gin.HandlerFunc {
	if !p.IsEnabled() {
		return nil
	}
	return otelgin.Middleware(p.service)
}

// Shutdown 은 남은 span 을 내보내고 provider 를 닫는다.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.IsEnabled() {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

func (p *Provider) IsEnabled() bool {
	return p != nil && p.tp != nil
}

// Tracer 는 글로벌 provider 의 tracer 다. 비활성 상태면 no-op 이다.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
