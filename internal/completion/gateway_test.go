package completion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/dong-server/internal/config"
	"github.com/park285/dong-server/internal/metrics"
	"github.com/park285/dong-server/internal/prompt"
)

const stubJSON = `{"table":[{"name":"Ali","share":100,"paid":200,"balance":100,"status":"creditor"}],"settlements":[{"from":"Sara","to":"Ali","amount":100}],"reasoning":"ok"}`

type stubProvider struct {
	text  string
	err   error
	delay time.Duration
	calls atomic.Int32
	last  Request
	mu    sync.Mutex
}

func (p *stubProvider) Name() string  { return "stub" }
func (p *stubProvider) Model() string { return "stub-model" }

func (p *stubProvider) Generate(ctx context.Context, req Request) (Response, error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.last = req
	p.mu.Unlock()
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	if p.err != nil {
		return Response{}, p.err
	}
	return Response{Text: p.text, Model: "stub-model", Usage: Usage{InputTokens: 10, OutputTokens: 20}}, nil
}

type mapCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.items[key]
	return value, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = append([]byte(nil), value...)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func structuredPrompt() prompt.Prompt {
	return prompt.Prompt{Mode: config.PromptModeStructured, System: "sys", User: "user", Schema: map[string]any{"type": "object"}}
}

func newTestGateway(t *testing.T, provider Provider, opts ...GatewayOption) *Gateway {
	t.Helper()
	gateway, err := NewGateway(provider, testLogger(), opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return gateway
}

func TestGatewayStructuredRelaysBytes(t *testing.T) {
	provider := &stubProvider{text: stubJSON}
	gateway := newTestGateway(t, provider, WithMetrics(metrics.NewStore()))

	result, err := gateway.Calculate(context.Background(), structuredPrompt())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.Body) != stubJSON {
		t.Fatalf("expected byte-for-byte body, got %s", result.Body)
	}
	if result.Parsed == nil || len(result.Parsed.Table) != 1 || result.Parsed.Table[0].Name != "Ali" {
		t.Fatalf("expected parsed result, got %+v", result.Parsed)
	}
	if provider.last.JSONSchema == nil {
		t.Fatalf("expected schema passed to provider")
	}
	if result.Usage.OutputTokens != 20 {
		t.Fatalf("unexpected usage: %+v", result.Usage)
	}
}

func TestGatewayStructuredStripsFence(t *testing.T) {
	provider := &stubProvider{text: "```json\n" + stubJSON + "\n```"}
	gateway := newTestGateway(t, provider)

	result, err := gateway.Calculate(context.Background(), structuredPrompt())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.Body) != stubJSON {
		t.Fatalf("unexpected body: %s", result.Body)
	}
}

func TestGatewayStructuredKeepsUnexpectedShape(t *testing.T) {
	provider := &stubProvider{text: `{"answer":"free form"}`}
	gateway := newTestGateway(t, provider)

	result, err := gateway.Calculate(context.Background(), structuredPrompt())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.Body) != `{"answer":"free form"}` {
		t.Fatalf("unexpected body: %s", result.Body)
	}
}

func TestGatewayNarrativeReturnsText(t *testing.T) {
	text := "| نام | سهم |\n| --- | --- |"
	provider := &stubProvider{text: text}
	gateway := newTestGateway(t, provider)

	result, err := gateway.Calculate(context.Background(), prompt.Prompt{Mode: config.PromptModeNarrative, System: "s", User: "u"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text() != text {
		t.Fatalf("unexpected text: %q", result.Text())
	}
	if provider.last.JSONSchema != nil {
		t.Fatalf("expected no schema in narrative mode")
	}
}

func TestGatewayFailuresBecomeUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		provider *stubProvider
		mode     string
	}{
		{name: "provider error", provider: &stubProvider{err: errors.New("401 unauthorized")}, mode: config.PromptModeStructured},
		{name: "empty text", provider: &stubProvider{text: "  "}, mode: config.PromptModeNarrative},
		{name: "invalid json", provider: &stubProvider{text: "I cannot help"}, mode: config.PromptModeStructured},
		{name: "json array", provider: &stubProvider{text: "[]"}, mode: config.PromptModeStructured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := metrics.NewStore()
			gateway := newTestGateway(t, tt.provider, WithMetrics(store))
			_, err := gateway.Calculate(context.Background(), prompt.Prompt{Mode: tt.mode, User: "u"})
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("expected ErrUnavailable, got %v", err)
			}
			if store.Snapshot()["total_errors"] != 1 {
				t.Fatalf("expected error recorded")
			}
			if tt.provider.calls.Load() != 1 {
				t.Fatalf("expected exactly one call without retry, got %d", tt.provider.calls.Load())
			}
		})
	}
}

func TestGatewayTimeout(t *testing.T) {
	provider := &stubProvider{text: stubJSON, delay: time.Second}
	gateway := newTestGateway(t, provider, WithTimeout(20*time.Millisecond))

	_, err := gateway.Calculate(context.Background(), structuredPrompt())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on timeout, got %v", err)
	}
}

func TestGatewayCallerCancel(t *testing.T) {
	provider := &stubProvider{text: stubJSON, delay: 200 * time.Millisecond}
	gateway := newTestGateway(t, provider)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := gateway.Calculate(ctx, structuredPrompt())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on cancel, got %v", err)
	}
}

func TestGatewayCacheHit(t *testing.T) {
	provider := &stubProvider{text: stubJSON}
	cache := newMapCache()
	gateway := newTestGateway(t, provider, WithCache(cache))

	first, err := gateway.Calculate(context.Background(), structuredPrompt())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := gateway.Calculate(context.Background(), structuredPrompt())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.calls.Load() != 1 {
		t.Fatalf("expected single provider call, got %d", provider.calls.Load())
	}
	if first.Cached || !second.Cached {
		t.Fatalf("unexpected cached flags: %v %v", first.Cached, second.Cached)
	}
	if string(second.Body) != stubJSON {
		t.Fatalf("unexpected cached body: %s", second.Body)
	}

	narrative := prompt.Prompt{Mode: config.PromptModeNarrative, System: "sys", User: "user"}
	if _, err := gateway.Calculate(context.Background(), narrative); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.calls.Load() != 2 {
		t.Fatalf("expected mode to be part of cache key")
	}
}

func TestGatewayFailureNotCached(t *testing.T) {
	provider := &stubProvider{text: "oops"}
	cache := newMapCache()
	gateway := newTestGateway(t, provider, WithCache(cache))

	if _, err := gateway.Calculate(context.Background(), structuredPrompt()); err == nil {
		t.Fatalf("expected error")
	}
	if len(cache.items) != 0 {
		t.Fatalf("expected failed response not cached")
	}
}

func TestGatewayCollapsesConcurrentCalls(t *testing.T) {
	provider := &stubProvider{text: stubJSON, delay: 100 * time.Millisecond}
	gateway := newTestGateway(t, provider)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gateway.Calculate(context.Background(), structuredPrompt())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if calls := provider.calls.Load(); calls != 1 {
		t.Fatalf("expected 1 collapsed call, got %d", calls)
	}
}

func TestNewGatewayRequiresProvider(t *testing.T) {
	if _, err := NewGateway(nil, testLogger()); err == nil {
		t.Fatalf("expected error")
	}
}
