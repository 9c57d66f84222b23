package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/park285/dong-server/internal/config"
)

var (
	// ErrUnavailable 는 외부 모델 호출이 어떤 이유로든 실패했을 때 반환된다.
	// 네트워크, 인증, 빈 응답, JSON 파싱 실패를 구분하지 않는다.
	ErrUnavailable = errors.New("ai processing error")
	// ErrMissingAPIKey 는 API 키가 없을 때 반환된다.
	ErrMissingAPIKey = errors.New("missing llm api key")
	// ErrEmptyResponse 는 모델이 빈 본문을 돌려줬을 때 반환된다.
	ErrEmptyResponse = errors.New("empty completion response")
	// ErrInvalidJSON 는 structured 응답이 JSON 객체가 아닐 때 반환된다.
	ErrInvalidJSON = errors.New("completion response is not a json object")
)

// Request 는 공급자에 보낼 요청이다.
type Request struct {
	System string
	User   string
	// JSONSchema 가 있으면 JSON 응답을 요구한다.
	JSONSchema map[string]any
}

// Usage: 토큰 사용량 정보를 담습니다.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response 는 공급자 응답이다.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Provider 는 chat-completion 공급자 인터페이스다.
// 테스트에서 stub 구현을 주입할 수 있도록 한다.
type Provider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, req Request) (Response, error)
}

// NewProvider 는 설정의 provider 값에 맞는 공급자를 생성한다.
func NewProvider(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case config.ProviderGemini:
		return NewGeminiProvider(ctx, cfg)
	case config.ProviderOpenAI, "":
		return NewOpenAIProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

// unconfiguredProvider 는 API 키 없이 기동했을 때 모든 호출을 실패시킨다.
type unconfiguredProvider struct {
	name  string
	model string
}

// NewUnconfiguredProvider 는 항상 ErrMissingAPIKey 를 반환하는 공급자를 만든다.
func NewUnconfiguredProvider(cfg config.LLMConfig) Provider {
	return unconfiguredProvider{name: cfg.Provider, model: cfg.Model}
}

func (p unconfiguredProvider) Name() string  { return p.name }
func (p unconfiguredProvider) Model() string { return p.model }

func (p unconfiguredProvider) Generate(context.Context, Request) (Response, error) {
	return Response{}, ErrMissingAPIKey
}
