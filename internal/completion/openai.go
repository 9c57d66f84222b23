package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/park285/dong-server/internal/config"
)

// OpenAIProvider 는 OpenAI 호환 chat-completion 엔드포인트 공급자다.
type OpenAIProvider struct {
	chat  model.BaseChatModel
	model string
}

// NewOpenAIProvider 는 eino ChatModel 로 공급자를 생성한다.
func NewOpenAIProvider(ctx context.Context, cfg config.LLMConfig) (*OpenAIProvider, error) {
	chatCfg := &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		Model:   cfg.Model,
		Timeout: cfg.Timeout(),
	}
	if cfg.MaxOutputTokens > 0 {
		maxTokens := cfg.MaxOutputTokens
		chatCfg.MaxTokens = &maxTokens
	}
	temperature := float32(cfg.Temperature)
	chatCfg.Temperature = &temperature

	chat, err := openai.NewChatModel(ctx, chatCfg)
	if err != nil {
		return nil, fmt.Errorf("create openai chat model: %w", err)
	}
	return &OpenAIProvider{chat: chat, model: cfg.Model}, nil
}

// Name 은 공급자 이름을 반환한다.
func (p *OpenAIProvider) Name() string {
	return config.ProviderOpenAI
}

// Model 은 모델 이름을 반환한다.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Generate 는 시스템/사용자 메시지 두 개로 한 번 호출한다.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (Response, error) {
	messages := make([]*schema.Message, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, schema.SystemMessage(req.System))
	}
	messages = append(messages, schema.UserMessage(req.User))

	var opts []model.Option
	if req.JSONSchema != nil {
		// json_schema 는 지원하지 않는 호환 엔드포인트가 많아 json_object 만 요구한다.
		opts = append(opts, openai.WithExtraFields(map[string]any{
			"response_format": map[string]any{"type": "json_object"},
		}))
	}

	out, err := p.chat.Generate(ctx, messages, opts...)
	if err != nil {
		return Response{}, fmt.Errorf("openai generate: %w", err)
	}
	if out == nil {
		return Response{}, ErrEmptyResponse
	}

	resp := Response{Text: out.Content, Model: p.model}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		resp.Usage = Usage{
			InputTokens:  out.ResponseMeta.Usage.PromptTokens,
			OutputTokens: out.ResponseMeta.Usage.CompletionTokens,
		}
	}
	return resp, nil
}
