package completion

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/park285/dong-server/internal/config"
)

// GeminiProvider 는 Google Gemini 공급자다.
type GeminiProvider struct {
	client          *genai.Client
	model           string
	temperature     float32
	maxOutputTokens int32
}

// NewGeminiProvider 는 genai 클라이언트로 공급자를 생성한다.
// BaseURL 이 있으면 엔드포인트를 덮어쓴다.
func NewGeminiProvider(ctx context.Context, cfg config.LLMConfig) (*GeminiProvider, error) {
	httpOptions := genai.HTTPOptions{}
	if timeout := cfg.Timeout(); timeout > 0 {
		httpOptions.Timeout = genai.Ptr(timeout)
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		httpOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(context.WithoutCancel(ctx), &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: httpOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiProvider{
		client:          client,
		model:           cfg.Model,
		temperature:     float32(cfg.Temperature),
		maxOutputTokens: int32(cfg.MaxOutputTokens),
	}, nil
}

// Name 은 공급자 이름을 반환한다.
func (p *GeminiProvider) Name() string {
	return config.ProviderGemini
}

// Model 은 모델 이름을 반환한다.
func (p *GeminiProvider) Model() string {
	return p.model
}

// Generate 는 GenerateContent 를 한 번 호출한다.
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (Response, error) {
	generateConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.temperature),
	}
	if p.maxOutputTokens > 0 {
		generateConfig.MaxOutputTokens = p.maxOutputTokens
	}
	if strings.TrimSpace(req.System) != "" {
		generateConfig.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSONSchema != nil {
		generateConfig.ResponseMIMEType = "application/json"
		generateConfig.ResponseJsonSchema = req.JSONSchema
	}

	contents := []*genai.Content{genai.NewContentFromText(req.User, genai.RoleUser)}
	response, err := p.client.Models.GenerateContent(ctx, p.model, contents, generateConfig)
	if err != nil {
		return Response{}, fmt.Errorf("generate content: %w", err)
	}

	return Response{
		Text:  strings.Join(extractTextParts(response), ""),
		Model: p.model,
		Usage: extractGeminiUsage(response),
	}, nil
}

// extractTextParts 는 thought 파트를 제외한 텍스트만 모은다.
func extractTextParts(response *genai.GenerateContentResponse) []string {
	if response == nil || len(response.Candidates) == 0 {
		return nil
	}
	content := response.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return nil
	}

	texts := make([]string, 0, len(content.Parts))
	for _, part := range content.Parts {
		if part == nil || part.Text == "" || part.Thought {
			continue
		}
		texts = append(texts, part.Text)
	}
	return texts
}

func extractGeminiUsage(response *genai.GenerateContentResponse) Usage {
	if response == nil || response.UsageMetadata == nil {
		return Usage{}
	}
	usage := response.UsageMetadata
	return Usage{
		InputTokens:  int(usage.PromptTokenCount),
		OutputTokens: int(usage.CandidatesTokenCount) + int(usage.ThoughtsTokenCount),
	}
}
