package completion

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mitchellh/mapstructure"

	"github.com/park285/dong-server/internal/calculation"
)

// stripCodeFence 는 응답 전체를 감싼 ``` 또는 ```json 펜스를 벗긴다.
// 펜스가 없으면 입력을 그대로 돌려준다.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") || len(trimmed) < 6 {
		return text
	}

	inner := trimmed[3 : len(trimmed)-3]
	if newline := strings.IndexByte(inner, '\n'); newline >= 0 {
		lang := strings.TrimSpace(inner[:newline])
		if lang == "" || isFenceLanguage(lang) {
			inner = inner[newline+1:]
		}
	}
	return strings.TrimSpace(inner)
}

func isFenceLanguage(lang string) bool {
	for _, r := range lang {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

// parseStructured 는 JSON 객체인지 확인하고 원본 바이트와 map 을 반환한다.
func parseStructured(text string) ([]byte, map[string]any, error) {
	body := []byte(stripCodeFence(text))
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil, ErrEmptyResponse
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, nil, ErrInvalidJSON
	}

	var payload map[string]any
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return body, payload, nil
}

// decoderConfig: mapstructure 디코더의 기본 설정입니다.
func decoderConfig(result any) *mapstructure.DecoderConfig {
	return &mapstructure.DecoderConfig{
		Result:           result,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
}

// decodeResult 는 모델 JSON 을 calculation.Result 로 디코딩한다.
// 숫자가 문자열로 와도 받아들인다.
func decodeResult(payload map[string]any) (calculation.Result, error) {
	var result calculation.Result
	decoder, err := mapstructure.NewDecoder(decoderConfig(&result))
	if err != nil {
		return calculation.Result{}, fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(payload); err != nil {
		return calculation.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return result, nil
}
