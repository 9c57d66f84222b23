package prompt

import (
	"fmt"
	"strings"
)

// segment 는 템플릿의 리터럴 조각 또는 {key} 자리표시자다.
type segment struct {
	text string
	key  string
}

// parseTemplate 는 "{key}" 자리표시자와 "{{", "}}" 이스케이프를 해석한다.
func parseTemplate(src string) ([]segment, error) {
	var (
		segments []segment
		literal  strings.Builder
	)
	flush := func() {
		if literal.Len() > 0 {
			segments = append(segments, segment{text: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '{' && strings.HasPrefix(src[i:], "{{"):
			literal.WriteByte('{')
			i++
		case c == '}' && strings.HasPrefix(src[i:], "}}"):
			literal.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(src[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("invalid template: unclosed '{' at byte %d", i)
			}
			flush()
			segments = append(segments, segment{key: src[i+1 : i+1+end]})
			i += end + 1
		case c == '}':
			return nil, fmt.Errorf("invalid template: stray '}' at byte %d", i)
		default:
			literal.WriteByte(c)
		}
	}
	flush()
	return segments, nil
}

// FormatTemplate: 템플릿의 {key} 를 values 로 치환합니다. 값이 없는 키는 오류입니다.
func FormatTemplate(template string, values map[string]string) (string, error) {
	segments, err := parseTemplate(template)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	out.Grow(len(template))
	for _, seg := range segments {
		if seg.key == "" {
			out.WriteString(seg.text)
			continue
		}
		value, ok := values[seg.key]
		if !ok {
			return "", fmt.Errorf("missing template value for %q", seg.key)
		}
		out.WriteString(value)
	}
	return out.String(), nil
}

// Placeholders 는 템플릿에 등장하는 자리표시자 이름을 순서대로 반환한다.
func Placeholders(template string) ([]string, error) {
	segments, err := parseTemplate(template)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, seg := range segments {
		if seg.key != "" {
			keys = append(keys, seg.key)
		}
	}
	return keys, nil
}

// ValidateSystemStatic: 시스템 프롬프트에 자리표시자가 없는지 검사합니다.
// 사용자 입력은 user 템플릿으로만 들어가야 합니다.
func ValidateSystemStatic(name string, system string) error {
	keys, err := Placeholders(system)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if len(keys) > 0 {
		return fmt.Errorf("%s: system prompt must not contain template variables %q", name, keys[0])
	}
	return nil
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

// EscapeXML: 사용자 데이터를 XML 태그 안에 넣을 수 있도록 이스케이프합니다.
func EscapeXML(value string) string {
	return xmlEscaper.Replace(value)
}
