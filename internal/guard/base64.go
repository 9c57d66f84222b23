package guard

import (
	"encoding/base64"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// base64Run 은 패딩을 포함해 20자 이상 이어지는 base64(표준 또는 URL-safe) 구간이다.
var base64Run = regexp.MustCompile(`[A-Za-z0-9+/_-]{20,}={0,2}`)

var urlSafeToStd = strings.NewReplacer("-", "+", "_", "/")

// containsSuspiciousBase64 는 입력 안의 긴 base64 구간 중 하나라도 읽을 수 있는 텍스트로 풀리면 true 다.
// 지시문을 인코딩해 규칙을 피하려는 시도를 막는다.
func containsSuspiciousBase64(input string) bool {
	for _, run := range base64Run.FindAllString(input, -1) {
		raw := urlSafeToStd.Replace(strings.TrimRight(run, "="))
		decoded, err := base64.RawStdEncoding.DecodeString(raw)
		if err == nil && readable(decoded) {
			return true
		}
	}
	return false
}

// readable 은 올바른 UTF-8 이고 90% 넘게 출력 가능한 문자인지 본다.
func readable(data []byte) bool {
	if len(data) == 0 || !utf8.Valid(data) {
		return false
	}
	total, printable := 0, 0
	for _, r := range string(data) {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	return printable*10 > total*9
}
