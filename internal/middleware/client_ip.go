package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

const clientIPKey = "client_ip"

// ClientIP 는 사용량 집계에 쓸 호출자 IP를 컨텍스트에 저장하는 미들웨어다.
// trustForwarded 가 true 이면 X-Forwarded-For 의 첫 항목을 우선한다.
func ClientIP(trustForwarded bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(clientIPKey, resolveClientIP(c, trustForwarded))
		c.Next()
	}
}

// GetClientIP: 컨텍스트의 호출자 IP를 반환합니다. 미들웨어가 없으면 직접 계산합니다.
func GetClientIP(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if value, ok := c.Get(clientIPKey); ok {
		if ip, ok := value.(string); ok && ip != "" {
			return ip
		}
	}
	return resolveClientIP(c, true)
}

// resolveClientIP 는 프록시 헤더를 신뢰하지 않으면 소켓 주소만 사용한다.
// gin 의 ClientIP() 는 기본 설정에서 헤더를 읽으므로 그 경우 RemoteIP() 를 쓴다.
func resolveClientIP(c *gin.Context, trustForwarded bool) string {
	if !trustForwarded {
		if ip := normalizeIP(c.RemoteIP()); ip != "" {
			return ip
		}
		return "unknown"
	}

	forwarded := strings.TrimSpace(c.GetHeader("X-Forwarded-For"))
	if forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := normalizeIP(first); ip != "" {
			return ip
		}
	}

	if ip := normalizeIP(c.ClientIP()); ip != "" {
		return ip
	}
	return "unknown"
}

// normalizeIP 는 포트와 공백을 제거한다. 파싱할 수 없는 값은 그대로 둔다.
func normalizeIP(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(value); err == nil {
		value = host
	}
	if parsed := net.ParseIP(value); parsed != nil {
		return parsed.String()
	}
	return value
}
