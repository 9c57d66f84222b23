package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/park285/dong-server/internal/httperror"
)

// APIKeyAuth 는 관리용 엔드포인트를 API 키로 막는다.
// 키는 X-API-Key 또는 "Authorization: Bearer" 로 받는다. 설정된 키가 없으면 모두 통과한다.
func APIKeyAuth(keys []string) gin.HandlerFunc {
	var accepted [][]byte
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			accepted = append(accepted, []byte(key))
		}
	}
	if len(accepted) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if presented := presentedKey(c.Request.Header.Get); presented != "" && keyAccepted([]byte(presented), accepted) {
			c.Next()
			return
		}
		apiErr := httperror.NewUnauthorized(map[string]any{"path": c.Request.URL.Path})
		c.AbortWithStatusJSON(apiErr.Status, apiErr.Body(GetRequestID(c)))
	}
}

// keyAccepted 는 모든 키와 비교해 응답 시간이 어느 키와 맞았는지 드러내지 않게 한다.
func keyAccepted(presented []byte, accepted [][]byte) bool {
	match := 0
	for _, key := range accepted {
		match |= subtle.ConstantTimeCompare(presented, key)
	}
	return match == 1
}

func presentedKey(header func(string) string) string {
	if key := strings.TrimSpace(header("X-API-Key")); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
