package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func clientIPRouter(trustForwarded bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ClientIP(trustForwarded))
	router.GET("/ip", func(c *gin.Context) { c.String(http.StatusOK, GetClientIP(c)) })
	return router
}

func TestClientIPUsesFirstForwardedEntry(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.2")
	resp := httptest.NewRecorder()
	clientIPRouter(true).ServeHTTP(resp, req)

	if resp.Body.String() != "203.0.113.7" {
		t.Fatalf("expected forwarded ip, got %q", resp.Body.String())
	}
}

func TestClientIPIgnoresForwardedWhenUntrusted(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	resp := httptest.NewRecorder()
	clientIPRouter(false).ServeHTTP(resp, req)

	if resp.Body.String() != "10.0.0.1" {
		t.Fatalf("expected remote ip, got %q", resp.Body.String())
	}
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.RemoteAddr = "198.51.100.4:443"
	resp := httptest.NewRecorder()
	clientIPRouter(true).ServeHTTP(resp, req)

	if resp.Body.String() != "198.51.100.4" {
		t.Fatalf("expected remote ip, got %q", resp.Body.String())
	}
}

func TestNormalizeIP(t *testing.T) {
	tests := map[string]string{
		"":                   "",
		" 1.2.3.4 ":          "1.2.3.4",
		"1.2.3.4:8080":       "1.2.3.4",
		"[2001:db8::1]:8080": "2001:db8::1",
		"not-an-ip":          "not-an-ip",
	}
	for input, expected := range tests {
		if got := normalizeIP(input); got != expected {
			t.Errorf("normalizeIP(%q) = %q, want %q", input, got, expected)
		}
	}
}
