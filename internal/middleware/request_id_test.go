package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func echoRequestID(t *testing.T, header string, abort bool) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/echo", func(c *gin.Context) {
		if abort {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.String(http.StatusOK, GetRequestID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/echo", nil)
	if header != "" {
		req.Header.Set(RequestIDHeader, header)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestRequestIDKeepsClientValue(t *testing.T) {
	resp := echoRequestID(t, "  trace-01:abc_9.z  ", false)
	if got := resp.Header().Get(RequestIDHeader); got != "trace-01:abc_9.z" {
		t.Fatalf("unexpected header: %q", got)
	}
	if resp.Body.String() != "trace-01:abc_9.z" {
		t.Fatalf("unexpected body: %q", resp.Body.String())
	}
}

func TestRequestIDReplacesUnsafeValues(t *testing.T) {
	for _, header := range []string{"", "has space", "<script>", strings.Repeat("a", maxRequestIDLength+1)} {
		resp := echoRequestID(t, header, false)
		got := resp.Header().Get(RequestIDHeader)
		if got == header || len(got) != 32 {
			t.Fatalf("header %q: expected generated id, got %q", header, got)
		}
		if resp.Body.String() != got {
			t.Fatalf("header %q: context and header differ", header)
		}
	}
}

func TestRequestIDOnAbortedResponse(t *testing.T) {
	resp := echoRequestID(t, "req-429", true)
	if resp.Code != http.StatusTooManyRequests || resp.Header().Get(RequestIDHeader) != "req-429" {
		t.Fatalf("expected request id on aborted response, got %d %q", resp.Code, resp.Header().Get(RequestIDHeader))
	}
}

func TestGetRequestIDWithoutMiddleware(t *testing.T) {
	if GetRequestID(nil) != "" {
		t.Fatalf("expected empty id for nil context")
	}
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if GetRequestID(c) != "" {
		t.Fatalf("expected empty id")
	}
}
