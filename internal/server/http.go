package server

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/park285/dong-server/internal/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	idleTimeout       = 2 * time.Minute
	writeSlack        = 15 * time.Second
	maxHeaderBytes    = 1 << 20
)

// NewHTTPServer 는 API 라우터를 감싼 http.Server 를 만든다. HTTP2Enabled 면 TLS 없는 HTTP/2(h2c)도 받는다.
// 쓰기 타임아웃은 모델 호출 타임아웃에 여유를 더한 값이라 느린 응답도 잘리지 않는다.
func NewHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	if cfg.HTTP.HTTP2Enabled {
		handler = h2c.NewHandler(handler, &http2.Server{IdleTimeout: idleTimeout})
	}
	return &http.Server{
		Addr:              net.JoinHostPort(cfg.HTTP.Host, strconv.Itoa(cfg.HTTP.Port)),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.LLM.Timeout() + writeSlack,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}
}
