package grpcserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/park285/dong-server/internal/config"
	"github.com/park285/dong-server/internal/health"
)

const (
	defaultHost    = "127.0.0.1"
	defaultPort    = 8001
	maxRecvMsgSize = 1 << 20
	listenTimeout  = 5 * time.Second
)

// NewServer: 표준 헬스 서비스만 등록한 gRPC 서버와 리스너를 만듭니다.
// GRPC_ENABLED 가 꺼져 있으면 모두 nil 입니다.
func NewServer(cfg *config.Config, checker *health.Checker, logger *slog.Logger) (*grpc.Server, net.Listener, error) {
	if cfg == nil || !cfg.GRPC.Enabled {
		return nil, nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), listenTimeout)
	defer cancel()

	addr := listenAddr(cfg.GRPC)
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	return newGRPCServer(checker, logger), lis, nil
}

func listenAddr(cfg config.GRPCConfig) string {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = defaultHost
	}
	port := cfg.Port
	if port <= 0 {
		port = defaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func newGRPCServer(checker *health.Checker, logger *slog.Logger) *grpc.Server {
	server := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxRecvMsgSize),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(observe(logger)),
	)
	healthpb.RegisterHealthServer(server, NewHealthService(checker))
	return server
}
