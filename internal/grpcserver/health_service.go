package grpcserver

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/park285/dong-server/internal/health"
)

// ServiceName 은 계산 서비스의 헬스 체크 이름이다.
const ServiceName = "dong.Calculator"

const healthCheckTimeout = 3 * time.Second

// HealthService 는 grpc.health.v1 Check 를 health.Checker 로 응답한다.
type HealthService struct {
	healthpb.UnimplementedHealthServer

	checker *health.Checker
}

// NewHealthService 는 HealthService 를 생성한다.
func NewHealthService(checker *health.Checker) *HealthService {
	return &HealthService{checker: checker}
}

// Check 는 원장과 결과 캐시까지 확인한 뒤 서빙 상태를 반환한다.
func (s *HealthService) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	switch req.GetService() {
	case "", ServiceName:
	default:
		return nil, status.Error(codes.NotFound, "unknown service")
	}
	if s.checker == nil {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if !s.checker.Collect(checkCtx, true).Ready() {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
