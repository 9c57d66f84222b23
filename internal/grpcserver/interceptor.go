package grpcserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/park285/dong-server/internal/httperror"
)

const requestIDMetadataKey = "x-request-id"

type requestIDKey struct{}

// observe 는 요청 ID 전파, 도메인 오류의 status 변환, 요청 로그를 한 번에 처리한다.
func observe(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		id := resolveRequestID(ctx)
		ctx = context.WithValue(ctx, requestIDKey{}, id)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, id))

		resp, err := handler(ctx, req)
		if err != nil {
			if _, isStatus := status.FromError(err); !isStatus {
				err = statusFromError(err)
			}
		}

		code := status.Code(err)
		attrs := []any{"request_id", id, "method", info.FullMethod, "code", code.String(), "latency", time.Since(start)}
		if err != nil && code != codes.NotFound {
			logger.Warn("grpc_request_failed", append(attrs, "err", err)...)
		} else {
			logger.Debug("grpc_request", attrs...)
		}
		return resp, err
	}
}

// statusFromError 는 HTTP 응답과 같은 분류 규칙으로 gRPC 코드를 고른다.
func statusFromError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}

	apiErr := httperror.FromError(err)
	code := codes.Internal
	switch apiErr.Status {
	case http.StatusBadRequest:
		code = codes.InvalidArgument
	case http.StatusUnauthorized:
		code = codes.Unauthenticated
	case http.StatusTooManyRequests:
		code = codes.ResourceExhausted
	case http.StatusServiceUnavailable:
		code = codes.Unavailable
	}
	return status.Error(code, apiErr.Message)
}

func resolveRequestID(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	for _, v := range md.Get(requestIDMetadataKey) {
		if v = strings.TrimSpace(v); v != "" && len(v) <= 128 {
			return v
		}
	}
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}

// RequestIDFromContext: 인터셉터가 붙인 요청 ID를 돌려줍니다.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
