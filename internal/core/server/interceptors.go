package server

import (
	"context"
	"log/slog"
	"path"
	"runtime/debug"
	"time"

	"github.com/solatis/normprops/internal/core/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor logs each request with method, code and duration.
// Client errors log at warn, server errors at error.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		attrs := []any{
			"method", info.FullMethod,
			"code", code.String(),
			"duration", time.Since(start),
		}
		switch code {
		case codes.OK:
			logger.DebugContext(ctx, "rpc", attrs...)
		case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition, codes.Canceled:
			logger.WarnContext(ctx, "rpc", append(attrs, "error", err)...)
		default:
			logger.ErrorContext(ctx, "rpc", append(attrs, "error", err)...)
		}
		return resp, err
	}
}

// MetricsInterceptor counts requests by method and code and observes latency.
func MetricsInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		method := path.Base(info.FullMethod)
		start := time.Now()
		resp, err := handler(ctx, req)
		m.RPCDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		m.RPCRequests.WithLabelValues(method, status.Code(err).String()).Inc()
		return resp, err
	}
}

// TimeoutInterceptor bounds each request by timeout. Zero disables it.
func TimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if timeout <= 0 {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return handler(ctx, req)
	}
}

// RecoveryInterceptor turns a handler panic into an Internal error.
func RecoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(ctx, "handler panic", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
