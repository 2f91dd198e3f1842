package server

import (
	"context"
	"runtime/debug"
	"time"

	gentlerpc "gentle/pkg/api/gentlerpc/v1"
	"gentle/pkg/service"
	"gentle/pkg/storage"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// New 创建注册好 DataStore 服务的 gRPC Server
// 拦截器顺序：日志在外层，Recovery 在内层，panic 也会被记录
func New(ds storage.DataStore, logger *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(
		UnaryLoggingInterceptor(logger),
		UnaryRecoveryInterceptor(logger),
	))
	s := grpc.NewServer(opts...)
	gentlerpc.RegisterDataStoreServer(s, service.NewDataService(ds, logger))
	return s
}

// =============================================================================
// 1. Logging Interceptor (结构化日志)
// =============================================================================

// UnaryLoggingInterceptor 每个请求一条日志，级别由状态码决定
func UnaryLoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("dur", time.Since(start)),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		logger.Log(levelFor(code), "gRPC Request", fields...)
		return resp, err
	}
}

// levelFor NotFound 这类业务结果只算 Info，Internal 算 Error
func levelFor(code codes.Code) zapcore.Level {
	switch code {
	case codes.OK, codes.NotFound:
		return zapcore.InfoLevel
	case codes.Internal, codes.Unknown, codes.DataLoss:
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

// =============================================================================
// 2. Recovery Interceptor (防弹衣)
// =============================================================================

// UnaryRecoveryInterceptor 捕获 Panic
func UnaryRecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("🔥 PANIC RECOVERED",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.String("stack", string(debug.Stack())),
				)
				// 返回 Internal 给客户端，而不是直接断开连接
				err = status.Errorf(codes.Internal, "internal server error: panic recovered")
			}
		}()
		return handler(ctx, req)
	}
}
