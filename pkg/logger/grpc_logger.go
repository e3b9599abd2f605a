package logger

import (
	"context"
	"path"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewGrpcUnaryServerInterceptor는 unary gRPC 호출을 기록하는 인터셉터를 생성합니다.
// 헬스 체크는 호출 빈도가 높아 debug 레벨로 기록합니다.
func NewGrpcUnaryServerInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := []zap.Field{
			zap.String("grpc.service", path.Dir(info.FullMethod)[1:]),
			zap.String("grpc.method", path.Base(info.FullMethod)),
			zap.String("grpc.code", code.String()),
			zap.Duration("grpc.duration", time.Since(start)),
		}

		switch code {
		case codes.OK:
			if path.Dir(info.FullMethod) == "/grpc.health.v1.Health" {
				logger.Debug("gRPC 요청 완료", fields...)
			} else {
				logger.Info("gRPC 요청 완료", fields...)
			}
		case codes.Canceled, codes.DeadlineExceeded, codes.Unavailable, codes.NotFound:
			logger.Warn("gRPC 요청 실패", append(fields, zap.Error(err))...)
		default:
			logger.Error("gRPC 요청 오류", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}
