package api

import (
	"context"
	"strings"

	"github.com/fenwick-io/taskpulse/pkg/log"
	"github.com/fenwick-io/taskpulse/pkg/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// LoggingUnaryInterceptor logs and records metrics for every unary
// RPC. There are no write operations in this API to gate the way the
// teacher's ReadOnlyInterceptor gated them on a Unix socket; every
// call here is already read/subscribe-oriented, so the interceptor's
// job is purely observability.
func LoggingUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		timer := metrics.NewTimer()
		resp, err := handler(ctx, req)

		method := methodName(info.FullMethod)
		timer.ObserveDurationVec(metrics.GRPCRequestDuration, method)
		metrics.GRPCRequestsTotal.WithLabelValues(method, statusLabel(err)).Inc()

		if err != nil {
			log.WithComponent("api").Debug().Str("method", method).Err(err).Msg("rpc failed")
		}

		return resp, err
	}
}

// LoggingStreamInterceptor is the streaming equivalent of
// LoggingUnaryInterceptor. Duration covers the whole stream lifetime,
// not a single message.
func LoggingStreamInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		timer := metrics.NewTimer()
		err := handler(srv, ss)

		method := methodName(info.FullMethod)
		timer.ObserveDurationVec(metrics.GRPCRequestDuration, method)
		metrics.GRPCRequestsTotal.WithLabelValues(method, statusLabel(err)).Inc()

		log.WithComponent("api").Debug().
			Str("method", method).
			Dur("duration", timer.Duration()).
			Err(err).
			Msg("stream closed")

		return err
	}
}

func methodName(fullMethod string) string {
	parts := strings.Split(fullMethod, "/")
	return parts[len(parts)-1]
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return status.Code(err).String()
}
