package rpc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var (
	rpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stubresolver_grpc_requests_total", Help: "Total gRPC requests"},
		[]string{"method", "code"},
	)
	rpcDurations = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "stubresolver_grpc_duration_seconds", Help: "RPC duration", Buckets: prometheus.DefBuckets},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(rpcRequests, rpcDurations)
}

func genRequestID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// UnaryLoggingMetrics stamps a request id onto incoming metadata (if the
// caller didn't already send one) and records per-method count/latency,
// mirroring the teacher's middleware.UnaryLoggingMetrics.
func UnaryLoggingMetrics() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		md, _ := metadata.FromIncomingContext(ctx)
		if len(md.Get("x-request-id")) == 0 {
			md = md.Copy()
			md.Set("x-request-id", genRequestID())
			ctx = metadata.NewIncomingContext(ctx, md)
		}
		resp, err := handler(ctx, req)
		st := status.Convert(err)
		rpcRequests.WithLabelValues(info.FullMethod, st.Code().String()).Inc()
		rpcDurations.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// StreamLoggingMetrics is UnaryLoggingMetrics's streaming counterpart.
func StreamLoggingMetrics() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		st := status.Convert(err)
		rpcRequests.WithLabelValues(info.FullMethod, st.Code().String()).Inc()
		rpcDurations.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		return err
	}
}
