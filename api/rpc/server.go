// Package rpc provides the TLS + chained-interceptor gRPC server scaffold
// that exposes this module's resolver as a managed service, grounded on
// the teacher's api/grpc/server.New (see DESIGN.md for why this exposes
// only health/reflection rather than a hand-written Resolve/Xfr/LoadZone
// protobuf surface; cmd/dnsresolve embeds the resolver directly).
package rpc

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// Config mirrors the teacher's api/grpc/server.Config.
type Config struct {
	ListenAddr  string // e.g. ":8443"
	TLSCertFile string
	TLSKeyFile  string
	APIKeys     []string // optional static bearer keys; empty disables auth
}

// Deps lets the caller register additional services and interceptors
// alongside the ones this package always installs (logging/metrics,
// health, reflection).
type Deps struct {
	Register func(s *grpc.Server)
	Unary    []grpc.UnaryServerInterceptor
	Stream   []grpc.StreamServerInterceptor
}

// New builds a gRPC server (TLS when both cfg.TLSCertFile and cfg.TLSKeyFile
// are set, API-key auth when cfg.APIKeys is non-empty) with request logging/metrics,
// a grpc_health_v1 health service, and reflection, then binds cfg.ListenAddr.
// The returned HealthServer lets the caller flip readiness as the resolver
// comes up or loses its nameservers.
func New(cfg Config, deps Deps) (*grpc.Server, *health.Server, net.Listener, error) {
	var opts []grpc.ServerOption

	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("tls: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	}

	unaries := append([]grpc.UnaryServerInterceptor{apiKeyUnaryInterceptor(cfg.APIKeys), UnaryLoggingMetrics()}, deps.Unary...)
	streams := append([]grpc.StreamServerInterceptor{apiKeyStreamInterceptor(cfg.APIKeys), StreamLoggingMetrics()}, deps.Stream...)
	opts = append(opts,
		grpc.ChainUnaryInterceptor(unaries...),
		grpc.ChainStreamInterceptor(streams...),
	)

	gs := grpc.NewServer(opts...)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	if deps.Register != nil {
		deps.Register(gs)
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, nil, nil, err
	}
	return gs, hs, ln, nil
}

func apiKeyUnaryInterceptor(validKeys []string) grpc.UnaryServerInterceptor {
	set := keySet(validKeys)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if len(set) > 0 {
			md, _ := metadata.FromIncomingContext(ctx)
			if !authorize(md, set) {
				return nil, status.Error(codes.Unauthenticated, "unauthenticated")
			}
		}
		return handler(ctx, req)
	}
}

func apiKeyStreamInterceptor(validKeys []string) grpc.StreamServerInterceptor {
	set := keySet(validKeys)
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if len(set) > 0 {
			md, _ := metadata.FromIncomingContext(ss.Context())
			if !authorize(md, set) {
				return status.Error(codes.Unauthenticated, "unauthenticated")
			}
		}
		return handler(srv, ss)
	}
}

func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func authorize(md metadata.MD, set map[string]struct{}) bool {
	if md == nil {
		return false
	}
	for _, v := range md.Get("authorization") {
		var token string
		fmt.Sscanf(v, "Bearer %s", &token)
		if _, ok := set[token]; ok {
			return true
		}
	}
	return false
}
