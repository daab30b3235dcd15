package main

import (
	"crypto/tls"
	"crypto/x509"
	"net"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	apiv1 "github.com/drericflores/hstp/api/v1"
)

// GRPCServer encapsulates the gRPC server instance and its listener.
type GRPCServer struct {
	lis net.Listener
	s   *grpc.Server
}

// NewGRPCServer constructs a TLS-enabled gRPC server that requires client certs (mTLS),
// registers the service, and prepares it to serve on the configured address.
func NewGRPCServer(cfg Config, service apiv1.StressRunnerServiceServer) (*GRPCServer, error) {
	creds, err := serverCredentials(cfg)
	if err != nil {
		return nil, err
	}

	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, errors.Wrap(err, "failed to listen")
	}

	return newGRPCServer(lis, service,
		grpc.Creds(creds),
		grpc.UnaryInterceptor(injectSpiffeIdUnary),
		grpc.StreamInterceptor(injectSpiffeIdStream),
	), nil
}

func newGRPCServer(lis net.Listener, service apiv1.StressRunnerServiceServer, opts ...grpc.ServerOption) *GRPCServer {
	s := grpc.NewServer(opts...)
	apiv1.RegisterStressRunnerServiceServer(s, service)
	return &GRPCServer{lis: lis, s: s}
}

// serverCredentials builds TLS 1.3 credentials that verify client certs
// against the configured CA.
func serverCredentials(cfg Config) (credentials.TransportCredentials, error) {
	cert, err := tls.X509KeyPair([]byte(cfg.TLSCert), []byte(cfg.TLSKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load server key pair")
	}

	caPool := x509.NewCertPool()
	if ok := caPool.AppendCertsFromPEM([]byte(cfg.CATLSCert)); !ok {
		return nil, errors.New("failed to append CA certificate to pool")
	}

	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    caPool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
	}), nil
}

// Serve starts serving gRPC on the configured listener.
func (g *GRPCServer) Serve() error {
	return g.s.Serve(g.lis)
}

// Addr returns the network address the server is bound to.
func (g *GRPCServer) Addr() net.Addr { return g.lis.Addr() }

// Stop gracefully stops the gRPC server.
func (g *GRPCServer) Stop() { g.s.GracefulStop() }
