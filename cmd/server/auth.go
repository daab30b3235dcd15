package main

import (
	"context"
	"crypto/x509"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type spiffeIdContextKey struct{}

func extractSpiffeIdFromContext(ctx context.Context) *string {
	if v := ctx.Value(spiffeIdContextKey{}); v != nil {
		if spiffeId, ok := v.(string); ok {
			return &spiffeId
		}
	}
	return nil
}

func extractSpiffeIdFromTls(ctx context.Context) *string {
	// First, check if it was already injected into context.
	if v := extractSpiffeIdFromContext(ctx); v != nil {
		return v
	}

	p, ok := peer.FromContext(ctx)
	if !ok || p == nil {
		return nil
	}

	ti, ok := p.AuthInfo.(credentials.TLSInfo)
	if !ok {
		return nil
	}

	if len(ti.State.PeerCertificates) == 0 {
		return nil
	}

	return spiffeIdFromCertificate(ti.State.PeerCertificates[0])
}

// spiffeIdFromCertificate returns the trust domain of the first SPIFFE URI
// SAN, e.g. spiffe://client1/cli -> "client1".
func spiffeIdFromCertificate(leaf *x509.Certificate) *string {
	if leaf == nil {
		return nil
	}

	for _, uri := range leaf.URIs {
		if uri != nil && uri.Scheme == "spiffe" && uri.Host != "" {
			id := uri.Host
			return &id
		}
	}

	return nil
}

func injectSpiffeId(ctx context.Context, spiffeId string) context.Context {
	ctx = context.WithValue(ctx, spiffeIdContextKey{}, spiffeId)

	return ctx
}

// injectSpiffeIdUnary extracts the SPIFFE ID from the TLS certificate.
func injectSpiffeIdUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	spiffeId := extractSpiffeIdFromTls(ctx)

	if spiffeId == nil {
		return nil, status.Error(codes.Unauthenticated, "client must have SPIFFE ID")
	}

	ctx = injectSpiffeId(ctx, *spiffeId)

	return handler(ctx, req)
}

type streamWithCtx struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *streamWithCtx) Context() context.Context { return s.ctx }

// injectSpiffeIdStream extracts the SPIFFE ID from the TLS certificate.
func injectSpiffeIdStream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx := ss.Context()

	spiffeId := extractSpiffeIdFromTls(ctx)

	if spiffeId == nil {
		return status.Error(codes.Unauthenticated, "client must have SPIFFE ID")
	}

	ctx = injectSpiffeId(ctx, *spiffeId)

	return handler(srv, &streamWithCtx{ServerStream: ss, ctx: ctx})
}

// checkOwnership allows access to a job only to the client that submitted it.
func (s *StressRunnerServer) checkOwnership(ctx context.Context, jobID string) error {
	spiffeId := extractSpiffeIdFromContext(ctx)

	if spiffeId == nil {
		return status.Error(codes.Unauthenticated, "client must have SPIFFE ID")
	}

	s.mu.RLock()
	realOwner, ok := s.owners[jobID]
	s.mu.RUnlock()

	if !ok {
		return status.Errorf(codes.NotFound, "job not found: %s", jobID)
	}

	if realOwner != *spiffeId {
		return status.Error(codes.PermissionDenied, "Only original owner can access the job")
	}

	return nil
}

// owns reports whether the caller submitted jobID.
func (s *StressRunnerServer) owns(ctx context.Context, jobID string) bool {
	spiffeId := extractSpiffeIdFromContext(ctx)
	if spiffeId == nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owners[jobID] == *spiffeId
}

// claim records the caller as owner of jobID. It fails if the id is already
// owned by anyone.
func (s *StressRunnerServer) claim(ctx context.Context, jobID string) error {
	spiffeId := extractSpiffeIdFromContext(ctx)
	if spiffeId == nil {
		return status.Error(codes.Unauthenticated, "client must have SPIFFE ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.owners[jobID]; taken {
		return status.Errorf(codes.AlreadyExists, "job id %q is already in use", jobID)
	}
	s.owners[jobID] = *spiffeId
	return nil
}

func (s *StressRunnerServer) unclaim(jobID string) {
	s.mu.Lock()
	delete(s.owners, jobID)
	s.mu.Unlock()
}
