package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/StricklySoft/stricklysoft-security/pkg/cert"
	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
	"github.com/StricklySoft/stricklysoft-security/pkg/logging"
	"github.com/StricklySoft/stricklysoft-security/pkg/secctx"
)

// UnaryServerInterceptor returns a gRPC unary server interceptor that
// authenticates the bearer token of the "authorization" metadata.
//
// The handler runs inside a security scope holding the validated token
// and the peer's TLS client certificate, if any. The scope is cleared
// when the handler returns. Failures are returned as Unauthenticated.
func UnaryServerInterceptor(a *Authenticator) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, scope, done := secctx.WithScope(ctx)
		defer done()

		ctx, err := authenticateGRPC(ctx, a, scope)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor returns a gRPC stream server interceptor that
// performs the same steps as [UnaryServerInterceptor] for the lifetime
// of the stream.
func StreamServerInterceptor(a *Authenticator) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, scope, done := secctx.WithScope(ss.Context())
		defer done()

		ctx, err := authenticateGRPC(ctx, a, scope)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// UnaryClientInterceptor returns a gRPC unary client interceptor that
// forwards the token of the current security scope as "authorization"
// metadata. Calls that already carry authorization metadata, and calls
// made outside an authenticated scope, are sent unchanged.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		return invoker(forwardToken(ctx), method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor is the streaming counterpart of
// [UnaryClientInterceptor].
func StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		return streamer(forwardToken(ctx), desc, cc, method, opts...)
	}
}

// authenticateGRPC validates the incoming bearer token and returns ctx
// carrying the principal.
func authenticateGRPC(ctx context.Context, a *Authenticator, scope *secctx.Scope) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, status.Error(codes.Unauthenticated, "missing metadata")
	}
	if ids := md.Get(strings.ToLower(logging.CorrelationHeader)); len(ids) > 0 && ids[0] != "" {
		ctx = logging.WithCorrelationID(ctx, ids[0])
	}

	values := md.Get(HeaderAuthorization)
	if len(values) == 0 {
		return ctx, status.Error(codes.Unauthenticated, "missing authorization metadata")
	}
	raw := ExtractBearerToken(values[0])
	if raw == "" {
		return ctx, status.Error(codes.Unauthenticated, "invalid authorization format")
	}

	if c := peerCertificate(ctx); c != nil {
		scope.SetCertificate(c)
	}
	p, err := a.Authenticate(ctx, raw)
	if err != nil {
		return ctx, grpcError(err)
	}
	return ContextWithPrincipal(ctx, p), nil
}

// peerCertificate returns the TLS client certificate of the calling peer.
func peerCertificate(ctx context.Context) *cert.Certificate {
	p, ok := peer.FromContext(ctx)
	if !ok || p.AuthInfo == nil {
		return nil
	}
	tlsInfo, ok := p.AuthInfo.(credentials.TLSInfo)
	if !ok || len(tlsInfo.State.PeerCertificates) == 0 {
		return nil
	}
	return cert.FromX509(tlsInfo.State.PeerCertificates[0])
}

// grpcError converts err to a status. Only the code and message of the
// first violation are exposed.
func grpcError(err error) error {
	e := sserr.FromError(err)
	code := codes.Unauthenticated
	msg := e.Code.String() + ": " + e.Message
	switch {
	case e.Code.Category() == "AUTHZ":
		code = codes.PermissionDenied
	case e.Code.Category() == "INT" || e.Code.Category() == "CFG":
		code = codes.Internal
		msg = "internal error"
	}
	return status.Error(code, msg)
}

// forwardToken adds the scope's token to the outgoing metadata of ctx.
func forwardToken(ctx context.Context) context.Context {
	tok := secctx.TokenFromContext(ctx)
	if tok == nil {
		return ctx
	}
	md, _ := metadata.FromOutgoingContext(ctx)
	if len(md.Get(HeaderAuthorization)) > 0 {
		return ctx
	}
	pairs := []string{HeaderAuthorization, bearerPrefix + tok.Raw()}
	if id := logging.CorrelationID(ctx); id != "" {
		pairs = append(pairs, strings.ToLower(logging.CorrelationHeader), id)
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

// wrappedServerStream wraps a grpc.ServerStream to override its Context method.
// This is necessary because ServerStream.Context() returns the original stream
// context, which does not contain the principal added by the interceptor.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
