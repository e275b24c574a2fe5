package auth

import (
	"context"
	"net/http"
	"strings"

	"google.golang.org/grpc"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
)

// CheckScopes reports whether the principal in ctx holds every one of
// scopes. It returns AUTH_001 when ctx carries no principal and
// AUTHZ_001, listing the missing scopes, when one is not granted.
func CheckScopes(ctx context.Context, scopes ...string) error {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return sserr.New(sserr.CodeAuthentication, "auth: request is not authenticated")
	}
	if ok, missing := p.HasAllScopes(scopes...); !ok {
		return sserr.Newf(sserr.CodeAuthorizationScope, "auth: missing scope %s", strings.Join(missing, ", ")).
			WithDetail("missing_scopes", missing)
	}
	return nil
}

// RequireScope returns an HTTP middleware that answers 403 unless the
// authenticated principal holds every one of scopes. It must run after
// [HTTPMiddleware].
func RequireScope(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := CheckScopes(r.Context(), scopes...); err != nil {
				WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UnaryRequireScope returns a gRPC unary server interceptor that rejects
// calls with PermissionDenied unless the principal holds every one of
// scopes. Chain it after [UnaryServerInterceptor].
func UnaryRequireScope(scopes ...string) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if err := CheckScopes(ctx, scopes...); err != nil {
			return nil, grpcError(err)
		}
		return handler(ctx, req)
	}
}

// StreamRequireScope is the streaming counterpart of [UnaryRequireScope].
func StreamRequireScope(scopes ...string) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if err := CheckScopes(ss.Context(), scopes...); err != nil {
			return grpcError(err)
		}
		return handler(srv, ss)
	}
}
