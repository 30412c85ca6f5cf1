package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskhub/api/transport"
	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/pkg/httpcontext"
)

// Resolver turns a bearer token into the authenticated caller.
type Resolver interface {
	Resolve(ctx context.Context, token string) (domain.Principal, error)
}

type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

// JWTAuth rejects requests without a valid bearer token.
func JWTAuth(resolver Resolver, adapter *httpcontext.Adapter, logger *zap.Logger) Middleware {
	return authenticate(resolver, adapter, logger, true)
}

// OptionalAuth lets anonymous requests through but still rejects a token
// that does not resolve.
func OptionalAuth(resolver Resolver, adapter *httpcontext.Adapter, logger *zap.Logger) Middleware {
	return authenticate(resolver, adapter, logger, false)
}

func authenticate(resolver Resolver, adapter *httpcontext.Adapter, logger *zap.Logger, required bool) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			token := httpcontext.BearerToken(ctx)
			if token == "" {
				if required {
					unauthorized(ctx, "missing bearer token")
					return
				}
				next(ctx)
				return
			}

			reqCtx, cancel := requestContext(adapter, ctx)
			principal, err := resolver.Resolve(reqCtx, token)
			cancel()
			if err != nil {
				if !domain.IsDomainError(err, domain.ErrCodeUnauthorized) {
					logger.Warn("token resolution failed",
						zap.String("request_id", httpcontext.RequestID(ctx)),
						zap.Error(err))
				}
				unauthorized(ctx, "invalid or expired token")
				return
			}

			httpcontext.SetPrincipal(ctx, principal)
			next(ctx)
		}
	}
}

func requestContext(adapter *httpcontext.Adapter, ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if adapter != nil {
		return adapter.Attach(ctx)
	}
	return context.WithCancel(context.Background())
}

func unauthorized(ctx *fasthttp.RequestCtx, message string) {
	body, _ := json.Marshal(transport.NewError(
		string(domain.ErrCodeUnauthorized),
		transport.ErrorBody{Message: message},
		nil,
	))
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(http.StatusUnauthorized)
	ctx.SetBody(body)
}
