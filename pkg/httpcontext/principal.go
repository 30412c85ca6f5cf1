package httpcontext

import (
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/taskhub/domain"
)

const principalKey = "taskhub.principal"

// SetPrincipal stores the authenticated caller on the request.
func SetPrincipal(ctx *fasthttp.RequestCtx, p domain.Principal) {
	ctx.SetUserValue(principalKey, p)
}

// Principal returns the caller stored by SetPrincipal.
func Principal(ctx *fasthttp.RequestCtx) (domain.Principal, bool) {
	p, ok := ctx.UserValue(principalKey).(domain.Principal)
	return p, ok && p.IsAuthenticated()
}

// BearerToken extracts the token from the Authorization header. A bare token without the scheme is accepted.
func BearerToken(ctx *fasthttp.RequestCtx) string {
	header := strings.TrimSpace(string(ctx.Request.Header.Peek("Authorization")))
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
