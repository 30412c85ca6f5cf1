package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskhub/api/transport"
	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/pkg/httpcontext"
)

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	return context.WithCancel(context.Background())
}

// principal returns the caller resolved by the auth middleware, or the zero principal.
func (h baseHandler) principal(ctx *fasthttp.RequestCtx) domain.Principal {
	p, _ := httpcontext.Principal(ctx)
	return p
}

// decode unmarshals the request body into dst and answers 400 on failure.
func (h baseHandler) decode(ctx *fasthttp.RequestCtx, dst interface{}) bool {
	body := ctx.PostBody()
	if len(body) == 0 {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return false
	}
	return true
}

func (h baseHandler) pathID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	return id
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(payload)
	ctx.SetBody(body)
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	h.respondJSON(ctx, status, transport.NewSuccess(data, nil))
}

func (h baseHandler) respondList(ctx *fasthttp.RequestCtx, data interface{}, count int) {
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(data, transport.ListMeta{Count: count}))
}

// respondError maps err onto the envelope. Internal failures are logged and
// never expose their cause to the client.
func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, err error) {
	status, code := mapError(err)

	body := transport.ErrorBody{Message: "internal error"}
	var dErr *domain.Error
	if code != domain.ErrCodeInternal && errors.As(err, &dErr) {
		body = transport.ErrorBody{Message: dErr.Message, Action: dErr.Action, Reason: string(dErr.Reason)}
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", httpcontext.RequestID(ctx)),
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()),
			zap.String("code", string(code)),
			zap.Error(err),
		)
	}
	h.respondJSON(ctx, status, transport.NewError(string(code), body, nil))
}

func mapError(err error) (int, domain.ErrorCode) {
	switch {
	case domain.IsDomainError(err, domain.ErrCodeUnauthorized):
		return http.StatusUnauthorized, domain.ErrCodeUnauthorized
	case domain.IsDomainError(err, domain.ErrCodeForbidden):
		return http.StatusForbidden, domain.ErrCodeForbidden
	case domain.IsDomainError(err, domain.ErrCodeNotFound):
		return http.StatusNotFound, domain.ErrCodeNotFound
	case domain.IsDomainError(err, domain.ErrCodeInvalidDeadline):
		return http.StatusBadRequest, domain.ErrCodeInvalidDeadline
	case domain.IsDomainError(err, domain.ErrCodeInvalid):
		return http.StatusBadRequest, domain.ErrCodeInvalid
	case domain.IsDomainError(err, domain.ErrCodeConflict):
		return http.StatusConflict, domain.ErrCodeConflict
	case domain.IsDomainError(err, domain.ErrCodeInconsistentCascade):
		return http.StatusInternalServerError, domain.ErrCodeInconsistentCascade
	default:
		return http.StatusInternalServerError, domain.ErrCodeInternal
	}
}
