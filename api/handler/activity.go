package handler

import (
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskhub/pkg/httpcontext"
	"github.com/fastygo/taskhub/repository"
	activityUC "github.com/fastygo/taskhub/usecase/activity"
)

type ActivityHandler struct {
	baseHandler
	uc *activityUC.UseCase
}

func NewActivityHandler(uc *activityUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Recent activity (admin only)
// @Tags activity
// @Router /api/v1/activity [get]
func (h *ActivityHandler) List(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	filter := repository.ActivityFilter{
		EntityKind: string(args.Peek("entity_kind")),
		EntityID:   string(args.Peek("entity_id")),
		Limit:      parseInt(string(args.Peek("limit")), 50),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	events, err := h.uc.List(stdCtx, h.principal(ctx), filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondList(ctx, events, len(events))
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}
