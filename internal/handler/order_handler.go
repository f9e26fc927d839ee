package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"flashmall-backend/internal/dto/result"
	"flashmall-backend/internal/middleware"
	"flashmall-backend/internal/service"
)

type OrderHandler struct {
	orderSvc *service.OrderService
}

func NewOrderHandler(svc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: svc}
}

// Create 同步下单
func (h *OrderHandler) Create(ctx *gin.Context) {
	draft, ok := h.bindDraft(ctx)
	if !ok {
		return
	}

	order, err := h.orderSvc.Create(ctx.Request.Context(), draft)
	if err != nil {
		ctx.JSON(orderErrStatus(err), result.Fail(err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, result.OkWithData(order))
}

// CreateAsync 异步下单，立即返回单号，结果走状态查询
func (h *OrderHandler) CreateAsync(ctx *gin.Context) {
	draft, ok := h.bindDraft(ctx)
	if !ok {
		return
	}

	tradeNo, err := h.orderSvc.SubmitAsync(ctx.Request.Context(), draft)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, result.Fail(err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, result.OkWithData(gin.H{"tradeNo": tradeNo}))
}

// QueryStatus 查询异步下单进度
func (h *OrderHandler) QueryStatus(ctx *gin.Context) {
	tradeNo := ctx.Param("tradeNo")
	if tradeNo == "" {
		ctx.JSON(http.StatusBadRequest, result.Fail("缺少单号"))
		return
	}
	record, err := h.orderSvc.GetPendingStatus(ctx.Request.Context(), tradeNo)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, result.Fail(err.Error()))
		return
	}
	if record.Status == "" {
		ctx.JSON(http.StatusNotFound, result.Fail("单号不存在或已过期"))
		return
	}
	ctx.JSON(http.StatusOK, result.OkWithData(record))
}

// bindDraft 解析请求体并注入登录成员，服务端金额一律重算
func (h *OrderHandler) bindDraft(ctx *gin.Context) (*service.OrderDraft, bool) {
	var draft service.OrderDraft
	if err := ctx.ShouldBindJSON(&draft); err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail("请求体不合法"))
		return nil, false
	}
	member, ok := middleware.GetLoginMember(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, result.Fail("未登录"))
		return nil, false
	}
	draft.MemberID = member.ID
	return &draft, true
}

// orderErrStatus 业务失败归为 400，库存/限流竞争归为 409，其余按 500 处理
func orderErrStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInsufficientStock), errors.Is(err, service.ErrLockBusy):
		return http.StatusConflict
	case service.IsDomainError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
