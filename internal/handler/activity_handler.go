package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"flashmall-backend/internal/dto/result"
	"flashmall-backend/internal/model"
	"flashmall-backend/internal/service"
)

type ActivityHandler struct {
	activitySvc *service.ActivityService
}

func NewActivityHandler(svc *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activitySvc: svc}
}

// CreateActivity 新建秒杀活动
func (h *ActivityHandler) CreateActivity(ctx *gin.Context) {
	var activity model.SeckillActivity
	if err := ctx.ShouldBindJSON(&activity); err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail("请求体不合法"))
		return
	}
	if err := h.activitySvc.CreateActivity(ctx.Request.Context(), &activity); err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail(err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, result.OkWithData(activity.ID))
}

// CreateSession 在活动下新建场次
func (h *ActivityHandler) CreateSession(ctx *gin.Context) {
	var session model.SeckillSession
	if err := ctx.ShouldBindJSON(&session); err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail("请求体不合法"))
		return
	}
	if err := h.activitySvc.CreateSession(ctx.Request.Context(), &session); err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail(err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, result.OkWithData(session.ID))
}

// AddProduct 向场次添加秒杀商品
func (h *ActivityHandler) AddProduct(ctx *gin.Context) {
	var product model.SeckillProduct
	if err := ctx.ShouldBindJSON(&product); err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail("请求体不合法"))
		return
	}
	if err := h.activitySvc.AddProduct(ctx.Request.Context(), &product); err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail(err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, result.OkWithData(product.ID))
}

// UpdateProductPrice 秒杀商品改价
func (h *ActivityHandler) UpdateProductPrice(ctx *gin.Context) {
	productID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail("invalid product id"))
		return
	}
	var body struct {
		Price int64 `json:"price"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail("请求体不合法"))
		return
	}
	if err := h.activitySvc.UpdateProductPrice(ctx.Request.Context(), productID, body.Price); err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail(err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, result.Ok())
}

// ToggleActivity 启用/停用活动
func (h *ActivityHandler) ToggleActivity(ctx *gin.Context) {
	activityID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail("invalid activity id"))
		return
	}
	if err := h.activitySvc.ToggleActivityEnabled(ctx.Request.Context(), activityID); err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail(err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, result.Ok())
}

// CancelActivity 取消活动及其场次
func (h *ActivityHandler) CancelActivity(ctx *gin.Context) {
	activityID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail("invalid activity id"))
		return
	}
	if err := h.activitySvc.CancelActivity(ctx.Request.Context(), activityID); err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail(err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, result.Ok())
}

// ListProducts 场次商品列表
func (h *ActivityHandler) ListProducts(ctx *gin.Context) {
	sessionID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail("invalid session id"))
		return
	}
	products, err := h.activitySvc.ListSessionProducts(ctx.Request.Context(), sessionID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, result.Fail(err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, result.OkWithList(products, int64(len(products))))
}

// CreateGroupBuy 新建团购活动
func (h *ActivityHandler) CreateGroupBuy(ctx *gin.Context) {
	var g model.GroupBuyActivity
	if err := ctx.ShouldBindJSON(&g); err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail("请求体不合法"))
		return
	}
	if err := h.activitySvc.CreateGroupBuy(ctx.Request.Context(), &g); err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail(err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, result.OkWithData(g.ID))
}

// CancelGroupBuy 取消团购活动
func (h *ActivityHandler) CancelGroupBuy(ctx *gin.Context) {
	activityID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail("invalid activity id"))
		return
	}
	if err := h.activitySvc.CancelGroupBuy(ctx.Request.Context(), activityID); err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail(err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, result.Ok())
}
