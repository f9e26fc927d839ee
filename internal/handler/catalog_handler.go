package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"flashmall-backend/internal/dto/result"
	"flashmall-backend/internal/service"
)

type CatalogHandler struct {
	catalogSvc *service.CatalogService
}

func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogSvc: svc}
}

// QuerySkuByID 查询单个商品快照
func (h *CatalogHandler) QuerySkuByID(ctx *gin.Context) {
	skuID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, result.Fail("invalid sku id"))
		return
	}
	snapshots, err := h.catalogSvc.GetSkuSnapshots(ctx.Request.Context(), []int64{skuID})
	if err != nil {
		if service.IsDomainError(err) {
			ctx.JSON(http.StatusNotFound, result.Fail(err.Error()))
			return
		}
		ctx.JSON(http.StatusInternalServerError, result.Fail(err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, result.OkWithData(snapshots[skuID]))
}
