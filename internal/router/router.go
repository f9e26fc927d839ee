package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"flashmall-backend/internal/handler"
	"flashmall-backend/internal/middleware"
	"flashmall-backend/internal/service"
)

// RegisterRoutes 统一注册所有模块的路由
func RegisterRoutes(engine *gin.Engine, services *service.Registry, rdb *redis.Client) {
	engine.Use(middleware.CORSMiddleware())
	engine.Use(middleware.LoginMiddleware(rdb))

	orderHandler := handler.NewOrderHandler(services.Order)
	activityHandler := handler.NewActivityHandler(services.Activity)
	catalogHandler := handler.NewCatalogHandler(services.Catalog)

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.GET("/sku/:id", catalogHandler.QuerySkuByID)
	engine.GET("/session/:id/products", activityHandler.ListProducts)

	// 下单接口需要登录，并做成员级限流
	orderGroup := engine.Group("/order")
	orderGroup.Use(middleware.RequireLogin(), middleware.RateLimitMiddleware(10, 20))
	orderGroup.POST("", orderHandler.Create)
	orderGroup.POST("/async", orderHandler.CreateAsync)
	orderGroup.GET("/status/:tradeNo", orderHandler.QueryStatus)

	adminGroup := engine.Group("/admin")
	adminGroup.Use(middleware.RequireLogin())
	adminGroup.POST("/activity", activityHandler.CreateActivity)
	adminGroup.PUT("/activity/:id/toggle", activityHandler.ToggleActivity)
	adminGroup.DELETE("/activity/:id", activityHandler.CancelActivity)
	adminGroup.POST("/session", activityHandler.CreateSession)
	adminGroup.POST("/product", activityHandler.AddProduct)
	adminGroup.PUT("/product/:id/price", activityHandler.UpdateProductPrice)
	adminGroup.POST("/groupbuy", activityHandler.CreateGroupBuy)
	adminGroup.DELETE("/groupbuy/:id", activityHandler.CancelGroupBuy)
}
