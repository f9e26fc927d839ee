package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"flashmall-backend/internal/config"
	"flashmall-backend/internal/data"
	"flashmall-backend/internal/middleware"
	"flashmall-backend/internal/router"
	"flashmall-backend/internal/service"
	"flashmall-backend/pkg/logger"
)

func main() {
	cfgPath := os.Getenv("FLASHMALL_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/app.yaml"
	}
	// 加载配置
	cfg := config.MustLoad(cfgPath)
	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("loaded config", zap.String("path", cfgPath))

	// 初始化 MySQL
	db, err := data.NewMySQL(cfg.MySQL, log)
	if err != nil {
		log.Fatal("mysql init failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("mysql db handle", zap.Error(err))
	}
	defer sqlDB.Close()
	log.Info("connected to mysql")

	// 初始化 Redis
	redisClient := data.NewRedis(cfg.Redis)
	if err := data.Ping(context.Background(), redisClient); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	// 初始化 Kafka
	// 订单主链路的生产者
	kafkaWriter := data.NewKafkaWriter(cfg.Kafka, cfg.Kafka.OrderTopic)
	// 重试和死信的生产者
	kafkaRetryWriter := data.NewKafkaWriter(cfg.Kafka, cfg.Kafka.RetryTopic)
	kafkaDLQWriter := data.NewKafkaWriter(cfg.Kafka, cfg.Kafka.DLQTopic)
	// 低库存告警的生产者
	kafkaLowStockWriter := data.NewKafkaWriter(cfg.Kafka, cfg.Kafka.LowStockTopic)
	// 主业务消费者
	kafkaReader := data.NewKafkaReader(cfg.Kafka, cfg.Kafka.OrderTopic, cfg.Kafka.GroupID)
	// 重试消费者 - 重新处理失败消息
	kafkaRetryReader := data.NewKafkaReader(cfg.Kafka, cfg.Kafka.RetryTopic, cfg.Kafka.GroupID+"-retry")
	defer kafkaWriter.Close()
	defer kafkaRetryWriter.Close()
	defer kafkaDLQWriter.Close()
	defer kafkaLowStockWriter.Close()
	defer kafkaReader.Close()
	defer kafkaRetryReader.Close()
	log.Info("configured kafka",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("orderTopic", cfg.Kafka.OrderTopic),
		zap.String("retryTopic", cfg.Kafka.RetryTopic),
		zap.String("dlqTopic", cfg.Kafka.DLQTopic),
		zap.String("lowStockTopic", cfg.Kafka.LowStockTopic),
		zap.String("groupID", cfg.Kafka.GroupID),
	)

	// 构建 Service Registry（传入统一 logger）
	services := service.NewRegistry(db, redisClient,
		kafkaWriter, kafkaRetryWriter, kafkaDLQWriter, kafkaLowStockWriter,
		kafkaReader, kafkaRetryReader, cfg, log)

	// 后台任务共享一个可取消的根上下文，随进程退出一起停止
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	// 生命周期调度：巡检 + 延迟任务
	go services.Lifecycle.Run(bgCtx)
	// 异步下单消费者
	go func() {
		if err := services.Order.RunConsumer(bgCtx); err != nil {
			log.Error("order consumer stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := services.Order.RunRetryConsumer(bgCtx); err != nil {
			log.Error("order retry consumer stopped", zap.Error(err))
		}
	}()

	// 初始化 Gin 引擎
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Logger())
	engine.Use(gin.Recovery())
	engine.Use(middleware.ErrorHandler(log))

	router.RegisterRoutes(engine, services, redisClient)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: engine,
	}
	// 启动 HTTP 服务（异步）
	go func() {
		log.Info("starting http server", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server run failed", zap.Error(err))
		}
	}()

	// 监听系统信号，执行优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")
	bgCancel()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("server shutdown failed", zap.Error(err))
	}
	log.Info("server exited")
}
