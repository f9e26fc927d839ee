package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"flashmall-backend/internal/config"
	"flashmall-backend/internal/lock"
	"flashmall-backend/internal/model"
	"flashmall-backend/internal/notify"
	"flashmall-backend/internal/queue"
	"flashmall-backend/internal/repository"
	"flashmall-backend/internal/stock"
	"flashmall-backend/internal/utils"
)

// 仓储实现必须满足服务侧协作方接口，偏差在编译期暴露
var (
	_ SessionStore  = (*repository.SessionRepo)(nil)
	_ ActivityStore = (*repository.ActivityRepo)(nil)
	_ ProductStore  = (*repository.ProductRepo)(nil)
	_ GroupBuyStore = (*repository.GroupBuyRepo)(nil)
	_ OrderStore    = (*repository.OrderRepo)(nil)
	_ CouponStore   = (*repository.CouponRepo)(nil)
	_ SkuStore      = (*repository.SkuRepo)(nil)

	_ SnapshotProvider = (*CatalogService)(nil)
	_ Ledger           = (*stock.Engine)(nil)
	_ Locker           = (*lock.Manager)(nil)
	_ DelayQueuePopper = (*queue.DelayQueue)(nil)
	_ IDGenerator      = (*utils.RedisIdWorker)(nil)
	_ stock.Notifier   = (*notify.LowStockNotifier)(nil)
)

// Registry 聚合全部业务 Service，方便注入 handler
type Registry struct {
	Order     *OrderService
	Activity  *ActivityService
	Lifecycle *LifecycleService
	Catalog   *CatalogService
}

// NewRegistry 构造服务注册中心
func NewRegistry(
	db *gorm.DB,
	rdb *redis.Client,
	kafkaWriter *kafka.Writer,
	kafkaRetryWriter *kafka.Writer,
	kafkaDLQWriter *kafka.Writer,
	kafkaLowStockWriter *kafka.Writer,
	kafkaReader *kafka.Reader,
	kafkaRetryReader *kafka.Reader,
	cfg *config.Config,
	log *zap.Logger,
) *Registry {
	if log == nil {
		log = zap.NewNop()
	}

	sessions := repository.NewSessionRepo(db)
	activities := repository.NewActivityRepo(db)
	products := repository.NewProductRepo(db)
	groupbuys := repository.NewGroupBuyRepo(db)
	orders := repository.NewOrderRepo(db)
	coupons := repository.NewCouponRepo(db)
	skus := repository.NewSkuRepo(db)

	smtp := notify.SMTPConfig{
		Host: cfg.SMTP.Host,
		Port: cfg.SMTP.Port,
		User: cfg.SMTP.User,
		Pass: cfg.SMTP.Pass,
		To:   cfg.SMTP.To,
	}
	notifier := notify.NewLowStockNotifier(kafkaLowStockWriter, smtp, log)
	ledger := stock.NewEngine(rdb, log, notifier, newStockLoader(products, groupbuys, skus))
	locker := lock.NewManager(rdb, log)
	delayQueue := queue.NewDelayQueue(rdb, utils.DELAY_QUEUE_KEY)
	tracker := NewPendingOrderTracker(rdb)
	idWorker := utils.NewRedisIdWorker(rdb)

	catalog := NewCatalogService(skus, rdb, log)

	strategies := map[model.OrderType]OrderStrategy{
		model.OrderTypeNormal:   NewNormalOrderStrategy(catalog, coupons),
		model.OrderTypeSeckill:  NewSeckillOrderStrategy(sessions, products, activities, orders, catalog),
		model.OrderTypeGroupBuy: NewGroupBuyOrderStrategy(groupbuys, orders, catalog),
	}

	return &Registry{
		Order: NewOrderService(strategies, ledger, orders, idWorker, tracker,
			kafkaWriter, kafkaRetryWriter, kafkaDLQWriter,
			kafkaReader, kafkaRetryReader, log),
		Activity:  NewActivityService(activities, sessions, products, groupbuys, ledger, locker, cfg.Lock, log),
		Lifecycle: NewLifecycleService(sessions, products, activities, groupbuys, ledger, delayQueue, rdb, cfg.Scheduler, log),
		Catalog:   catalog,
	}
}

// newStockLoader 账本缓存缺失时按范围键回源权威余量
func newStockLoader(
	products *repository.ProductRepo,
	groupbuys *repository.GroupBuyRepo,
	skus *repository.SkuRepo,
) stock.Loader {
	return func(ctx context.Context, scope string) (map[int64]int64, error) {
		switch {
		case scope == utils.STOCK_SCOPE_CATALOG:
			return skus.StockCounts(ctx)
		case strings.HasPrefix(scope, "session:"):
			id, err := strconv.ParseInt(strings.TrimPrefix(scope, "session:"), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad session scope %q: %w", scope, err)
			}
			return products.StockCounts(ctx, id)
		case strings.HasPrefix(scope, "groupbuy:"):
			id, err := strconv.ParseInt(strings.TrimPrefix(scope, "groupbuy:"), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad groupbuy scope %q: %w", scope, err)
			}
			g, err := groupbuys.FindByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if g == nil {
				return nil, fmt.Errorf("groupbuy %d not found", id)
			}
			return map[int64]int64{g.SkuID: g.TotalQuantity - g.SoldQuantity}, nil
		default:
			return nil, fmt.Errorf("unknown stock scope %q", scope)
		}
	}
}
