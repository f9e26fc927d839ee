package service

import (
	"context"
	"time"

	"flashmall-backend/internal/model"
	"flashmall-backend/internal/queue"
	"flashmall-backend/internal/stock"
)

// 各策略与巡检只依赖协作方接口，gorm 实现见 internal/repository

type SessionStore interface {
	Create(ctx context.Context, s *model.SeckillSession) error
	FindByID(ctx context.Context, id int64) (*model.SeckillSession, error)
	Save(ctx context.Context, s *model.SeckillSession) error
	FindDueToStart(ctx context.Context, now time.Time) ([]*model.SeckillSession, error)
	FindDueToEnd(ctx context.Context, now time.Time) ([]*model.SeckillSession, error)
	FindStartingWithin(ctx context.Context, now time.Time, window time.Duration) ([]*model.SeckillSession, error)
	FindByActivity(ctx context.Context, activityID int64) ([]*model.SeckillSession, error)
	IncrementSold(ctx context.Context, sessionID, quantity int64) error
	CountMemberQuantity(ctx context.Context, sessionID, memberID int64) (int64, error)
}

type ActivityStore interface {
	Create(ctx context.Context, a *model.SeckillActivity) error
	FindByID(ctx context.Context, id int64) (*model.SeckillActivity, error)
	Save(ctx context.Context, a *model.SeckillActivity) error
	FindReconcilable(ctx context.Context) ([]*model.SeckillActivity, error)
	RefreshStats(ctx context.Context, activityID int64) error
}

type ProductStore interface {
	Create(ctx context.Context, p *model.SeckillProduct) error
	FindByID(ctx context.Context, id int64) (*model.SeckillProduct, error)
	FindBySessionAndSku(ctx context.Context, sessionID, skuID int64) (*model.SeckillProduct, error)
	ListBySession(ctx context.Context, sessionID int64) ([]*model.SeckillProduct, error)
	StockCounts(ctx context.Context, sessionID int64) (map[int64]int64, error)
	IncrementSold(ctx context.Context, productID, quantity int64) error
	UpdatePrice(ctx context.Context, productID, price int64) error
}

type GroupBuyStore interface {
	Create(ctx context.Context, g *model.GroupBuyActivity) error
	FindByID(ctx context.Context, id int64) (*model.GroupBuyActivity, error)
	Save(ctx context.Context, g *model.GroupBuyActivity) error
	FindDueToStart(ctx context.Context, now time.Time) ([]*model.GroupBuyActivity, error)
	FindDueToEnd(ctx context.Context, now time.Time) ([]*model.GroupBuyActivity, error)
	FindStartingWithin(ctx context.Context, now time.Time, window time.Duration) ([]*model.GroupBuyActivity, error)
	IncrementSold(ctx context.Context, activityID, quantity int64) error
	CountMemberQuantity(ctx context.Context, activityID, memberID int64) (int64, error)
	CountGroupMembers(ctx context.Context, groupNo string) (int64, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *model.Order) error
	FindByTradeNo(ctx context.Context, tradeNo string) (*model.Order, error)
	CreateSeckillOrder(ctx context.Context, so *model.SeckillOrder) error
	CreateGroupBuyOrder(ctx context.Context, record *model.GroupBuyOrder) error
}

type CouponStore interface {
	FindUnusedGrants(ctx context.Context, memberID int64, couponIDs []int64) (map[int64]*model.CouponUser, error)
	MarkUsed(ctx context.Context, grantIDs []int64, orderID int64) error
}

type SkuStore interface {
	FindByID(ctx context.Context, id int64) (*model.Sku, error)
	FindByIDs(ctx context.Context, ids []int64) ([]*model.Sku, error)
}

// SnapshotProvider 商品目录协作方，返回权威的即时快照
type SnapshotProvider interface {
	GetSkuSnapshots(ctx context.Context, skuIDs []int64) (map[int64]*SkuSnapshot, error)
}

// Ledger 库存账本协作方，实现见 internal/stock
type Ledger interface {
	Reserve(ctx context.Context, scope string, items []stock.Item) (*stock.Reservation, error)
	Rollback(ctx context.Context, r *stock.Reservation) error
	Warm(ctx context.Context, scope string, counts map[int64]int64) error
	Evict(ctx context.Context, scope string) error
}

// JobQueue 延迟任务协作方，at-least-once，处理方必须幂等
type JobQueue interface {
	Push(ctx context.Context, job queue.Job, delay time.Duration) error
}

// Locker 分布式锁协作方，实现见 internal/lock
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration, maxRetries int) (string, error)
	Release(ctx context.Context, key, token string) error
}

// IDGenerator 订单号生成协作方
type IDGenerator interface {
	NextId(ctx context.Context, keyPrefix string) (int64, error)
}
