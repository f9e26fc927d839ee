package service

import (
	"context"
	"fmt"
	"time"

	"flashmall-backend/internal/model"
	"flashmall-backend/internal/utils"
)

// SeckillOrderStrategy 秒杀订单：单SKU限定，活动价覆盖，独立库存范围
type SeckillOrderStrategy struct {
	sessions   SessionStore
	products   ProductStore
	activities ActivityStore
	orders     OrderStore
	snapshots  SnapshotProvider
	now        func() time.Time
}

func NewSeckillOrderStrategy(
	sessions SessionStore,
	products ProductStore,
	activities ActivityStore,
	orders OrderStore,
	snapshots SnapshotProvider,
) *SeckillOrderStrategy {
	return &SeckillOrderStrategy{
		sessions:   sessions,
		products:   products,
		activities: activities,
		orders:     orders,
		snapshots:  snapshots,
		now:        time.Now,
	}
}

// Validate 秒杀限单行商品；限购以数据库中的权威已购数量为准，
// 避免缓存校验与限购之间的 TOCTOU 窗口
func (s *SeckillOrderStrategy) Validate(ctx context.Context, d *OrderDraft) error {
	if err := validateCommon(d); err != nil {
		return err
	}
	if len(d.Items) != 1 {
		return fmt.Errorf("%w: 秒杀订单只允许一个商品", ErrNotPurchasable)
	}
	if d.SessionID <= 0 {
		return fmt.Errorf("%w: 缺少场次", ErrNotPurchasable)
	}

	// 每次校验都重新读取实体，不跨请求缓存
	session, err := s.sessions.FindByID(ctx, d.SessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("%w: 场次 %d 不存在", ErrNotPurchasable, d.SessionID)
	}
	if !session.CanPurchase(s.now()) {
		return fmt.Errorf("%w: 场次 %d", ErrNotPurchasable, session.ID)
	}

	item := d.Items[0]
	product, err := s.products.FindBySessionAndSku(ctx, session.ID, item.SkuID)
	if err != nil {
		return err
	}
	if product == nil {
		return fmt.Errorf("%w: sku %d 不在本场次", ErrSnapshotUnavailable, item.SkuID)
	}
	if product.MaxQuantity > 0 && item.Quantity > product.MaxQuantity {
		return fmt.Errorf("%w: 单次最多 %d 件", ErrPurchaseLimit, product.MaxQuantity)
	}

	purchased, err := s.sessions.CountMemberQuantity(ctx, session.ID, d.MemberID)
	if err != nil {
		return err
	}
	if session.MaxPerMember > 0 && purchased+item.Quantity > session.MaxPerMember {
		return fmt.Errorf("%w: 每人限购 %d 件，已购 %d", ErrPurchaseLimit, session.MaxPerMember, purchased)
	}

	d.Seckill = &SeckillContext{Session: session, Product: product}
	return nil
}

func (s *SeckillOrderStrategy) BuildDraft(ctx context.Context, d *OrderDraft) error {
	product := d.Seckill.Product
	if err := attachSnapshots(ctx, s.snapshots, d, func(*DraftItem) int64 {
		return product.SeckillPrice
	}); err != nil {
		return err
	}
	// 低库存阈值走秒杀商品自己的配置
	if product.WarnStock > 0 {
		d.Items[0].Snapshot.WarnStock = product.WarnStock
	}
	return nil
}

func (s *SeckillOrderStrategy) ApplyCoupon(ctx context.Context, d *OrderDraft) error {
	if len(d.CouponIDs) > 0 {
		return ErrCouponNotSupported
	}
	return nil
}

func (s *SeckillOrderStrategy) AdjustPrice(ctx context.Context, d *OrderDraft) error {
	d.recalcAmounts()
	return nil
}

// PostCreate 写秒杀侧记录、推进权威销量，并触发活动聚合统计重算
func (s *SeckillOrderStrategy) PostCreate(ctx context.Context, d *OrderDraft, order *model.Order) error {
	sctx := d.Seckill
	item := d.Items[0]
	record := &model.SeckillOrder{
		OrderID:   order.ID,
		SessionID: sctx.Session.ID,
		ProductID: sctx.Product.ID,
		SkuID:     item.SkuID,
		MemberID:  d.MemberID,
		Quantity:  item.Quantity,
	}
	if err := s.orders.CreateSeckillOrder(ctx, record); err != nil {
		return err
	}
	if err := s.products.IncrementSold(ctx, sctx.Product.ID, item.Quantity); err != nil {
		return err
	}
	if err := s.sessions.IncrementSold(ctx, sctx.Session.ID, item.Quantity); err != nil {
		return err
	}
	return s.activities.RefreshStats(ctx, sctx.Session.ActivityID)
}

func (s *SeckillOrderStrategy) ScopeKey(d *OrderDraft) string {
	return utils.SessionScope(d.Seckill.Session.ID)
}
