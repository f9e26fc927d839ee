package service

import (
	"context"
	"fmt"

	"flashmall-backend/internal/model"
	"flashmall-backend/internal/stock"
)

// OrderStrategy 每种订单类型实现同一组能力
// 任意校验失败都发生在库存预占与持久化之前
type OrderStrategy interface {
	// Validate 校验登录/商品行/类型约束，并解析活动侧的强类型上下文
	Validate(ctx context.Context, d *OrderDraft) error
	// BuildDraft 附加不可变商品快照并重算金额，活动价在此覆盖单价
	BuildDraft(ctx context.Context, d *OrderDraft) error
	// ApplyCoupon 普通订单核算优惠券，秒杀/团购一律拒绝
	ApplyCoupon(ctx context.Context, d *OrderDraft) error
	// AdjustPrice 扩展点，默认只重算支付金额
	AdjustPrice(ctx context.Context, d *OrderDraft) error
	// PostCreate 订单落库后写类型侧记录并推进权威销量
	PostCreate(ctx context.Context, d *OrderDraft, order *model.Order) error
	// ScopeKey 本类型订单扣减库存所在的账本范围
	ScopeKey(d *OrderDraft) string
}

// reservationItems 将草稿商品行转换为账本预占行
func reservationItems(d *OrderDraft) []stock.Item {
	items := make([]stock.Item, 0, len(d.Items))
	for _, it := range d.Items {
		item := stock.Item{SkuID: it.SkuID, Quantity: it.Quantity}
		if it.Snapshot != nil {
			item.WarnStock = it.Snapshot.WarnStock
		}
		items = append(items, item)
	}
	return items
}

// validateCommon 所有类型共享的基础校验
func validateCommon(d *OrderDraft) error {
	if d.MemberID <= 0 {
		return fmt.Errorf("%w: 缺少登录成员", ErrNotPurchasable)
	}
	if len(d.Items) == 0 {
		return fmt.Errorf("%w: 订单不能没有商品", ErrInvalidOrder)
	}
	for _, it := range d.Items {
		if it.SkuID <= 0 || it.Quantity <= 0 {
			return fmt.Errorf("%w: 非法的商品行", ErrInvalidOrder)
		}
	}
	return nil
}

// attachSnapshots 拉取快照、拒绝下架商品，并将快照价写入商品行
func attachSnapshots(ctx context.Context, provider SnapshotProvider, d *OrderDraft, overridePrice func(*DraftItem) int64) error {
	ids := make([]int64, 0, len(d.Items))
	for _, it := range d.Items {
		ids = append(ids, it.SkuID)
	}
	snapshots, err := provider.GetSkuSnapshots(ctx, ids)
	if err != nil {
		return err
	}
	for _, it := range d.Items {
		snap, ok := snapshots[it.SkuID]
		if !ok || snap.Status != 1 {
			return fmt.Errorf("%w: sku %d", ErrSnapshotUnavailable, it.SkuID)
		}
		it.Snapshot = snap
		it.ProductID = snap.ProductID
		if overridePrice != nil {
			it.Price = overridePrice(it)
		} else {
			it.Price = snap.Price
		}
	}
	d.recalcAmounts()
	return nil
}
