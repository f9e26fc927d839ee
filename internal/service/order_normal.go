package service

import (
	"context"
	"fmt"
	"time"

	"flashmall-backend/internal/model"
	"flashmall-backend/internal/utils"
)

// NormalOrderStrategy 普通商城订单：走 catalog 库存范围，支持优惠券
type NormalOrderStrategy struct {
	snapshots SnapshotProvider
	coupons   CouponStore
	now       func() time.Time
}

func NewNormalOrderStrategy(snapshots SnapshotProvider, coupons CouponStore) *NormalOrderStrategy {
	return &NormalOrderStrategy{snapshots: snapshots, coupons: coupons, now: time.Now}
}

func (s *NormalOrderStrategy) Validate(ctx context.Context, d *OrderDraft) error {
	return validateCommon(d)
}

func (s *NormalOrderStrategy) BuildDraft(ctx context.Context, d *OrderDraft) error {
	return attachSnapshots(ctx, s.snapshots, d, nil)
}

// ApplyCoupon 解析成员名下未使用的领取记录，核算折扣
// 门槛与折扣都以服务端重算的商品金额为基准
func (s *NormalOrderStrategy) ApplyCoupon(ctx context.Context, d *OrderDraft) error {
	if len(d.CouponIDs) == 0 {
		return nil
	}
	grants, err := s.coupons.FindUnusedGrants(ctx, d.MemberID, d.CouponIDs)
	if err != nil {
		return err
	}
	now := s.now()
	var discount int64
	grantIDs := make([]int64, 0, len(d.CouponIDs))
	for _, couponID := range d.CouponIDs {
		grant, ok := grants[couponID]
		if !ok {
			return fmt.Errorf("%w: 券 %d", ErrInvalidCoupon, couponID)
		}
		if !grant.Usable(now) {
			return fmt.Errorf("%w: 券 %d 已失效", ErrInvalidCoupon, couponID)
		}
		coupon := grant.Coupon
		if d.GoodsAmount < coupon.MinSpend {
			return fmt.Errorf("%w: 券 %d 未达到使用门槛", ErrInvalidCoupon, couponID)
		}
		discount += couponDiscount(&coupon, d.GoodsAmount)
		grantIDs = append(grantIDs, grant.ID)
	}
	// 折扣上限为商品金额，支付金额不会为负
	if discount > d.GoodsAmount {
		discount = d.GoodsAmount
	}
	d.CouponAmount = discount
	d.grantIDs = grantIDs
	d.recalcAmounts()
	return nil
}

func (s *NormalOrderStrategy) AdjustPrice(ctx context.Context, d *OrderDraft) error {
	d.recalcAmounts()
	return nil
}

func (s *NormalOrderStrategy) PostCreate(ctx context.Context, d *OrderDraft, order *model.Order) error {
	return s.coupons.MarkUsed(ctx, d.grantIDs, order.ID)
}

func (s *NormalOrderStrategy) ScopeKey(d *OrderDraft) string {
	return utils.STOCK_SCOPE_CATALOG
}

// couponDiscount 固定金额直接抵扣；比例券按 goods − round(goods×rate) 计算
func couponDiscount(c *model.Coupon, goodsAmount int64) int64 {
	switch c.Type {
	case model.CouponTypeFixed:
		return c.Amount
	case model.CouponTypePercent:
		discounted := (goodsAmount*c.Percent + 50) / 100
		return goodsAmount - discounted
	default:
		return 0
	}
}
