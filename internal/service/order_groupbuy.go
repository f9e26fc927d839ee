package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"flashmall-backend/internal/model"
	"flashmall-backend/internal/utils"
)

// GroupBuyOrderStrategy 团购订单：开团或跟团，团购价覆盖
type GroupBuyOrderStrategy struct {
	groupbuys GroupBuyStore
	orders    OrderStore
	snapshots SnapshotProvider
	now       func() time.Time
}

func NewGroupBuyOrderStrategy(groupbuys GroupBuyStore, orders OrderStore, snapshots SnapshotProvider) *GroupBuyOrderStrategy {
	return &GroupBuyOrderStrategy{
		groupbuys: groupbuys,
		orders:    orders,
		snapshots: snapshots,
		now:       time.Now,
	}
}

func (s *GroupBuyOrderStrategy) Validate(ctx context.Context, d *OrderDraft) error {
	if err := validateCommon(d); err != nil {
		return err
	}
	if len(d.Items) != 1 {
		return fmt.Errorf("%w: 团购订单只允许一个商品", ErrNotPurchasable)
	}
	if d.GroupBuyID <= 0 {
		return fmt.Errorf("%w: 缺少团购活动", ErrNotPurchasable)
	}

	activity, err := s.groupbuys.FindByID(ctx, d.GroupBuyID)
	if err != nil {
		return err
	}
	if activity == nil {
		return fmt.Errorf("%w: 团购 %d 不存在", ErrNotPurchasable, d.GroupBuyID)
	}
	if !activity.CanPurchase(s.now()) {
		return fmt.Errorf("%w: 团购 %d", ErrNotPurchasable, activity.ID)
	}

	item := d.Items[0]
	if item.SkuID != activity.SkuID {
		return fmt.Errorf("%w: sku %d 不属于该团购", ErrSnapshotUnavailable, item.SkuID)
	}

	purchased, err := s.groupbuys.CountMemberQuantity(ctx, activity.ID, d.MemberID)
	if err != nil {
		return err
	}
	if activity.MaxPerMember > 0 && purchased+item.Quantity > activity.MaxPerMember {
		return fmt.Errorf("%w: 每人限购 %d 件，已购 %d", ErrPurchaseLimit, activity.MaxPerMember, purchased)
	}

	// 空团号表示开新团，否则校验跟的团存在且未满
	groupNo := d.GroupNo
	if groupNo == "" {
		groupNo = uuid.NewString()
	} else {
		members, err := s.groupbuys.CountGroupMembers(ctx, groupNo)
		if err != nil {
			return err
		}
		if members == 0 {
			return fmt.Errorf("%w: 团 %s 不存在", ErrGroupUnavailable, groupNo)
		}
		if activity.GroupSize > 0 && members >= int64(activity.GroupSize) {
			return fmt.Errorf("%w: 团 %s 已满员", ErrGroupUnavailable, groupNo)
		}
	}

	d.GroupBuy = &GroupBuyContext{Activity: activity, GroupNo: groupNo}
	return nil
}

func (s *GroupBuyOrderStrategy) BuildDraft(ctx context.Context, d *OrderDraft) error {
	activity := d.GroupBuy.Activity
	if err := attachSnapshots(ctx, s.snapshots, d, func(*DraftItem) int64 {
		return activity.GroupPrice
	}); err != nil {
		return err
	}
	if activity.WarnStock > 0 {
		d.Items[0].Snapshot.WarnStock = activity.WarnStock
	}
	return nil
}

func (s *GroupBuyOrderStrategy) ApplyCoupon(ctx context.Context, d *OrderDraft) error {
	if len(d.CouponIDs) > 0 {
		return ErrCouponNotSupported
	}
	return nil
}

func (s *GroupBuyOrderStrategy) AdjustPrice(ctx context.Context, d *OrderDraft) error {
	d.recalcAmounts()
	return nil
}

func (s *GroupBuyOrderStrategy) PostCreate(ctx context.Context, d *OrderDraft, order *model.Order) error {
	gctx := d.GroupBuy
	item := d.Items[0]
	record := &model.GroupBuyOrder{
		OrderID:    order.ID,
		ActivityID: gctx.Activity.ID,
		MemberID:   d.MemberID,
		GroupNo:    gctx.GroupNo,
		Quantity:   item.Quantity,
	}
	if err := s.orders.CreateGroupBuyOrder(ctx, record); err != nil {
		return err
	}
	return s.groupbuys.IncrementSold(ctx, gctx.Activity.ID, item.Quantity)
}

func (s *GroupBuyOrderStrategy) ScopeKey(d *OrderDraft) string {
	return utils.GroupBuyScope(d.GroupBuy.Activity.ID)
}
