package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"flashmall-backend/internal/model"
	"flashmall-backend/internal/utils"
)

func activeSession(id, activityID int64) *model.SeckillSession {
	now := time.Now()
	return &model.SeckillSession{
		ID:            id,
		ActivityID:    activityID,
		StartTime:     now.Add(-time.Hour),
		EndTime:       now.Add(time.Hour),
		TotalQuantity: 10,
		MaxPerMember:  2,
		Status:        model.StatusActive,
		IsEnabled:     true,
	}
}

func seckillFixture(t *testing.T) (*OrderService, *fakeSessionStore, *fakeProductStore, *fakeOrderStore, *fakeLedger) {
	t.Helper()
	session := activeSession(7, 3)
	product := &model.SeckillProduct{
		ID:            11,
		SessionID:     7,
		ProductID:     100,
		SkuID:         1001,
		OriginalPrice: 900,
		SeckillPrice:  500,
		Stock:         10,
		MaxQuantity:   2,
	}
	sessions := newFakeSessionStore(session)
	products := newFakeProductStore(product)
	activities := newFakeActivityStore(&model.SeckillActivity{ID: 3, Status: model.StatusActive, IsEnabled: true})
	orders := &fakeOrderStore{}
	snapshots := &fakeSnapshotProvider{snapshots: map[int64]*SkuSnapshot{
		1001: {SkuID: 1001, ProductID: 100, Title: "限量马克杯", Price: 900, Status: 1},
	}}
	ledger := newFakeLedger()
	if err := ledger.Warm(context.Background(), utils.SessionScope(7), map[int64]int64{1001: 10}); err != nil {
		t.Fatalf("warm ledger: %v", err)
	}

	strategies := map[model.OrderType]OrderStrategy{
		model.OrderTypeSeckill: NewSeckillOrderStrategy(sessions, products, activities, orders, snapshots),
	}
	svc := NewOrderService(strategies, ledger, orders, &fakeIDGen{}, nil, nil, nil, nil, nil, nil, nil)
	return svc, sessions, products, orders, ledger
}

func TestSeckillOrderHappyPath(t *testing.T) {
	svc, sessions, products, orders, ledger := seckillFixture(t)

	draft := &OrderDraft{
		OrderType: model.OrderTypeSeckill,
		MemberID:  42,
		SessionID: 7,
		Items:     []*DraftItem{{SkuID: 1001, Quantity: 2}},
	}
	order, err := svc.Create(context.Background(), draft)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// 活动价覆盖快照价，金额由服务端重算
	if order.PayAmount != 1000 {
		t.Fatalf("pay amount = %d, want 1000", order.PayAmount)
	}
	if order.GoodsAmount != 1000 {
		t.Fatalf("goods amount = %d, want 1000", order.GoodsAmount)
	}
	if len(order.Items) != 1 || order.Items[0].Title != "限量马克杯" {
		t.Fatalf("order items missing snapshot: %+v", order.Items)
	}

	if got := ledger.remaining(utils.SessionScope(7), 1001); got != 8 {
		t.Fatalf("ledger remaining = %d, want 8", got)
	}
	if len(orders.seckillOrders) != 1 || orders.seckillOrders[0].Quantity != 2 {
		t.Fatalf("seckill side record not written: %+v", orders.seckillOrders)
	}
	session, _ := sessions.FindByID(context.Background(), 7)
	if session.SoldQuantity != 2 {
		t.Fatalf("session sold = %d, want 2", session.SoldQuantity)
	}
	product, _ := products.FindByID(context.Background(), 11)
	if product.SoldCount != 2 {
		t.Fatalf("product sold = %d, want 2", product.SoldCount)
	}
}

func TestSeckillInsufficientStock(t *testing.T) {
	svc, _, _, orders, ledger := seckillFixture(t)
	// 只剩1件时要2件，整批拒绝且账本不动
	ledger.counts[utils.SessionScope(7)][1001] = 1

	draft := &OrderDraft{
		OrderType: model.OrderTypeSeckill,
		MemberID:  42,
		SessionID: 7,
		Items:     []*DraftItem{{SkuID: 1001, Quantity: 2}},
	}
	_, err := svc.Create(context.Background(), draft)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	if got := ledger.remaining(utils.SessionScope(7), 1001); got != 1 {
		t.Fatalf("ledger remaining = %d, want 1", got)
	}
	if len(orders.orders) != 0 {
		t.Fatalf("order should not be persisted on stock failure")
	}
}

func TestSeckillPurchaseLimit(t *testing.T) {
	svc, sessions, _, _, _ := seckillFixture(t)
	// 已购1件，限购2件，再要2件必须拒绝
	sessions.purchased[42] = 1

	draft := &OrderDraft{
		OrderType: model.OrderTypeSeckill,
		MemberID:  42,
		SessionID: 7,
		Items:     []*DraftItem{{SkuID: 1001, Quantity: 2}},
	}
	_, err := svc.Create(context.Background(), draft)
	if !errors.Is(err, ErrPurchaseLimit) {
		t.Fatalf("err = %v, want ErrPurchaseLimit", err)
	}
}

func TestSeckillRejectsCoupon(t *testing.T) {
	svc, _, _, _, _ := seckillFixture(t)

	draft := &OrderDraft{
		OrderType: model.OrderTypeSeckill,
		MemberID:  42,
		SessionID: 7,
		Items:     []*DraftItem{{SkuID: 1001, Quantity: 1}},
		CouponIDs: []int64{5},
	}
	_, err := svc.Create(context.Background(), draft)
	if !errors.Is(err, ErrCouponNotSupported) {
		t.Fatalf("err = %v, want ErrCouponNotSupported", err)
	}
}

func TestRollbackOnPersistFailure(t *testing.T) {
	svc, _, _, orders, ledger := seckillFixture(t)
	orders.createErr = errors.New("db down")

	draft := &OrderDraft{
		OrderType: model.OrderTypeSeckill,
		MemberID:  42,
		SessionID: 7,
		Items:     []*DraftItem{{SkuID: 1001, Quantity: 2}},
	}
	_, err := svc.Create(context.Background(), draft)
	if err == nil {
		t.Fatal("expected persist failure")
	}
	// 预占必须被补偿回账本
	if got := ledger.remaining(utils.SessionScope(7), 1001); got != 10 {
		t.Fatalf("ledger remaining = %d, want 10 after rollback", got)
	}
}

func TestGroupBuyJoinFullGroup(t *testing.T) {
	now := time.Now()
	g := &model.GroupBuyActivity{
		ID:            9,
		SkuID:         2001,
		GroupPrice:    800,
		GroupSize:     3,
		StartTime:     now.Add(-time.Hour),
		EndTime:       now.Add(time.Hour),
		TotalQuantity: 50,
		Status:        model.StatusActive,
		IsEnabled:     true,
	}
	groupbuys := newFakeGroupBuyStore(g)
	groupbuys.groupMembers["g-full"] = 3
	orders := &fakeOrderStore{}
	snapshots := &fakeSnapshotProvider{snapshots: map[int64]*SkuSnapshot{
		2001: {SkuID: 2001, ProductID: 200, Title: "拼团纸巾", Price: 1200, Status: 1},
	}}
	ledger := newFakeLedger()
	_ = ledger.Warm(context.Background(), utils.GroupBuyScope(9), map[int64]int64{2001: 50})

	strategies := map[model.OrderType]OrderStrategy{
		model.OrderTypeGroupBuy: NewGroupBuyOrderStrategy(groupbuys, orders, snapshots),
	}
	svc := NewOrderService(strategies, ledger, orders, &fakeIDGen{}, nil, nil, nil, nil, nil, nil, nil)

	draft := &OrderDraft{
		OrderType:  model.OrderTypeGroupBuy,
		MemberID:   42,
		GroupBuyID: 9,
		GroupNo:    "g-full",
		Items:      []*DraftItem{{SkuID: 2001, Quantity: 1}},
	}
	_, err := svc.Create(context.Background(), draft)
	if !errors.Is(err, ErrGroupUnavailable) {
		t.Fatalf("err = %v, want ErrGroupUnavailable", err)
	}

	// 新开团走通
	draft2 := &OrderDraft{
		OrderType:  model.OrderTypeGroupBuy,
		MemberID:   42,
		GroupBuyID: 9,
		Items:      []*DraftItem{{SkuID: 2001, Quantity: 1}},
	}
	order, err := svc.Create(context.Background(), draft2)
	if err != nil {
		t.Fatalf("open new group: %v", err)
	}
	if order.PayAmount != 800 {
		t.Fatalf("pay amount = %d, want group price 800", order.PayAmount)
	}
	if len(orders.groupbuyOrders) != 1 || orders.groupbuyOrders[0].GroupNo == "" {
		t.Fatalf("groupbuy record missing group no: %+v", orders.groupbuyOrders)
	}
}

func TestOrderValidationRejectsMalformedDraft(t *testing.T) {
	snapshots := &fakeSnapshotProvider{snapshots: map[int64]*SkuSnapshot{}}
	strategies := map[model.OrderType]OrderStrategy{
		model.OrderTypeNormal: NewNormalOrderStrategy(snapshots, &fakeCouponStore{}),
	}
	svc := NewOrderService(strategies, newFakeLedger(), &fakeOrderStore{}, &fakeIDGen{}, nil, nil, nil, nil, nil, nil, nil)

	// 空订单和非法商品行是参数错误，不是商品缺失
	_, err := svc.Create(context.Background(), &OrderDraft{
		OrderType: model.OrderTypeNormal,
		MemberID:  42,
	})
	if !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("empty items err = %v, want ErrInvalidOrder", err)
	}

	_, err = svc.Create(context.Background(), &OrderDraft{
		OrderType: model.OrderTypeNormal,
		MemberID:  42,
		Items:     []*DraftItem{{SkuID: 3001, Quantity: 0}},
	})
	if !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("zero quantity err = %v, want ErrInvalidOrder", err)
	}
	if errors.Is(err, ErrSnapshotUnavailable) {
		t.Fatalf("validation error must not read as missing sku: %v", err)
	}
}

func TestNormalOrderCouponMath(t *testing.T) {
	now := time.Now()
	coupons := &fakeCouponStore{grants: map[int64]*model.CouponUser{
		5: {
			ID:       51,
			CouponID: 5,
			MemberID: 42,
			Coupon: model.Coupon{
				ID:        5,
				Type:      model.CouponTypePercent,
				MinSpend:  5000,
				Percent:   85,
				StartTime: now.Add(-time.Hour),
				EndTime:   now.Add(time.Hour),
				Status:    1,
			},
		},
	}}
	snapshots := &fakeSnapshotProvider{snapshots: map[int64]*SkuSnapshot{
		3001: {SkuID: 3001, ProductID: 300, Title: "保温壶", Price: 5000, Status: 1},
	}}
	orders := &fakeOrderStore{}
	ledger := newFakeLedger()
	_ = ledger.Warm(context.Background(), utils.STOCK_SCOPE_CATALOG, map[int64]int64{3001: 100})

	strategies := map[model.OrderType]OrderStrategy{
		model.OrderTypeNormal: NewNormalOrderStrategy(snapshots, coupons),
	}
	svc := NewOrderService(strategies, ledger, orders, &fakeIDGen{}, nil, nil, nil, nil, nil, nil, nil)

	draft := &OrderDraft{
		OrderType: model.OrderTypeNormal,
		MemberID:  42,
		Items:     []*DraftItem{{SkuID: 3001, Quantity: 2}},
		CouponIDs: []int64{5},
	}
	order, err := svc.Create(context.Background(), draft)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// 10000 分的85折：折后 8500，优惠 1500
	if order.CouponAmount != 1500 {
		t.Fatalf("coupon amount = %d, want 1500", order.CouponAmount)
	}
	if order.PayAmount != 8500 {
		t.Fatalf("pay amount = %d, want 8500", order.PayAmount)
	}
	// 成功后核销领取记录
	if len(coupons.used) != 1 || len(coupons.used[0]) != 1 || coupons.used[0][0] != 51 {
		t.Fatalf("grant not marked used: %+v", coupons.used)
	}
}

func TestNormalOrderCouponBelowMinSpend(t *testing.T) {
	now := time.Now()
	coupons := &fakeCouponStore{grants: map[int64]*model.CouponUser{
		5: {
			ID:       51,
			CouponID: 5,
			MemberID: 42,
			Coupon: model.Coupon{
				ID:        5,
				Type:      model.CouponTypeFixed,
				MinSpend:  20000,
				Amount:    300,
				StartTime: now.Add(-time.Hour),
				EndTime:   now.Add(time.Hour),
				Status:    1,
			},
		},
	}}
	snapshots := &fakeSnapshotProvider{snapshots: map[int64]*SkuSnapshot{
		3001: {SkuID: 3001, ProductID: 300, Title: "保温壶", Price: 5000, Status: 1},
	}}
	orders := &fakeOrderStore{}
	ledger := newFakeLedger()
	_ = ledger.Warm(context.Background(), utils.STOCK_SCOPE_CATALOG, map[int64]int64{3001: 100})

	strategies := map[model.OrderType]OrderStrategy{
		model.OrderTypeNormal: NewNormalOrderStrategy(snapshots, coupons),
	}
	svc := NewOrderService(strategies, ledger, orders, &fakeIDGen{}, nil, nil, nil, nil, nil, nil, nil)

	draft := &OrderDraft{
		OrderType: model.OrderTypeNormal,
		MemberID:  42,
		Items:     []*DraftItem{{SkuID: 3001, Quantity: 1}},
		CouponIDs: []int64{5},
	}
	_, err := svc.Create(context.Background(), draft)
	if !errors.Is(err, ErrInvalidCoupon) {
		t.Fatalf("err = %v, want ErrInvalidCoupon", err)
	}
}
