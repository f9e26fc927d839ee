package service

import (
	"flashmall-backend/internal/model"
)

// SkuSnapshot 下单时刻的商品快照，订单从此隔离后续目录变更
type SkuSnapshot struct {
	SkuID     int64  `json:"skuId"`
	ProductID int64  `json:"productId"`
	Title     string `json:"title"`
	Image     string `json:"image"`
	Price     int64  `json:"price"`
	Status    int    `json:"status"`
	WarnStock int64  `json:"warnStock"`
}

// DraftItem 草稿中的单个商品行
type DraftItem struct {
	SkuID    int64 `json:"skuId"`
	Quantity int64 `json:"quantity"`

	// 以下字段由 BuildDraft 填充，单价以快照或活动价为准，绝不信客户端
	ProductID int64        `json:"-"`
	Price     int64        `json:"-"`
	Total     int64        `json:"-"`
	Snapshot  *SkuSnapshot `json:"-"`
}

// SeckillContext 秒杀订单在校验阶段解析出的强类型上下文
type SeckillContext struct {
	Session *model.SeckillSession
	Product *model.SeckillProduct
}

// GroupBuyContext 团购订单的强类型上下文
type GroupBuyContext struct {
	Activity *model.GroupBuyActivity
	GroupNo  string
}

// OrderDraft 策略构建中的内存订单聚合，落库或失败后即丢弃，不跨请求共享
type OrderDraft struct {
	OrderType model.OrderType `json:"orderType"`
	MemberID  int64           `json:"memberId"`
	TradeNo   string          `json:"tradeNo"`
	Items     []*DraftItem    `json:"items"`
	CouponIDs []int64         `json:"couponIds,omitempty"`

	// 请求侧参数，Validate 阶段解析成强类型上下文
	SessionID  int64  `json:"sessionId,omitempty"`
	GroupBuyID int64  `json:"groupBuyId,omitempty"`
	GroupNo    string `json:"groupNo,omitempty"`

	// 金额拆分，全部由服务端重算，单位分
	GoodsAmount    int64 `json:"-"`
	DiscountAmount int64 `json:"-"`
	CouponAmount   int64 `json:"-"`
	FreightAmount  int64 `json:"-"`
	PayAmount      int64 `json:"-"`

	Seckill  *SeckillContext  `json:"-"`
	GroupBuy *GroupBuyContext `json:"-"`

	// ApplyCoupon 解析出的待核销领取记录
	grantIDs []int64
}

// recalcAmounts 由商品行重算金额拆分，覆盖任何客户端提供的合计
func (d *OrderDraft) recalcAmounts() {
	var goods int64
	for _, it := range d.Items {
		it.Total = it.Price * it.Quantity
		goods += it.Total
	}
	d.GoodsAmount = goods
	if d.CouponAmount > goods {
		d.CouponAmount = goods
	}
	d.PayAmount = goods - d.DiscountAmount - d.CouponAmount + d.FreightAmount
	if d.PayAmount < 0 {
		d.PayAmount = 0
	}
}

// buildOrder 将草稿固化为待持久化的订单聚合
func (d *OrderDraft) buildOrder(orderID int64) *model.Order {
	order := &model.Order{
		ID:             orderID,
		TradeNo:        d.TradeNo,
		MemberID:       d.MemberID,
		OrderType:      d.OrderType,
		Status:         0,
		GoodsAmount:    d.GoodsAmount,
		DiscountAmount: d.DiscountAmount,
		CouponAmount:   d.CouponAmount,
		FreightAmount:  d.FreightAmount,
		PayAmount:      d.PayAmount,
	}
	for _, it := range d.Items {
		item := model.OrderItem{
			ProductID: it.ProductID,
			SkuID:     it.SkuID,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Total:     it.Total,
		}
		if it.Snapshot != nil {
			item.Title = it.Snapshot.Title
			item.Image = it.Snapshot.Image
		}
		order.Items = append(order.Items, item)
	}
	return order
}
