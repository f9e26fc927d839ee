package model

import "time"

// OrderType 订单类型判别字段，决定走哪个策略
type OrderType int

const (
	OrderTypeNormal   OrderType = 0
	OrderTypeSeckill  OrderType = 1
	OrderTypeGroupBuy OrderType = 2
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeNormal:
		return "normal"
	case OrderTypeSeckill:
		return "seckill"
	case OrderTypeGroupBuy:
		return "groupbuy"
	default:
		return "unknown"
	}
}

// Order mirrors tb_order，金额一律以分为单位
type Order struct {
	ID             int64     `gorm:"column:id;primaryKey" json:"id"`
	TradeNo        string    `gorm:"column:trade_no" json:"tradeNo"`
	MemberID       int64     `gorm:"column:member_id" json:"memberId"`
	OrderType      OrderType `gorm:"column:order_type" json:"orderType"`
	Status         int       `gorm:"column:status" json:"status"`
	GoodsAmount    int64     `gorm:"column:goods_amount" json:"goodsAmount"`
	DiscountAmount int64     `gorm:"column:discount_amount" json:"discountAmount"`
	CouponAmount   int64     `gorm:"column:coupon_amount" json:"couponAmount"`
	FreightAmount  int64     `gorm:"column:freight_amount" json:"freightAmount"`
	PayAmount      int64     `gorm:"column:pay_amount" json:"payAmount"`
	CreateTime     time.Time `gorm:"column:create_time;autoCreateTime" json:"createTime"`
	UpdateTime     time.Time `gorm:"column:update_time;autoUpdateTime" json:"updateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

func (Order) TableName() string { return "tb_order" }

// OrderItem mirrors tb_order_item，携带下单时刻的商品快照
type OrderItem struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID    int64     `gorm:"column:order_id" json:"orderId"`
	ProductID  int64     `gorm:"column:product_id" json:"productId"`
	SkuID      int64     `gorm:"column:sku_id" json:"skuId"`
	Title      string    `gorm:"column:title" json:"title"`
	Image      string    `gorm:"column:image" json:"image"`
	Price      int64     `gorm:"column:price" json:"price"`
	Quantity   int64     `gorm:"column:quantity" json:"quantity"`
	Total      int64     `gorm:"column:total" json:"total"`
	CreateTime time.Time `gorm:"column:create_time;autoCreateTime" json:"createTime"`
}

func (OrderItem) TableName() string { return "tb_order_item" }

// SeckillOrder mirrors tb_seckill_order，秒杀订单侧记录
// 按成员+场次求和即为权威的已购数量，用于限购校验
type SeckillOrder struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID    int64     `gorm:"column:order_id" json:"orderId"`
	SessionID  int64     `gorm:"column:session_id" json:"sessionId"`
	ProductID  int64     `gorm:"column:product_id" json:"productId"`
	SkuID      int64     `gorm:"column:sku_id" json:"skuId"`
	MemberID   int64     `gorm:"column:member_id" json:"memberId"`
	Quantity   int64     `gorm:"column:quantity" json:"quantity"`
	CreateTime time.Time `gorm:"column:create_time;autoCreateTime" json:"createTime"`
}

func (SeckillOrder) TableName() string { return "tb_seckill_order" }
