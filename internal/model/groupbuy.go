package model

import "time"

// GroupBuyActivity mirrors tb_groupbuy_activity.
// 团购活动自带时间窗口与库存，相当于活动与场次合一的实例
type GroupBuyActivity struct {
	ID            int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title         string         `gorm:"column:title" json:"title"`
	Rules         string         `gorm:"column:rules" json:"rules"`
	ProductID     int64          `gorm:"column:product_id" json:"productId"`
	SkuID         int64          `gorm:"column:sku_id" json:"skuId"`
	OriginalPrice int64          `gorm:"column:original_price" json:"originalPrice"`
	GroupPrice    int64          `gorm:"column:group_price" json:"groupPrice"`
	GroupSize     int            `gorm:"column:group_size" json:"groupSize"`
	StartTime     time.Time      `gorm:"column:start_time" json:"startTime"`
	EndTime       time.Time      `gorm:"column:end_time" json:"endTime"`
	TotalQuantity int64          `gorm:"column:total_quantity" json:"totalQuantity"`
	SoldQuantity  int64          `gorm:"column:sold_quantity" json:"soldQuantity"`
	MaxPerMember  int64          `gorm:"column:max_per_member" json:"maxPerMember"`
	WarnStock     int64          `gorm:"column:warn_stock" json:"warnStock"`
	Status        CampaignStatus `gorm:"column:status" json:"status"`
	IsEnabled     bool           `gorm:"column:is_enabled" json:"isEnabled"`
	Version       int64          `gorm:"column:version" json:"version"`
	CreateTime    time.Time      `gorm:"column:create_time;autoCreateTime" json:"createTime"`
	UpdateTime    time.Time      `gorm:"column:update_time;autoUpdateTime" json:"updateTime"`
}

func (GroupBuyActivity) TableName() string { return "tb_groupbuy_activity" }

func (g *GroupBuyActivity) Start() error {
	if g.Status != StatusPending || !g.IsEnabled {
		return ErrNotStartable
	}
	g.Status = StatusActive
	return nil
}

func (g *GroupBuyActivity) End() error {
	if g.Status.IsTerminal() {
		return ErrAlreadyEnded
	}
	g.Status = StatusEnded
	return nil
}

func (g *GroupBuyActivity) Cancel() error {
	if !g.CanBeCancelled() {
		return ErrNotCancellable
	}
	g.Status = StatusCancelled
	return nil
}

func (g *GroupBuyActivity) Sell(quantity int64) error {
	if g.Status != StatusActive {
		return ErrNotSellable
	}
	if g.SoldQuantity+quantity > g.TotalQuantity {
		return ErrSellExceedsTotal
	}
	g.SoldQuantity += quantity
	if g.SoldQuantity == g.TotalQuantity {
		g.Status = StatusSoldOut
	}
	return nil
}

func (g *GroupBuyActivity) WithinWindow(now time.Time) bool {
	return !now.Before(g.StartTime) && !now.After(g.EndTime)
}

func (g *GroupBuyActivity) CanPurchase(now time.Time) bool {
	return g.IsEnabled &&
		g.Status == StatusActive &&
		g.SoldQuantity < g.TotalQuantity &&
		g.WithinWindow(now)
}

func (g *GroupBuyActivity) CanBeEdited() bool {
	return g.Status == StatusPending && g.SoldQuantity == 0
}

func (g *GroupBuyActivity) CanBeCancelled() bool {
	return (g.Status == StatusPending || g.Status == StatusActive) && g.SoldQuantity == 0
}

// GroupBuyOrder mirrors tb_groupbuy_order，团购订单侧记录
type GroupBuyOrder struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID    int64     `gorm:"column:order_id" json:"orderId"`
	ActivityID int64     `gorm:"column:activity_id" json:"activityId"`
	MemberID   int64     `gorm:"column:member_id" json:"memberId"`
	GroupNo    string    `gorm:"column:group_no" json:"groupNo"`
	Quantity   int64     `gorm:"column:quantity" json:"quantity"`
	CreateTime time.Time `gorm:"column:create_time;autoCreateTime" json:"createTime"`
}

func (GroupBuyOrder) TableName() string { return "tb_groupbuy_order" }
