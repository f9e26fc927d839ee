package model

import "time"

// 优惠券折扣类型
const (
	CouponTypeFixed   = 0 // 固定金额
	CouponTypePercent = 1 // 按比例折扣
)

// Coupon mirrors tb_coupon，优惠券规则
type Coupon struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title      string    `gorm:"column:title" json:"title"`
	Type       int       `gorm:"column:type" json:"type"`
	MinSpend   int64     `gorm:"column:min_spend" json:"minSpend"`
	Amount     int64     `gorm:"column:amount" json:"amount"`   // 固定金额，分
	Percent    int64     `gorm:"column:percent" json:"percent"` // 折后比例，如85表示折后付85%
	StartTime  time.Time `gorm:"column:start_time" json:"startTime"`
	EndTime    time.Time `gorm:"column:end_time" json:"endTime"`
	Status     int       `gorm:"column:status" json:"status"`
	CreateTime time.Time `gorm:"column:create_time;autoCreateTime" json:"createTime"`
}

func (Coupon) TableName() string { return "tb_coupon" }

// CouponUser mirrors tb_coupon_user，成员名下的领取记录
type CouponUser struct {
	ID         int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CouponID   int64      `gorm:"column:coupon_id" json:"couponId"`
	MemberID   int64      `gorm:"column:member_id" json:"memberId"`
	Used       bool       `gorm:"column:used" json:"used"`
	UsedTime   *time.Time `gorm:"column:used_time" json:"usedTime,omitempty"`
	OrderID    int64      `gorm:"column:order_id" json:"orderId"`
	CreateTime time.Time  `gorm:"column:create_time;autoCreateTime" json:"createTime"`

	Coupon Coupon `gorm:"foreignKey:CouponID" json:"coupon"`
}

func (CouponUser) TableName() string { return "tb_coupon_user" }

// Usable 检查券是否未使用、状态有效且在有效期内
func (cu *CouponUser) Usable(now time.Time) bool {
	if cu.Used {
		return false
	}
	c := cu.Coupon
	return c.Status == 1 && !now.Before(c.StartTime) && !now.After(c.EndTime)
}
