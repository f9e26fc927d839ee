package model

import (
	"errors"
	"time"
)

var (
	ErrSellExceedsTotal = errors.New("销量不能超过总库存")
	ErrNotSellable      = errors.New("场次当前不可售卖")
)

// SeckillSession mirrors tb_seckill_session.
type SeckillSession struct {
	ID            int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ActivityID    int64          `gorm:"column:activity_id" json:"activityId"`
	Name          string         `gorm:"column:name" json:"name"`
	StartTime     time.Time      `gorm:"column:start_time" json:"startTime"`
	EndTime       time.Time      `gorm:"column:end_time" json:"endTime"`
	TotalQuantity int64          `gorm:"column:total_quantity" json:"totalQuantity"`
	SoldQuantity  int64          `gorm:"column:sold_quantity" json:"soldQuantity"`
	MaxPerMember  int64          `gorm:"column:max_per_member" json:"maxPerMember"`
	Status        CampaignStatus `gorm:"column:status" json:"status"`
	IsEnabled     bool           `gorm:"column:is_enabled" json:"isEnabled"`
	Version       int64          `gorm:"column:version" json:"version"`
	CreateTime    time.Time      `gorm:"column:create_time;autoCreateTime" json:"createTime"`
	UpdateTime    time.Time      `gorm:"column:update_time;autoUpdateTime" json:"updateTime"`
}

func (SeckillSession) TableName() string { return "tb_seckill_session" }

// Start 只允许 未开始+启用 的场次转为进行中
func (s *SeckillSession) Start() error {
	if s.Status != StatusPending || !s.IsEnabled {
		return ErrNotStartable
	}
	s.Status = StatusActive
	return nil
}

// End 终态与已结束状态拒绝重复结束；售罄场次仍可正常收尾
func (s *SeckillSession) End() error {
	if s.Status.IsTerminal() {
		return ErrAlreadyEnded
	}
	s.Status = StatusEnded
	return nil
}

// Cancel 仅在未产生任何销量前允许取消
func (s *SeckillSession) Cancel() error {
	if !s.CanBeCancelled() {
		return ErrNotCancellable
	}
	s.Status = StatusCancelled
	return nil
}

// Sell 推进本地销量镜像，库存清零时场次转为售罄
// 场次售罄不直接结束所属活动：活动级状态由巡检聚合推导
func (s *SeckillSession) Sell(quantity int64) error {
	if s.Status != StatusActive {
		return ErrNotSellable
	}
	if s.SoldQuantity+quantity > s.TotalQuantity {
		return ErrSellExceedsTotal
	}
	s.SoldQuantity += quantity
	if s.SoldQuantity == s.TotalQuantity {
		s.Status = StatusSoldOut
	}
	return nil
}

// WithinWindow 判断时间是否落在场次窗口内
func (s *SeckillSession) WithinWindow(now time.Time) bool {
	return !now.Before(s.StartTime) && !now.After(s.EndTime)
}

// CanPurchase = 启用 ∧ 未售罄 ∧ 窗口内
func (s *SeckillSession) CanPurchase(now time.Time) bool {
	return s.IsEnabled &&
		s.Status == StatusActive &&
		s.SoldQuantity < s.TotalQuantity &&
		s.WithinWindow(now)
}

func (s *SeckillSession) CanBeEdited() bool {
	return s.Status == StatusPending && s.SoldQuantity == 0
}

func (s *SeckillSession) CanBeDeleted() bool {
	return s.CanBeEdited()
}

func (s *SeckillSession) CanBeCancelled() bool {
	return (s.Status == StatusPending || s.Status == StatusActive) && s.SoldQuantity == 0
}
