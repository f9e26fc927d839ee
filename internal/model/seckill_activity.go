package model

import (
	"errors"
	"time"
)

var (
	ErrNotStartable   = errors.New("只有未开始且启用的活动才能开启")
	ErrAlreadyEnded   = errors.New("活动已处于终态，无法再次结束")
	ErrNotCancellable = errors.New("活动已开始售卖，无法取消")
	ErrNotEditable    = errors.New("活动已开始售卖，无法修改")
)

// SeckillActivity mirrors tb_seckill_activity.
type SeckillActivity struct {
	ID         int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title      string         `gorm:"column:title" json:"title"`
	Rules      string         `gorm:"column:rules" json:"rules"`
	Status     CampaignStatus `gorm:"column:status" json:"status"`
	IsEnabled  bool           `gorm:"column:is_enabled" json:"isEnabled"`
	SoldCount  int64          `gorm:"column:sold_count" json:"soldCount"`
	Version    int64          `gorm:"column:version" json:"version"`
	CreateTime time.Time      `gorm:"column:create_time;autoCreateTime" json:"createTime"`
	UpdateTime time.Time      `gorm:"column:update_time;autoUpdateTime" json:"updateTime"`
}

func (SeckillActivity) TableName() string { return "tb_seckill_activity" }

// Start 只允许 未开始+启用 的活动转为进行中
func (a *SeckillActivity) Start() error {
	if a.Status != StatusPending || !a.IsEnabled {
		return ErrNotStartable
	}
	a.Status = StatusActive
	return nil
}

// End 终态与已结束状态拒绝重复结束
func (a *SeckillActivity) End() error {
	if a.Status.IsTerminal() {
		return ErrAlreadyEnded
	}
	a.Status = StatusEnded
	return nil
}

// Cancel 仅在未产生任何销量前允许取消
func (a *SeckillActivity) Cancel() error {
	if !a.CanBeCancelled() {
		return ErrNotCancellable
	}
	a.Status = StatusCancelled
	return nil
}

// ToggleEnabled 活动一旦进入售卖期规则即冻结
func (a *SeckillActivity) ToggleEnabled() error {
	if !a.CanBeEdited() {
		return ErrNotEditable
	}
	a.IsEnabled = !a.IsEnabled
	return nil
}

func (a *SeckillActivity) CanBeEdited() bool {
	return a.Status == StatusPending && a.SoldCount == 0
}

func (a *SeckillActivity) CanBeDeleted() bool {
	return a.CanBeEdited()
}

func (a *SeckillActivity) CanBeCancelled() bool {
	return (a.Status == StatusPending || a.Status == StatusActive) && a.SoldCount == 0
}
