package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"flashmall-backend/internal/model"
)

// GroupBuyRepo 团购活动仓储
type GroupBuyRepo struct {
	db *gorm.DB
}

func NewGroupBuyRepo(db *gorm.DB) *GroupBuyRepo {
	return &GroupBuyRepo{db: db}
}

func (r *GroupBuyRepo) Create(ctx context.Context, g *model.GroupBuyActivity) error {
	return r.db.WithContext(ctx).Create(g).Error
}

func (r *GroupBuyRepo) FindByID(ctx context.Context, id int64) (*model.GroupBuyActivity, error) {
	var g model.GroupBuyActivity
	if err := r.db.WithContext(ctx).First(&g, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

// Save 带乐观版本校验的保存
func (r *GroupBuyRepo) Save(ctx context.Context, g *model.GroupBuyActivity) error {
	res := r.db.WithContext(ctx).Model(&model.GroupBuyActivity{}).
		Where("id = ? AND version = ?", g.ID, g.Version).
		Updates(map[string]interface{}{
			"status":        g.Status,
			"is_enabled":    g.IsEnabled,
			"sold_quantity": g.SoldQuantity,
			"version":       g.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	g.Version++
	return nil
}

func (r *GroupBuyRepo) FindDueToStart(ctx context.Context, now time.Time) ([]*model.GroupBuyActivity, error) {
	var activities []*model.GroupBuyActivity
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_enabled = ? AND start_time <= ?", model.StatusPending, true, now).
		Find(&activities).Error
	return activities, err
}

func (r *GroupBuyRepo) FindDueToEnd(ctx context.Context, now time.Time) ([]*model.GroupBuyActivity, error) {
	var activities []*model.GroupBuyActivity
	err := r.db.WithContext(ctx).
		Where("status IN ? AND end_time <= ?", []model.CampaignStatus{model.StatusActive, model.StatusSoldOut}, now).
		Find(&activities).Error
	return activities, err
}

func (r *GroupBuyRepo) FindStartingWithin(ctx context.Context, now time.Time, window time.Duration) ([]*model.GroupBuyActivity, error) {
	var activities []*model.GroupBuyActivity
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_enabled = ? AND start_time > ? AND start_time <= ?",
			model.StatusPending, true, now, now.Add(window)).
		Find(&activities).Error
	return activities, err
}

// IncrementSold 原子推进销量，售罄时置为 SoldOut
func (r *GroupBuyRepo) IncrementSold(ctx context.Context, activityID, quantity int64) error {
	res := r.db.WithContext(ctx).Model(&model.GroupBuyActivity{}).
		Where("id = ? AND sold_quantity + ? <= total_quantity", activityID, quantity).
		Updates(map[string]interface{}{
			"sold_quantity": gorm.Expr("sold_quantity + ?", quantity),
			"status": gorm.Expr("IF(sold_quantity + ? >= total_quantity, ?, status)",
				quantity, model.StatusSoldOut),
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrSellExceedsTotal
	}
	return nil
}

// CountMemberQuantity 成员在该团购活动的权威已购数量
func (r *GroupBuyRepo) CountMemberQuantity(ctx context.Context, activityID, memberID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.GroupBuyOrder{}).
		Where("activity_id = ? AND member_id = ?", activityID, memberID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return total, err
}

// CountGroupMembers 团号下已有的成团人数
func (r *GroupBuyRepo) CountGroupMembers(ctx context.Context, groupNo string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.GroupBuyOrder{}).
		Where("group_no = ?", groupNo).
		Count(&count).Error
	return count, err
}
