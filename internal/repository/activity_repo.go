package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"flashmall-backend/internal/model"
)

// ActivityRepo 秒杀活动仓储
type ActivityRepo struct {
	db *gorm.DB
}

func NewActivityRepo(db *gorm.DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

func (r *ActivityRepo) Create(ctx context.Context, a *model.SeckillActivity) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *ActivityRepo) FindByID(ctx context.Context, id int64) (*model.SeckillActivity, error) {
	var a model.SeckillActivity
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// Save 带乐观版本校验的保存
func (r *ActivityRepo) Save(ctx context.Context, a *model.SeckillActivity) error {
	res := r.db.WithContext(ctx).Model(&model.SeckillActivity{}).
		Where("id = ? AND version = ?", a.ID, a.Version).
		Updates(map[string]interface{}{
			"status":     a.Status,
			"is_enabled": a.IsEnabled,
			"sold_count": a.SoldCount,
			"version":    a.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	a.Version++
	return nil
}

// FindReconcilable 非终态的活动，供巡检做聚合推导
func (r *ActivityRepo) FindReconcilable(ctx context.Context) ([]*model.SeckillActivity, error) {
	var activities []*model.SeckillActivity
	err := r.db.WithContext(ctx).
		Where("status IN ?", []model.CampaignStatus{model.StatusPending, model.StatusActive, model.StatusSoldOut}).
		Find(&activities).Error
	return activities, err
}

// RefreshStats 以场次销量之和重算活动聚合销量
func (r *ActivityRepo) RefreshStats(ctx context.Context, activityID int64) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE tb_seckill_activity a
		 SET a.sold_count = (SELECT COALESCE(SUM(s.sold_quantity), 0)
		                     FROM tb_seckill_session s WHERE s.activity_id = a.id)
		 WHERE a.id = ?`, activityID).Error
}
