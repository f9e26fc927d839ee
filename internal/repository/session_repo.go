package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"flashmall-backend/internal/model"
)

// SessionRepo 秒杀场次仓储
type SessionRepo struct {
	db *gorm.DB
}

func NewSessionRepo(db *gorm.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Create(ctx context.Context, s *model.SeckillSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SessionRepo) FindByID(ctx context.Context, id int64) (*model.SeckillSession, error) {
	var s model.SeckillSession
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Save 带乐观版本校验的保存；版本不匹配返回 ErrVersionConflict
func (r *SessionRepo) Save(ctx context.Context, s *model.SeckillSession) error {
	res := r.db.WithContext(ctx).Model(&model.SeckillSession{}).
		Where("id = ? AND version = ?", s.ID, s.Version).
		Updates(map[string]interface{}{
			"status":        s.Status,
			"is_enabled":    s.IsEnabled,
			"sold_quantity": s.SoldQuantity,
			"version":       s.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	s.Version++
	return nil
}

// FindDueToStart 已到开始时间但仍未开始的场次（巡检兜底用）
func (r *SessionRepo) FindDueToStart(ctx context.Context, now time.Time) ([]*model.SeckillSession, error) {
	var sessions []*model.SeckillSession
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_enabled = ? AND start_time <= ?", model.StatusPending, true, now).
		Find(&sessions).Error
	return sessions, err
}

// FindDueToEnd 已过结束时间但仍在进行中的场次
func (r *SessionRepo) FindDueToEnd(ctx context.Context, now time.Time) ([]*model.SeckillSession, error) {
	var sessions []*model.SeckillSession
	err := r.db.WithContext(ctx).
		Where("status IN ? AND end_time <= ?", []model.CampaignStatus{model.StatusActive, model.StatusSoldOut}, now).
		Find(&sessions).Error
	return sessions, err
}

// FindStartingWithin 前瞻窗口内即将开始的场次，用于精确定时任务
func (r *SessionRepo) FindStartingWithin(ctx context.Context, now time.Time, window time.Duration) ([]*model.SeckillSession, error) {
	var sessions []*model.SeckillSession
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_enabled = ? AND start_time > ? AND start_time <= ?",
			model.StatusPending, true, now, now.Add(window)).
		Find(&sessions).Error
	return sessions, err
}

// FindByActivity 活动下的全部场次
func (r *SessionRepo) FindByActivity(ctx context.Context, activityID int64) ([]*model.SeckillSession, error) {
	var sessions []*model.SeckillSession
	err := r.db.WithContext(ctx).Where("activity_id = ?", activityID).Find(&sessions).Error
	return sessions, err
}

// IncrementSold 原子推进销量；售罄时顺带把状态置为 SoldOut
// 行级条件保证权威计数永不超过总量
func (r *SessionRepo) IncrementSold(ctx context.Context, sessionID, quantity int64) error {
	res := r.db.WithContext(ctx).Model(&model.SeckillSession{}).
		Where("id = ? AND sold_quantity + ? <= total_quantity", sessionID, quantity).
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

// CountMemberQuantity 成员在该场次的权威已购数量（限购校验以此为准，不信缓存）
func (r *SessionRepo) CountMemberQuantity(ctx context.Context, sessionID, memberID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.SeckillOrder{}).
		Where("session_id = ? AND member_id = ?", sessionID, memberID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return total, err
}
