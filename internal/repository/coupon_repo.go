package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"flashmall-backend/internal/model"
)

// CouponRepo 优惠券领取记录仓储
type CouponRepo struct {
	db *gorm.DB
}

func NewCouponRepo(db *gorm.DB) *CouponRepo {
	return &CouponRepo{db: db}
}

// FindUnusedGrants 成员名下指定券的未使用领取记录，附带券规则
func (r *CouponRepo) FindUnusedGrants(ctx context.Context, memberID int64, couponIDs []int64) (map[int64]*model.CouponUser, error) {
	var grants []*model.CouponUser
	err := r.db.WithContext(ctx).
		Preload("Coupon").
		Where("member_id = ? AND coupon_id IN ? AND used = ?", memberID, couponIDs, false).
		Find(&grants).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*model.CouponUser, len(grants))
	for _, g := range grants {
		out[g.CouponID] = g
	}
	return out, nil
}

// MarkUsed 核销领取记录并关联订单
func (r *CouponRepo) MarkUsed(ctx context.Context, grantIDs []int64, orderID int64) error {
	if len(grantIDs) == 0 {
		return nil
	}
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.CouponUser{}).
		Where("id IN ? AND used = ?", grantIDs, false).
		Updates(map[string]interface{}{
			"used":      true,
			"used_time": now,
			"order_id":  orderID,
		}).Error
}

// SkuRepo 商品目录仓储，快照服务的数据库回源
type SkuRepo struct {
	db *gorm.DB
}

func NewSkuRepo(db *gorm.DB) *SkuRepo {
	return &SkuRepo{db: db}
}

func (r *SkuRepo) FindByIDs(ctx context.Context, ids []int64) ([]*model.Sku, error) {
	var skus []*model.Sku
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&skus).Error
	return skus, err
}

// StockCounts 全部在售商品的可售余量，用于普通商品账本预热
func (r *SkuRepo) StockCounts(ctx context.Context) (map[int64]int64, error) {
	var rows []struct {
		ID    int64
		Stock int64
	}
	err := r.db.WithContext(ctx).Model(&model.Sku{}).
		Select("id", "stock").
		Where("status = ?", 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[int64]int64, len(rows))
	for _, row := range rows {
		counts[row.ID] = row.Stock
	}
	return counts, nil
}

// FindByID 未找到时返回 nil 而非错误，由调用方决定语义
func (r *SkuRepo) FindByID(ctx context.Context, id int64) (*model.Sku, error) {
	var sku model.Sku
	if err := r.db.WithContext(ctx).First(&sku, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sku, nil
}
