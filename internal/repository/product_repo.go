package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"flashmall-backend/internal/model"
)

// ProductRepo 秒杀商品（场次-SKU关联）仓储
type ProductRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

func (r *ProductRepo) Create(ctx context.Context, p *model.SeckillProduct) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ProductRepo) FindByID(ctx context.Context, id int64) (*model.SeckillProduct, error) {
	var p model.SeckillProduct
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// UpdatePrice 活动价一旦产生成交即冻结，行级条件兜底并发下的价格完整性
func (r *ProductRepo) UpdatePrice(ctx context.Context, productID, price int64) error {
	res := r.db.WithContext(ctx).Model(&model.SeckillProduct{}).
		Where("id = ? AND sold_count = 0", productID).
		Update("seckill_price", price)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPriceLocked
	}
	return nil
}

// FindBySessionAndSku 下单校验时定位场次内的商品行
func (r *ProductRepo) FindBySessionAndSku(ctx context.Context, sessionID, skuID int64) (*model.SeckillProduct, error) {
	var p model.SeckillProduct
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND sku_id = ?", sessionID, skuID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepo) ListBySession(ctx context.Context, sessionID int64) ([]*model.SeckillProduct, error) {
	var products []*model.SeckillProduct
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Find(&products).Error
	return products, err
}

// StockCounts 场次激活时预热账本用的权威库存快照
func (r *ProductRepo) StockCounts(ctx context.Context, sessionID int64) (map[int64]int64, error) {
	products, err := r.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	counts := make(map[int64]int64, len(products))
	for _, p := range products {
		counts[p.SkuID] = p.Stock - p.SoldCount
	}
	return counts, nil
}

// IncrementSold 推进商品级销量镜像
func (r *ProductRepo) IncrementSold(ctx context.Context, productID, quantity int64) error {
	res := r.db.WithContext(ctx).Model(&model.SeckillProduct{}).
		Where("id = ? AND sold_count + ? <= stock", productID, quantity).
		Update("sold_count", gorm.Expr("sold_count + ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrSellExceedsTotal
	}
	return nil
}
