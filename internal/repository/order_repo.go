package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"flashmall-backend/internal/model"
)

// OrderRepo 订单仓储
type OrderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// CreateOrder 订单主体与明细在同一事务内落库
func (r *OrderRepo) CreateOrder(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := order.Items
		order.Items = nil
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		order.Items = items
		return nil
	})
}

func (r *OrderRepo) FindByTradeNo(ctx context.Context, tradeNo string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Where("trade_no = ?", tradeNo).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// CreateSeckillOrder 秒杀订单侧记录
func (r *OrderRepo) CreateSeckillOrder(ctx context.Context, so *model.SeckillOrder) error {
	return r.db.WithContext(ctx).Create(so).Error
}

// CreateGroupBuyOrder 团购订单侧记录
func (r *OrderRepo) CreateGroupBuyOrder(ctx context.Context, record *model.GroupBuyOrder) error {
	return r.db.WithContext(ctx).Create(record).Error
}
