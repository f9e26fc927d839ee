package model

import "time"

// SeckillProduct mirrors tb_seckill_product，将场次与 SKU 关联
type SeckillProduct struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SessionID     int64     `gorm:"column:session_id" json:"sessionId"`
	ProductID     int64     `gorm:"column:product_id" json:"productId"`
	SkuID         int64     `gorm:"column:sku_id" json:"skuId"`
	OriginalPrice int64     `gorm:"column:original_price" json:"originalPrice"`
	SeckillPrice  int64     `gorm:"column:seckill_price" json:"seckillPrice"`
	Stock         int64     `gorm:"column:stock" json:"stock"`
	SoldCount     int64     `gorm:"column:sold_count" json:"soldCount"`
	MaxQuantity   int64     `gorm:"column:max_quantity" json:"maxQuantity"`
	WarnStock     int64     `gorm:"column:warn_stock" json:"warnStock"`
	CreateTime    time.Time `gorm:"column:create_time;autoCreateTime" json:"createTime"`
	UpdateTime    time.Time `gorm:"column:update_time;autoUpdateTime" json:"updateTime"`
}

func (SeckillProduct) TableName() string { return "tb_seckill_product" }

// PriceLocked 一旦有成交，活动价不可再修改，保护已预占件的价格完整性
func (p *SeckillProduct) PriceLocked() bool {
	return p.SoldCount > 0
}
