package model

import "time"

// Sku mirrors tb_sku，商品目录的最小售卖单元
type Sku struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ProductID  int64     `gorm:"column:product_id" json:"productId"`
	Title      string    `gorm:"column:title" json:"title"`
	Image      string    `gorm:"column:image" json:"image"`
	Price      int64     `gorm:"column:price" json:"price"`
	Stock      int64     `gorm:"column:stock" json:"stock"`
	WarnStock  int64     `gorm:"column:warn_stock" json:"warnStock"`
	Status     int       `gorm:"column:status" json:"status"` // 1上架 0下架
	CreateTime time.Time `gorm:"column:create_time;autoCreateTime" json:"createTime"`
	UpdateTime time.Time `gorm:"column:update_time;autoUpdateTime" json:"updateTime"`
}

func (Sku) TableName() string { return "tb_sku" }
