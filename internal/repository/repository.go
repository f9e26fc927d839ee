package repository

import "errors"

// ErrVersionConflict 乐观锁冲突：实体在本次读取后被其他路径修改过
var ErrVersionConflict = errors.New("version conflict, entity was modified concurrently")

// ErrPriceLocked 已有成交的活动价不可修改
var ErrPriceLocked = errors.New("price is locked after first sale")
