package service

import (
	"errors"

	"flashmall-backend/internal/lock"
	"flashmall-backend/internal/stock"
)

// 下单路径的领域错误。瞬时错误（锁竞争）可由客户端重试，
// 其余均为当前窗口内的永久失败
var (
	ErrInsufficientStock   = stock.ErrInsufficientStock
	ErrLockBusy            = lock.ErrLockBusy
	ErrInvalidOrder        = errors.New("订单参数不合法")
	ErrPurchaseLimit       = errors.New("超出限购数量")
	ErrNotPurchasable      = errors.New("活动不在可购买时段或状态")
	ErrCouponNotSupported  = errors.New("该订单类型不支持使用优惠券")
	ErrInvalidCoupon       = errors.New("优惠券不存在、已使用或不满足使用条件")
	ErrSnapshotUnavailable = errors.New("商品不存在或已下架")
	ErrGroupUnavailable    = errors.New("拼团不存在或已满员")
)

// IsRetryable 区分瞬时错误与永久错误，供客户端与异步重试通道决策
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockBusy)
}

// IsDomainError 判断是否为可直接透出给用户的业务错误
func IsDomainError(err error) bool {
	for _, domain := range []error{
		ErrInsufficientStock,
		ErrLockBusy,
		ErrInvalidOrder,
		ErrPurchaseLimit,
		ErrNotPurchasable,
		ErrCouponNotSupported,
		ErrInvalidCoupon,
		ErrSnapshotUnavailable,
		ErrGroupUnavailable,
	} {
		if errors.Is(err, domain) {
			return true
		}
	}
	return false
}
