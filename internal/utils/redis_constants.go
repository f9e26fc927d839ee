package utils

import "fmt"

const (
	LOGIN_USER_KEY = "login:token:"
	LOGIN_USER_TTL = 36000

	STOCK_KEY          = "stock:"
	STOCK_ROLLBACK_KEY = "stock:rollback:"
	STOCK_ROLLBACK_TTL = 86400

	CACHE_SKU_KEY = "cache:sku:"
	CACHE_SKU_TTL = 30
	LOCK_SKU_KEY  = "lock:sku:"
	LOCK_SKU_TTL  = 10

	LOCK_ACTIVITY_KEY = "lock:activity:"
	LOCK_GROUPBUY_KEY = "lock:groupbuy:"

	PENDING_ORDER_KEY = "order:pending:"
	PENDING_ORDER_TTL = 15

	DELAY_QUEUE_KEY   = "queue:campaign:delayed"
	JOB_SCHEDULED_KEY = "job:scheduled:"
)

// 库存账本按业务范围分片：普通商品走 catalog，秒杀场次和团购活动各自独立
const STOCK_SCOPE_CATALOG = "catalog"

// SessionScope 秒杀场次的库存范围键
func SessionScope(sessionID int64) string {
	return fmt.Sprintf("session:%d", sessionID)
}

// GroupBuyScope 团购活动的库存范围键
func GroupBuyScope(activityID int64) string {
	return fmt.Sprintf("groupbuy:%d", activityID)
}
