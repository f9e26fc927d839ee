package stock

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"flashmall-backend/internal/utils"
)

var (
	// ErrInsufficientStock 预占被拒绝，账本未发生任何变更，可降量重试或直接透出给用户
	ErrInsufficientStock = errors.New("库存不足")
	// ErrDuplicateRollback 同一预占凭证只允许回滚一次
	ErrDuplicateRollback = errors.New("该预占已回滚，拒绝重复回滚")
)

// Item 一次预占中的单个SKU行
type Item struct {
	SkuID     int64
	Quantity  int64
	WarnStock int64 // 低库存告警阈值，0表示不告警
}

// Reservation 预占成功后的凭证，回滚时必须原样携带
type Reservation struct {
	Scope string
	Token string
	Items []Item
}

// Notifier 低库存信号的外部通知方，异步触发，不参与事务
type Notifier interface {
	LowStock(scope string, skuID, remaining int64)
}

// Loader 缓存未命中时从权威存储重建账本
type Loader func(ctx context.Context, scope string) (map[int64]int64, error)

// reserveScript 两阶段的检查+扣减在一次 Lua 执行内完成
// 任意一个SKU不足则整批不扣，避免并发预占之间的 TOCTOU
// 返回 -1 表示账本未预热，-2 表示库存不足，否则返回各SKU扣减后的余量
var reserveScript = redis.NewScript(`
for i = 1, #ARGV, 2 do
    local have = redis.call('HGET', KEYS[1], ARGV[i])
    if not have then
        return -1
    end
    if tonumber(have) < tonumber(ARGV[i + 1]) then
        return -2
    end
end
local remain = {}
for i = 1, #ARGV, 2 do
    remain[#remain + 1] = redis.call('HINCRBY', KEYS[1], ARGV[i], -tonumber(ARGV[i + 1]))
end
return remain
`)

// rollbackScript 凭 token 的 SETNX 墓碑保证回滚至多执行一次
var rollbackScript = redis.NewScript(`
if not redis.call('SET', KEYS[2], '1', 'NX', 'EX', ARGV[1]) then
    return 0
end
for i = 2, #ARGV, 2 do
    redis.call('HINCRBY', KEYS[1], ARGV[i], tonumber(ARGV[i + 1]))
end
return 1
`)

// Engine 库存预占引擎，账本为 Redis Hash：stock:{scope} → skuId→余量
type Engine struct {
	rdb      *redis.Client
	log      *zap.Logger
	notifier Notifier
	loader   Loader
}

func NewEngine(rdb *redis.Client, log *zap.Logger, notifier Notifier, loader Loader) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{rdb: rdb, log: log, notifier: notifier, loader: loader}
}

// Reserve 对一批SKU原子扣减；全部成功才生效，否则返回 ErrInsufficientStock
// 同一SKU出现多行时先按SKU合并数量，脚本的检查阶段必须看到整批总量
func (e *Engine) Reserve(ctx context.Context, scope string, items []Item) (*Reservation, error) {
	if len(items) == 0 {
		return nil, errors.New("empty reservation")
	}
	merged := make([]Item, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("invalid quantity %d for sku %d", it.Quantity, it.SkuID)
		}
		if i, ok := index[it.SkuID]; ok {
			merged[i].Quantity += it.Quantity
			if it.WarnStock > merged[i].WarnStock {
				merged[i].WarnStock = it.WarnStock
			}
			continue
		}
		index[it.SkuID] = len(merged)
		merged = append(merged, it)
	}

	key := utils.STOCK_KEY + scope
	argv := make([]interface{}, 0, len(merged)*2)
	for _, it := range merged {
		argv = append(argv, strconv.FormatInt(it.SkuID, 10), it.Quantity)
	}

	// 账本未预热时从权威存储重建后重试一次
	for attempt := 0; ; attempt++ {
		res, err := reserveScript.Run(ctx, e.rdb, []string{key}, argv...).Result()
		if err != nil {
			return nil, fmt.Errorf("reserve script: %w", err)
		}
		switch v := res.(type) {
		case int64:
			if v == -1 && attempt == 0 && e.loader != nil {
				if err := e.warmFromLoader(ctx, scope); err != nil {
					return nil, err
				}
				continue
			}
			return nil, ErrInsufficientStock
		case []interface{}:
			remain := make([]int64, len(v))
			for i, r := range v {
				n, ok := r.(int64)
				if !ok {
					return nil, fmt.Errorf("unexpected script reply element %T", r)
				}
				remain[i] = n
			}
			reservation := &Reservation{Scope: scope, Token: uuid.NewString(), Items: merged}
			e.checkLowStockAsync(scope, merged, remain)
			return reservation, nil
		default:
			return nil, fmt.Errorf("unexpected script reply %T", res)
		}
	}
}

// Rollback 将预占的数量加回账本；同一凭证的第二次回滚会被墓碑拒绝
func (e *Engine) Rollback(ctx context.Context, r *Reservation) error {
	if r == nil || r.Token == "" {
		return errors.New("nil reservation")
	}
	keys := []string{utils.STOCK_KEY + r.Scope, utils.STOCK_ROLLBACK_KEY + r.Token}
	argv := make([]interface{}, 0, len(r.Items)*2+1)
	argv = append(argv, utils.STOCK_ROLLBACK_TTL)
	for _, it := range r.Items {
		argv = append(argv, strconv.FormatInt(it.SkuID, 10), it.Quantity)
	}
	res, err := rollbackScript.Run(ctx, e.rdb, keys, argv...).Int64()
	if err != nil {
		return fmt.Errorf("rollback script: %w", err)
	}
	if res == 0 {
		return ErrDuplicateRollback
	}
	return nil
}

// Warm 幂等地为某个范围预热账本，已存在的字段不覆盖
func (e *Engine) Warm(ctx context.Context, scope string, counts map[int64]int64) error {
	if len(counts) == 0 {
		return nil
	}
	key := utils.STOCK_KEY + scope
	pipe := e.rdb.Pipeline()
	for skuID, qty := range counts {
		pipe.HSetNX(ctx, key, strconv.FormatInt(skuID, 10), qty)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Evict 场次/活动结束后清掉整个范围的账本
func (e *Engine) Evict(ctx context.Context, scope string) error {
	return e.rdb.Del(ctx, utils.STOCK_KEY+scope).Err()
}

// Remaining 读取某范围当前的全部余量
func (e *Engine) Remaining(ctx context.Context, scope string) (map[int64]int64, error) {
	raw, err := e.rdb.HGetAll(ctx, utils.STOCK_KEY+scope).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[int64]int64, len(raw))
	for field, val := range raw {
		skuID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad ledger field %q: %w", field, err)
		}
		qty, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad ledger value %q: %w", val, err)
		}
		out[skuID] = qty
	}
	return out, nil
}

func (e *Engine) warmFromLoader(ctx context.Context, scope string) error {
	counts, err := e.loader(ctx, scope)
	if err != nil {
		return fmt.Errorf("warm scope %s: %w", scope, err)
	}
	return e.Warm(ctx, scope, counts)
}

// checkLowStockAsync 预占成功后的副作用：余量低于阈值时异步通知
func (e *Engine) checkLowStockAsync(scope string, items []Item, remain []int64) {
	if e.notifier == nil {
		return
	}
	go func() {
		for i, it := range items {
			if it.WarnStock > 0 && remain[i] <= it.WarnStock {
				e.notifier.LowStock(scope, it.SkuID, remain[i])
				e.log.Warn("low stock",
					zap.String("scope", scope),
					zap.Int64("skuId", it.SkuID),
					zap.Int64("remaining", remain[i]))
			}
		}
	}()
}
