package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"flashmall-backend/internal/utils"
)

// 异步下单的进度状态；权威结果以订单表为准，这里只是查询侧通道
const (
	PendingStatusProcessing = "processing"
	PendingStatusCreated    = "created"
	PendingStatusFailed     = "failed"
)

// PendingOrderRecord 以交易号为键的进度记录，TTL 到期自动消失
type PendingOrderRecord struct {
	Status string      `json:"status"`
	Error  string      `json:"error,omitempty"`
	Draft  *OrderDraft `json:"draft,omitempty"`
}

// PendingOrderTracker 挂在 Redis 上的进度跟踪器
type PendingOrderTracker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPendingOrderTracker(rdb *redis.Client) *PendingOrderTracker {
	return &PendingOrderTracker{
		rdb: rdb,
		ttl: time.Duration(utils.PENDING_ORDER_TTL) * time.Minute,
	}
}

func (t *PendingOrderTracker) MarkProcessing(ctx context.Context, tradeNo string, draft *OrderDraft) error {
	return t.set(ctx, tradeNo, PendingOrderRecord{Status: PendingStatusProcessing, Draft: draft})
}

func (t *PendingOrderTracker) MarkCreated(ctx context.Context, tradeNo string) error {
	return t.set(ctx, tradeNo, PendingOrderRecord{Status: PendingStatusCreated})
}

func (t *PendingOrderTracker) MarkFailed(ctx context.Context, tradeNo, reason string) error {
	return t.set(ctx, tradeNo, PendingOrderRecord{Status: PendingStatusFailed, Error: reason})
}

// GetStatus 缺失键按未知状态返回，客户端在 TTL 过期后轮询可以优雅降级
func (t *PendingOrderTracker) GetStatus(ctx context.Context, tradeNo string) (PendingOrderRecord, error) {
	raw, err := t.rdb.Get(ctx, utils.PENDING_ORDER_KEY+tradeNo).Result()
	if errors.Is(err, redis.Nil) {
		return PendingOrderRecord{}, nil
	}
	if err != nil {
		return PendingOrderRecord{}, err
	}
	var record PendingOrderRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return PendingOrderRecord{}, err
	}
	return record, nil
}

func (t *PendingOrderTracker) set(ctx context.Context, tradeNo string, record PendingOrderRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return t.rdb.Set(ctx, utils.PENDING_ORDER_KEY+tradeNo, data, t.ttl).Err()
}
