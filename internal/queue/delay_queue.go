package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 延迟任务类型
const (
	JobActivateSession  = "activate_session"
	JobActivateGroupBuy = "activate_groupbuy"
)

// Job 精确定时的延迟任务，at-least-once 投递，处理方必须幂等
type Job struct {
	Type     string `json:"type"`
	EntityID int64  `json:"entityId"`
	FireAt   int64  `json:"fireAt"` // unix秒，同时保证member唯一
}

// popScript 原子弹出所有到期任务，避免多实例重复消费同一条
var popScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], 0, ARGV[1], 'LIMIT', 0, ARGV[2])
for _, member in ipairs(due) do
    redis.call('ZREM', KEYS[1], member)
end
return due
`)

// DelayQueue 基于 Redis ZSET 的延迟队列，score 为触发时间
type DelayQueue struct {
	rdb *redis.Client
	key string
}

func NewDelayQueue(rdb *redis.Client, key string) *DelayQueue {
	return &DelayQueue{rdb: rdb, key: key}
}

// Push 按延迟秒数入队
func (q *DelayQueue) Push(ctx context.Context, job Job, delay time.Duration) error {
	fireAt := time.Now().Add(delay)
	job.FireAt = fireAt.Unix()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.rdb.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(job.FireAt),
		Member: string(data),
	}).Err()
}

// PopDue 弹出所有已到期的任务，最多 limit 条
func (q *DelayQueue) PopDue(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	now := time.Now().Unix()
	res, err := popScript.Run(ctx, q.rdb, []string{q.key}, now, limit).Result()
	if err != nil {
		return nil, fmt.Errorf("pop due jobs: %w", err)
	}
	raw, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected script reply %T", res)
	}
	jobs := make([]Job, 0, len(raw))
	for _, m := range raw {
		s, ok := m.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected member type %T", m)
		}
		var job Job
		if err := json.Unmarshal([]byte(s), &job); err != nil {
			// 脏数据跳过，不阻塞后面的任务
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
