package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrLockBusy 重试耗尽仍未拿到锁，属于瞬时错误，调用方可自行重试
	ErrLockBusy = errors.New("锁竞争失败，请稍后重试")
	// ErrNotHeld 释放时 token 不匹配，锁已过期并被他人持有
	ErrNotHeld = errors.New("锁未被当前持有者持有")
)

// 拿不到锁时的固定退避间隔
const retryBackoff = 50 * time.Millisecond

// releaseScript 校验 token 后删除，防止误删他人在 TTL 过期后重新获取的锁
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0
`)

// Manager 基于 SET NX + 随机 token 的分布式锁
// 只用于多步的非原子路径；单脚本的预占热路径不需要锁
type Manager struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewManager(rdb *redis.Client, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{rdb: rdb, log: log}
}

// Acquire 最多尝试 maxRetries 次，每次之间固定短退避；成功返回持有 token
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration, maxRetries int) (string, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	token := uuid.NewString()
	for i := 0; i < maxRetries; i++ {
		ok, err := m.rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryBackoff):
			}
		}
	}
	return "", ErrLockBusy
}

// AcquireAll 批量加锁；任意一把失败则尽力释放已拿到的锁并整体失败
func (m *Manager) AcquireAll(ctx context.Context, keys []string, ttl time.Duration, maxRetries int) (map[string]string, error) {
	held := make(map[string]string, len(keys))
	for _, key := range keys {
		token, err := m.Acquire(ctx, key, ttl, maxRetries)
		if err != nil {
			for k, t := range held {
				if relErr := m.Release(ctx, k, t); relErr != nil {
					m.log.Warn("release after failed batch acquire", zap.String("key", k), zap.Error(relErr))
				}
			}
			return nil, err
		}
		held[key] = token
	}
	return held, nil
}

// Release 只有 token 匹配才删除锁
func (m *Manager) Release(ctx context.Context, key, token string) error {
	res, err := releaseScript.Run(ctx, m.rdb, []string{key}, token).Int64()
	if err != nil {
		return err
	}
	if res == 0 {
		return ErrNotHeld
	}
	return nil
}
