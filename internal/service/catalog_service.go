package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"flashmall-backend/internal/model"
	"flashmall-backend/internal/utils"
)

const snapshotLockRetryDelay = 50 * time.Millisecond // 拿不到互斥锁时的短暂休眠时间，避免热点击穿
const defaultLocalSkuCacheTTL = 30 * time.Second

// CatalogService 商品快照查询，本地缓存 + Redis + 数据库三级读路径
type CatalogService struct {
	skus       SkuStore
	rdb        *redis.Client
	log        *zap.Logger
	localCache *bigcache.BigCache
}

// NewCatalogService 创建 CatalogService 实例
func NewCatalogService(skus SkuStore, rdb *redis.Client, log *zap.Logger) *CatalogService {
	cache := initSkuLocalCache(log)
	return &CatalogService{skus: skus, rdb: rdb, log: log, localCache: cache}
}

// GetSkuSnapshots 批量获取商品快照，任一商品缺失或已下架则整单失败
func (s *CatalogService) GetSkuSnapshots(ctx context.Context, skuIDs []int64) (map[int64]*SkuSnapshot, error) {
	result := make(map[int64]*SkuSnapshot, len(skuIDs))
	for _, id := range skuIDs {
		snap, err := s.getSnapshot(ctx, id)
		if err != nil {
			return nil, err
		}
		if snap == nil || snap.Status != 1 {
			return nil, ErrSnapshotUnavailable
		}
		result[id] = snap
	}
	return result, nil
}

// getSnapshot 单个商品快照 - 使用互斥锁解决缓存击穿问题
func (s *CatalogService) getSnapshot(ctx context.Context, id int64) (*SkuSnapshot, error) {
	key := utils.CACHE_SKU_KEY + strconv.FormatInt(id, 10)
	lockKey := utils.LOCK_SKU_KEY + strconv.FormatInt(id, 10)

	if snap, ok := s.getLocalSnapshot(key); ok {
		return snap, nil
	}

	for {
		// 1.从 Redis 查询商品缓存
		cached, err := s.rdb.Get(ctx, key).Result()
		if err == nil {
			var snap SkuSnapshot
			if unmarshalErr := json.Unmarshal([]byte(cached), &snap); unmarshalErr != nil {
				return nil, unmarshalErr
			}
			s.setLocalSnapshot(key, []byte(cached))
			return &snap, nil
		}
		if !errors.Is(err, redis.Nil) {
			return nil, err
		}

		// 2.缓存未命中，尝试获取互斥锁；若失败则短暂休眠后重试
		locked, lockErr := s.tryLock(ctx, lockKey)
		if lockErr != nil {
			return nil, lockErr
		}
		if !locked {
			time.Sleep(snapshotLockRetryDelay)
			continue
		}
		// DoubleCheck 拿到锁后再次查询缓存，可能其他协程已经把缓存写入了
		cached, err = s.rdb.Get(ctx, key).Result()
		if err == nil {
			var snap SkuSnapshot
			if unmarshalErr := json.Unmarshal([]byte(cached), &snap); unmarshalErr != nil {
				_ = s.unlock(ctx, lockKey)
				return nil, unmarshalErr
			}
			s.setLocalSnapshot(key, []byte(cached))
			_ = s.unlock(ctx, lockKey)
			return &snap, nil
		}
		if !errors.Is(err, redis.Nil) {
			_ = s.unlock(ctx, lockKey)
			return nil, err
		}

		// 3.成功获取锁且缓存仍未构建，查询数据库并回填缓存，最后释放互斥锁
		snap, loadErr := s.loadSnapshotAndCache(ctx, id, key)
		_ = s.unlock(ctx, lockKey)
		return snap, loadErr
	}
}

// loadSnapshotAndCache 查询数据库并将结果写入 Redis，配合互斥锁使用
func (s *CatalogService) loadSnapshotAndCache(ctx context.Context, id int64, key string) (*SkuSnapshot, error) {
	sku, err := s.skus.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sku == nil {
		return nil, nil
	}
	snap := snapshotFromSku(sku)

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, key, data, time.Duration(utils.CACHE_SKU_TTL)*time.Minute).Err(); err != nil {
		return nil, err
	}
	s.setLocalSnapshot(key, data)
	return snap, nil
}

// EvictSku 商品变更后删缓存，下次读取时重建
func (s *CatalogService) EvictSku(ctx context.Context, id int64) error {
	key := utils.CACHE_SKU_KEY + strconv.FormatInt(id, 10)
	s.deleteLocalSnapshot(key)
	return s.rdb.Del(ctx, key).Err()
}

func snapshotFromSku(sku *model.Sku) *SkuSnapshot {
	return &SkuSnapshot{
		SkuID:     sku.ID,
		ProductID: sku.ProductID,
		Title:     sku.Title,
		Image:     sku.Image,
		Price:     sku.Price,
		Status:    sku.Status,
		WarnStock: sku.WarnStock,
	}
}

// tryLock 尝试获取锁
func (s *CatalogService) tryLock(ctx context.Context, key string) (bool, error) {
	// 利用 Redis SETNX 实现简单互斥锁，并设置 TTL 防止死锁
	return s.rdb.SetNX(ctx, key, "1", time.Duration(utils.LOCK_SKU_TTL)*time.Second).Result()
}

// unlock 释放锁
func (s *CatalogService) unlock(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// initSkuLocalCache 初始化本地缓存
func initSkuLocalCache(log *zap.Logger) *bigcache.BigCache {
	ttl := localSkuCacheTTL()
	config := bigcache.DefaultConfig(ttl)
	if ttl > 0 {
		// 清理窗口设为 TTL 的一半，降低过期键清理的抖动
		config.CleanWindow = ttl / 2
	}
	cache, err := bigcache.New(context.Background(), config)
	if err != nil {
		if log != nil {
			log.Warn("init sku local cache failed", zap.Error(err))
		}
		return nil
	}
	return cache
}

// localSkuCacheTTL 获取本地缓存 TTL 支持通过环境变量配置
func localSkuCacheTTL() time.Duration {
	if raw := os.Getenv("SKU_LOCAL_CACHE_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return defaultLocalSkuCacheTTL
}

func (s *CatalogService) getLocalSnapshot(key string) (*SkuSnapshot, bool) {
	if s.localCache == nil {
		return nil, false
	}
	data, err := s.localCache.Get(key)
	if err != nil {
		return nil, false
	}
	var snap SkuSnapshot
	if unmarshalErr := json.Unmarshal(data, &snap); unmarshalErr != nil {
		s.localCache.Delete(key)
		return nil, false
	}
	return &snap, true
}

func (s *CatalogService) setLocalSnapshot(key string, data []byte) {
	if s.localCache == nil || len(data) == 0 {
		return
	}
	_ = s.localCache.Set(key, data)
}

func (s *CatalogService) deleteLocalSnapshot(key string) {
	if s.localCache == nil {
		return
	}
	s.localCache.Delete(key)
}
