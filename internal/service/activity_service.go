package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"flashmall-backend/internal/config"
	"flashmall-backend/internal/model"
	"flashmall-backend/internal/utils"
)

var (
	ErrActivityNotFound = errors.New("活动不存在")
	ErrSessionNotFound  = errors.New("场次不存在")
	ErrInvalidWindow    = errors.New("场次时间窗口不合法")
	ErrInvalidPrice     = errors.New("秒杀价不能高于原价")
)

// ActivityService 活动/场次/团购的后台管理操作
// 所有状态变更先取活动级分布式锁再执行，避免与巡检并发改同一行
type ActivityService struct {
	activities ActivityStore
	sessions   SessionStore
	products   ProductStore
	groupbuys  GroupBuyStore
	ledger     Ledger
	locker     Locker
	lockCfg    config.LockConfig
	log        *zap.Logger
}

func NewActivityService(
	activities ActivityStore,
	sessions SessionStore,
	products ProductStore,
	groupbuys GroupBuyStore,
	ledger Ledger,
	locker Locker,
	lockCfg config.LockConfig,
	log *zap.Logger,
) *ActivityService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ActivityService{
		activities: activities,
		sessions:   sessions,
		products:   products,
		groupbuys:  groupbuys,
		ledger:     ledger,
		locker:     locker,
		lockCfg:    lockCfg,
		log:        log,
	}
}

// CreateActivity 新建活动，初始为未开始状态
func (s *ActivityService) CreateActivity(ctx context.Context, activity *model.SeckillActivity) error {
	activity.Status = model.StatusPending
	activity.Version = 0
	return s.activities.Create(ctx, activity)
}

// CreateSession 在活动下新建场次，父活动必须存在且仍可编辑
func (s *ActivityService) CreateSession(ctx context.Context, session *model.SeckillSession) error {
	if !session.EndTime.After(session.StartTime) {
		return ErrInvalidWindow
	}
	activity, err := s.activities.FindByID(ctx, session.ActivityID)
	if err != nil {
		return err
	}
	if activity == nil {
		return ErrActivityNotFound
	}
	if !activity.CanBeEdited() {
		return model.ErrNotEditable
	}
	session.Status = model.StatusPending
	session.SoldQuantity = 0
	session.Version = 0
	return s.sessions.Create(ctx, session)
}

// AddProduct 向场次添加秒杀商品
func (s *ActivityService) AddProduct(ctx context.Context, product *model.SeckillProduct) error {
	if product.SeckillPrice > product.OriginalPrice {
		return ErrInvalidPrice
	}
	session, err := s.sessions.FindByID(ctx, product.SessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if !session.CanBeEdited() {
		return model.ErrNotEditable
	}
	product.SoldCount = 0
	return s.products.Create(ctx, product)
}

// UpdateProductPrice 改价，已产生销量的商品价格冻结
func (s *ActivityService) UpdateProductPrice(ctx context.Context, productID, price int64) error {
	if price < 0 {
		return ErrInvalidPrice
	}
	return s.products.UpdatePrice(ctx, productID, price)
}

// ToggleActivityEnabled 启用/停用活动，进入售卖期后拒绝
func (s *ActivityService) ToggleActivityEnabled(ctx context.Context, activityID int64) error {
	return s.withActivityLock(ctx, activityID, func() error {
		activity, err := s.activities.FindByID(ctx, activityID)
		if err != nil {
			return err
		}
		if activity == nil {
			return ErrActivityNotFound
		}
		if err := activity.ToggleEnabled(); err != nil {
			return err
		}
		return s.activities.Save(ctx, activity)
	})
}

// CancelActivity 取消活动及其全部未终态场次，场次账本一并清除
// 状态机保证只有零销量的活动能走到这里
func (s *ActivityService) CancelActivity(ctx context.Context, activityID int64) error {
	return s.withActivityLock(ctx, activityID, func() error {
		activity, err := s.activities.FindByID(ctx, activityID)
		if err != nil {
			return err
		}
		if activity == nil {
			return ErrActivityNotFound
		}
		if err := activity.Cancel(); err != nil {
			return err
		}

		sessions, err := s.sessions.FindByActivity(ctx, activityID)
		if err != nil {
			return err
		}
		for _, session := range sessions {
			if err := session.Cancel(); err != nil {
				// 已终态的场次跳过即可
				continue
			}
			if err := s.sessions.Save(ctx, session); err != nil {
				return fmt.Errorf("cancel session %d: %w", session.ID, err)
			}
			if err := s.ledger.Evict(ctx, utils.SessionScope(session.ID)); err != nil {
				s.log.Warn("evict session ledger failed",
					zap.Int64("sessionId", session.ID), zap.Error(err))
			}
		}
		if err := s.activities.Save(ctx, activity); err != nil {
			return err
		}
		s.log.Info("activity cancelled", zap.Int64("activityId", activityID))
		return nil
	})
}

// CreateGroupBuy 新建团购活动
func (s *ActivityService) CreateGroupBuy(ctx context.Context, g *model.GroupBuyActivity) error {
	if !g.EndTime.After(g.StartTime) {
		return ErrInvalidWindow
	}
	g.Status = model.StatusPending
	g.SoldQuantity = 0
	g.Version = 0
	return s.groupbuys.Create(ctx, g)
}

// CancelGroupBuy 取消团购并清除其库存账本
func (s *ActivityService) CancelGroupBuy(ctx context.Context, activityID int64) error {
	key := utils.LOCK_GROUPBUY_KEY + strconv.FormatInt(activityID, 10)
	token, err := s.locker.Acquire(ctx, key, s.lockCfg.TTL, s.lockCfg.MaxRetries)
	if err != nil {
		return err
	}
	defer s.releaseLock(key, token)

	g, err := s.groupbuys.FindByID(ctx, activityID)
	if err != nil {
		return err
	}
	if g == nil {
		return ErrActivityNotFound
	}
	if err := g.Cancel(); err != nil {
		return err
	}
	if err := s.groupbuys.Save(ctx, g); err != nil {
		return err
	}
	if err := s.ledger.Evict(ctx, utils.GroupBuyScope(activityID)); err != nil {
		s.log.Warn("evict groupbuy ledger failed",
			zap.Int64("activityId", activityID), zap.Error(err))
	}
	s.log.Info("groupbuy cancelled", zap.Int64("activityId", activityID))
	return nil
}

// ListSessionProducts 场次商品列表
func (s *ActivityService) ListSessionProducts(ctx context.Context, sessionID int64) ([]*model.SeckillProduct, error) {
	return s.products.ListBySession(ctx, sessionID)
}

func (s *ActivityService) withActivityLock(ctx context.Context, activityID int64, fn func() error) error {
	key := utils.LOCK_ACTIVITY_KEY + strconv.FormatInt(activityID, 10)
	token, err := s.locker.Acquire(ctx, key, s.lockCfg.TTL, s.lockCfg.MaxRetries)
	if err != nil {
		return err
	}
	defer s.releaseLock(key, token)
	return fn()
}

func (s *ActivityService) releaseLock(key, token string) {
	// 释放锁不依赖请求生命周期
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.locker.Release(ctx, key, token); err != nil {
		s.log.Warn("release lock failed", zap.String("key", key), zap.Error(err))
	}
}
