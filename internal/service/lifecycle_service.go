package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"flashmall-backend/internal/config"
	"flashmall-backend/internal/model"
	"flashmall-backend/internal/queue"
	"flashmall-backend/internal/repository"
	"flashmall-backend/internal/utils"
)

// DelayQueuePopper 巡检侧消费延迟任务的接口
type DelayQueuePopper interface {
	JobQueue
	PopDue(ctx context.Context, limit int) ([]queue.Job, error)
}

// LifecycleService 活动/场次生命周期调度
// 两套机制协同：固定间隔的巡检是正确性兜底，延迟任务负责把
// 状态切换压到时间边界上；二者共用同一组带守卫的状态迁移，天然幂等
type LifecycleService struct {
	sessions   SessionStore
	products   ProductStore
	activities ActivityStore
	groupbuys  GroupBuyStore
	ledger     Ledger
	queue      DelayQueuePopper
	rdb        *redis.Client // 调度去重标记，可为空
	cfg        config.SchedulerConfig
	log        *zap.Logger
	now        func() time.Time
}

func NewLifecycleService(
	sessions SessionStore,
	products ProductStore,
	activities ActivityStore,
	groupbuys GroupBuyStore,
	ledger Ledger,
	jobQueue DelayQueuePopper,
	rdb *redis.Client,
	cfg config.SchedulerConfig,
	log *zap.Logger,
) *LifecycleService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LifecycleService{
		sessions:   sessions,
		products:   products,
		activities: activities,
		groupbuys:  groupbuys,
		ledger:     ledger,
		queue:      jobQueue,
		rdb:        rdb,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// Run 阻塞运行巡检与延迟队列轮询，直到 ctx 取消
// 场次对时与活动级聚合推导各走各的节拍，活动推导的周期可以放得更宽
func (s *LifecycleService) Run(ctx context.Context) {
	sweep := time.NewTicker(s.cfg.SessionSweepInterval)
	reconcile := time.NewTicker(s.cfg.ActivitySweepInterval)
	poll := time.NewTicker(s.cfg.QueuePollInterval)
	defer sweep.Stop()
	defer reconcile.Stop()
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			if err := s.sweepSessions(ctx); err != nil {
				s.log.Error("lifecycle sweep failed", zap.Error(err))
			}
		case <-reconcile.C:
			if err := s.reconcileActivities(ctx); err != nil {
				s.log.Error("reconcile activities failed", zap.Error(err))
			}
		case <-poll.C:
			s.drainDueJobs(ctx)
		}
	}
}

// SweepOnce 完整的单次巡检：场次级对时 → 活动级聚合推导 → 预排即将开始的任务
// 即使所有延迟任务丢失，巡检也必须能把系统收敛到正确状态
func (s *LifecycleService) SweepOnce(ctx context.Context) error {
	if err := s.sweepSessions(ctx); err != nil {
		return err
	}
	return s.reconcileActivities(ctx)
}

// sweepSessions 场次/团购的对时巡检
func (s *LifecycleService) sweepSessions(ctx context.Context) error {
	now := s.now()

	due, err := s.sessions.FindDueToStart(ctx, now)
	if err != nil {
		return fmt.Errorf("find sessions due to start: %w", err)
	}
	for _, session := range due {
		// 单个实体失败只记日志，不中断整轮巡检
		if err := s.activateSession(ctx, session); err != nil {
			s.log.Error("activate session failed", zap.Int64("sessionId", session.ID), zap.Error(err))
		}
	}

	over, err := s.sessions.FindDueToEnd(ctx, now)
	if err != nil {
		return fmt.Errorf("find sessions due to end: %w", err)
	}
	for _, session := range over {
		if err := s.endSession(ctx, session); err != nil {
			s.log.Error("end session failed", zap.Int64("sessionId", session.ID), zap.Error(err))
		}
	}

	s.sweepGroupBuys(ctx, now)
	s.scheduleUpcoming(ctx, now)
	return nil
}

// activateSession 激活时顺带用权威库存预热该场次的账本范围
func (s *LifecycleService) activateSession(ctx context.Context, session *model.SeckillSession) error {
	if err := session.Start(); err != nil {
		// 已被另一条路径激活或已取消，幂等跳过
		return nil
	}
	counts, err := s.products.StockCounts(ctx, session.ID)
	if err != nil {
		return err
	}
	if err := s.ledger.Warm(ctx, utils.SessionScope(session.ID), counts); err != nil {
		return err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			// 其他实例先一步完成了激活
			return nil
		}
		return err
	}
	s.log.Info("session activated", zap.Int64("sessionId", session.ID))
	return nil
}

func (s *LifecycleService) endSession(ctx context.Context, session *model.SeckillSession) error {
	if err := session.End(); err != nil {
		return nil
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil
		}
		return err
	}
	if err := s.ledger.Evict(ctx, utils.SessionScope(session.ID)); err != nil {
		s.log.Warn("evict session ledger failed", zap.Int64("sessionId", session.ID), zap.Error(err))
	}
	s.log.Info("session ended", zap.Int64("sessionId", session.ID))
	return nil
}

// reconcileActivities 活动级状态是场次状态的聚合推导：
// 任一场次进行中 → 活动进行中；全部场次终态 → 活动结束
func (s *LifecycleService) reconcileActivities(ctx context.Context) error {
	activities, err := s.activities.FindReconcilable(ctx)
	if err != nil {
		return err
	}
	for _, activity := range activities {
		sessions, err := s.sessions.FindByActivity(ctx, activity.ID)
		if err != nil {
			s.log.Error("load sessions failed", zap.Int64("activityId", activity.ID), zap.Error(err))
			continue
		}
		if len(sessions) == 0 {
			continue
		}
		anyActive := false
		allTerminal := true
		for _, session := range sessions {
			if session.Status == model.StatusActive || session.Status == model.StatusSoldOut {
				anyActive = true
			}
			if !session.Status.IsTerminal() {
				allTerminal = false
			}
		}

		changed := false
		if anyActive && activity.Status == model.StatusPending {
			if err := activity.Start(); err == nil {
				changed = true
			}
		}
		if allTerminal {
			if err := activity.End(); err == nil {
				changed = true
			}
		}
		if !changed {
			continue
		}
		if err := s.activities.Save(ctx, activity); err != nil && !errors.Is(err, repository.ErrVersionConflict) {
			s.log.Error("save activity failed", zap.Int64("activityId", activity.ID), zap.Error(err))
			continue
		}
		s.log.Info("activity reconciled",
			zap.Int64("activityId", activity.ID),
			zap.String("status", activity.Status.String()))
	}
	return nil
}

func (s *LifecycleService) sweepGroupBuys(ctx context.Context, now time.Time) {
	due, err := s.groupbuys.FindDueToStart(ctx, now)
	if err != nil {
		s.log.Error("find groupbuys due to start failed", zap.Error(err))
	} else {
		for _, g := range due {
			if err := s.activateGroupBuy(ctx, g); err != nil {
				s.log.Error("activate groupbuy failed", zap.Int64("activityId", g.ID), zap.Error(err))
			}
		}
	}

	over, err := s.groupbuys.FindDueToEnd(ctx, now)
	if err != nil {
		s.log.Error("find groupbuys due to end failed", zap.Error(err))
		return
	}
	for _, g := range over {
		if err := s.endGroupBuy(ctx, g); err != nil {
			s.log.Error("end groupbuy failed", zap.Int64("activityId", g.ID), zap.Error(err))
		}
	}
}

func (s *LifecycleService) activateGroupBuy(ctx context.Context, g *model.GroupBuyActivity) error {
	if err := g.Start(); err != nil {
		return nil
	}
	counts := map[int64]int64{g.SkuID: g.TotalQuantity - g.SoldQuantity}
	if err := s.ledger.Warm(ctx, utils.GroupBuyScope(g.ID), counts); err != nil {
		return err
	}
	if err := s.groupbuys.Save(ctx, g); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil
		}
		return err
	}
	s.log.Info("groupbuy activated", zap.Int64("activityId", g.ID))
	return nil
}

func (s *LifecycleService) endGroupBuy(ctx context.Context, g *model.GroupBuyActivity) error {
	if err := g.End(); err != nil {
		return nil
	}
	if err := s.groupbuys.Save(ctx, g); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil
		}
		return err
	}
	if err := s.ledger.Evict(ctx, utils.GroupBuyScope(g.ID)); err != nil {
		s.log.Warn("evict groupbuy ledger failed", zap.Int64("activityId", g.ID), zap.Error(err))
	}
	s.log.Info("groupbuy ended", zap.Int64("activityId", g.ID))
	return nil
}

// scheduleUpcoming 为前瞻窗口内即将开始的场次/团购排精确定时任务
// Redis 标记避免每轮巡检重复入队；丢了标记也只是多投一次，处理方幂等
func (s *LifecycleService) scheduleUpcoming(ctx context.Context, now time.Time) {
	sessions, err := s.sessions.FindStartingWithin(ctx, now, s.cfg.Lookahead)
	if err != nil {
		s.log.Error("find upcoming sessions failed", zap.Error(err))
	} else {
		for _, session := range sessions {
			s.pushActivationJob(ctx, queue.JobActivateSession, session.ID, session.StartTime, now)
		}
	}

	groupbuys, err := s.groupbuys.FindStartingWithin(ctx, now, s.cfg.Lookahead)
	if err != nil {
		s.log.Error("find upcoming groupbuys failed", zap.Error(err))
		return
	}
	for _, g := range groupbuys {
		s.pushActivationJob(ctx, queue.JobActivateGroupBuy, g.ID, g.StartTime, now)
	}
}

func (s *LifecycleService) pushActivationJob(ctx context.Context, jobType string, entityID int64, startTime, now time.Time) {
	if s.rdb != nil {
		marker := fmt.Sprintf("%s%s:%d:%d", utils.JOB_SCHEDULED_KEY, jobType, entityID, startTime.Unix())
		ok, err := s.rdb.SetNX(ctx, marker, "1", s.cfg.Lookahead*2).Result()
		if err != nil {
			s.log.Warn("set schedule marker failed", zap.Error(err))
		} else if !ok {
			return
		}
	}
	job := queue.Job{Type: jobType, EntityID: entityID}
	if err := s.queue.Push(ctx, job, startTime.Sub(now)); err != nil {
		s.log.Error("push activation job failed",
			zap.String("type", jobType), zap.Int64("entityId", entityID), zap.Error(err))
	}
}

// drainDueJobs 消费到期的延迟任务
func (s *LifecycleService) drainDueJobs(ctx context.Context) {
	jobs, err := s.queue.PopDue(ctx, 100)
	if err != nil {
		s.log.Error("pop due jobs failed", zap.Error(err))
		return
	}
	for _, job := range jobs {
		if err := s.HandleJob(ctx, job); err != nil {
			s.log.Error("handle job failed",
				zap.String("type", job.Type), zap.Int64("entityId", job.EntityID), zap.Error(err))
		}
	}
}

// HandleJob 延迟任务与巡检走同一组守卫迁移，重复投递无害
func (s *LifecycleService) HandleJob(ctx context.Context, job queue.Job) error {
	switch job.Type {
	case queue.JobActivateSession:
		session, err := s.sessions.FindByID(ctx, job.EntityID)
		if err != nil || session == nil {
			return err
		}
		return s.activateSession(ctx, session)
	case queue.JobActivateGroupBuy:
		g, err := s.groupbuys.FindByID(ctx, job.EntityID)
		if err != nil || g == nil {
			return err
		}
		return s.activateGroupBuy(ctx, g)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}
