package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"flashmall-backend/internal/model"
	"flashmall-backend/internal/queue"
	"flashmall-backend/internal/repository"
	"flashmall-backend/internal/stock"
)

// 内存版协作方，只实现测试路径需要的行为

type fakeSessionStore struct {
	mu        sync.Mutex
	sessions  map[int64]*model.SeckillSession
	purchased map[int64]int64 // memberID -> 已购数量
	saveErr   error
}

func newFakeSessionStore(sessions ...*model.SeckillSession) *fakeSessionStore {
	s := &fakeSessionStore{
		sessions:  make(map[int64]*model.SeckillSession),
		purchased: make(map[int64]int64),
	}
	for _, session := range sessions {
		s.sessions[session.ID] = session
	}
	return s
}

func (s *fakeSessionStore) Create(ctx context.Context, session *model.SeckillSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.ID == 0 {
		session.ID = int64(len(s.sessions) + 1)
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *fakeSessionStore) FindByID(ctx context.Context, id int64) (*model.SeckillSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id], nil
}

func (s *fakeSessionStore) Save(ctx context.Context, session *model.SeckillSession) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session.Version++
	s.sessions[session.ID] = session
	return nil
}

func (s *fakeSessionStore) FindDueToStart(ctx context.Context, now time.Time) ([]*model.SeckillSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.SeckillSession
	for _, session := range s.sessions {
		if session.Status == model.StatusPending && session.IsEnabled && !session.StartTime.After(now) {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *fakeSessionStore) FindDueToEnd(ctx context.Context, now time.Time) ([]*model.SeckillSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.SeckillSession
	for _, session := range s.sessions {
		if (session.Status == model.StatusActive || session.Status == model.StatusSoldOut) && !session.EndTime.After(now) {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *fakeSessionStore) FindStartingWithin(ctx context.Context, now time.Time, window time.Duration) ([]*model.SeckillSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.SeckillSession
	edge := now.Add(window)
	for _, session := range s.sessions {
		if session.Status == model.StatusPending && session.IsEnabled &&
			session.StartTime.After(now) && !session.StartTime.After(edge) {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *fakeSessionStore) FindByActivity(ctx context.Context, activityID int64) ([]*model.SeckillSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.SeckillSession
	for _, session := range s.sessions {
		if session.ActivityID == activityID {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *fakeSessionStore) IncrementSold(ctx context.Context, sessionID, quantity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return errors.New("session not found")
	}
	return session.Sell(quantity)
}

func (s *fakeSessionStore) CountMemberQuantity(ctx context.Context, sessionID, memberID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purchased[memberID], nil
}

type fakeActivityStore struct {
	mu         sync.Mutex
	activities map[int64]*model.SeckillActivity
	refreshed  []int64
}

func newFakeActivityStore(activities ...*model.SeckillActivity) *fakeActivityStore {
	s := &fakeActivityStore{activities: make(map[int64]*model.SeckillActivity)}
	for _, a := range activities {
		s.activities[a.ID] = a
	}
	return s
}

func (s *fakeActivityStore) Create(ctx context.Context, a *model.SeckillActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = int64(len(s.activities) + 1)
	}
	s.activities[a.ID] = a
	return nil
}

func (s *fakeActivityStore) FindByID(ctx context.Context, id int64) (*model.SeckillActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activities[id], nil
}

func (s *fakeActivityStore) Save(ctx context.Context, a *model.SeckillActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Version++
	s.activities[a.ID] = a
	return nil
}

func (s *fakeActivityStore) FindReconcilable(ctx context.Context) ([]*model.SeckillActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.SeckillActivity
	for _, a := range s.activities {
		if !a.Status.IsTerminal() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeActivityStore) RefreshStats(ctx context.Context, activityID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshed = append(s.refreshed, activityID)
	return nil
}

type fakeProductStore struct {
	mu       sync.Mutex
	products map[int64]*model.SeckillProduct
}

func newFakeProductStore(products ...*model.SeckillProduct) *fakeProductStore {
	s := &fakeProductStore{products: make(map[int64]*model.SeckillProduct)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *fakeProductStore) Create(ctx context.Context, p *model.SeckillProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = int64(len(s.products) + 1)
	}
	s.products[p.ID] = p
	return nil
}

func (s *fakeProductStore) FindByID(ctx context.Context, id int64) (*model.SeckillProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id], nil
}

func (s *fakeProductStore) FindBySessionAndSku(ctx context.Context, sessionID, skuID int64) (*model.SeckillProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.SessionID == sessionID && p.SkuID == skuID {
			return p, nil
		}
	}
	return nil, nil
}

func (s *fakeProductStore) ListBySession(ctx context.Context, sessionID int64) ([]*model.SeckillProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.SeckillProduct
	for _, p := range s.products {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeProductStore) StockCounts(ctx context.Context, sessionID int64) (map[int64]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[int64]int64)
	for _, p := range s.products {
		if p.SessionID == sessionID {
			counts[p.SkuID] = p.Stock - p.SoldCount
		}
	}
	return counts, nil
}

func (s *fakeProductStore) IncrementSold(ctx context.Context, productID, quantity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return errors.New("product not found")
	}
	p.SoldCount += quantity
	return nil
}

func (s *fakeProductStore) UpdatePrice(ctx context.Context, productID, price int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return errors.New("product not found")
	}
	if p.PriceLocked() {
		return repository.ErrPriceLocked
	}
	p.SeckillPrice = price
	return nil
}

type fakeGroupBuyStore struct {
	mu           sync.Mutex
	activities   map[int64]*model.GroupBuyActivity
	groupMembers map[string]int64
	purchased    map[int64]int64
	records      []*model.GroupBuyOrder
}

func newFakeGroupBuyStore(activities ...*model.GroupBuyActivity) *fakeGroupBuyStore {
	s := &fakeGroupBuyStore{
		activities:   make(map[int64]*model.GroupBuyActivity),
		groupMembers: make(map[string]int64),
		purchased:    make(map[int64]int64),
	}
	for _, g := range activities {
		s.activities[g.ID] = g
	}
	return s
}

func (s *fakeGroupBuyStore) Create(ctx context.Context, g *model.GroupBuyActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == 0 {
		g.ID = int64(len(s.activities) + 1)
	}
	s.activities[g.ID] = g
	return nil
}

func (s *fakeGroupBuyStore) FindByID(ctx context.Context, id int64) (*model.GroupBuyActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activities[id], nil
}

func (s *fakeGroupBuyStore) Save(ctx context.Context, g *model.GroupBuyActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.Version++
	s.activities[g.ID] = g
	return nil
}

func (s *fakeGroupBuyStore) FindDueToStart(ctx context.Context, now time.Time) ([]*model.GroupBuyActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.GroupBuyActivity
	for _, g := range s.activities {
		if g.Status == model.StatusPending && g.IsEnabled && !g.StartTime.After(now) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *fakeGroupBuyStore) FindDueToEnd(ctx context.Context, now time.Time) ([]*model.GroupBuyActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.GroupBuyActivity
	for _, g := range s.activities {
		if (g.Status == model.StatusActive || g.Status == model.StatusSoldOut) && !g.EndTime.After(now) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *fakeGroupBuyStore) FindStartingWithin(ctx context.Context, now time.Time, window time.Duration) ([]*model.GroupBuyActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.GroupBuyActivity
	edge := now.Add(window)
	for _, g := range s.activities {
		if g.Status == model.StatusPending && g.IsEnabled && g.StartTime.After(now) && !g.StartTime.After(edge) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *fakeGroupBuyStore) IncrementSold(ctx context.Context, activityID, quantity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.activities[activityID]
	if !ok {
		return errors.New("groupbuy not found")
	}
	return g.Sell(quantity)
}

func (s *fakeGroupBuyStore) CountMemberQuantity(ctx context.Context, activityID, memberID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purchased[memberID], nil
}

func (s *fakeGroupBuyStore) CountGroupMembers(ctx context.Context, groupNo string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupMembers[groupNo], nil
}

type fakeOrderStore struct {
	mu             sync.Mutex
	orders         []*model.Order
	seckillOrders  []*model.SeckillOrder
	groupbuyOrders []*model.GroupBuyOrder
	createErr      error
}

func (s *fakeOrderStore) CreateOrder(ctx context.Context, order *model.Order) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, order)
	return nil
}

func (s *fakeOrderStore) FindByTradeNo(ctx context.Context, tradeNo string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.TradeNo == tradeNo {
			return o, nil
		}
	}
	return nil, nil
}

func (s *fakeOrderStore) CreateSeckillOrder(ctx context.Context, so *model.SeckillOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seckillOrders = append(s.seckillOrders, so)
	return nil
}

func (s *fakeOrderStore) CreateGroupBuyOrder(ctx context.Context, record *model.GroupBuyOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupbuyOrders = append(s.groupbuyOrders, record)
	return nil
}

type fakeCouponStore struct {
	mu     sync.Mutex
	grants map[int64]*model.CouponUser
	used   [][]int64
}

func (s *fakeCouponStore) FindUnusedGrants(ctx context.Context, memberID int64, couponIDs []int64) (map[int64]*model.CouponUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]*model.CouponUser)
	for _, id := range couponIDs {
		if g, ok := s.grants[id]; ok && !g.Used && g.MemberID == memberID {
			out[id] = g
		}
	}
	return out, nil
}

func (s *fakeCouponStore) MarkUsed(ctx context.Context, grantIDs []int64, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used = append(s.used, grantIDs)
	return nil
}

type fakeSnapshotProvider struct {
	snapshots map[int64]*SkuSnapshot
}

func (p *fakeSnapshotProvider) GetSkuSnapshots(ctx context.Context, skuIDs []int64) (map[int64]*SkuSnapshot, error) {
	out := make(map[int64]*SkuSnapshot)
	for _, id := range skuIDs {
		if snap, ok := p.snapshots[id]; ok {
			out[id] = snap
		}
	}
	return out, nil
}

// fakeLedger 内存账本，语义对齐真实引擎：整批成功或整批拒绝，回滚恰好一次
type fakeLedger struct {
	mu         sync.Mutex
	counts     map[string]map[int64]int64
	rolledBack map[string]bool
	tokenSeq   int64
	warmCalls  int
	evicted    []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		counts:     make(map[string]map[int64]int64),
		rolledBack: make(map[string]bool),
	}
}

func (l *fakeLedger) Reserve(ctx context.Context, scope string, items []stock.Item) (*stock.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ledger, ok := l.counts[scope]
	if !ok {
		return nil, ErrInsufficientStock
	}
	// 与真实引擎一致：同一SKU的多行先合并，按整批总量检查
	totals := make(map[int64]int64, len(items))
	for _, it := range items {
		totals[it.SkuID] += it.Quantity
	}
	for skuID, qty := range totals {
		if ledger[skuID] < qty {
			return nil, ErrInsufficientStock
		}
	}
	for skuID, qty := range totals {
		ledger[skuID] -= qty
	}
	l.tokenSeq++
	token := fmt.Sprintf("res-%d", l.tokenSeq)
	return &stock.Reservation{Scope: scope, Token: token, Items: items}, nil
}

func (l *fakeLedger) Rollback(ctx context.Context, r *stock.Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rolledBack[r.Token] {
		return stock.ErrDuplicateRollback
	}
	l.rolledBack[r.Token] = true
	ledger := l.counts[r.Scope]
	for _, it := range r.Items {
		ledger[it.SkuID] += it.Quantity
	}
	return nil
}

func (l *fakeLedger) Warm(ctx context.Context, scope string, counts map[int64]int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warmCalls++
	ledger, ok := l.counts[scope]
	if !ok {
		ledger = make(map[int64]int64)
		l.counts[scope] = ledger
	}
	for skuID, qty := range counts {
		if _, exists := ledger[skuID]; !exists {
			ledger[skuID] = qty
		}
	}
	return nil
}

func (l *fakeLedger) Evict(ctx context.Context, scope string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counts, scope)
	l.evicted = append(l.evicted, scope)
	return nil
}

func (l *fakeLedger) remaining(scope string, skuID int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[scope][skuID]
}

type fakeIDGen struct {
	mu   sync.Mutex
	next int64
}

func (g *fakeIDGen) NextId(ctx context.Context, keyPrefix string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return g.next, nil
}

// fakeJobQueue 记录入队任务；PopDue 一次性吐出全部
type fakeJobQueue struct {
	mu   sync.Mutex
	jobs []queue.Job
}

func (q *fakeJobQueue) Push(ctx context.Context, job queue.Job, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.FireAt = time.Now().Add(delay).Unix()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeJobQueue) PopDue(ctx context.Context, limit int) ([]queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.jobs
	q.jobs = nil
	return out, nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]string
	busy bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (f *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration, maxRetries int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return "", ErrLockBusy
	}
	token := "t-" + key
	f.held[key] = token
	return token, nil
}

func (f *fakeLocker) Release(ctx context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	return nil
}
