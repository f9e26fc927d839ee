package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"flashmall-backend/internal/dto/result"
)

// 限流器条目闲置超过该时长后在下一轮清理中删除
const limiterIdleTTL = 3 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// memberLimiters 按成员维度缓存限流器，匿名请求退化为按客户端IP
// 闲置条目周期性剔除，键空间不随成员数无界增长
type memberLimiters struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	r         rate.Limit
	burst     int
	lastSweep time.Time
}

func newMemberLimiters(r rate.Limit, burst int) *memberLimiters {
	return &memberLimiters{
		limiters:  make(map[string]*limiterEntry),
		r:         r,
		burst:     burst,
		lastSweep: time.Now(),
	}
}

func (m *memberLimiters) get(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if now.Sub(m.lastSweep) >= limiterIdleTTL {
		m.sweepLocked(now)
	}
	e, ok := m.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(m.r, m.burst)}
		m.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (m *memberLimiters) sweepLocked(now time.Time) {
	for key, e := range m.limiters {
		if now.Sub(e.lastSeen) >= limiterIdleTTL {
			delete(m.limiters, key)
		}
	}
	m.lastSweep = now
}

// RateLimitMiddleware 下单接口的令牌桶限流，超限返回 429
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiters := newMemberLimiters(rate.Limit(rps), burst)
	return func(c *gin.Context) {
		key := c.ClientIP()
		if member, ok := GetLoginMember(c); ok {
			key = "m:" + strconv.FormatInt(member.ID, 10)
		}
		if !limiters.get(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, result.Fail("请求过于频繁，请稍后再试"))
			return
		}
		c.Next()
	}
}
