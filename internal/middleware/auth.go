package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"flashmall-backend/internal/dto/result"
	"flashmall-backend/internal/utils"
)

const loginMemberKey = "loginMember"

// LoginMember 登录态中携带的成员信息
type LoginMember struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
}

// LoginMiddleware 从 Authorization 头解析 token，校验 Redis 中的登录态并续期
// 未登录的请求直接放行，由需要登录的接口自行拦截
func LoginMiddleware(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}

		key := utils.LOGIN_USER_KEY + token
		cached, err := rdb.Get(c.Request.Context(), key).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				c.AbortWithStatusJSON(http.StatusInternalServerError, result.Fail("登录态校验失败"))
				return
			}
			c.Next()
			return
		}

		var member LoginMember
		if err := json.Unmarshal([]byte(cached), &member); err != nil {
			c.Next()
			return
		}

		// 活跃用户滑动续期
		_ = rdb.Expire(c.Request.Context(), key, time.Duration(utils.LOGIN_USER_TTL)*time.Second).Err()
		c.Set(loginMemberKey, &member)
		c.Next()
	}
}

// GetLoginMember 从请求上下文取出登录成员
func GetLoginMember(c *gin.Context) (*LoginMember, bool) {
	v, ok := c.Get(loginMemberKey)
	if !ok {
		return nil, false
	}
	member, ok := v.(*LoginMember)
	return member, ok
}

// RequireLogin 需要登录的接口前置拦截
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetLoginMember(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, result.Fail("未登录"))
			return
		}
		c.Next()
	}
}
