package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/code-100-precent/LingLine/pkg/logger"
	"github.com/code-100-precent/LingLine/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// DefaultRate 默认每个 IP 每分钟 60 次
const DefaultRate = "60-M"

var errRateLimited = errors.New("请求过于频繁，请稍后再试")

// RateLimiter 基于内存存储的按 IP 限流器
type RateLimiter struct {
	rate     limiter.Rate
	instance *limiter.Limiter
}

// NewRateLimiter parses a rate like "60-M" or "5-S".
func NewRateLimiter(formatted string) (*RateLimiter, error) {
	if formatted == "" {
		formatted = DefaultRate
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", formatted, err)
	}
	return &RateLimiter{
		rate:     rate,
		instance: limiter.New(memory.NewStore(), rate),
	}, nil
}

// Rate 当前限流配置
func (rl *RateLimiter) Rate() limiter.Rate {
	return rl.rate
}

// Middleware 限流中间件
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return mgin.NewMiddleware(rl.instance,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			logger.Warn("Rate limit exceeded",
				zap.String("ip", c.ClientIP()),
				zap.String("endpoint", c.Request.URL.Path))
			c.Header("Retry-After", strconv.Itoa(int(rl.rate.Period.Seconds())))
			response.AbortWithStatusJSON(c, http.StatusTooManyRequests, errRateLimited)
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			// store failures must not take the webhook down
			logger.Error("Rate limiter store failed", zap.Error(err))
			c.Next()
		}),
	)
}
