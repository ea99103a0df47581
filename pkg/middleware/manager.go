package middleware

import (
	"github.com/code-100-precent/LingLine/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Config 中间件配置
type Config struct {
	EnableRateLimit bool   `env:"ENABLE_RATE_LIMIT"`
	RateLimit       string `env:"RATE_LIMIT"`
	WebhookToken    string `env:"WEBHOOK_TOKEN"`
}

// MiddlewareManager 中间件管理器
type MiddlewareManager struct {
	config      Config
	rateLimiter *RateLimiter
}

// NewMiddlewareManager 创建中间件管理器
func NewMiddlewareManager(cfg Config) (*MiddlewareManager, error) {
	mgr := &MiddlewareManager{config: cfg}

	if cfg.EnableRateLimit {
		rl, err := NewRateLimiter(cfg.RateLimit)
		if err != nil {
			return nil, err
		}
		mgr.rateLimiter = rl
		logger.Info("Rate limiter initialized",
			zap.Int64("limit", rl.Rate().Limit),
			zap.Duration("period", rl.Rate().Period))
	}
	return mgr, nil
}

// ApplyWebhookMiddlewares 应用中间件到 webhook 路由组
func (mgr *MiddlewareManager) ApplyWebhookMiddlewares(r *gin.RouterGroup) {
	logger.Info("Applying webhook middlewares",
		zap.Bool("rateLimit", mgr.rateLimiter != nil),
		zap.Bool("auth", mgr.config.WebhookToken != ""))

	// 1. 限流中间件（最先执行）
	if mgr.rateLimiter != nil {
		r.Use(mgr.rateLimiter.Middleware())
	}

	// 2. 鉴权，失败时不产生任何副作用
	r.Use(BearerAuth(mgr.config.WebhookToken))
}

// GetStats 获取中间件配置摘要
func (mgr *MiddlewareManager) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"auth": mgr.config.WebhookToken != "",
	}
	if mgr.rateLimiter != nil {
		stats["rate_limit"] = map[string]interface{}{
			"limit":  mgr.rateLimiter.Rate().Limit,
			"period": mgr.rateLimiter.Rate().Period.String(),
		}
	}
	return stats
}
