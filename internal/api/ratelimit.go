package api

import (
	"net/http"

	"github.com/Aaditya473/Alpha-Fitness/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// WebhookLimiter is a single token bucket shared by all webhook deliveries.
// Rejected deliveries get 429 and are retried by the gateway.
type WebhookLimiter struct {
	limiter *rate.Limiter
}

func NewWebhookLimiter(perSecond int) *WebhookLimiter {
	if perSecond <= 0 {
		return &WebhookLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &WebhookLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond)}
}

func (l *WebhookLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.limiter.Allow() {
			util.GetLogger().Warn("Webhook rate limit exceeded", zap.String("ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMITED",
					"message": "too many requests",
				},
			})
			return
		}
		c.Next()
	}
}
