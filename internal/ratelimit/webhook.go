package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/karoonet/billing/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyWebhookSource = "webhook:netcash:%s"

// WebhookLimiter throttles gateway webhook deliveries per source address.
// A nil limiter is valid and allows everything, matching deployments that
// run without Redis.
type WebhookLimiter struct {
	enabled bool

	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewWebhookLimiter(cfg config.Config) (*WebhookLimiter, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, nil
	}
	if cfg.WebhookRate <= 0 || cfg.WebhookBurst <= 0 {
		return nil, fmt.Errorf("webhook rate limit must be positive, got rate=%v burst=%d", cfg.WebhookRate, cfg.WebhookBurst)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	return &WebhookLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.WebhookRate,
		burst:   cfg.WebhookBurst,
	}, nil
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *WebhookLimiter) Allow(ctx context.Context, source string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyWebhookSource, strings.TrimSpace(source)), l.rate, l.burst)
}
