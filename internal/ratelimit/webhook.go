package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/config"
)

const (
	keyWebhookGateway = "webhook:ingest:%s"
	keyCheckoutLock   = "checkout:lock:%s"
)

// WebhookLimiter throttles gateway webhook deliveries per gateway and
// serializes checkout creation per fee account. A nil limiter (rate
// limiting disabled) allows everything.
type WebhookLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	rate    float64
	burst   int
	lockTTL time.Duration
}

func NewWebhookLimiter(cfg config.Config) (*WebhookLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.WebhookRate <= 0 || limitCfg.WebhookBurst <= 0 {
		return nil, errors.New("webhook rate limit must be positive")
	}
	if limitCfg.LockTTLSec <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	return &WebhookLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		rate:    limitCfg.WebhookRate,
		burst:   limitCfg.WebhookBurst,
		lockTTL: time.Duration(limitCfg.LockTTLSec) * time.Second,
	}, nil
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *WebhookLimiter) AllowGateway(ctx context.Context, gateway string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyWebhookGateway, strings.TrimSpace(gateway)), l.rate, l.burst)
}

func (l *WebhookLimiter) TryLockCheckout(ctx context.Context, accountID string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, fmt.Sprintf(keyCheckoutLock, strings.TrimSpace(accountID)), l.lockTTL)
}

func (l *WebhookLimiter) ReleaseCheckout(ctx context.Context, accountID, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, fmt.Sprintf(keyCheckoutLock, strings.TrimSpace(accountID)), token)
}
