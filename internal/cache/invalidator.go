package cache

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/moiledger/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	scanBatch             = 200
	defaultInvalidateWait = 2 * time.Second
)

// Invalidator drops cached entries whose keys match glob patterns.
type Invalidator interface {
	Invalidate(ctx context.Context, patterns ...string) error
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context, ...string) error { return nil }

// NewNoopInvalidator is used when redis is not configured.
func NewNoopInvalidator() Invalidator { return noopInvalidator{} }

type redisInvalidator struct {
	client *redis.Client
}

// NewInvalidator picks the redis implementation when a client is available.
func NewInvalidator(client *redis.Client) Invalidator {
	if client == nil {
		return NewNoopInvalidator()
	}
	return &redisInvalidator{client: client}
}

func (r *redisInvalidator) Invalidate(ctx context.Context, patterns ...string) error {
	var errs []error
	for _, pattern := range patterns {
		if err := r.invalidatePattern(ctx, pattern); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *redisInvalidator) invalidatePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.client.Unlink(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Quiet wraps an Invalidator so failures are logged and never returned.
type Quiet struct {
	inv     Invalidator
	log     *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

func NewQuiet(inv Invalidator, log *zap.Logger, m *metrics.Metrics) *Quiet {
	if inv == nil {
		inv = NewNoopInvalidator()
	}
	return &Quiet{
		inv:     inv,
		log:     log.Named("cache.invalidator"),
		metrics: m,
		timeout: defaultInvalidateWait,
	}
}

// Invalidate runs with a bounded timeout detached from ctx cancellation.
func (q *Quiet) Invalidate(ctx context.Context, patterns ...string) {
	if q == nil || len(patterns) == 0 {
		return
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.timeout)
	defer cancel()

	if err := q.inv.Invalidate(runCtx, patterns...); err != nil {
		q.metrics.RecordCacheInvalidation(ctx, "failed")
		q.log.Warn("cache invalidation failed", zap.Strings("patterns", patterns), zap.Error(err))
		return
	}
	q.metrics.RecordCacheInvalidation(ctx, "ok")
}
