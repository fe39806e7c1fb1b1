package cache

import (
	"context"
	"encoding/json"
	"time"

	"evolveai/config"
	"evolveai/constant"
	"evolveai/pkg/tools"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

// Gateway 弹性缓存网关。所有故障都退化为缓存未命中,
// redis 整体不可用时业务继续走数据库,绝不向上抛缓存错误
type Gateway struct {
	client       redis.Cmdable
	breaker      *Breaker
	ttl          time.Duration
	retryCount   int
	retryBackoff time.Duration
}

func NewGateway(client redis.Cmdable) *Gateway {
	cfg := config.GetInstance()
	return NewGatewayWithOptions(client,
		NewBreaker(
			cfg.GetIntOrDefault(config.CacheBreakerFailureThreshold, constant.DefaultBreakerFailures),
			time.Second*time.Duration(cfg.GetIntOrDefault(config.CacheBreakerRecoveryTimeout, constant.DefaultBreakerRecoverySecs)),
		),
		time.Second*time.Duration(cfg.GetIntOrDefault(config.CacheTTLSeconds, constant.DefaultCacheTTLSeconds)),
		cfg.GetIntOrDefault(config.CacheRetryAttempts, constant.DefaultCacheRetryAttempts),
		time.Millisecond*time.Duration(cfg.GetIntOrDefault(config.CacheRetryBackoffMillis, constant.DefaultCacheRetryBackoffMs)),
	)
}

func NewGatewayWithOptions(client redis.Cmdable, breaker *Breaker, ttl time.Duration, retryCount int, retryBackoff time.Duration) *Gateway {
	return &Gateway{
		client:       client,
		breaker:      breaker,
		ttl:          ttl,
		retryCount:   retryCount,
		retryBackoff: retryBackoff,
	}
}

// Get 读缓存并反序列化到 dest。
// 返回值表示是否命中;网络故障、熔断、脏数据一律按未命中处理
func (g *Gateway) Get(ctx context.Context, key string, dest interface{}) bool {
	if err := g.breaker.Allow(); err != nil {
		return false
	}

	var payload string
	err := tools.Retry(ctx, g.retryCount, g.retryBackoff, func() error {
		var innerErr error
		payload, innerErr = g.client.Get(ctx, key).Result()
		if innerErr == redis.Nil {
			// 正常未命中不算故障,不重试
			return nil
		}
		return innerErr
	})
	if err != nil {
		g.breaker.RecordFailure()
		log.Warnf("cache get %s failed, fall back to db: %v", key, err)
		return false
	}
	g.breaker.RecordSuccess()

	if payload == constant.EmptyString {
		return false
	}

	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		// 脏数据:删掉这条记录,当作未命中
		log.Warnf("cache key %s holds corrupt payload, evicting: %v", key, err)
		g.deleteQuiet(ctx, key)
		return false
	}
	return true
}

// Set 写缓存,失败只打日志。
// 序列化在问询熔断器之前完成,本地失败不占用半开状态的探测名额
func (g *Gateway) Set(ctx context.Context, key string, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		log.Warnf("cache set %s marshal failed: %v", key, err)
		return
	}

	if err := g.breaker.Allow(); err != nil {
		return
	}

	err = tools.Retry(ctx, g.retryCount, g.retryBackoff, func() error {
		return g.client.Set(ctx, key, payload, g.ttl).Err()
	})
	if err != nil {
		g.breaker.RecordFailure()
		log.Warnf("cache set %s failed: %v", key, err)
		return
	}
	g.breaker.RecordSuccess()
}

// Delete 失效指定键,失败只打日志。
// 写路径只失效不回填,下一次读自然回源重建
func (g *Gateway) Delete(ctx context.Context, key string) {
	if err := g.breaker.Allow(); err != nil {
		return
	}

	err := tools.Retry(ctx, g.retryCount, g.retryBackoff, func() error {
		return g.client.Del(ctx, key).Err()
	})
	if err != nil {
		g.breaker.RecordFailure()
		log.Warnf("cache delete %s failed: %v", key, err)
		return
	}
	g.breaker.RecordSuccess()
}

func (g *Gateway) deleteQuiet(ctx context.Context, key string) {
	if err := g.client.Del(ctx, key).Err(); err != nil {
		log.Warnf("cache evict %s failed: %v", key, err)
	}
}

func (g *Gateway) BreakerState() BreakerState {
	return g.breaker.State()
}
