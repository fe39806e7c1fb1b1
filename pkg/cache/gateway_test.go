package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedProfile struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
}

func newTestGateway(t *testing.T) (*Gateway, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	gateway := NewGatewayWithOptions(client, NewBreaker(5, time.Minute), time.Minute*10, 2, time.Millisecond)
	return gateway, mr
}

func TestGatewaySetGetRoundTrip(t *testing.T) {
	gateway, _ := newTestGateway(t)
	ctx := context.Background()

	gateway.Set(ctx, "profile:42", &cachedProfile{UserID: 42, Name: "Алиса"})

	var got cachedProfile
	hit := gateway.Get(ctx, "profile:42", &got)
	require.True(t, hit)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, "Алиса", got.Name)
}

func TestGatewayMissOnAbsentKey(t *testing.T) {
	gateway, _ := newTestGateway(t)

	var got cachedProfile
	assert.False(t, gateway.Get(context.Background(), "profile:404", &got))
	assert.Equal(t, BreakerClosed, gateway.BreakerState())
}

func TestGatewaySetMarshalFailureDoesNotConsumeProbe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	breaker := NewBreaker(1, time.Minute)
	current := time.Now()
	breaker.now = func() time.Time { return current }
	gateway := NewGatewayWithOptions(client, breaker, time.Minute*10, 1, time.Millisecond)
	ctx := context.Background()

	// 打开熔断器并走完冷却期
	breaker.RecordFailure()
	require.Equal(t, BreakerOpen, breaker.State())
	current = current.Add(time.Minute * 2)

	// 本地序列化失败不能占用半开状态唯一的试探名额
	gateway.Set(ctx, "profile:42", make(chan int))

	gateway.Set(ctx, "profile:42", &cachedProfile{UserID: 42, Name: "Алиса"})
	assert.Equal(t, BreakerClosed, breaker.State())

	var got cachedProfile
	require.True(t, gateway.Get(ctx, "profile:42", &got))
	assert.Equal(t, "Алиса", got.Name)
}

func TestGatewayDeleteInvalidates(t *testing.T) {
	gateway, _ := newTestGateway(t)
	ctx := context.Background()

	gateway.Set(ctx, "profile:42", &cachedProfile{UserID: 42})
	gateway.Delete(ctx, "profile:42")

	var got cachedProfile
	assert.False(t, gateway.Get(ctx, "profile:42", &got))
}

func TestGatewayCorruptPayloadEvictedAndTreatedAsMiss(t *testing.T) {
	gateway, mr := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("profile:42", "{not valid json"))

	var got cachedProfile
	assert.False(t, gateway.Get(ctx, "profile:42", &got))
	// 脏数据已被清除
	assert.False(t, mr.Exists("profile:42"))
}

func TestGatewaySetTTL(t *testing.T) {
	gateway, mr := newTestGateway(t)
	ctx := context.Background()

	gateway.Set(ctx, "profile:42", &cachedProfile{UserID: 42})
	assert.Equal(t, time.Minute*10, mr.TTL("profile:42"))

	mr.FastForward(time.Minute * 11)
	var got cachedProfile
	assert.False(t, gateway.Get(ctx, "profile:42", &got))
}

func TestGatewayDegradesWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	gateway := NewGatewayWithOptions(client, NewBreaker(2, time.Minute), time.Minute, 1, time.Millisecond)
	ctx := context.Background()

	mr.Close()

	// 故障一律按未命中处理,不向上抛错
	var got cachedProfile
	assert.False(t, gateway.Get(ctx, "profile:42", &got))
	assert.False(t, gateway.Get(ctx, "profile:42", &got))

	// 连续失败达到阈值后熔断打开
	assert.Equal(t, BreakerOpen, gateway.BreakerState())

	// 熔断打开期间调用立即返回,不再触发网络请求
	gateway.Set(ctx, "profile:42", &cachedProfile{UserID: 42})
	assert.False(t, gateway.Get(ctx, "profile:42", &got))
}
