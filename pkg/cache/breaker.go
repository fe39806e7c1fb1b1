package cache

import (
	"errors"
	"sync"
	"time"
)

type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// ErrBreakerOpen 熔断打开期间直接拒绝,不碰 redis
var ErrBreakerOpen = errors.New("cache circuit breaker is open")

// Breaker 缓存熔断器:连续失败次数达到阈值后打开,
// 冷却期结束放行一次试探请求,成功即闭合,失败重新打开
type Breaker struct {
	mu                  sync.Mutex
	failureThreshold    int
	recoveryTimeout     time.Duration
	state               BreakerState
	consecutiveFailures int
	openedAt            time.Time
	probing             bool

	now func() time.Time // 测试时可替换
}

func NewBreaker(failureThreshold int, recoveryTimeout time.Duration) *Breaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            BreakerClosed,
		now:              time.Now,
	}
}

// Allow 请求进入前询问熔断器,返回 ErrBreakerOpen 表示拒绝
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.recoveryTimeout {
			return ErrBreakerOpen
		}
		// 冷却结束,转半开并放行一次试探
		b.state = BreakerHalfOpen
		b.probing = true
		return nil
	case BreakerHalfOpen:
		// 半开状态只允许一个在途试探
		if b.probing {
			return ErrBreakerOpen
		}
		b.probing = true
		return nil
	}
	return nil
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = BreakerClosed
	b.consecutiveFailures = 0
	b.probing = false
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		// 试探失败,重新打开并重置冷却期
		b.state = BreakerOpen
		b.openedAt = b.now()
		b.probing = false
		return
	}

	b.consecutiveFailures++
	if b.consecutiveFailures >= b.failureThreshold {
		b.state = BreakerOpen
		b.openedAt = b.now()
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
