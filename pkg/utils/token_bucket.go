package utils

import (
	"sync"
	"time"
)

// TokenBucket 令牌桶限流器
// 惰性补充：每次取令牌时按流逝时间折算新令牌，不开后台协程。
type TokenBucket struct {
	mu       sync.Mutex
	capacity int64 // 桶容量（突发上限）
	rate     int64 // 每秒补充的令牌数
	tokens   int64
	last     time.Time
}

// NewTokenBucket 创建令牌桶，初始为满桶
func NewTokenBucket(capacity, rate int64) *TokenBucket {
	return &TokenBucket{
		capacity: capacity,
		rate:     rate,
		tokens:   capacity,
		last:     time.Now(),
	}
}

// refill 按流逝时间补充令牌，调用方必须持有锁
func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.last)
	if elapsed <= 0 {
		return
	}
	added := elapsed.Nanoseconds() * tb.rate / int64(time.Second)
	if added > 0 {
		tb.tokens += added
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.last = now
	}
}

// TryTakeN 尝试立即取 n 个令牌，不足则返回 false
func (tb *TokenBucket) TryTakeN(n int64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(time.Now())
	if tb.tokens >= n {
		tb.tokens -= n
		return true
	}
	return false
}

// WaitN 在 timeout 内等待 n 个令牌，拿到返回 true
// 轮询间隔按补充速率估算，避免空转
func (tb *TokenBucket) WaitN(n int64, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	interval := time.Second / time.Duration(tb.rate)
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	if interval > 50*time.Millisecond {
		interval = 50 * time.Millisecond
	}

	for {
		if tb.TryTakeN(n) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}
