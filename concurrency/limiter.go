// Package concurrency bounds how many renders run at the same time.
package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/leeforge/imagevise/errors"
)

// ConcurrencyLimiter 并发限制器
type ConcurrencyLimiter struct {
	maxConcurrent int64
	wait          time.Duration
	sem           *semaphore.Weighted
	inFlight      atomic.Int64
}

// NewConcurrencyLimiter 创建并发限制器
// wait 为获取名额的最长等待时间，0 表示只受 ctx 约束
func NewConcurrencyLimiter(maxConcurrent int, wait time.Duration) *ConcurrencyLimiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &ConcurrencyLimiter{
		maxConcurrent: int64(maxConcurrent),
		wait:          wait,
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Acquire 获取一个名额，返回的 release 必须调用且只调用一次
// 超时返回 503 错误
func (cl *ConcurrencyLimiter) Acquire(ctx context.Context) (release func(), err error) {
	if cl.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cl.wait)
		defer cancel()
	}
	if err := cl.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.NewUnavailable("Too many renders in progress, try again later").WithInnerError(err)
	}
	cl.inFlight.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			cl.inFlight.Add(-1)
			cl.sem.Release(1)
		})
	}, nil
}

// InFlight 当前占用的名额数
func (cl *ConcurrencyLimiter) InFlight() int {
	return int(cl.inFlight.Load())
}

// Capacity 最大并发数
func (cl *ConcurrencyLimiter) Capacity() int {
	return int(cl.maxConcurrent)
}
