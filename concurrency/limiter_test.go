package concurrency

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/imagevise/errors"
)

func TestLimiterBoundsConcurrency(t *testing.T) {
	cl := NewConcurrencyLimiter(2, 0)
	assert.Equal(t, 2, cl.Capacity())

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := cl.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			defer release()
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			assert.LessOrEqual(t, cl.InFlight(), 2)
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Equal(t, 0, cl.InFlight())
}

func TestReleaseIsIdempotent(t *testing.T) {
	cl := NewConcurrencyLimiter(1, 0)
	release, err := cl.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cl.InFlight())

	release()
	release()
	assert.Equal(t, 0, cl.InFlight())

	release, err = cl.Acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestLimiterTimesOutWith503(t *testing.T) {
	cl := NewConcurrencyLimiter(1, 10*time.Millisecond)

	release, err := cl.Acquire(context.Background())
	require.NoError(t, err)

	_, err = cl.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnavailable))
	status, _ := errors.StatusOf(err)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	release()
	release2, err := cl.Acquire(context.Background())
	require.NoError(t, err)
	release2()
}

func TestLimiterHonoursContext(t *testing.T) {
	cl := NewConcurrencyLimiter(1, 0)
	release, err := cl.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = cl.Acquire(ctx)
	assert.Error(t, err)
}
