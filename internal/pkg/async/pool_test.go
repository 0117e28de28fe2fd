package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolExecute(t *testing.T) {
	pool := NewPool(2)

	var running, peak int32
	task := func(name string, value int) Task {
		return Task{
			Name: name,
			Execute: func(ctx context.Context) (any, error) {
				n := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return value, nil
			},
		}
	}

	results := pool.Execute(context.Background(), []Task{
		task("a", 1), task("b", 2), task("c", 3), task("d", 4),
	})

	require.NoError(t, results.Err("a", "b", "c", "d"))
	assert.Equal(t, 1, results["a"].Data)
	assert.Equal(t, 4, results["d"].Data)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestPoolReportsErrors(t *testing.T) {
	boom := errors.New("boom")
	results := NewPool(4).Execute(context.Background(), []Task{
		{Name: "ok", Execute: func(ctx context.Context) (any, error) { return "fine", nil }},
		{Name: "bad", Execute: func(ctx context.Context) (any, error) { return nil, boom }},
	})

	err := results.Err("ok", "bad")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad")

	assert.Error(t, results.Err("missing"))
}

func TestPoolCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	results := NewPool(1).Execute(ctx, []Task{
		{Name: "x", Execute: func(ctx context.Context) (any, error) {
			atomic.AddInt32(&calls, 1)
			return nil, nil
		}},
	})

	assert.ErrorIs(t, results.Err("x"), context.Canceled)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestPoolNoTasks(t *testing.T) {
	results := NewPool(3).Execute(context.Background(), nil)
	assert.Empty(t, results)
}
