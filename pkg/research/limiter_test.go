package research

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterCapacityClamped(t *testing.T) {
	assert.Equal(t, 1, NewLimiter(0).Capacity())
	assert.Equal(t, 1, NewLimiter(-3).Capacity())
	assert.Equal(t, 4, NewLimiter(4).Capacity())
}

func TestLimiterBlocksAtCapacity(t *testing.T) {
	l := NewLimiter(1)
	require.NoError(t, l.Acquire(context.Background()))
	assert.Equal(t, 1, l.Active())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, l.Active())

	l.Release()
	assert.Equal(t, 0, l.Active())
	require.NoError(t, l.Acquire(context.Background()))
	l.Release()
}

func TestLimiterPeak(t *testing.T) {
	l := NewLimiter(3)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
			l.Release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, l.Peak(), 3)
	assert.GreaterOrEqual(t, l.Peak(), 1)
	assert.Equal(t, 0, l.Active())
}
