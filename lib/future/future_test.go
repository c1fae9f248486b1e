package future

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOnce(t *testing.T) {
	f := New[int]()

	_, ok, _ := f.Result()
	assert.False(t, ok)

	assert.True(t, f.Resolve(1))
	assert.False(t, f.Resolve(2))
	assert.False(t, f.Reject(errors.New("late")))

	v, ok, err := f.Result()
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestRejectOnce(t *testing.T) {
	boom := errors.New("boom")
	f := New[string]()

	assert.True(t, f.Reject(boom))
	assert.False(t, f.Resolve("x"))

	v, err := f.Wait()
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, v)
}

func TestConcurrentResolversSingleWinner(t *testing.T) {
	for round := 0; round < 50; round++ {
		f := New[int]()
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				var won bool
				if i%2 == 0 {
					won = f.Resolve(i)
				} else {
					won = f.Reject(errors.New("x"))
				}
				if won {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()
		require.Equal(t, int32(1), wins.Load())
		<-f.Done()
	}
}

func TestGetHonoursContext(t *testing.T) {
	f := New[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the future itself is still open
	_, ok, _ := f.Result()
	assert.False(t, ok)

	go f.Resolve(42)
	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
