package lock_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-ledger/internal/lock"
)

func TestKeys(t *testing.T) {
	id := uuid.MustParse("6f1c1a53-3b0e-4a43-9d4f-6d0c0b6b2a11")
	assert.Equal(t, "lock:order:6f1c1a53-3b0e-4a43-9d4f-6d0c0b6b2a11", lock.OrderKey(id))
	assert.Equal(t, "lock:payment:6f1c1a53-3b0e-4a43-9d4f-6d0c0b6b2a11", lock.PaymentKey(id))
}

func TestLocalLocker_ExclusiveUntilReleased(t *testing.T) {
	ctx := context.Background()
	l := lock.NewLocalLocker(50 * time.Millisecond)

	release, err := l.Obtain(ctx, "k")
	require.NoError(t, err)

	_, err = l.Obtain(ctx, "k")
	require.ErrorIs(t, err, lock.ErrNotObtained)

	other, err := l.Obtain(ctx, "other")
	require.NoError(t, err, "keys are independent")
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx), "release is idempotent")

	again, err := l.Obtain(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestLocalLocker_WaiterGetsKeyOnRelease(t *testing.T) {
	ctx := context.Background()
	l := lock.NewLocalLocker(time.Second)

	release, err := l.Obtain(ctx, "k")
	require.NoError(t, err)

	got := make(chan error, 1)
	go func() {
		r, err := l.Obtain(ctx, "k")
		if err == nil {
			err = r(ctx)
		}
		got <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, release(ctx))
	require.NoError(t, <-got)
}

func TestLocalLocker_Serializes(t *testing.T) {
	ctx := context.Background()
	l := lock.NewLocalLocker(5 * time.Second)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Obtain(ctx, "k")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			assert.NoError(t, release(ctx))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestLocalLocker_HonoursContext(t *testing.T) {
	l := lock.NewLocalLocker(time.Minute)
	release, err := l.Obtain(context.Background(), "k")
	require.NoError(t, err)
	defer release(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Obtain(ctx, "k")
	require.ErrorIs(t, err, lock.ErrNotObtained)
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDRESS")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDRESS not set, skipping redis lock test")
	}
	ctx := context.Background()
	rdb, err := lock.ConnectRedis(ctx, addr)
	require.NoError(t, err)
	defer rdb.Close()

	l := lock.NewRedisLocker(rdb, 5*time.Second)
	key := lock.OrderKey(uuid.New())

	release, err := l.Obtain(ctx, key)
	require.NoError(t, err)

	_, err = l.Obtain(ctx, key)
	require.ErrorIs(t, err, lock.ErrNotObtained)

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx), "releasing an expired or released lock is not an error")

	again, err := l.Obtain(ctx, key)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}
