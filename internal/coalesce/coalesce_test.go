package coalesce

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

func TestBackToBackSavesRunInIssueOrder(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	var (
		mu     sync.Mutex
		writes []string
	)
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = r.Do(ctx, "acct-1:theme", func(context.Context) error {
			close(firstStarted)
			<-releaseFirst
			mu.Lock()
			writes = append(writes, "first")
			mu.Unlock()
			return nil
		})
	}()
	<-firstStarted

	secondIssued := make(chan struct{})
	go func() {
		defer wg.Done()
		close(secondIssued)
		_ = r.Do(ctx, "acct-1:theme", func(context.Context) error {
			mu.Lock()
			writes = append(writes, "second")
			mu.Unlock()
			return nil
		})
	}()
	<-secondIssued
	require.Eventually(t, func() bool { return r.InFlight("acct-1:theme") == 2 }, time.Second, time.Millisecond)

	mu.Lock()
	assert.Empty(t, writes, "second write must wait for the first")
	mu.Unlock()

	close(releaseFirst)
	wg.Wait()
	assert.Equal(t, []string{"first", "second"}, writes)
	assert.Equal(t, 0, r.InFlight("acct-1:theme"))
}

func TestSameKeyNeverOverlaps(t *testing.T) {
	r := NewRegistry()
	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Do(context.Background(), "k", func(context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive)
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	r := NewRegistry()
	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = r.Do(context.Background(), "a", func(context.Context) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	done := make(chan error, 1)
	go func() {
		done <- r.Do(context.Background(), "b", func(context.Context) error { return nil })
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("write on key b was blocked by key a")
	}
	close(hold)
}

func TestFailureReleasesSlot(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("write failed")

	err := r.Do(context.Background(), "k", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.InFlight("k"))

	ran := false
	err = r.Do(context.Background(), "k", func(context.Context) error { ran = true; return nil })
	assert.NoError(t, err)
	assert.True(t, ran)
}

func TestPanicReleasesSlot(t *testing.T) {
	r := NewRegistry()
	assert.Panics(t, func() {
		_ = r.Do(context.Background(), "k", func(context.Context) error { panic("boom") })
	})
	assert.Equal(t, 0, r.InFlight("k"))
}

func TestCanceledWaiterKeepsOrder(t *testing.T) {
	r := NewRegistry()
	hold := make(chan struct{})
	started := make(chan struct{})
	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	go func() {
		_ = r.Do(context.Background(), "k", func(context.Context) error {
			close(started)
			<-hold
			record("first")
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	canceled := make(chan error, 1)
	go func() {
		canceled <- r.Do(ctx, "k", func(context.Context) error { record("canceled"); return nil })
	}()
	require.Eventually(t, func() bool { return r.InFlight("k") == 2 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-canceled, context.Canceled)

	third := make(chan error, 1)
	go func() {
		third <- r.Do(context.Background(), "k", func(context.Context) error { record("third"); return nil })
	}()
	require.Eventually(t, func() bool { return r.InFlight("k") == 3 }, time.Second, time.Millisecond)

	close(hold)
	require.NoError(t, <-third)
	mu.Lock()
	assert.Equal(t, []string{"first", "third"}, order)
	mu.Unlock()
	require.Eventually(t, func() bool { return r.InFlight("k") == 0 }, time.Second, time.Millisecond)
}

func TestNewRedisSerializerDefaults(t *testing.T) {
	s := NewRedisSerializer(nil, nil, 0)
	assert.NotNil(t, s.local)
	assert.Equal(t, 10*time.Second, s.ttl)
}

func TestHoldRenewsUntilStopped(t *testing.T) {
	ctx, lost := context.WithCancelCause(context.Background())
	defer lost(nil)

	var renewals atomic.Int32
	stop := hold(ctx, time.Second, 5*time.Millisecond, func(context.Context) (bool, error) {
		renewals.Add(1)
		return true, nil
	}, lost)
	require.Eventually(t, func() bool { return renewals.Load() >= 3 }, time.Second, time.Millisecond)
	stop()

	after := renewals.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, renewals.Load())
	assert.NoError(t, ctx.Err())
}

func TestHoldCancelsWhenLockIsTaken(t *testing.T) {
	ctx, lost := context.WithCancelCause(context.Background())
	defer lost(nil)

	stop := hold(ctx, time.Second, 5*time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	}, lost)
	defer stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not canceled after the lock was taken")
	}
	assert.ErrorIs(t, context.Cause(ctx), ErrLockLost)
}

func TestHoldToleratesErrorsWithinTTL(t *testing.T) {
	ctx, lost := context.WithCancelCause(context.Background())
	defer lost(nil)

	var calls atomic.Int32
	stop := hold(ctx, 60*time.Millisecond, 5*time.Millisecond, func(context.Context) (bool, error) {
		calls.Add(1)
		return false, errors.New("connection reset")
	}, lost)
	defer stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not canceled after renewals kept failing")
	}
	assert.Greater(t, calls.Load(), int32(1))
	assert.ErrorIs(t, context.Cause(ctx), ErrLockLost)
	assert.ErrorContains(t, context.Cause(ctx), "connection reset")
}
