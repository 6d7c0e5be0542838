package cloudsync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitIdle(t *testing.T, tr *Trigger) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tr.Wait(ctx))
}

func TestTriggerCoalescesBurst(t *testing.T) {
	var calls atomic.Int32
	tr := NewTrigger(context.Background(), 50*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	for i := 0; i < 5; i++ {
		tr.Request(false)
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, Pending, tr.State())

	waitIdle(t, tr)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, Idle, tr.State())
}

func TestTriggerImmediateSkipsQuietPeriod(t *testing.T) {
	var calls atomic.Int32
	tr := NewTrigger(context.Background(), time.Hour, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	tr.Request(false)
	tr.Background()
	waitIdle(t, tr)
	assert.Equal(t, int32(1), calls.Load())

	// The cancelled timer never fires a second transfer.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTriggerDropsRequestsWhileSyncing(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	tr := NewTrigger(context.Background(), 10*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		started <- struct{}{}
		<-release
		return nil
	})

	tr.Background()
	<-started
	assert.Equal(t, Syncing, tr.State())

	tr.Request(false)
	tr.Request(true)
	assert.Equal(t, Syncing, tr.State())

	close(release)
	waitIdle(t, tr)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, Idle, tr.State())
}

func TestTriggerSwallowsErrors(t *testing.T) {
	var calls atomic.Int32
	tr := NewTrigger(context.Background(), time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return errors.New("network down")
	})

	tr.Background()
	waitIdle(t, tr)
	assert.Equal(t, Idle, tr.State())

	tr.Background()
	waitIdle(t, tr)
	assert.Equal(t, int32(2), calls.Load(), "a failed sync does not block the next one")
}

func TestTriggerStop(t *testing.T) {
	var calls atomic.Int32
	tr := NewTrigger(context.Background(), 20*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	tr.Request(false)
	tr.Stop()
	assert.Equal(t, Idle, tr.State())
	waitIdle(t, tr)

	tr.Request(true)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestTriggerWaitHonoursContext(t *testing.T) {
	tr := NewTrigger(context.Background(), time.Hour, func(context.Context) error { return nil })
	tr.Request(false)
	defer tr.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tr.Wait(ctx), context.DeadlineExceeded)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "syncing", Syncing.String())
}
