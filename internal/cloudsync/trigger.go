// Package cloudsync decides when the database file is replicated. Writes
// request a sync through a debouncing Trigger; the Engine performs uploads
// and downloads through a cloud.Transport.
package cloudsync

import (
	"context"
	"sync"
	"time"

	"github.com/julianstephens/keel/internal/logger"
)

// State is the trigger's lifecycle state.
type State int

const (
	Idle State = iota
	Pending
	Syncing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Syncing:
		return "syncing"
	default:
		return "unknown"
	}
}

// Trigger coalesces bursts of sync requests into a single transfer that
// runs once requests stop arriving for the quiet period. At most one
// transfer runs at a time; requests that arrive while one is running are
// dropped.
type Trigger struct {
	ctx      context.Context
	quiet    time.Duration
	transfer func(ctx context.Context) error

	mu      sync.Mutex
	state   State
	gen     uint64
	timer   *time.Timer
	idle    chan struct{}
	stopped bool
}

// NewTrigger returns an idle trigger. transfer errors are logged and
// otherwise ignored.
func NewTrigger(ctx context.Context, quiet time.Duration, transfer func(ctx context.Context) error) *Trigger {
	idle := make(chan struct{})
	close(idle)
	return &Trigger{
		ctx:      ctx,
		quiet:    quiet,
		transfer: transfer,
		idle:     idle,
	}
}

// State returns the current state.
func (t *Trigger) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Request asks for a sync. An immediate request skips the quiet period.
func (t *Trigger) Request(immediate bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.state == Syncing {
		return
	}

	// Invalidate any timer that already fired but has not taken the lock.
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.state == Idle {
		t.idle = make(chan struct{})
	}

	if immediate {
		t.startLocked()
		return
	}

	t.state = Pending
	gen := t.gen
	t.timer = time.AfterFunc(t.quiet, func() { t.fire(gen) })
}

// Background flushes right away, as when the app leaves the foreground.
func (t *Trigger) Background() {
	t.Request(true)
}

func (t *Trigger) fire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || t.state != Pending {
		return
	}
	t.timer = nil
	t.startLocked()
}

func (t *Trigger) startLocked() {
	t.state = Syncing
	go t.run()
}

func (t *Trigger) run() {
	if err := t.transfer(t.ctx); err != nil {
		logger.Warn("Sync failed", "error", err)
	}

	t.mu.Lock()
	t.state = Idle
	close(t.idle)
	t.mu.Unlock()
}

// Wait blocks until no sync is pending or running.
func (t *Trigger) Wait(ctx context.Context) error {
	t.mu.Lock()
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels a pending sync and ignores later requests. A running
// transfer is allowed to finish.
func (t *Trigger) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.state == Pending {
		t.state = Idle
		close(t.idle)
	}
}
