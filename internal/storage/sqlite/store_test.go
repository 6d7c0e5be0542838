package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConcurrentCallersShareOneOpen(t *testing.T) {
	ctx := context.Background()
	s := NewStore(filepath.Join(t.TempDir(), "keel.db"))
	defer s.Close()

	var opens atomic.Int32
	s.opener = func(ctx context.Context) (*sql.DB, error) {
		opens.Add(1)
		return s.open(ctx)
	}

	const callers = 20
	start := make(chan struct{})
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = s.Init(ctx)
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, int32(1), opens.Load())

	st, err := s.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, st.Applied)
	assert.Empty(t, st.Pending)

	var rows int
	require.NoError(t, s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&rows))
	assert.Equal(t, 5, rows)
}

func TestInitWaiterContextCancelled(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "keel.db"))
	defer s.Close()

	entered := make(chan struct{})
	release := make(chan struct{})
	s.opener = func(ctx context.Context) (*sql.DB, error) {
		close(entered)
		<-release
		return s.open(ctx)
	}

	firstErr := make(chan error, 1)
	go func() {
		firstErr <- s.Init(context.Background())
	}()
	<-entered

	waitCtx, cancel := context.WithCancel(context.Background())
	waiterErr := make(chan error, 1)
	go func() {
		waiterErr <- s.Init(waitCtx)
	}()
	cancel()

	select {
	case err := <-waiterErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled waiter did not return")
	}
	assert.Nil(t, s.DB(), "open still in flight")

	close(release)
	require.NoError(t, <-firstErr)
	assert.NotNil(t, s.DB())

	require.NoError(t, s.Init(context.Background()))
	st, err := s.MigrationStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, st.Applied)
}

func TestInitAfterCloseReopens(t *testing.T) {
	ctx := context.Background()
	s := NewStore(filepath.Join(t.TempDir(), "keel.db"))
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Close())
	assert.Nil(t, s.DB())

	require.NoError(t, s.Init(ctx))
	defer s.Close()
	assert.NotNil(t, s.DB())
}
