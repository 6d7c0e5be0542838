// Package clitest builds command contexts over throwaway data directories.
package clitest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/julianstephens/keel/internal/cli"
	"github.com/julianstephens/keel/internal/config"
	"github.com/julianstephens/keel/internal/constants"
)

// Now is the fixed clock used by New.
var Now = time.Date(2026, 10, 15, 14, 30, 0, 0, time.UTC)

// Harness is a command context whose output is captured.
type Harness struct {
	*cli.Context
	Buf *bytes.Buffer
}

// Output returns everything written so far and resets the buffer.
func (h *Harness) Output() string {
	s := h.Buf.String()
	h.Buf.Reset()
	return s
}

// New returns a non-interactive context over a fresh data dir with sync
// disabled. The application is shut down when the test ends.
func New(t *testing.T) *Harness {
	t.Helper()
	cfg := &config.Config{
		DataDir:  t.TempDir(),
		Timezone: "UTC",
		Sync: config.SyncConfig{
			Provider: constants.SyncProviderNone,
			Debounce: 20 * time.Millisecond,
		},
	}
	buf := &bytes.Buffer{}
	ctx := cli.NewContext(context.Background(), cfg)
	ctx.Out = buf
	ctx.Interactive = false
	ctx.Options.Now = func() time.Time { return Now }

	t.Cleanup(func() {
		if err := ctx.Close(); err != nil {
			t.Errorf("failed to close app: %v", err)
		}
	})
	return &Harness{Context: ctx, Buf: buf}
}
