package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/store"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/testutil"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/window"
)

// TestRun_ParallelWindowsShareOneSQLiteFile drives several windows at once,
// each controller on its own store handle to the same database file.
func TestRun_ParallelWindowsShareOneSQLiteFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")
	cfg := newTestConfig(t, nil)

	const windows = 6
	handles := make([]*store.Store, windows)
	ctls := make([]*Controller, windows)
	for i := range ctls {
		s, err := store.Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		handles[i] = s
		ctls[i] = NewController(s, newFakePhases().implementations(t),
			WithClock(testutil.NewStepClock(time.Time{}, time.Second)),
			WithIDGenerator(testutil.NewSequenceGenerator(fmt.Sprintf("run-w%d", i))),
		)
	}

	runIDs := make([]string, windows)
	errs := make([]error, windows)
	var wg sync.WaitGroup
	for i, ctl := range ctls {
		i, ctl := i, ctl
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := window.Window{
				Start: testWindow.Start.Add(time.Duration(i) * time.Hour),
				End:   testWindow.End.Add(time.Duration(i) * time.Hour),
			}
			run, err := ctl.Run(ctx, cfg, w)
			if run != nil {
				runIDs[i] = run.RunID
			}
			errs[i] = err
		}()
	}
	wg.Wait()

	for i := range ctls {
		require.NoError(t, errs[i], "window %d", i)
		stored, err := handles[0].GetRun(ctx, runIDs[i])
		require.NoError(t, err)
		assert.Equal(t, drive.RunSuccess, stored.Status)
		assert.Equal(t, enabledByDefault, stored.Phases.Completed())
		assert.Empty(t, stored.Phases.Pending())
		requirePartition(t, stored)
	}
}
