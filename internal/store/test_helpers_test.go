package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/window"
)

// postgresDSNEnv enables the PostgreSQL variants of the contract tests.
const postgresDSNEnv = "PIPECTL_TEST_POSTGRES_DSN"

var testPhases = []string{"extract", "load", "verify"}

var testWindowStart = time.Date(2025, 11, 15, 10, 0, 0, 0, time.UTC)

// recordStore is the method set shared by Store and Memory.
type recordStore interface {
	CreateRun(ctx context.Context, run *drive.PipelineRun) error
	UpdatePhase(ctx context.Context, runID string, upd drive.PhaseUpdate) (*drive.PipelineRun, error)
	FinalizeRun(ctx context.Context, runID string, status drive.RunStatus, endedAt time.Time) (*drive.PipelineRun, error)
	GetRun(ctx context.Context, runID string) (*drive.PipelineRun, error)
	LatestRun(ctx context.Context, pipeline string, start, end time.Time) (*drive.PipelineRun, error)
	LastSuccessful(ctx context.Context, pipeline string) (*drive.PipelineRun, error)
	ListRuns(ctx context.Context, pipeline string, limit int) ([]*drive.PipelineRun, error)
}

var (
	_ recordStore = (*Store)(nil)
	_ recordStore = (*Memory)(nil)
)

// createTestStore creates a new SQLite store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type storeFactory struct {
	name string
	open func(t *testing.T) recordStore
}

// storeFactories returns every backend the contract tests run against.
func storeFactories() []storeFactory {
	factories := []storeFactory{
		{"sqlite", func(t *testing.T) recordStore { return createTestStore(t) }},
		{"memory", func(t *testing.T) recordStore { return NewMemory() }},
	}
	if dsn := os.Getenv(postgresDSNEnv); dsn != "" {
		factories = append(factories, storeFactory{"postgres", func(t *testing.T) recordStore {
			s, err := OpenDSN("postgres", dsn)
			if err != nil {
				t.Fatalf("OpenDSN(postgres) failed: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		}})
	}
	return factories
}

var pipelineSeq atomic.Int64

// uniquePipeline keeps tests independent on a shared PostgreSQL database.
func uniquePipeline(t *testing.T) string {
	return fmt.Sprintf("orders_%d_%d", time.Now().UnixNano(), pipelineSeq.Add(1))
}

var runSeq atomic.Int64

func newTestRun(t *testing.T, pipeline string, start time.Time, retry int) *drive.PipelineRun {
	t.Helper()
	run, err := drive.NewRun(drive.NewRunParams{
		RunID:        fmt.Sprintf("run-%d-%d", time.Now().UnixNano(), runSeq.Add(1)),
		PipelineName: pipeline,
		RetryNumber:  retry,
		Window:       window.Window{Start: start, End: start.Add(time.Hour)},
		StartedAt:    start.Add(2 * time.Hour),
		Phases:       testPhases,
		Expected:     map[string]string{"load": "10m"},
	})
	if err != nil {
		t.Fatalf("NewRun() failed: %v", err)
	}
	return run
}
