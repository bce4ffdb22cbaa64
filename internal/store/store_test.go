package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if s.Dialect() != SQLite {
		t.Errorf("Dialect() = %q, want %q", s.Dialect(), SQLite)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"pipeline_runs", "phase_records"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
		{"synchronous", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.expected); err != nil {
			t.Error(err)
		}
	}
}

func TestOpenDSN_RejectsUnknownDriver(t *testing.T) {
	if _, err := OpenDSN("mysql", "x"); err == nil {
		t.Fatal("OpenDSN(mysql) succeeded, want error")
	}
}

func TestParseDialect(t *testing.T) {
	tests := map[string]Dialect{
		"sqlite3":    SQLite,
		"SQLite":     SQLite,
		"postgres":   Postgres,
		"postgresql": Postgres,
	}
	for in, want := range tests {
		got, err := ParseDialect(in)
		if err != nil {
			t.Errorf("ParseDialect(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseDialect(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDialect_Rebind(t *testing.T) {
	q := "SELECT a FROM t WHERE b = ? AND c = ?"
	if got := SQLite.Rebind(q); got != q {
		t.Errorf("SQLite.Rebind changed the query: %q", got)
	}
	want := "SELECT a FROM t WHERE b = $1 AND c = $2"
	if got := Postgres.Rebind(q); got != want {
		t.Errorf("Postgres.Rebind = %q, want %q", got, want)
	}
}

func TestSQLiteDSN_ImmediateTransactions(t *testing.T) {
	tests := map[string]string{
		"/tmp/runs.db":                     "/tmp/runs.db?_txlock=immediate",
		":memory:":                         ":memory:?_txlock=immediate",
		"file:runs.db?cache=shared":        "file:runs.db?cache=shared&_txlock=immediate",
		"/tmp/runs.db?_txlock=exclusive":   "/tmp/runs.db?_txlock=exclusive",
		"file:runs.db?mode=rwc&_txlock=ok": "file:runs.db?mode=rwc&_txlock=ok",
	}
	for in, want := range tests {
		if got := sqliteDSN(in); got != want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestStore_ConcurrentWritersOnOneFile gives each writer its own handle,
// as separate processes sharing a record store would have.
func TestStore_ConcurrentWritersOnOneFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")
	handles := make([]*Store, 3)
	for i := range handles {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() handle %d failed: %v", i, err)
		}
		t.Cleanup(func() { s.Close() })
		handles[i] = s
	}

	const writers = 6
	pipeline := uniquePipeline(t)
	runs := make([]*drive.PipelineRun, writers)
	for i := range runs {
		runs[i] = newTestRun(t, pipeline, testWindowStart.Add(time.Duration(i)*time.Hour), 0)
		if err := handles[0].CreateRun(ctx, runs[i]); err != nil {
			t.Fatalf("CreateRun() failed: %v", err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, writers*len(testPhases))
	for i, run := range runs {
		wg.Add(1)
		go func(s *Store, runID string) {
			defer wg.Done()
			for _, name := range testPhases {
				_, err := s.UpdatePhase(ctx, runID, drive.PhaseUpdate{
					Phase:  name,
					Record: drive.PhaseRecord{Status: drive.PhaseCompleted},
				})
				if err != nil {
					errs <- fmt.Errorf("%s %s: %w", runID, name, err)
					return
				}
			}
		}(handles[i%len(handles)], run.RunID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("UpdatePhase() failed: %v", err)
	}

	for _, run := range runs {
		got, err := handles[1].GetRun(ctx, run.RunID)
		if err != nil {
			t.Fatalf("GetRun(%s) failed: %v", run.RunID, err)
		}
		if err := got.Validate(testPhases); err != nil {
			t.Errorf("run %s partition: %v", run.RunID, err)
		}
		if pending := got.Phases.Pending(); len(pending) != 0 {
			t.Errorf("run %s still pending %v", run.RunID, pending)
		}
	}
}
