package cli

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

const (
	windowStart = "2025-11-15T10:00:00Z"
	windowEnd   = "2025-11-15T11:00:00Z"
)

const configTemplate = `pipeline_metadata:
  pipeline_name: events

query_window:
  granularity: 1h
  acceptable_data_fetch_start_time: "2025-11-15T10:00:00Z"

source_system:
  table: source_events
  timestamp_column: event_ts
  columns: [id, event_ts, payload]

stage_system:
  table: stage_events
  timestamp_column: event_ts
  columns: [id, event_ts, payload]

target_system:
  table: target_events
  timestamp_column: event_ts

record_store:
  driver: sqlite3
  dsn: %q

database:
  driver: sqlite3
  dsn: %q
`

// testEnv is a pipeline config over a SQLite warehouse and record store.
type testEnv struct {
	dir       string
	config    string
	warehouse string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:       dir,
		config:    filepath.Join(dir, "events.yaml"),
		warehouse: filepath.Join(dir, "warehouse.db"),
	}
	body := fmt.Sprintf(configTemplate, filepath.Join(dir, "runs.db"), env.warehouse)
	require.NoError(t, os.WriteFile(env.config, []byte(body), 0o644))

	env.exec(t,
		`CREATE TABLE source_events (id INTEGER PRIMARY KEY, event_ts TEXT NOT NULL, payload TEXT)`,
		`CREATE TABLE stage_events (id INTEGER PRIMARY KEY, event_ts TEXT NOT NULL, payload TEXT)`,
		`INSERT INTO source_events VALUES (1, '2025-11-15T10:00:00Z', 'a'), (2, '2025-11-15T10:20:00Z', 'b'),
			(3, '2025-11-15T10:40:00Z', 'c'), (4, '2025-11-15T11:20:00Z', 'd')`,
	)
	return env
}

func (e *testEnv) createTarget(t *testing.T) {
	t.Helper()
	e.exec(t, `CREATE TABLE target_events (id INTEGER PRIMARY KEY, event_ts TEXT NOT NULL, payload TEXT)`)
}

func (e *testEnv) exec(t *testing.T, stmts ...string) {
	t.Helper()
	db, err := sql.Open("sqlite3", e.warehouse)
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
}

func (e *testEnv) count(t *testing.T, table string) int {
	t.Helper()
	db, err := sql.Open("sqlite3", e.warehouse)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// execute runs cmd with args and returns what it wrote to stdout.
// Logs go to a separate buffer.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// pipectl runs the full command tree against env's config.
func (e *testEnv) pipectl(args ...string) (string, error) {
	return execute(NewRootCommand(), append([]string{"--config", e.config}, args...)...)
}
