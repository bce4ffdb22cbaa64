package sqlphases

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/config"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/phase"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/queryir"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/querysql"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/store"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/window"
)

// Defaults applied when a phase configures no value.
const (
	DefaultStaleAfter = 120 * time.Minute
	StatusInProgress  = "in_progress"
	StatusPending     = "pending"
)

// Set is the SQL implementation of the registry phases.
type Set struct {
	db      *sql.DB
	dialect store.Dialect
	sql     *querysql.Compiler
	now     func() time.Time
}

// Option configures a Set.
type Option func(*Set)

// WithNow sets the time source used for stale and retention cutoffs.
func WithNow(fn func() time.Time) Option {
	return func(s *Set) { s.now = fn }
}

// New returns phases that run against db.
func New(db *sql.DB, dialect store.Dialect, opts ...Option) *Set {
	s := &Set{
		db:      db,
		dialect: dialect,
		sql:     querysql.NewCompiler(dialect),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the database described by conn.
func Open(conn config.ConnectionSpec) (*sql.DB, store.Dialect, error) {
	dialect, err := store.ParseDialect(conn.Driver)
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open(string(dialect), conn.DSN)
	if err != nil {
		return nil, "", fmt.Errorf("open %s database: %w", dialect, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("connect to %s database: %w", dialect, err)
	}
	if dialect == store.SQLite {
		db.SetMaxOpenConns(1)
	}
	return db, dialect, nil
}

// Register binds every phase of reg that has a SQL implementation.
func (s *Set) Register(impls *phase.Implementations, reg *phase.Registry) error {
	table := map[string]phase.Func{
		phase.StalePipelineHandling: s.staleHandling,
		phase.PreValidation:         s.preValidation,
		phase.SourceCount:           s.counter(phase.SourceCount, sourceRole),
		phase.SourceToStageTransfer: s.transfer(sourceRole, stageRole),
		phase.StageCount:            s.counter(phase.StageCount, stageRole),
		phase.StageToTargetTransfer: s.transfer(stageRole, targetRole),
		phase.TargetCount:           s.counter(phase.TargetCount, targetRole),
		phase.Audit:                 s.audit,
		phase.StageCleaning:         s.stageCleaning,
		phase.TargetCleaning:        s.targetCleaning,
	}
	for _, name := range reg.Names() {
		fn, ok := table[name]
		if !ok {
			continue
		}
		if err := impls.Register(reg, name, fn); err != nil {
			return err
		}
	}
	return nil
}

type role string

const (
	sourceRole role = "source_system"
	stageRole  role = "stage_system"
	targetRole role = "target_system"
)

func (r role) spec(cfg *config.Config) config.SystemSpec {
	switch r {
	case sourceRole:
		return cfg.SourceSystem()
	case stageRole:
		return cfg.StageSystem()
	}
	return cfg.TargetSystem()
}

// table is a configured table with its timestamp column.
type table struct {
	role   role
	spec   config.SystemSpec
	layout string
}

func (s *Set) table(cfg *config.Config, r role) (table, error) {
	spec := r.spec(cfg)
	switch {
	case spec.Table == "":
		return table{}, fmt.Errorf("%s.table is not configured", r)
	case spec.TimestampColumn == "":
		return table{}, fmt.Errorf("%s.timestamp_column is not configured", r)
	}
	return newTable(r, spec), nil
}

func newTable(r role, spec config.SystemSpec) table {
	layout := spec.TimestampFormat
	if layout == "" {
		layout = time.RFC3339
	}
	return table{role: r, spec: spec, layout: layout}
}

// bind converts a bound timestamp into the value compared with the
// table's timestamp column.
func (s *Set) bind(t table, ts time.Time) any {
	if s.dialect == store.Postgres && t.spec.TimestampFormat == "" {
		return ts.UTC()
	}
	return ts.UTC().Format(t.layout)
}

// inWindow selects the rows of t inside w.
func (s *Set) inWindow(t table, w window.Window) queryir.Predicate {
	return queryir.Range{Field: t.spec.TimestampColumn, Start: s.bind(t, w.Start), End: s.bind(t, w.End)}
}

func (s *Set) count(ctx context.Context, t table, w window.Window) (int64, error) {
	q, args, err := s.sql.Compile(queryir.Count{From: t.spec.Table, Filter: s.inWindow(t, w)})
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.spec.Table, err)
	}
	return n, nil
}

// exec runs a modifying statement and returns the number of rows it
// affected.
func (s *Set) exec(ctx context.Context, ex execer, stmt queryir.Statement) (int64, error) {
	q, args, err := s.sql.Compile(stmt)
	if err != nil {
		return 0, err
	}
	res, err := ex.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
