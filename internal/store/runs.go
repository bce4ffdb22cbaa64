package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
)

// timeLayout is fixed-width so lexical order equals time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

const runColumns = `run_id, pipeline_name, status, retry_number, window_start, window_end,
	target_date, window_duration, started_at, ended_at, duration,
	phases_completed, phases_skipped, phases_pending, phase_failed`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateRun inserts a new run and one phase row per registry phase.
func (s *Store) CreateRun(ctx context.Context, run *drive.PipelineRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	completed, skipped, pending, err := marshalSets(run.Phases)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	_, err = tx.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO pipeline_runs
		(`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		run.RunID,
		run.PipelineName,
		string(run.Status),
		run.RetryNumber,
		formatTime(run.WindowStart),
		formatTime(run.WindowEnd),
		run.TargetDate,
		run.WindowDuration,
		formatTime(run.StartedAt),
		nullTime(run.EndedAt),
		nullString(run.Duration),
		completed,
		skipped,
		pending,
		nullString(run.PhaseFailed()),
	)
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.RunID, err)
	}

	for pos, name := range phaseOrder(run) {
		if err := s.insertPhase(ctx, tx, run.RunID, name, pos, run.Details[name]); err != nil {
			return fmt.Errorf("create run %s: %w", run.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create run: commit: %w", err)
	}
	return nil
}

// phaseOrder lists every phase of a fresh run in registry order.
func phaseOrder(run *drive.PipelineRun) []string {
	names := run.Phases.Completed()
	names = append(names, run.Phases.Skipped()...)
	if f := run.Phases.Failed(); f != "" {
		names = append(names, f)
	}
	return append(names, run.Phases.Pending()...)
}

func (s *Store) insertPhase(ctx context.Context, tx *sql.Tx, runID, name string, pos int, rec drive.PhaseRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal phase %s: %w", name, err)
	}
	_, err = tx.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO phase_records (run_id, phase_name, position, record)
		VALUES (?, ?, ?, ?)
	`), runID, name, pos, string(data))
	if err != nil {
		return fmt.Errorf("insert phase %s: %w", name, err)
	}
	return nil
}

// UpdatePhase applies one phase transition atomically and returns the
// updated run.
func (s *Store) UpdatePhase(ctx context.Context, runID string, upd drive.PhaseUpdate) (*drive.PipelineRun, error) {
	return s.mutate(ctx, runID, func(run *drive.PipelineRun) ([]string, error) {
		if err := run.ApplyPhase(upd); err != nil {
			return nil, err
		}
		return []string{upd.Phase}, nil
	})
}

// FinalizeRun sets the terminal status and end time of a run.
func (s *Store) FinalizeRun(ctx context.Context, runID string, status drive.RunStatus, endedAt time.Time) (*drive.PipelineRun, error) {
	return s.mutate(ctx, runID, func(run *drive.PipelineRun) ([]string, error) {
		return nil, run.Finalize(status, endedAt)
	})
}

// mutate loads a run inside a transaction, applies fn and writes back the
// run row plus the phase rows fn reports as changed.
func (s *Store) mutate(ctx context.Context, runID string, fn func(*drive.PipelineRun) ([]string, error)) (*drive.PipelineRun, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	lock := ""
	if s.dialect == Postgres {
		lock = " FOR UPDATE"
	}
	run, err := s.loadRun(ctx, tx, `WHERE run_id = ?`+lock, runID)
	if err != nil {
		return nil, err
	}

	changed, err := fn(run)
	if err != nil {
		return nil, err
	}

	completed, skipped, pending, err := marshalSets(run.Phases)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, s.dialect.Rebind(`
		UPDATE pipeline_runs
		SET status = ?, ended_at = ?, duration = ?,
		    phases_completed = ?, phases_skipped = ?, phases_pending = ?, phase_failed = ?
		WHERE run_id = ?
	`),
		string(run.Status),
		nullTime(run.EndedAt),
		nullString(run.Duration),
		completed,
		skipped,
		pending,
		nullString(run.PhaseFailed()),
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("update run %s: %w", runID, err)
	}

	for _, name := range changed {
		data, err := json.Marshal(run.Details[name])
		if err != nil {
			return nil, fmt.Errorf("marshal phase %s: %w", name, err)
		}
		_, err = tx.ExecContext(ctx, s.dialect.Rebind(`
			UPDATE phase_records SET record = ? WHERE run_id = ? AND phase_name = ?
		`), string(data), runID, name)
		if err != nil {
			return nil, fmt.Errorf("update phase %s of run %s: %w", name, runID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return run, nil
}

// GetRun returns the run with the given ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*drive.PipelineRun, error) {
	return s.loadRun(ctx, s.db, `WHERE run_id = ?`, runID)
}

// LatestRun returns the most recently created run for the exact window.
func (s *Store) LatestRun(ctx context.Context, pipeline string, start, end time.Time) (*drive.PipelineRun, error) {
	return s.loadRun(ctx, s.db, `
		WHERE pipeline_name = ? AND window_start = ? AND window_end = ?
		ORDER BY seq DESC LIMIT 1`,
		drive.NormalizePipelineName(pipeline), formatTime(start), formatTime(end))
}

// LastSuccessful returns the successful run with the latest window end.
func (s *Store) LastSuccessful(ctx context.Context, pipeline string) (*drive.PipelineRun, error) {
	return s.loadRun(ctx, s.db, `
		WHERE pipeline_name = ? AND status = ?
		ORDER BY window_end DESC, seq DESC LIMIT 1`,
		drive.NormalizePipelineName(pipeline), string(drive.RunSuccess))
}

// ListRuns returns up to limit runs of a pipeline, newest first.
// limit <= 0 returns every run.
func (s *Store) ListRuns(ctx context.Context, pipeline string, limit int) ([]*drive.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE pipeline_name = ? ORDER BY seq DESC`
	args := []any{drive.NormalizePipelineName(pipeline)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var runs []*drive.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list runs: %w", err)
	}
	rows.Close()

	for _, run := range runs {
		if err := s.loadPhases(ctx, s.db, run); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) loadRun(ctx context.Context, q querier, where string, args ...any) (*drive.PipelineRun, error) {
	row := q.QueryRowContext(ctx, s.dialect.Rebind(`SELECT `+runColumns+` FROM pipeline_runs `+where), args...)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	if err := s.loadPhases(ctx, q, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Store) loadPhases(ctx context.Context, q querier, run *drive.PipelineRun) error {
	rows, err := q.QueryContext(ctx, s.dialect.Rebind(`
		SELECT phase_name, record FROM phase_records WHERE run_id = ? ORDER BY position ASC
	`), run.RunID)
	if err != nil {
		return fmt.Errorf("load phases of run %s: %w", run.RunID, err)
	}
	defer rows.Close()

	run.Details = make(map[string]drive.PhaseRecord)
	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			return fmt.Errorf("scan phase of run %s: %w", run.RunID, err)
		}
		var rec drive.PhaseRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return fmt.Errorf("decode phase %s of run %s: %w", name, run.RunID, err)
		}
		run.Details[name] = rec
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*drive.PipelineRun, error) {
	var (
		run                                  drive.PipelineRun
		status, windowStart, windowEnd       string
		startedAt                            string
		endedAt, duration, failed            sql.NullString
		completedJSON, skippedJSON, pendJSON string
	)
	err := sc.Scan(
		&run.RunID, &run.PipelineName, &status, &run.RetryNumber,
		&windowStart, &windowEnd, &run.TargetDate, &run.WindowDuration,
		&startedAt, &endedAt, &duration,
		&completedJSON, &skippedJSON, &pendJSON, &failed,
	)
	if err != nil {
		return nil, err
	}

	if run.Status, err = drive.ParseRunStatus(status); err != nil {
		return nil, err
	}
	if run.WindowStart, err = parseTime(windowStart); err != nil {
		return nil, err
	}
	if run.WindowEnd, err = parseTime(windowEnd); err != nil {
		return nil, err
	}
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t, err := parseTime(endedAt.String)
		if err != nil {
			return nil, err
		}
		run.EndedAt = &t
	}
	run.Duration = duration.String

	var completed, skipped, pending []string
	for _, p := range []struct {
		data string
		dst  *[]string
	}{{completedJSON, &completed}, {skippedJSON, &skipped}, {pendJSON, &pending}} {
		if err := json.Unmarshal([]byte(p.data), p.dst); err != nil {
			return nil, fmt.Errorf("decode phase list of run %s: %w", run.RunID, err)
		}
	}
	run.Phases, err = drive.RestorePhaseSets(completed, skipped, pending, failed.String)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", run.RunID, err)
	}
	return &run, nil
}

func marshalSets(s drive.PhaseSets) (completed, skipped, pending string, err error) {
	encode := func(names []string) (string, error) {
		b, err := json.Marshal(names)
		return string(b), err
	}
	if completed, err = encode(s.Completed()); err != nil {
		return
	}
	if skipped, err = encode(s.Skipped()); err != nil {
		return
	}
	pending, err = encode(s.Pending())
	return
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
