package sqlphases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/audit"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/config"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/phase"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/queryir"
)

// staleHandling resets stage rows left in_progress by a crashed run. The
// cutoff is the phase's stale_after_minutes, 120 by default; its
// timeout_minutes stays the execution deadline like any other phase.
// Without a configured status column there is nothing to reset.
func (s *Set) staleHandling(ctx context.Context, cfg *config.Config, _ drive.Snapshot) (phase.Result, error) {
	spec := cfg.StageSystem()
	if spec.Table == "" || spec.StatusColumn == "" || spec.ModifiedColumn == "" {
		return phase.StaleResult{}, nil
	}
	t := newTable(stageRole, spec)

	staleAfter := DefaultStaleAfter
	if m := cfg.Phase(phase.StalePipelineHandling).StaleAfterMinutes; m > 0 {
		staleAfter = time.Duration(m) * time.Minute
	}
	cutoff := s.now().Add(-staleAfter)

	n, err := s.exec(ctx, s.db, queryir.Update{
		Table: spec.Table,
		Set:   []queryir.Assignment{{Column: spec.StatusColumn, Value: StatusPending}},
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: spec.StatusColumn, Value: StatusInProgress},
			queryir.Before{Field: spec.ModifiedColumn, Value: s.bind(t, cutoff)},
		}},
	})
	if err != nil {
		return phase.StaleResult{Envelope: phase.Fail(fmt.Sprintf("reset stale rows in %s: %v", spec.Table, err))}, nil
	}
	if n > 0 {
		slog.Warn("reset stale in-progress rows", "table", spec.Table, "rows", n, "cutoff", cutoff.Format(time.RFC3339))
	}
	return phase.StaleResult{StaleRunsReset: n}, nil
}

// preValidation checks the window and that every configured table can be
// queried.
func (s *Set) preValidation(ctx context.Context, cfg *config.Config, run drive.Snapshot) (phase.Result, error) {
	checks := map[string]bool{"window_valid": run.Window().Validate() == nil}
	for _, r := range []role{sourceRole, stageRole, targetRole} {
		key := string(r) + "_reachable"
		t, err := s.table(cfg, r)
		if err != nil {
			checks[key] = false
			continue
		}
		checks[key] = s.reachable(ctx, t) == nil
	}

	res := phase.ValidationResult{Checks: checks}
	var failed []string
	for name, ok := range checks {
		if !ok {
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		res.Envelope = phase.Fail("pre-validation failed: " + strings.Join(failed, ", "))
	}
	return res, nil
}

func (s *Set) reachable(ctx context.Context, t table) error {
	q, _, err := s.sql.Compile(queryir.Exists{From: t.spec.Table})
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return err
	}
	return rows.Close()
}

func (s *Set) counter(name string, r role) phase.Func {
	return func(ctx context.Context, cfg *config.Config, run drive.Snapshot) (phase.Result, error) {
		t, err := s.table(cfg, r)
		if err != nil {
			return phase.CountResult{Key: name, Envelope: phase.Fail(err.Error())}, nil
		}
		n, err := s.count(ctx, t, run.Window())
		if err != nil {
			return phase.CountResult{Key: name, Envelope: phase.Fail(err.Error())}, nil
		}
		return phase.CountResult{Key: name, Count: n}, nil
	}
}

// transfer copies the window's rows from one table to another in a single
// transaction. The destination's rows for the window are deleted first so
// a retried transfer does not duplicate data.
func (s *Set) transfer(from, to role) phase.Func {
	return func(ctx context.Context, cfg *config.Config, run drive.Snapshot) (phase.Result, error) {
		src, err := s.table(cfg, from)
		if err != nil {
			return phase.TransferResult{Envelope: phase.Fail(err.Error())}, nil
		}
		dst, err := s.table(cfg, to)
		if err != nil {
			return phase.TransferResult{Envelope: phase.Fail(err.Error())}, nil
		}
		cols := src.spec.Columns
		if len(cols) == 0 {
			return phase.TransferResult{Envelope: phase.Fail(fmt.Sprintf("%s.columns is not configured", from))}, nil
		}

		deleted, copied, err := s.copyWindow(ctx, src, dst, cols, run)
		if err != nil {
			return phase.TransferResult{Envelope: phase.Fail(err.Error())}, nil
		}
		return phase.TransferResult{RecordsTransferred: copied, RecordsDeleted: deleted, Completed: true}, nil
	}
}

func (s *Set) copyWindow(ctx context.Context, src, dst table, cols []string, run drive.Snapshot) (deleted, copied int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin transfer: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	w := run.Window()
	deleted, err = s.exec(ctx, tx, queryir.Delete{From: dst.spec.Table, Filter: s.inWindow(dst, w)})
	if err != nil {
		return 0, 0, fmt.Errorf("clear %s window: %w", dst.spec.Table, err)
	}
	copied, err = s.exec(ctx, tx, queryir.Copy{
		From:    src.spec.Table,
		Into:    dst.spec.Table,
		Columns: cols,
		Filter:  s.inWindow(src, w),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("copy %s to %s: %w", src.spec.Table, dst.spec.Table, err)
	}
	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit transfer: %w", err)
	}
	return deleted, copied, nil
}

// audit validates the counts recorded by the count phases of this run,
// including counts carried over from an earlier run.
func (s *Set) audit(_ context.Context, cfg *config.Config, run drive.Snapshot) (phase.Result, error) {
	var c audit.Counts
	var missing []string
	for _, f := range []struct {
		name string
		dst  *int64
	}{
		{phase.SourceCount, &c.Source},
		{phase.StageCount, &c.Stage},
		{phase.TargetCount, &c.Target},
	} {
		n, ok := run.DetailInt(f.name, f.name)
		if !ok {
			missing = append(missing, f.name)
			continue
		}
		*f.dst = n
	}
	if len(missing) > 0 {
		return phase.AuditResult{Envelope: phase.Fail("audit needs counts from " + strings.Join(missing, ", "))}, nil
	}

	rep := audit.Validate(c, cfg.Tolerances())
	res := phase.AuditResult{Report: rep}
	if !rep.Passed {
		res.Envelope = phase.Fail(rep.Reason)
	}
	return res, nil
}

// stageCleaning removes the window's rows from stage once they reached the
// target. With retention_days set it instead removes rows older than the
// retention period.
func (s *Set) stageCleaning(ctx context.Context, cfg *config.Config, run drive.Snapshot) (phase.Result, error) {
	t, err := s.table(cfg, stageRole)
	if err != nil {
		return phase.CleaningResult{Envelope: phase.Fail(err.Error())}, nil
	}
	if days := cfg.Phase(phase.StageCleaning).RetentionDays; days > 0 {
		return s.expire(ctx, t, run, days)
	}
	n, err := s.exec(ctx, s.db, queryir.Delete{From: t.spec.Table, Filter: s.inWindow(t, run.Window())})
	if err != nil {
		return phase.CleaningResult{Envelope: phase.Fail(err.Error())}, nil
	}
	return phase.CleaningResult{RecordsDeleted: n, Scope: "window"}, nil
}

// targetCleaning applies the target retention policy. Without
// retention_days it deletes nothing.
func (s *Set) targetCleaning(ctx context.Context, cfg *config.Config, run drive.Snapshot) (phase.Result, error) {
	days := cfg.Phase(phase.TargetCleaning).RetentionDays
	if days <= 0 {
		return phase.CleaningResult{Scope: "none"}, nil
	}
	t, err := s.table(cfg, targetRole)
	if err != nil {
		return phase.CleaningResult{Envelope: phase.Fail(err.Error())}, nil
	}
	return s.expire(ctx, t, run, days)
}

// expire deletes rows older than days before the run's window start.
func (s *Set) expire(ctx context.Context, t table, run drive.Snapshot, days int) (phase.Result, error) {
	cutoff := run.Window().Start.AddDate(0, 0, -days)
	n, err := s.exec(ctx, s.db, queryir.Delete{
		From:   t.spec.Table,
		Filter: queryir.Before{Field: t.spec.TimestampColumn, Value: s.bind(t, cutoff)},
	})
	if err != nil {
		return phase.CleaningResult{Envelope: phase.Fail(err.Error())}, nil
	}
	return phase.CleaningResult{RecordsDeleted: n, Scope: fmt.Sprintf("older than %d days", days)}, nil
}
