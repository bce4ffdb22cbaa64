package cli

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/audit"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/engine"
)

// AuditOptions holds flags for the audit command.
type AuditOptions struct {
	*RootOptions
	Counts     audit.Counts
	Tolerances audit.Tolerances
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check record counts against loss tolerances",
		Long: `Compare source, stage and target counts the way the audit phase does.

Tolerances come from the flags, or from the config's audit phase when
--config is given and the flags are not. Exits 1 when the audit fails.

Example:
  pipectl audit --source 10000 --stage 9800 --target 9795`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			for name, v := range map[string]float64{
				"source-tolerance": opts.Tolerances.SourceToStagePercent,
				"stage-tolerance":  opts.Tolerances.StageToTargetPercent,
			} {
				if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 100 {
					return f.Fail(ExitCommandError, "invalid tolerance", fmt.Errorf("--%s must be between 0 and 100, got %g", name, v))
				}
			}
			tol := opts.Tolerances
			if rootOpts.Config != "" {
				cfg, err := loadConfig(rootOpts)
				if err != nil {
					return f.Fail(ExitCommandError, "failed to load config", err)
				}
				fromCfg := cfg.Tolerances()
				if !cmd.Flags().Changed("source-tolerance") {
					tol.SourceToStagePercent = fromCfg.SourceToStagePercent
				}
				if !cmd.Flags().Changed("stage-tolerance") {
					tol.StageToTargetPercent = fromCfg.StageToTargetPercent
				}
			}

			rep := audit.Validate(opts.Counts, tol)
			if !rep.Passed {
				err := &engine.RuntimeError{Code: engine.ErrCodeIntegrityFailure, Message: rep.Reason}
				return f.FailWithData(ExitFailure, "audit failed", err, auditView{Report: rep})
			}
			return f.Success(auditView{Report: rep})
		},
	}

	cmd.Flags().Int64Var(&opts.Counts.Source, "source", 0, "source record count")
	cmd.Flags().Int64Var(&opts.Counts.Stage, "stage", 0, "stage record count")
	cmd.Flags().Int64Var(&opts.Counts.Target, "target", 0, "target record count")
	cmd.Flags().Float64Var(&opts.Tolerances.SourceToStagePercent, "source-tolerance",
		audit.DefaultSourceToStagePercent, "maximum source to stage loss percent")
	cmd.Flags().Float64Var(&opts.Tolerances.StageToTargetPercent, "stage-tolerance",
		audit.DefaultStageToTargetPercent, "maximum stage to target loss percent")
	for _, name := range []string{"source", "stage", "target"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
