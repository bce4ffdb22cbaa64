package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/audit"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/config"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/phase"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/window"
)

// ValidationResult summarizes a valid configuration.
type ValidationResult struct {
	Valid       bool             `json:"valid"`
	Pipeline    string           `json:"pipeline"`
	Source      string           `json:"source"`
	Enabled     []string         `json:"enabled_phases"`
	Disabled    []string         `json:"disabled_phases,omitempty"`
	Tolerances  audit.Tolerances `json:"tolerances"`
	Granularity string           `json:"granularity,omitempty"`
	RecordStore string           `json:"record_store,omitempty"`
	Database    string           `json:"database,omitempty"`
}

func (r ValidationResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: valid configuration for pipeline %q\n", r.Source, r.Pipeline)
	fmt.Fprintf(&b, "enabled phases: %s\n", strings.Join(r.Enabled, ", "))
	if len(r.Disabled) > 0 {
		fmt.Fprintf(&b, "disabled phases: %s\n", strings.Join(r.Disabled, ", "))
	}
	fmt.Fprintf(&b, "tolerances: source->stage %.3f%%, stage->target %.3f%%",
		r.Tolerances.SourceToStagePercent, r.Tolerances.StageToTargetPercent)
	if r.Granularity != "" {
		fmt.Fprintf(&b, "\ngranularity: %s", r.Granularity)
	}
	if r.RecordStore != "" {
		fmt.Fprintf(&b, "\nrecord store: %s", r.RecordStore)
	}
	if r.Database != "" {
		fmt.Fprintf(&b, "\nphase database: %s", r.Database)
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the pipeline configuration",
		Long: `Load the configuration, expand its placeholders and check it against the
schema without touching any database. Exits 1 when the configuration is
invalid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			if rootOpts.Config == "" {
				return f.Fail(ExitCommandError, "nothing to validate", fmt.Errorf("--config is required"))
			}
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return f.Fail(ExitFailure, "invalid configuration", err)
			}
			return f.Success(summarize(cfg))
		},
	}
}

func summarize(cfg *config.Config) ValidationResult {
	res := ValidationResult{
		Valid:      true,
		Pipeline:   cfg.PipelineName(),
		Source:     cfg.Source(),
		Tolerances: cfg.Tolerances(),
	}
	for _, def := range phase.Default().Definitions() {
		if def.Enabled(cfg) {
			res.Enabled = append(res.Enabled, def.Name)
		} else {
			res.Disabled = append(res.Disabled, def.Name)
		}
	}
	if g := cfg.WindowSettings().Granularity; g > 0 {
		res.Granularity = window.FormatDuration(g)
	}
	if conn, ok := cfg.RecordStore(); ok {
		res.RecordStore = conn.Driver
	}
	if conn, ok := cfg.Database(); ok {
		res.Database = conn.Driver
	}
	return res
}
