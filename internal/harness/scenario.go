package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/config"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/phase"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/window"
)

// Scenario is a sequence of runs of one pipeline with scripted phase
// outcomes and the expected records.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Pipeline is the pipeline name. Default: "scenario".
	Pipeline string `yaml:"pipeline,omitempty"`

	// Phases configures registry phases.
	Phases map[string]PhaseSettings `yaml:"phases,omitempty"`

	// Tolerances overrides the audit tolerances.
	Tolerances *ToleranceSettings `yaml:"tolerances,omitempty"`

	// Counts are reported by the count phases unless a run overrides them.
	Counts map[string]int64 `yaml:"counts,omitempty"`

	// Runs are executed in order against one record store.
	Runs []RunStep `yaml:"runs"`

	// Assertions are checked after every run completed.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// PhaseSettings is the scenario form of a phase's configuration.
type PhaseSettings struct {
	Enabled             *bool  `yaml:"enabled,omitempty"`
	ExpectedRunDuration string `yaml:"expected_run_duration,omitempty"`
	TimeoutMinutes      int    `yaml:"timeout_minutes,omitempty"`
	StaleAfterMinutes   int    `yaml:"stale_after_minutes,omitempty"`
}

// ToleranceSettings are audit loss tolerances in percent.
type ToleranceSettings struct {
	SourceToStage *float64 `yaml:"source_to_stage,omitempty"`
	StageToTarget *float64 `yaml:"stage_to_target,omitempty"`
}

// RunStep is one run of the scenario.
type RunStep struct {
	Window WindowSpec `yaml:"window"`

	// Fail makes a phase halt with the given message.
	Fail map[string]string `yaml:"fail,omitempty"`

	// Fault makes a phase misbehave: "panic", "error" or "nil".
	Fault map[string]string `yaml:"fault,omitempty"`

	// Counts overrides the scenario counts for this run.
	Counts map[string]int64 `yaml:"counts,omitempty"`

	// Expect describes the run the step must produce.
	Expect *RunExpect `yaml:"expect,omitempty"`
}

// WindowSpec is a window in RFC 3339.
type WindowSpec struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Window parses the bounds.
func (w WindowSpec) Window() (window.Window, error) {
	start, err := config.ParseTime(w.Start)
	if err != nil {
		return window.Window{}, err
	}
	end, err := config.ParseTime(w.End)
	if err != nil {
		return window.Window{}, err
	}
	return window.Window{Start: start, End: end}, nil
}

// RunExpect specifies the expected outcome of a run step. Empty fields are
// not checked.
type RunExpect struct {
	Status      string   `yaml:"status"`
	RetryNumber *int     `yaml:"retry_number,omitempty"`
	PhaseFailed string   `yaml:"phase_failed,omitempty"`
	ErrorCode   string   `yaml:"error_code,omitempty"`
	Executed    []string `yaml:"executed,omitempty"`
	Skipped     []string `yaml:"skipped,omitempty"`
}

// Assertion validates the stored runs after the scenario.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Run is the 1-based run step (phase_status, detail).
	Run int `yaml:"run,omitempty"`

	// Phase names the phase (phase_status, detail, invocations).
	Phase string `yaml:"phase,omitempty"`

	// Status is the expected phase status (phase_status).
	Status string `yaml:"status,omitempty"`

	// Key and Value are the expected detail entry (detail).
	Key   string `yaml:"key,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// Count is the expected number (run_count, invocations).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertPhaseStatus = "phase_status"
	AssertDetail      = "detail"
	AssertRunCount    = "run_count"
	AssertInvocations = "invocations"
)

// Fault kinds.
const (
	FaultPanic = "panic"
	FaultError = "error"
	FaultNil   = "nil"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Config builds the pipeline configuration the scenario runs with.
func (s *Scenario) Config() (*config.Config, error) {
	name := s.Pipeline
	if name == "" {
		name = "scenario"
	}
	spec := config.Spec{PipelineMetadata: config.Metadata{PipelineName: name}}
	if len(s.Phases) > 0 {
		spec.Phases = make(map[string]config.PhaseSpec, len(s.Phases))
		for n, p := range s.Phases {
			spec.Phases[n] = config.PhaseSpec{
				Enabled:             p.Enabled,
				ExpectedRunDuration: p.ExpectedRunDuration,
				TimeoutMinutes:      p.TimeoutMinutes,
				StaleAfterMinutes:   p.StaleAfterMinutes,
			}
		}
	}
	if t := s.Tolerances; t != nil {
		if spec.Phases == nil {
			spec.Phases = make(map[string]config.PhaseSpec, 1)
		}
		audit := spec.Phases[phase.Audit]
		audit.CountTolerances = &config.ToleranceSpec{
			SourceToStagePercent: t.SourceToStage,
			StageToTargetPercent: t.StageToTarget,
		}
		spec.Phases[phase.Audit] = audit
	}
	return config.New(spec)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Runs) == 0 {
		return fmt.Errorf("runs list is required and must be non-empty")
	}

	reg := phase.Default()
	known := func(name string) bool {
		_, ok := reg.Lookup(name)
		return ok
	}

	for name := range s.Phases {
		if !known(name) {
			return fmt.Errorf("phases: unknown phase %q", name)
		}
	}
	for i, step := range s.Runs {
		if _, err := step.Window.Window(); err != nil {
			return fmt.Errorf("runs[%d].window: %w", i, err)
		}
		for name := range step.Fail {
			if !known(name) {
				return fmt.Errorf("runs[%d].fail: unknown phase %q", i, name)
			}
		}
		for name, kind := range step.Fault {
			if !known(name) {
				return fmt.Errorf("runs[%d].fault: unknown phase %q", i, name)
			}
			if kind != FaultPanic && kind != FaultError && kind != FaultNil {
				return fmt.Errorf("runs[%d].fault.%s: unknown fault %q", i, name, kind)
			}
		}
		if e := step.Expect; e != nil && e.Status != "" {
			if _, err := drive.ParseRunStatus(e.Status); err != nil {
				return fmt.Errorf("runs[%d].expect.status: %w", i, err)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, len(s.Runs)); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, runs int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPhaseStatus, AssertDetail:
		if a.Run < 1 || a.Run > runs {
			return fmt.Errorf("assertions[%d]: run must be between 1 and %d", index, runs)
		}
		if a.Phase == "" {
			return fmt.Errorf("assertions[%d]: phase is required for %s", index, a.Type)
		}
		if a.Type == AssertPhaseStatus && a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for phase_status", index)
		}
		if a.Type == AssertDetail && a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for detail", index)
		}
	case AssertRunCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for run_count", index)
		}
	case AssertInvocations:
		if a.Phase == "" {
			return fmt.Errorf("assertions[%d]: phase is required for invocations", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for invocations", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
