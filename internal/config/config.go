// Package config loads, validates and freezes pipeline configuration.
//
// A configuration file is YAML, JSON or CUE. Loading expands ${VAR}
// environment references (process environment first, then an optional
// .env file), expands {key} placeholders against the flattened key space,
// validates the result against the embedded CUE schema and returns an
// immutable *Config. Phase implementations receive the same *Config for the
// whole run; nothing can modify it after Load returns.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/audit"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/window"
)

// DefaultGranularity applies when query_window.granularity is absent.
const DefaultGranularity = time.Hour

// Config is a validated, immutable pipeline configuration.
type Config struct {
	spec     Spec
	tree     map[string]any
	source   string
	settings window.Settings
	expected map[string]time.Duration
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	envFile string
	vars    map[string]string
	lookup  func(string) (string, bool)
}

// WithEnvFile reads additional ${VAR} values from a .env file. Process
// environment variables take precedence over the file.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) { o.envFile = path }
}

// WithVars adds values for {key} placeholders. They override keys of the
// same flattened name from the file.
func WithVars(vars map[string]string) Option {
	return func(o *loadOptions) {
		if o.vars == nil {
			o.vars = make(map[string]string, len(vars))
		}
		for k, v := range vars {
			o.vars[k] = v
		}
	}
}

// WithLookupEnv replaces os.LookupEnv for ${VAR} expansion.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(o *loadOptions) { o.lookup = fn }
}

// Load reads and validates the configuration file at path.
func Load(path string, opts ...Option) (*Config, error) {
	o := loadOptions{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(&o)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var tree map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		tree, err = compileCUE(data, path)
	case ".json", ".yaml", ".yml":
		tree, err = parseYAMLTree(data)
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .yaml, .yml, .json or .cue)", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	lookup := o.lookup
	if o.envFile != "" {
		fileVars, err := godotenv.Read(o.envFile)
		if err != nil {
			return nil, fmt.Errorf("read env file: %w", err)
		}
		base := lookup
		lookup = func(name string) (string, bool) {
			if v, ok := base(name); ok {
				return v, true
			}
			v, ok := fileVars[name]
			return v, ok
		}
	}

	if err := expandEnv(tree, lookup); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	expandPlaceholders(tree, o.vars)

	spec, err := validateAndDecode(tree)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg, err := build(spec, tree)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.source = path
	return cfg, nil
}

// New validates spec and freezes it. Placeholders are not expanded.
func New(spec Spec) (*Config, error) {
	validated, err := validateAndDecode(spec)
	if err != nil {
		return nil, err
	}
	tree, err := specTree(validated)
	if err != nil {
		return nil, err
	}
	return build(validated, tree)
}

func build(spec Spec, tree map[string]any) (*Config, error) {
	var problems []string

	spec.PipelineMetadata.PipelineName = strings.TrimSpace(spec.PipelineMetadata.PipelineName)

	settings, err := windowSettings(spec.QueryWindow)
	if err != nil {
		problems = append(problems, err.Error())
	}

	expected := make(map[string]time.Duration)
	for name, p := range spec.Phases {
		if p.ExpectedRunDuration == "" {
			continue
		}
		d, err := window.ParseAny(p.ExpectedRunDuration)
		if err != nil {
			problems = append(problems, fmt.Sprintf("phases.%s.expected_run_duration: %v", name, err))
			continue
		}
		expected[name] = d
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	return &Config{
		spec:     spec,
		tree:     tree,
		settings: settings,
		expected: expected,
	}, nil
}

func windowSettings(q *QueryWindowSpec) (window.Settings, error) {
	s := window.Settings{Granularity: DefaultGranularity}
	if q == nil {
		return s, nil
	}

	var errs []error
	if q.Granularity != "" {
		d, err := window.ParseDuration(q.Granularity)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("query_window.granularity: %w", err))
		case d <= 0:
			errs = append(errs, fmt.Errorf("query_window.granularity must be positive"))
		default:
			s.Granularity = d
		}
	}
	if q.XDaysBack != "" {
		d, err := window.ParseDuration(q.XDaysBack)
		if err != nil {
			errs = append(errs, fmt.Errorf("query_window.x_days_back: %w", err))
		}
		s.XDaysBack = d
	}
	if q.AcceptableStart != "" {
		t, err := ParseTime(q.AcceptableStart)
		if err != nil {
			errs = append(errs, fmt.Errorf("query_window.acceptable_data_fetch_start_time: %w", err))
		} else {
			s.AcceptableStart = &t
		}
	}
	if q.AcceptableEnd != "" {
		t, err := ParseTime(q.AcceptableEnd)
		if err != nil {
			errs = append(errs, fmt.Errorf("query_window.acceptable_data_fetch_end_time: %w", err))
		} else {
			s.AcceptableEnd = &t
		}
	}
	if s.AcceptableStart != nil && s.AcceptableEnd != nil && !s.AcceptableEnd.After(*s.AcceptableStart) {
		errs = append(errs, fmt.Errorf("query_window: acceptable end must be after acceptable start"))
	}
	return s, errors.Join(errs...)
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", window.DateLayout}

// ParseTime accepts RFC 3339, a zone-less timestamp (taken as UTC) or a
// plain date.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339 or YYYY-MM-DD", s)
}

// Source returns the file the configuration was loaded from, or "".
func (c *Config) Source() string { return c.source }

func (c *Config) PipelineName() string { return c.spec.PipelineMetadata.PipelineName }

func (c *Config) Metadata() Metadata { return c.spec.PipelineMetadata }

// PhaseEnabled reports the configured enabled flag of a phase, or def when
// the phase or its flag is absent.
func (c *Config) PhaseEnabled(name string, def bool) bool {
	p, ok := c.spec.Phases[name]
	if !ok || p.Enabled == nil {
		return def
	}
	return *p.Enabled
}

// Phase returns a copy of the configuration of one phase.
func (c *Config) Phase(name string) PhaseSpec {
	return c.spec.Phases[name].clone()
}

// ExpectedDuration returns the parsed expected_run_duration of a phase.
func (c *Config) ExpectedDuration(name string) (time.Duration, bool) {
	d, ok := c.expected[name]
	return d, ok
}

// PhaseTimeout returns the execution deadline of a phase, or 0 for none.
func (c *Config) PhaseTimeout(name string) time.Duration {
	return time.Duration(c.spec.Phases[name].TimeoutMinutes) * time.Minute
}

// Tolerances returns the audit tolerances with defaults applied.
func (c *Config) Tolerances() audit.Tolerances {
	tol := audit.Tolerances{
		SourceToStagePercent: audit.DefaultSourceToStagePercent,
		StageToTargetPercent: audit.DefaultStageToTargetPercent,
	}
	if ct := c.spec.Phases["audit"].CountTolerances; ct != nil {
		if ct.SourceToStagePercent != nil {
			tol.SourceToStagePercent = *ct.SourceToStagePercent
		}
		if ct.StageToTargetPercent != nil {
			tol.StageToTargetPercent = *ct.StageToTargetPercent
		}
	}
	return tol
}

// WindowSettings returns the parsed query_window section.
func (c *Config) WindowSettings() window.Settings {
	s := c.settings
	if s.AcceptableStart != nil {
		t := *s.AcceptableStart
		s.AcceptableStart = &t
	}
	if s.AcceptableEnd != nil {
		t := *s.AcceptableEnd
		s.AcceptableEnd = &t
	}
	return s
}

func (c *Config) SourceSystem() SystemSpec { return systemOrZero(c.spec.SourceSystem) }
func (c *Config) StageSystem() SystemSpec  { return systemOrZero(c.spec.StageSystem) }
func (c *Config) TargetSystem() SystemSpec { return systemOrZero(c.spec.TargetSystem) }

func systemOrZero(s *SystemSpec) SystemSpec {
	if s == nil {
		return SystemSpec{}
	}
	return s.clone()
}

// RecordStore returns the record_store connection, if configured.
func (c *Config) RecordStore() (ConnectionSpec, bool) {
	if c.spec.RecordStore == nil {
		return ConnectionSpec{}, false
	}
	return *c.spec.RecordStore, true
}

// Database returns the connection used by the SQL phase implementations.
func (c *Config) Database() (ConnectionSpec, bool) {
	if c.spec.Database == nil {
		return ConnectionSpec{}, false
	}
	return *c.spec.Database, true
}

// Value returns a copy of the value at a dot-separated path such as
// "phases.audit.count_tolerances".
func (c *Config) Value(path string) (any, bool) {
	v, ok := lookupPath(c.tree, path)
	if !ok {
		return nil, false
	}
	return normalize(v), true
}
