package config

// Spec is the decoded pipeline configuration file. Field names follow the
// file format; every section except pipeline_metadata is optional.
type Spec struct {
	PipelineMetadata Metadata             `json:"pipeline_metadata"`
	QueryWindow      *QueryWindowSpec     `json:"query_window,omitempty"`
	Phases           map[string]PhaseSpec `json:"phases,omitempty"`
	SourceSystem     *SystemSpec          `json:"source_system,omitempty"`
	StageSystem      *SystemSpec          `json:"stage_system,omitempty"`
	TargetSystem     *SystemSpec          `json:"target_system,omitempty"`
	RecordStore      *ConnectionSpec      `json:"record_store,omitempty"`
	Database         *ConnectionSpec      `json:"database,omitempty"`
}

type Metadata struct {
	PipelineName string `json:"pipeline_name"`
	OwnerEmail   string `json:"owner_email,omitempty"`
	Description  string `json:"description,omitempty"`
}

type QueryWindowSpec struct {
	Granularity     string `json:"granularity,omitempty"`
	XDaysBack       string `json:"x_days_back,omitempty"`
	AcceptableStart string `json:"acceptable_data_fetch_start_time,omitempty"`
	AcceptableEnd   string `json:"acceptable_data_fetch_end_time,omitempty"`
}

// PhaseSpec configures one registry phase.
type PhaseSpec struct {
	// Enabled overrides the phase's default. Nil means "use the default".
	Enabled             *bool          `json:"enabled,omitempty"`
	ExpectedRunDuration string         `json:"expected_run_duration,omitempty"`
	TimeoutMinutes      int            `json:"timeout_minutes,omitempty"`
	StaleAfterMinutes   int            `json:"stale_after_minutes,omitempty"`
	RetentionDays       int            `json:"retention_days,omitempty"`
	CountTolerances     *ToleranceSpec `json:"count_tolerances,omitempty"`
}

type ToleranceSpec struct {
	SourceToStagePercent *float64 `json:"source_to_stage_tolerance_percent,omitempty"`
	StageToTargetPercent *float64 `json:"stage_to_target_tolerance_percent,omitempty"`
}

// SystemSpec describes one of the source, stage or target tables.
type SystemSpec struct {
	Type            string            `json:"type,omitempty"`
	Table           string            `json:"table,omitempty"`
	TimestampColumn string            `json:"timestamp_column,omitempty"`
	Columns         []string          `json:"columns,omitempty"`
	StatusColumn    string            `json:"status_column,omitempty"`
	ModifiedColumn  string            `json:"modified_column,omitempty"`
	TimestampFormat string            `json:"timestamp_format,omitempty"`
	Options         map[string]string `json:"options,omitempty"`
}

// ConnectionSpec names a database/sql driver and DSN.
type ConnectionSpec struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

func (s SystemSpec) clone() SystemSpec {
	out := s
	if s.Columns != nil {
		out.Columns = append([]string(nil), s.Columns...)
	}
	if s.Options != nil {
		out.Options = make(map[string]string, len(s.Options))
		for k, v := range s.Options {
			out.Options[k] = v
		}
	}
	return out
}

func (p PhaseSpec) clone() PhaseSpec {
	out := p
	if p.Enabled != nil {
		v := *p.Enabled
		out.Enabled = &v
	}
	if p.CountTolerances != nil {
		t := *p.CountTolerances
		if t.SourceToStagePercent != nil {
			v := *t.SourceToStagePercent
			t.SourceToStagePercent = &v
		}
		if t.StageToTargetPercent != nil {
			v := *t.StageToTargetPercent
			t.StageToTargetPercent = &v
		}
		out.CountTolerances = &t
	}
	return out
}
