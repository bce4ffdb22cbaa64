// Package phase defines the ordered phase registry, the contract every
// phase implementation satisfies, and the tagged results phases return.
//
// The registry order is the only source of sequencing. Nothing else in the
// module lists phases in order; callers iterate Registry.Definitions.
package phase

import (
	"fmt"
	"slices"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/config"
)

// Phase names, in registry order.
const (
	StalePipelineHandling = "stale_pipeline_handling"
	PreValidation         = "pre_validation"
	SourceCount           = "source_count"
	SourceToStageTransfer = "source_to_stage_transfer"
	StageCount            = "stage_count"
	StageToTargetTransfer = "stage_to_target_transfer"
	TargetCount           = "target_count"
	Audit                 = "audit"
	StageCleaning         = "stage_cleaning"
	TargetCleaning        = "target_cleaning"
)

// Definition is one registry entry.
type Definition struct {
	Name string
	// Mandatory phases are enabled unless configuration disables them.
	// Optional phases run only when configuration enables them.
	Mandatory bool
}

// Enabled evaluates the phase's enabled predicate against cfg.
func (d Definition) Enabled(cfg *config.Config) bool {
	return cfg.PhaseEnabled(d.Name, d.Mandatory)
}

// Registry is an immutable ordered list of phase definitions.
type Registry struct {
	defs []Definition
}

var defaultDefinitions = []Definition{
	{Name: StalePipelineHandling, Mandatory: true},
	{Name: PreValidation, Mandatory: true},
	{Name: SourceCount, Mandatory: true},
	{Name: SourceToStageTransfer, Mandatory: true},
	{Name: StageCount, Mandatory: true},
	{Name: StageToTargetTransfer, Mandatory: true},
	{Name: TargetCount, Mandatory: true},
	{Name: Audit, Mandatory: true},
	{Name: StageCleaning, Mandatory: true},
	{Name: TargetCleaning, Mandatory: false},
}

// Default returns the standard ten-phase registry.
func Default() *Registry {
	return &Registry{defs: slices.Clone(defaultDefinitions)}
}

// NewRegistry builds a registry from definitions in execution order.
func NewRegistry(defs ...Definition) (*Registry, error) {
	seen := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("phase definition without a name")
		}
		if _, ok := seen[d.Name]; ok {
			return nil, fmt.Errorf("phase %q registered twice", d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("registry needs at least one phase")
	}
	return &Registry{defs: slices.Clone(defs)}, nil
}

// Definitions returns the definitions in execution order.
func (r *Registry) Definitions() []Definition { return slices.Clone(r.defs) }

// Names returns the phase names in execution order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.defs))
	for i, d := range r.defs {
		names[i] = d.Name
	}
	return names
}

// Lookup returns the definition of name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	i := r.Index(name)
	if i < 0 {
		return Definition{}, false
	}
	return r.defs[i], true
}

// Index returns the position of name, or -1.
func (r *Registry) Index(name string) int {
	return slices.IndexFunc(r.defs, func(d Definition) bool { return d.Name == name })
}

// AllDisabled reports whether no phase is enabled under cfg.
func (r *Registry) AllDisabled(cfg *config.Config) bool {
	for _, d := range r.defs {
		if d.Enabled(cfg) {
			return false
		}
	}
	return true
}
