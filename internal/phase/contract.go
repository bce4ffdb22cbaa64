package phase

import (
	"context"
	"fmt"
	"sort"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/config"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/drive"
)

// Phase is the contract of a phase implementation.
//
// Execute must report anticipated problems such as an unreachable system or
// an empty result set as a Result with Halt set and an ErrorMessage. A
// returned error or a panic is treated as an implementation fault. Both halt
// the run.
//
// Execute blocks until the phase is done. It should honor ctx cancellation.
type Phase interface {
	Execute(ctx context.Context, cfg *config.Config, run drive.Snapshot) (Result, error)
}

// Func adapts a function to the Phase interface.
type Func func(ctx context.Context, cfg *config.Config, run drive.Snapshot) (Result, error)

func (f Func) Execute(ctx context.Context, cfg *config.Config, run drive.Snapshot) (Result, error) {
	return f(ctx, cfg, run)
}

// Implementations maps phase names to implementations. It is filled once at
// startup and read by the executor.
type Implementations struct {
	byName map[string]Phase
}

// NewImplementations returns an empty table.
func NewImplementations() *Implementations {
	return &Implementations{byName: make(map[string]Phase)}
}

// Register binds impl to a registry phase. Unknown names and duplicate
// registrations are errors.
func (t *Implementations) Register(reg *Registry, name string, impl Phase) error {
	if _, ok := reg.Lookup(name); !ok {
		return fmt.Errorf("cannot register %q: not a registry phase", name)
	}
	if impl == nil {
		return fmt.Errorf("cannot register %q: nil implementation", name)
	}
	if _, ok := t.byName[name]; ok {
		return fmt.Errorf("phase %q already has an implementation", name)
	}
	t.byName[name] = impl
	return nil
}

// Lookup returns the implementation of name.
func (t *Implementations) Lookup(name string) (Phase, bool) {
	p, ok := t.byName[name]
	return p, ok
}

// Missing lists the enabled registry phases without an implementation.
func (t *Implementations) Missing(reg *Registry, cfg *config.Config) []string {
	var missing []string
	for _, d := range reg.Definitions() {
		if !d.Enabled(cfg) {
			continue
		}
		if _, ok := t.byName[d.Name]; !ok {
			missing = append(missing, d.Name)
		}
	}
	return missing
}

// Names lists the registered phase names, sorted.
func (t *Implementations) Names() []string {
	names := make([]string, 0, len(t.byName))
	for n := range t.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
