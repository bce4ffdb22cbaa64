package drive

import (
	"fmt"
	"slices"
)

// PhaseSets holds the ordered, disjoint phase membership lists of a run.
//
// The zero value is an empty partition. Use NewPhaseSets for a fresh run and
// RestorePhaseSets when loading a persisted record.
type PhaseSets struct {
	completed []string
	skipped   []string
	pending   []string
	failed    string
}

// NewPhaseSets returns sets with every name pending, in the given order.
func NewPhaseSets(names []string) (PhaseSets, error) {
	if err := checkUnique(names); err != nil {
		return PhaseSets{}, err
	}
	return PhaseSets{pending: slices.Clone(names)}, nil
}

// RestorePhaseSets rebuilds sets from persisted lists. The lists must be
// pairwise disjoint; registry coverage is checked separately by Validate.
func RestorePhaseSets(completed, skipped, pending []string, failed string) (PhaseSets, error) {
	all := make([]string, 0, len(completed)+len(skipped)+len(pending)+1)
	all = append(all, completed...)
	all = append(all, skipped...)
	all = append(all, pending...)
	if failed != "" {
		all = append(all, failed)
	}
	if err := checkUnique(all); err != nil {
		return PhaseSets{}, err
	}
	return PhaseSets{
		completed: slices.Clone(completed),
		skipped:   slices.Clone(skipped),
		pending:   slices.Clone(pending),
		failed:    failed,
	}, nil
}

func checkUnique(names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			return fmt.Errorf("empty phase name")
		}
		if _, ok := seen[n]; ok {
			return fmt.Errorf("phase %q appears more than once", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// Completed returns a copy of the completed phase names in completion order.
func (s PhaseSets) Completed() []string { return nonNil(s.completed) }

// Skipped returns a copy of the skipped phase names in skip order.
func (s PhaseSets) Skipped() []string { return nonNil(s.skipped) }

// Pending returns a copy of the pending phase names in registry order.
func (s PhaseSets) Pending() []string { return nonNil(s.pending) }

// Failed returns the failed phase name, or "" when no phase failed.
func (s PhaseSets) Failed() string { return s.failed }

func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return slices.Clone(names)
}

// IsPending reports whether name is still pending.
func (s PhaseSets) IsPending(name string) bool {
	return slices.Contains(s.pending, name)
}

// Validate checks that the four sets partition exactly the given registry
// names with no overlap.
func (s PhaseSets) Validate(registry []string) error {
	counts := make(map[string]int, len(registry))
	note := func(list string, names ...string) error {
		for _, n := range names {
			if !slices.Contains(registry, n) {
				return fmt.Errorf("%s phase %q is not in the registry", list, n)
			}
			counts[n]++
		}
		return nil
	}

	if err := note("completed", s.completed...); err != nil {
		return err
	}
	if err := note("skipped", s.skipped...); err != nil {
		return err
	}
	if err := note("pending", s.pending...); err != nil {
		return err
	}
	if s.failed != "" {
		if err := note("failed", s.failed); err != nil {
			return err
		}
	}

	for _, n := range registry {
		switch counts[n] {
		case 0:
			return fmt.Errorf("phase %q is missing from every phase set", n)
		case 1:
		default:
			return fmt.Errorf("phase %q appears in more than one phase set", n)
		}
	}
	return nil
}

// move returns a copy of s with name moved out of pending into the set
// selected by status. s itself is not modified.
func (s PhaseSets) move(name string, status PhaseStatus) (PhaseSets, error) {
	idx := slices.Index(s.pending, name)
	if idx < 0 {
		return PhaseSets{}, fmt.Errorf("phase %q is not pending", name)
	}

	next := PhaseSets{
		completed: slices.Clone(s.completed),
		skipped:   slices.Clone(s.skipped),
		pending:   slices.Delete(slices.Clone(s.pending), idx, idx+1),
		failed:    s.failed,
	}

	switch status {
	case PhaseCompleted:
		next.completed = append(next.completed, name)
	case PhaseSkipped:
		next.skipped = append(next.skipped, name)
	case PhaseFailed:
		if s.failed != "" {
			return PhaseSets{}, fmt.Errorf("phase %q already failed, cannot fail %q", s.failed, name)
		}
		next.failed = name
	default:
		return PhaseSets{}, fmt.Errorf("phase %q cannot move to status %s", name, status)
	}
	return next, nil
}

func (s PhaseSets) clone() PhaseSets {
	return PhaseSets{
		completed: slices.Clone(s.completed),
		skipped:   slices.Clone(s.skipped),
		pending:   slices.Clone(s.pending),
		failed:    s.failed,
	}
}
