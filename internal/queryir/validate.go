package queryir

import (
	"fmt"
	"regexp"
	"strings"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*){0,2}$`)

// ValidationResult lists the problems found in a statement.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	Problems []string
}

func (r ValidationResult) String() string {
	if r.Valid {
		return "valid"
	}
	return strings.Join(r.Problems, "; ")
}

// Err returns the problems as one error, or nil.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("invalid statement: %s", r.String())
}

// Validate checks that a statement can be compiled safely:
//  1. Table and column names are plain identifiers
//  2. Compared values are not nil
//  3. Copy names at least one column and distinct tables
//  4. Delete and Update carry a filter
//
// Validate is a pure function with no side effects.
func Validate(stmt Statement) ValidationResult {
	v := &validator{}
	v.validateStatement(stmt)
	return ValidationResult{Valid: len(v.problems) == 0, Problems: v.problems}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) ident(what, name string) {
	if !identifier.MatchString(name) {
		v.addProblem("%s %q is not a valid identifier", what, name)
	}
}

func (v *validator) validateStatement(s Statement) {
	switch stmt := s.(type) {
	case nil:
		v.addProblem("nil statement")
	case Count:
		v.ident("table", stmt.From)
		v.validatePredicate(stmt.Filter)
	case Exists:
		v.ident("table", stmt.From)
	case Copy:
		v.ident("table", stmt.From)
		v.ident("table", stmt.Into)
		if stmt.From == stmt.Into {
			v.addProblem("copy from %s into itself", stmt.From)
		}
		if len(stmt.Columns) == 0 {
			v.addProblem("copy from %s names no columns", stmt.From)
		}
		for _, c := range stmt.Columns {
			v.ident("column", c)
		}
		v.validatePredicate(stmt.Filter)
	case Delete:
		v.ident("table", stmt.From)
		if stmt.Filter == nil {
			v.addProblem("delete from %s has no filter", stmt.From)
		}
		v.validatePredicate(stmt.Filter)
	case Update:
		v.ident("table", stmt.Table)
		if len(stmt.Set) == 0 {
			v.addProblem("update of %s sets no columns", stmt.Table)
		}
		for _, a := range stmt.Set {
			v.ident("column", a.Column)
		}
		if stmt.Filter == nil {
			v.addProblem("update of %s has no filter", stmt.Table)
		}
		v.validatePredicate(stmt.Filter)
	default:
		v.addProblem("unknown statement type %T", s)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.ident("column", pred.Field)
		v.value(pred.Field, pred.Value)
	case Before:
		v.ident("column", pred.Field)
		v.value(pred.Field, pred.Value)
	case Range:
		v.ident("column", pred.Field)
		v.value(pred.Field, pred.Start)
		v.value(pred.Field, pred.End)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) value(field string, val any) {
	if val == nil {
		v.addProblem("column %s compared to nil", field)
	}
}
