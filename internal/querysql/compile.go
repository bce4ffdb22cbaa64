// Package querysql compiles queryir statements to parameterized SQL.
package querysql

import (
	"fmt"
	"strings"

	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/queryir"
	"github.com/GNavneethGithub/pipeline-framework-project-01/internal/store"
)

// Compiler turns statements into SQL for one dialect.
//
// Values are never interpolated: every value becomes a placeholder in the
// dialect's syntax and is returned in the params slice.
type Compiler struct {
	Dialect store.Dialect
}

// NewCompiler returns a compiler for d.
func NewCompiler(d store.Dialect) *Compiler {
	return &Compiler{Dialect: d}
}

// Compile validates stmt and converts it to SQL.
func (c *Compiler) Compile(stmt queryir.Statement) (string, []any, error) {
	if err := queryir.Validate(stmt).Err(); err != nil {
		return "", nil, err
	}

	var sql string
	var params []any
	switch s := stmt.(type) {
	case queryir.Count:
		where, p := c.where(s.Filter)
		sql, params = "SELECT COUNT(*) FROM "+s.From+where, p
	case queryir.Exists:
		sql = "SELECT 1 FROM " + s.From + " WHERE 1 = 0"
	case queryir.Copy:
		cols := strings.Join(s.Columns, ", ")
		where, p := c.where(s.Filter)
		sql = fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s%s", s.Into, cols, cols, s.From, where)
		params = p
	case queryir.Delete:
		where, p := c.where(s.Filter)
		sql, params = "DELETE FROM "+s.From+where, p
	case queryir.Update:
		sets := make([]string, len(s.Set))
		for i, a := range s.Set {
			sets[i] = a.Column + " = ?"
			params = append(params, a.Value)
		}
		where, p := c.where(s.Filter)
		sql = fmt.Sprintf("UPDATE %s SET %s%s", s.Table, strings.Join(sets, ", "), where)
		params = append(params, p...)
	default:
		return "", nil, fmt.Errorf("unsupported statement type: %T", stmt)
	}
	return c.Dialect.Rebind(sql), params, nil
}

func (c *Compiler) where(p queryir.Predicate) (string, []any) {
	if p == nil {
		return "", nil
	}
	sql, params := c.predicate(p)
	return " WHERE " + sql, params
}

// predicate compiles a validated predicate.
func (c *Compiler) predicate(p queryir.Predicate) (string, []any) {
	switch pred := p.(type) {
	case queryir.Equals:
		return pred.Field + " = ?", []any{pred.Value}
	case queryir.Before:
		return pred.Field + " < ?", []any{pred.Value}
	case queryir.Range:
		return fmt.Sprintf("%s >= ? AND %s < ?", pred.Field, pred.Field), []any{pred.Start, pred.End}
	case queryir.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil
		}
		parts := make([]string, 0, len(pred.Predicates))
		var params []any
		for _, sub := range pred.Predicates {
			sql, p := c.predicate(sub)
			if _, nested := sub.(queryir.And); nested {
				sql = "(" + sql + ")"
			}
			parts = append(parts, sql)
			params = append(params, p...)
		}
		return strings.Join(parts, " AND "), params
	}
	return "1 = 1", nil
}
