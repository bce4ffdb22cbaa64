// Package queryir describes the statements the SQL phases run against
// source, stage and target tables, independent of any SQL dialect.
//
// Statements and predicates are sealed interfaces: only types in this
// package implement them, so backends can switch over them exhaustively.
//
//	Count   SELECT COUNT(*) FROM t WHERE ...
//	Exists  SELECT 1 FROM t WHERE 1 = 0
//	Copy    INSERT INTO dst (cols) SELECT cols FROM src WHERE ...
//	Delete  DELETE FROM t WHERE ...
//	Update  UPDATE t SET c = v WHERE ...
//
// Table and column names come from pipeline configuration and end up in
// SQL text, so Validate rejects anything that is not a plain (optionally
// schema-qualified) identifier. Values are always bound as parameters.
package queryir
