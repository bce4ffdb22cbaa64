// Package sqlphases provides reference implementations of every registry
// phase over SQL tables.
//
// Source, stage and target are tables in one database reachable through
// database/sql, named by the source_system, stage_system and target_system
// configuration sections. Each section names its table and timestamp
// column; transfers also need the column list. Identifiers are validated
// by the configuration schema before they reach SQL text. Values are
// always bound.
//
// Window bounds are bound as time.Time on PostgreSQL. On SQLite they are
// bound as text in the section's timestamp_format (a Go time layout),
// RFC 3339 in UTC by default, so stored timestamps must sort as text.
//
// Anticipated failures such as an unreachable table are reported as
// halting results, never as Go errors.
package sqlphases
