// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

/*
Package storage implements the SCIM persistence layer.

Each tenant owns three physical tables (t{N}_users, t{N}_groups,
t{N}_group_memberships) holding every resource twice: data_orig preserves
the client's JSON verbatim while data_norm holds the normalized lookup form
(lowercased keys, case-folded values except case-exact attributes). Filters
compile entirely against data_norm: case-insensitive literals are folded
before binding, case-exact literals bind verbatim.

The [Dialect] interface isolates everything PostgreSQL and SQLite disagree
on: placeholder style, JSON path extraction, and iterating JSON arrays
inside EXISTS subqueries. The query compiler, DDL generator, and the two
store implementations share the rest.
*/
package storage

import (
	"fmt"
	"strings"
)

// Dialect abstracts the SQL differences between the supported engines.
//
// JSON path segments are only ever derived from the schema catalog, never
// from client input; all client literals travel as bound parameters.
type Dialect interface {
	// Name identifies the dialect ("postgres" or "sqlite").
	Name() string

	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder(n int) string

	// TextExtract yields SQL evaluating to the text value at a JSON path.
	TextExtract(column string, path []string) string

	// NumberExtract yields SQL evaluating to a numeric cast of the JSON path.
	NumberExtract(column string, path []string) string

	// BoolCondition yields a complete predicate testing a JSON boolean.
	// Negated, it uses null-safe inequality so an absent attribute matches.
	BoolCondition(column string, path []string, value, negate bool) string

	// NullCondition yields a predicate matching an explicit JSON null,
	// or its null-safe negation.
	NullCondition(column string, path []string, negate bool) string

	// NotEqual joins two expressions with null-safe inequality, so an
	// absent attribute satisfies "ne".
	NotEqual(left, right string) string

	// NotExpr negates a predicate null-safely, so rows where the inner
	// predicate is unknown (absent attribute) still match.
	NotExpr(inner string) string

	// ArrayLengthPositive yields a predicate testing that the JSON array at
	// the path exists and is non-empty.
	ArrayLengthPositive(column string, path []string) string

	// ArrayExistsOpen begins an EXISTS subquery iterating the JSON array at
	// the given path. The returned string ends right before the element
	// predicate; close it with ArrayExistsClose.
	ArrayExistsOpen(column string, path []string) string

	// ArrayExistsClose terminates an ArrayExistsOpen subquery.
	ArrayExistsClose() string

	// ElemTextExtract yields the text at a path inside the current array element.
	ElemTextExtract(path []string) string

	// ElemNumberExtract yields a numeric cast of an element path.
	ElemNumberExtract(path []string) string

	// ElemBoolCondition yields a predicate testing an element boolean.
	ElemBoolCondition(path []string, value, negate bool) string

	// ElemNullCondition yields a predicate matching an explicit null element value.
	ElemNullCondition(path []string, negate bool) string

	// SortKeyExpr yields a case-insensitive sort key over a JSON path.
	SortKeyExpr(column string, path []string) string
}

// # PostgreSQL

// PostgresDialect targets the pgx-backed store.
type PostgresDialect struct{}

func (PostgresDialect) Name() string { return "postgres" }

func (PostgresDialect) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (PostgresDialect) TextExtract(column string, path []string) string {
	return fmt.Sprintf("%s #>> '{%s}'", column, strings.Join(path, ","))
}

func (d PostgresDialect) NumberExtract(column string, path []string) string {
	return fmt.Sprintf("(%s)::numeric", d.TextExtract(column, path))
}

// BoolCondition compares jsonb to a jsonb literal, so "true"-the-string
// never matches true-the-boolean.
func (PostgresDialect) BoolCondition(column string, path []string, value, negate bool) string {
	op := "="
	if negate {
		op = "IS DISTINCT FROM"
	}
	return fmt.Sprintf("%s #> '{%s}' %s '%t'::jsonb", column, strings.Join(path, ","), op, value)
}

func (PostgresDialect) NullCondition(column string, path []string, negate bool) string {
	op := "="
	if negate {
		op = "IS DISTINCT FROM"
	}
	return fmt.Sprintf("%s #> '{%s}' %s 'null'::jsonb", column, strings.Join(path, ","), op)
}

func (PostgresDialect) NotEqual(left, right string) string {
	return fmt.Sprintf("%s IS DISTINCT FROM %s", left, right)
}

func (PostgresDialect) NotExpr(inner string) string {
	return fmt.Sprintf("NOT COALESCE((%s), FALSE)", inner)
}

func (PostgresDialect) ArrayLengthPositive(column string, path []string) string {
	return fmt.Sprintf(
		"jsonb_typeof(%s #> '{%s}') = 'array' AND jsonb_array_length(%s #> '{%s}') > 0",
		column, strings.Join(path, ","), column, strings.Join(path, ","),
	)
}

func (PostgresDialect) ArrayExistsOpen(column string, path []string) string {
	return fmt.Sprintf(
		"EXISTS (SELECT 1 FROM jsonb_array_elements(%s #> '{%s}') AS elem WHERE ",
		column, strings.Join(path, ","),
	)
}

func (PostgresDialect) ArrayExistsClose() string { return ")" }

func (PostgresDialect) ElemTextExtract(path []string) string {
	return fmt.Sprintf("elem #>> '{%s}'", strings.Join(path, ","))
}

func (d PostgresDialect) ElemNumberExtract(path []string) string {
	return fmt.Sprintf("(%s)::numeric", d.ElemTextExtract(path))
}

func (PostgresDialect) ElemBoolCondition(path []string, value, negate bool) string {
	op := "="
	if negate {
		op = "IS DISTINCT FROM"
	}
	return fmt.Sprintf("elem #> '{%s}' %s '%t'::jsonb", strings.Join(path, ","), op, value)
}

func (PostgresDialect) ElemNullCondition(path []string, negate bool) string {
	op := "="
	if negate {
		op = "IS DISTINCT FROM"
	}
	return fmt.Sprintf("elem #> '{%s}' %s 'null'::jsonb", strings.Join(path, ","), op)
}

func (d PostgresDialect) SortKeyExpr(column string, path []string) string {
	return fmt.Sprintf("LOWER(%s)", d.TextExtract(column, path))
}

// # SQLite

// SQLiteDialect targets the database/sql store over mattn/go-sqlite3.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return "sqlite" }

func (SQLiteDialect) Placeholder(int) string { return "?" }

func (SQLiteDialect) TextExtract(column string, path []string) string {
	return fmt.Sprintf("json_extract(%s, '%s')", column, jsonPath(path))
}

func (d SQLiteDialect) NumberExtract(column string, path []string) string {
	return fmt.Sprintf("CAST(%s AS NUMERIC)", d.TextExtract(column, path))
}

// BoolCondition tests json_type, so the integer 1 and the string "true"
// never match the boolean true.
func (SQLiteDialect) BoolCondition(column string, path []string, value, negate bool) string {
	literal := "false"
	if value {
		literal = "true"
	}
	op := "="
	if negate {
		op = "IS NOT"
	}
	return fmt.Sprintf("json_type(%s, '%s') %s '%s'", column, jsonPath(path), op, literal)
}

func (SQLiteDialect) NullCondition(column string, path []string, negate bool) string {
	op := "="
	if negate {
		op = "IS NOT"
	}
	return fmt.Sprintf("json_type(%s, '%s') %s 'null'", column, jsonPath(path), op)
}

func (SQLiteDialect) NotEqual(left, right string) string {
	return fmt.Sprintf("%s IS NOT %s", left, right)
}

func (SQLiteDialect) NotExpr(inner string) string {
	return fmt.Sprintf("NOT COALESCE((%s), 0)", inner)
}

func (d SQLiteDialect) ArrayLengthPositive(column string, path []string) string {
	return fmt.Sprintf(
		"json_type(%s, '%s') = 'array' AND json_array_length(%s, '%s') > 0",
		column, jsonPath(path), column, jsonPath(path),
	)
}

func (SQLiteDialect) ArrayExistsOpen(column string, path []string) string {
	return fmt.Sprintf(
		"EXISTS (SELECT 1 FROM json_each(json_extract(%s, '%s')) WHERE ",
		column, jsonPath(path),
	)
}

func (SQLiteDialect) ArrayExistsClose() string { return ")" }

func (SQLiteDialect) ElemTextExtract(path []string) string {
	return fmt.Sprintf("json_extract(json_each.value, '%s')", jsonPath(path))
}

func (d SQLiteDialect) ElemNumberExtract(path []string) string {
	return fmt.Sprintf("CAST(%s AS NUMERIC)", d.ElemTextExtract(path))
}

func (SQLiteDialect) ElemBoolCondition(path []string, value, negate bool) string {
	literal := "false"
	if value {
		literal = "true"
	}
	op := "="
	if negate {
		op = "IS NOT"
	}
	return fmt.Sprintf("json_type(json_each.value, '%s') %s '%s'", jsonPath(path), op, literal)
}

func (SQLiteDialect) ElemNullCondition(path []string, negate bool) string {
	op := "="
	if negate {
		op = "IS NOT"
	}
	return fmt.Sprintf("json_type(json_each.value, '%s') %s 'null'", jsonPath(path), op)
}

func (d SQLiteDialect) SortKeyExpr(column string, path []string) string {
	return fmt.Sprintf("LOWER(%s)", d.TextExtract(column, path))
}

// jsonPath renders a $.a.b JSON path, quoting segments that contain
// characters outside the plain identifier set (schema URNs).
func jsonPath(path []string) string {
	var builder strings.Builder
	builder.WriteByte('$')
	for _, segment := range path {
		builder.WriteByte('.')
		if needsQuoting(segment) {
			builder.WriteByte('"')
			builder.WriteString(segment)
			builder.WriteByte('"')
		} else {
			builder.WriteString(segment)
		}
	}
	return builder.String()
}

func needsQuoting(segment string) bool {
	for _, r := range segment {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
		if !alnum {
			return true
		}
	}
	return false
}
