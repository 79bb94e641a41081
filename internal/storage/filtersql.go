// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package storage

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
	"github.com/hiromu-dev/torii/internal/scim/filter"
	"github.com/hiromu-dev/torii/internal/scim/schema"
)

// normColumn is the JSON column every filter predicate targets. Keys are
// lowercased and non-case-exact values folded, so case-insensitive
// comparisons bind folded literals and case-exact ones bind verbatim.
const normColumn = "data_norm"

// CompileFilter translates a parsed SCIM filter into a SQL predicate over
// the normalized document column, with bound parameters starting at
// startArg. Attribute names are resolved against the schema catalog and
// unknown attributes are rejected, so only catalog-derived identifiers are
// ever interpolated into SQL.
func CompileFilter(dialect Dialect, resourceType string, expr filter.Expression, startArg int) (string, []any, error) {
	c := &filterCompiler{
		dialect:      dialect,
		resourceType: resourceType,
		nextArg:      startArg,
		folder:       cases.Fold(),
	}

	sql, err := c.compile(expr, nil)
	if err != nil {
		return "", nil, err
	}
	return sql, c.args, nil
}

type filterCompiler struct {
	dialect      Dialect
	resourceType string
	args         []any
	nextArg      int
	folder       cases.Caser
}

// complexScope marks compilation inside a value filter's EXISTS subquery,
// where attribute paths resolve relative to the current array element.
type complexScope struct {
	// attribute is the multi-valued attribute path owning the scope.
	attribute string
	// baseLen is how many resolved segments the array path consumes.
	baseLen int
	// multiIndex is the array's position in resolved segment lists.
	multiIndex int
}

// extractors bundles the value-extraction SQL for one scope, either the
// whole document or the current array element.
type extractors struct {
	text    func(path []string) string
	number  func(path []string) string
	boolean func(path []string, value, negate bool) string
	null    func(path []string, negate bool) string
}

func (c *filterCompiler) docExtractors() extractors {
	d := c.dialect
	return extractors{
		text:   func(path []string) string { return d.TextExtract(normColumn, path) },
		number: func(path []string) string { return d.NumberExtract(normColumn, path) },
		boolean: func(path []string, value, negate bool) string {
			return d.BoolCondition(normColumn, path, value, negate)
		},
		null: func(path []string, negate bool) string {
			return d.NullCondition(normColumn, path, negate)
		},
	}
}

func (c *filterCompiler) elemExtractors() extractors {
	d := c.dialect
	return extractors{
		text:    d.ElemTextExtract,
		number:  d.ElemNumberExtract,
		boolean: d.ElemBoolCondition,
		null:    d.ElemNullCondition,
	}
}

// # Compilation

func (c *filterCompiler) compile(expr filter.Expression, scope *complexScope) (string, error) {
	switch node := expr.(type) {
	case *filter.Logical:
		left, err := c.compile(node.Left, scope)
		if err != nil {
			return "", err
		}
		right, err := c.compile(node.Right, scope)
		if err != nil {
			return "", err
		}
		return "(" + left + " " + strings.ToUpper(node.Operator) + " " + right + ")", nil

	case *filter.Not:
		inner, err := c.compile(node.Expression, scope)
		if err != nil {
			return "", err
		}
		return c.dialect.NotExpr(inner), nil

	case *filter.Present:
		return c.compilePresent(node, scope)

	case *filter.Comparison:
		return c.compileComparison(node, scope)

	case *filter.Complex:
		return c.compileComplex(node, scope)

	default:
		return "", invalidFilter("Unsupported filter expression")
	}
}

func (c *filterCompiler) compileComparison(node *filter.Comparison, scope *complexScope) (string, error) {
	if scope != nil {
		fullPath := scope.attribute + "." + node.Path
		resolved, ok := schema.ResolveSQLPath(c.resourceType, fullPath)
		if !ok || resolved.MultiIndex != scope.multiIndex {
			return "", invalidFilter("Unknown attribute in filter: " + node.Path)
		}
		elemPath := resolved.Segments[scope.baseLen:]
		caseExact := schema.IsCaseExact(c.resourceType, fullPath)
		return c.buildComparison(node, c.elemExtractors(), elemPath, caseExact)
	}

	resolved, ok := schema.ResolveSQLPath(c.resourceType, node.Path)
	if !ok {
		return "", invalidFilter("Unknown attribute in filter: " + node.Path)
	}
	caseExact := schema.IsCaseExact(c.resourceType, node.Path)

	segments := resolved.Segments
	last := len(segments) - 1
	switch {
	case resolved.MultiIndex < 0:
		return c.buildComparison(node, c.docExtractors(), segments, caseExact)

	case resolved.MultiIndex == last:
		// A bare multi-valued attribute addresses the first element's
		// "value" sub-attribute, mirroring the in-memory evaluator.
		addressed := append(append([]string{}, segments...), "0", "value")
		return c.buildComparison(node, c.docExtractors(), addressed, caseExact)

	default:
		// A dotted path through a multi-valued attribute matches any element.
		arrayPath := segments[:resolved.MultiIndex+1]
		elemPath := segments[resolved.MultiIndex+1:]
		predicate, err := c.buildComparison(node, c.elemExtractors(), elemPath, caseExact)
		if err != nil {
			return "", err
		}
		return c.dialect.ArrayExistsOpen(normColumn, arrayPath) + predicate + c.dialect.ArrayExistsClose(), nil
	}
}

// buildComparison renders one operator/literal pair against a scope.
func (c *filterCompiler) buildComparison(node *filter.Comparison, ex extractors, path []string, caseExact bool) (string, error) {
	switch literal := node.Value.(type) {
	case nil:
		switch node.Operator {
		case filter.OpEq:
			return ex.null(path, false), nil
		case filter.OpNe:
			return ex.null(path, true), nil
		}
		return "", invalidFilter("Operator " + node.Operator + " does not accept null")

	case bool:
		switch node.Operator {
		case filter.OpEq:
			return ex.boolean(path, literal, false), nil
		case filter.OpNe:
			return ex.boolean(path, literal, true), nil
		}
		return "", invalidFilter("Operator " + node.Operator + " does not accept a boolean")

	case float64:
		expr := ex.number(path)
		switch node.Operator {
		case filter.OpEq:
			return expr + " = " + c.bind(literal), nil
		case filter.OpNe:
			return c.dialect.NotEqual(expr, c.bind(literal)), nil
		case filter.OpGt:
			return expr + " > " + c.bind(literal), nil
		case filter.OpGe:
			return expr + " >= " + c.bind(literal), nil
		case filter.OpLt:
			return expr + " < " + c.bind(literal), nil
		case filter.OpLe:
			return expr + " <= " + c.bind(literal), nil
		}
		return "", invalidFilter("Operator " + node.Operator + " does not accept a number")

	case string:
		return c.buildStringComparison(node.Operator, literal, ex, path, caseExact)

	default:
		return "", invalidFilter("Unsupported literal type in filter")
	}
}

func (c *filterCompiler) buildStringComparison(operator, literal string, ex extractors, path []string, caseExact bool) (string, error) {
	expr := ex.text(path)

	bound := literal
	if !caseExact {
		bound = c.folder.String(literal)
	}

	switch operator {
	case filter.OpEq:
		return expr + " = " + c.bind(bound), nil
	case filter.OpNe:
		return c.dialect.NotEqual(expr, c.bind(bound)), nil

	case filter.OpCo, filter.OpSw, filter.OpEw:
		// Substring matching is case-insensitive regardless of the
		// attribute's case-exactness.
		pattern := escapeLike(c.folder.String(literal))
		switch operator {
		case filter.OpCo:
			pattern = "%" + pattern + "%"
		case filter.OpSw:
			pattern += "%"
		case filter.OpEw:
			pattern = "%" + pattern
		}
		return "LOWER(" + expr + ") LIKE " + c.bind(pattern) + ` ESCAPE '\'`, nil

	case filter.OpGt, filter.OpGe, filter.OpLt, filter.OpLe:
		if !caseExact {
			expr = "LOWER(" + expr + ")"
		}
		op := map[string]string{
			filter.OpGt: ">", filter.OpGe: ">=", filter.OpLt: "<", filter.OpLe: "<=",
		}[operator]
		return expr + " " + op + " " + c.bind(bound), nil
	}

	return "", invalidFilter("Operator " + operator + " does not accept a string")
}

func (c *filterCompiler) compilePresent(node *filter.Present, scope *complexScope) (string, error) {
	if scope != nil {
		fullPath := scope.attribute + "." + node.Path
		resolved, ok := schema.ResolveSQLPath(c.resourceType, fullPath)
		if !ok || resolved.MultiIndex != scope.multiIndex {
			return "", invalidFilter("Unknown attribute in filter: " + node.Path)
		}
		return presentPredicate(c.elemExtractors(), resolved.Segments[scope.baseLen:]), nil
	}

	resolved, ok := schema.ResolveSQLPath(c.resourceType, node.Path)
	if !ok {
		return "", invalidFilter("Unknown attribute in filter: " + node.Path)
	}

	segments := resolved.Segments
	last := len(segments) - 1
	switch {
	case resolved.MultiIndex < 0:
		return presentPredicate(c.docExtractors(), segments), nil

	case resolved.MultiIndex == last:
		// A multi-valued attribute is present when its array is non-empty.
		return c.dialect.ArrayLengthPositive(normColumn, segments), nil

	default:
		arrayPath := segments[:resolved.MultiIndex+1]
		elemPath := segments[resolved.MultiIndex+1:]
		predicate := presentPredicate(c.elemExtractors(), elemPath)
		return c.dialect.ArrayExistsOpen(normColumn, arrayPath) + predicate + c.dialect.ArrayExistsClose(), nil
	}
}

// presentPredicate matches a non-null, non-empty-string value.
func presentPredicate(ex extractors, path []string) string {
	expr := ex.text(path)
	return "(" + expr + " IS NOT NULL AND " + expr + " <> '')"
}

func (c *filterCompiler) compileComplex(node *filter.Complex, scope *complexScope) (string, error) {
	if scope != nil {
		return "", invalidFilter("Nested value filters are not supported")
	}

	resolved, ok := schema.ResolveSQLPath(c.resourceType, node.Attribute)
	if !ok {
		return "", invalidFilter("Unknown attribute in filter: " + node.Attribute)
	}
	if resolved.Attribute == nil || !resolved.Attribute.MultiValued ||
		resolved.MultiIndex != len(resolved.Segments)-1 {
		return "", invalidFilter("Value filter requires a multi-valued attribute: " + node.Attribute)
	}

	inner, err := c.compile(node.Filter, &complexScope{
		attribute:  node.Attribute,
		baseLen:    len(resolved.Segments),
		multiIndex: resolved.MultiIndex,
	})
	if err != nil {
		return "", err
	}

	return c.dialect.ArrayExistsOpen(normColumn, resolved.Segments) + inner + c.dialect.ArrayExistsClose(), nil
}

// # Helpers

// bind appends a parameter and returns its placeholder.
func (c *filterCompiler) bind(value any) string {
	c.args = append(c.args, value)
	placeholder := c.dialect.Placeholder(c.nextArg)
	c.nextArg++
	return placeholder
}

// escapeLike escapes LIKE metacharacters with a backslash.
func escapeLike(s string) string {
	var builder strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '%', '_':
			builder.WriteByte('\\')
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

// invalidFilter builds the canonical invalidFilter error.
func invalidFilter(detail string) error {
	return apperr.BadRequest(apperr.ScimTypeInvalidFilter, detail)
}
