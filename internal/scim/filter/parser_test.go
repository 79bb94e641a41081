// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiromu-dev/torii/internal/scim/filter"
)

/*
TestParse_Comparison tests single comparison expressions with typed literals.
*/
func TestParse_Comparison(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantPath     string
		wantOperator string
		wantValue    any
	}{
		{"string_eq", `userName eq "bjensen"`, "userName", "eq", "bjensen"},
		{"string_with_escapes", `displayName eq "say \"hi\""`, "displayName", "eq", `say "hi"`},
		{"number_gt", `meta.version gt 3`, "meta.version", "gt", float64(3)},
		{"decimal_le", `urn:ietf:params:scim:schemas:extension:enterprise:2.0:User:employeeNumber le 10.5`,
			"urn:ietf:params:scim:schemas:extension:enterprise:2.0:User:employeeNumber", "le", 10.5},
		{"boolean_eq", `active eq true`, "active", "eq", true},
		{"null_eq", `externalId eq null`, "externalId", "eq", nil},
		{"dotted_path", `name.familyName co "O'Malley"`, "name.familyName", "co", "O'Malley"},
		{"operator_case_insensitive", `userName EQ "x"`, "userName", "eq", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := filter.Parse(tt.input)
			require.NoError(t, err)

			comparison, ok := expr.(*filter.Comparison)
			require.True(t, ok, "expected *Comparison, got %T", expr)
			assert.Equal(t, tt.wantPath, comparison.Path)
			assert.Equal(t, tt.wantOperator, comparison.Operator)
			assert.Equal(t, tt.wantValue, comparison.Value)
		})
	}
}

/*
TestParse_Present tests the pr operator.
*/
func TestParse_Present(t *testing.T) {
	expr, err := filter.Parse("title pr")
	require.NoError(t, err)

	present, ok := expr.(*filter.Present)
	require.True(t, ok)
	assert.Equal(t, "title", present.Path)
}

/*
TestParse_Logical tests and/or precedence: and binds tighter than or.
*/
func TestParse_Logical(t *testing.T) {
	expr, err := filter.Parse(`title pr or userType eq "Intern" and active eq true`)
	require.NoError(t, err)

	root, ok := expr.(*filter.Logical)
	require.True(t, ok)
	assert.Equal(t, "or", root.Operator)

	_, ok = root.Left.(*filter.Present)
	assert.True(t, ok, "left of or should be the pr expression")

	right, ok := root.Right.(*filter.Logical)
	require.True(t, ok, "right of or should be the and expression")
	assert.Equal(t, "and", right.Operator)
}

/*
TestParse_Grouping tests parentheses overriding precedence.
*/
func TestParse_Grouping(t *testing.T) {
	expr, err := filter.Parse(`(title pr or userType eq "Intern") and active eq true`)
	require.NoError(t, err)

	root, ok := expr.(*filter.Logical)
	require.True(t, ok)
	assert.Equal(t, "and", root.Operator)

	left, ok := root.Left.(*filter.Logical)
	require.True(t, ok)
	assert.Equal(t, "or", left.Operator)
}

/*
TestParse_Not tests negation of a parenthesized group.
*/
func TestParse_Not(t *testing.T) {
	expr, err := filter.Parse(`not (userName eq "bjensen")`)
	require.NoError(t, err)

	negation, ok := expr.(*filter.Not)
	require.True(t, ok)

	inner, ok := negation.Expression.(*filter.Comparison)
	require.True(t, ok)
	assert.Equal(t, "userName", inner.Path)
}

/*
TestParse_Complex tests attr[valueFilter] expressions.
*/
func TestParse_Complex(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantAttribute string
	}{
		{"simple_value_filter", `emails[type eq "work"]`, "emails"},
		{"compound_inner", `emails[type eq "work" and value co "@example.com"]`, "emails"},
		{"members", `members[value eq "2819c223-7f76-453a-919d-413861904646"]`, "members"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := filter.Parse(tt.input)
			require.NoError(t, err)

			complexExpr, ok := expr.(*filter.Complex)
			require.True(t, ok, "expected *Complex, got %T", expr)
			assert.Equal(t, tt.wantAttribute, complexExpr.Attribute)
			assert.NotNil(t, complexExpr.Filter)
		})
	}
}

/*
TestParse_KeywordInsideQuotes tests that and/or/pr inside string literals
are not treated as operators.
*/
func TestParse_KeywordInsideQuotes(t *testing.T) {
	expr, err := filter.Parse(`displayName eq "Research and Development"`)
	require.NoError(t, err)

	comparison, ok := expr.(*filter.Comparison)
	require.True(t, ok)
	assert.Equal(t, "Research and Development", comparison.Value)
}

/*
TestParse_Invalid tests that malformed filters are rejected.
*/
func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing_value", "userName eq"},
		{"unknown_operator", `userName xy "x"`},
		{"unterminated_string", `userName eq "bjensen`},
		{"unbalanced_paren", `(userName eq "x"`},
		{"unbalanced_bracket", `emails[type eq "work"`},
		{"bare_attribute", "userName"},
		{"trailing_garbage", `userName eq "x" extra`},
		{"path_with_spaces", `user name eq "x"`},
		{"pr_with_value", `title pr "x"`},
		{"nested_value_filter", `emails[sub[type eq "work"]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := filter.Parse(tt.input)
			assert.Error(t, err)
		})
	}
}

/*
TestParse_RoundTrip tests that String() output re-parses to an equal tree.
*/
func TestParse_RoundTrip(t *testing.T) {
	inputs := []string{
		`userName eq "bjensen"`,
		`name.familyName co "O'Malley"`,
		`title pr`,
		`meta.version gt 3`,
		`active eq true`,
		`externalId eq null`,
		`emails[type eq "work" and value co "@example.com"]`,
		`not (userName eq "strange \"quoted\" name")`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first, err := filter.Parse(input)
			require.NoError(t, err)

			second, err := filter.Parse(first.String())
			require.NoError(t, err)

			assert.Equal(t, first, second)
		})
	}
}
