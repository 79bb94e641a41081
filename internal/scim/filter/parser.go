// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package filter

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
)

// comparisonOperators is the set of valid binary operators.
var comparisonOperators = map[string]bool{
	OpEq: true, OpNe: true, OpCo: true, OpSw: true, OpEw: true,
	OpGt: true, OpGe: true, OpLt: true, OpLe: true,
}

// Parse turns a SCIM filter string into an expression tree.
//
// Precedence is not > and > or; parentheses group explicitly. All scanning
// is quote- and bracket-aware, so operator keywords inside string literals
// or value filters never split the expression.
func Parse(input string) (Expression, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, invalidFilter("Filter must not be empty")
	}
	return parseExpression(trimmed)
}

// parseExpression handles the or/and precedence levels, then delegates.
func parseExpression(input string) (Expression, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, invalidFilter("Incomplete filter expression")
	}

	// Lowest precedence first: a top-level "or" splits the whole expression.
	if idx, length := findTopLevelKeyword(input, "or"); idx >= 0 {
		return parseLogical(input, idx, length, OpOr)
	}
	if idx, length := findTopLevelKeyword(input, "and"); idx >= 0 {
		return parseLogical(input, idx, length, OpAnd)
	}

	return parseUnary(input)
}

// parseLogical splits at a located keyword and recurses into both halves.
func parseLogical(input string, idx, length int, operator string) (Expression, error) {
	left, err := parseExpression(input[:idx])
	if err != nil {
		return nil, err
	}
	right, err := parseExpression(input[idx+length:])
	if err != nil {
		return nil, err
	}
	return &Logical{Operator: operator, Left: left, Right: right}, nil
}

// parseUnary handles not, grouping parentheses, value filters, and comparisons.
func parseUnary(input string) (Expression, error) {
	input = strings.TrimSpace(input)

	// not (expr)
	if lower := strings.ToLower(input); strings.HasPrefix(lower, "not") {
		rest := strings.TrimSpace(input[3:])
		if strings.HasPrefix(rest, "(") {
			inner, remainder, err := consumeParenGroup(rest)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(remainder) != "" {
				return nil, invalidFilter("Unexpected trailing content after not(...)")
			}
			expr, err := parseExpression(inner)
			if err != nil {
				return nil, err
			}
			return &Not{Expression: expr}, nil
		}
	}

	// (expr)
	if strings.HasPrefix(input, "(") {
		inner, remainder, err := consumeParenGroup(input)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(remainder) != "" {
			return nil, invalidFilter("Unexpected trailing content after (...)")
		}
		return parseExpression(inner)
	}

	// attrPath[valueFilter]
	if open := indexTopLevel(input, '['); open >= 0 {
		return parseComplex(input, open)
	}

	return parseComparison(input)
}

// parseComplex parses "attr[inner]" value filters.
func parseComplex(input string, open int) (Expression, error) {
	attribute := strings.TrimSpace(input[:open])
	if attribute == "" {
		return nil, invalidFilter("Value filter is missing its attribute name")
	}
	if err := validateAttrPath(attribute); err != nil {
		return nil, err
	}

	if !strings.HasSuffix(input, "]") {
		return nil, invalidFilter("Value filter is missing its closing bracket")
	}

	inner := input[open+1 : len(input)-1]
	if strings.ContainsRune(inner, '[') {
		return nil, invalidFilter("Nested value filters are not supported")
	}

	filterExpr, err := parseExpression(inner)
	if err != nil {
		return nil, err
	}

	return &Complex{Attribute: attribute, Filter: filterExpr}, nil
}

// parseComparison parses "attrPath op value" and "attrPath pr".
func parseComparison(input string) (Expression, error) {
	path, rest := splitToken(input)
	if path == "" {
		return nil, invalidFilter("Comparison is missing its attribute path")
	}
	if err := validateAttrPath(path); err != nil {
		return nil, err
	}

	operatorToken, valueToken := splitToken(rest)
	if operatorToken == "" {
		return nil, invalidFilter("Comparison is missing its operator: " + input)
	}
	operator := strings.ToLower(operatorToken)

	if operator == OpPr {
		if strings.TrimSpace(valueToken) != "" {
			return nil, invalidFilter("The pr operator takes no value")
		}
		return &Present{Path: path}, nil
	}

	if !comparisonOperators[operator] {
		return nil, invalidFilter("Unsupported operator: " + operatorToken)
	}

	literal := strings.TrimSpace(valueToken)
	if literal == "" {
		return nil, invalidFilter("Comparison is missing its value: " + input)
	}

	value, err := parseLiteral(literal)
	if err != nil {
		return nil, err
	}

	return &Comparison{Path: path, Operator: operator, Value: value}, nil
}

// parseLiteral parses a JSON-compatible filter literal.
func parseLiteral(literal string) (any, error) {
	var value any
	if err := json.Unmarshal([]byte(literal), &value); err != nil {
		return nil, invalidFilter("Invalid comparison value: " + literal)
	}

	switch value.(type) {
	case string, float64, bool, nil:
		return value, nil
	default:
		return nil, invalidFilter("Comparison value must be a string, number, boolean, or null")
	}
}

// # Scanning Helpers

// findTopLevelKeyword locates a logical keyword outside quotes, parentheses,
// and brackets, delimited by whitespace on both sides. It returns the index
// of the keyword and its length, or -1.
func findTopLevelKeyword(input, keyword string) (int, int) {
	lower := strings.ToLower(input)
	inQuote := false
	depth := 0

	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case inQuote:
			if c == '\\' {
				i++
			} else if c == '"' {
				inQuote = false
			}
		case c == '"':
			inQuote = true
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case depth == 0 && strings.HasPrefix(lower[i:], keyword):
			before := i > 0 && isSpace(input[i-1])
			afterIdx := i + len(keyword)
			after := afterIdx < len(input) && isSpace(input[afterIdx])
			if before && after {
				return i, len(keyword)
			}
		}
	}

	return -1, 0
}

// indexTopLevel returns the index of the first unquoted, unnested occurrence
// of the target byte, or -1.
func indexTopLevel(input string, target byte) int {
	inQuote := false
	depth := 0

	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case inQuote:
			if c == '\\' {
				i++
			} else if c == '"' {
				inQuote = false
			}
		case c == '"':
			inQuote = true
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == target && depth == 0:
			return i
		}
	}

	return -1
}

// consumeParenGroup consumes a leading balanced parenthesis group and
// returns its inner content plus the remainder of the input.
func consumeParenGroup(input string) (inner, remainder string, err error) {
	if !strings.HasPrefix(input, "(") {
		return "", "", invalidFilter("Expected opening parenthesis")
	}

	inQuote := false
	depth := 0
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case inQuote:
			if c == '\\' {
				i++
			} else if c == '"' {
				inQuote = false
			}
		case c == '"':
			inQuote = true
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return input[1:i], input[i+1:], nil
			}
		}
	}

	return "", "", invalidFilter("Unbalanced parentheses in filter")
}

// splitToken splits off the first whitespace-delimited token, honoring quotes.
func splitToken(input string) (token, rest string) {
	input = strings.TrimSpace(input)
	inQuote := false

	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case inQuote:
			if c == '\\' {
				i++
			} else if c == '"' {
				inQuote = false
			}
		case c == '"':
			inQuote = true
		case isSpace(c):
			return input[:i], strings.TrimSpace(input[i+1:])
		}
	}

	return input, ""
}

// validateAttrPath rejects paths with characters outside the SCIM attrPath
// grammar (letters, digits, and the URN/path punctuation set).
func validateAttrPath(path string) error {
	for _, r := range path {
		valid := unicode.IsLetter(r) || unicode.IsDigit(r) ||
			r == '.' || r == '-' || r == '_' || r == ':' || r == '$'
		if !valid {
			return invalidFilter("Invalid character in attribute path: " + path)
		}
	}
	return nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// invalidFilter builds the canonical invalidFilter error.
func invalidFilter(detail string) error {
	return apperr.BadRequest(apperr.ScimTypeInvalidFilter, detail)
}
