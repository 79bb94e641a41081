// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package filter

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/hiromu-dev/torii/internal/scim/schema"
)

// Matches evaluates a filter expression against a resource document.
//
// Semantics mirror the SQL compilation exactly, so the two evaluation paths
// are interchangeable: string equality honors the catalog's case-exactness,
// co/sw/ew are always case-insensitive, a bare multi-valued attribute path
// addresses the "value" sub-attribute of the first element, and a dotted
// path through a multi-valued attribute matches any element.
func Matches(resourceType string, document map[string]any, expr Expression) bool {
	m := &matcher{resourceType: resourceType, folder: cases.Fold()}
	return m.eval(document, "", expr)
}

type matcher struct {
	resourceType string
	folder       cases.Caser
}

// eval dispatches on the expression node type. basePath prefixes attribute
// paths when evaluating inside a value-filter element scope.
func (m *matcher) eval(scope map[string]any, basePath string, expr Expression) bool {
	switch node := expr.(type) {
	case *Logical:
		if node.Operator == OpAnd {
			return m.eval(scope, basePath, node.Left) && m.eval(scope, basePath, node.Right)
		}
		return m.eval(scope, basePath, node.Left) || m.eval(scope, basePath, node.Right)

	case *Not:
		return !m.eval(scope, basePath, node.Expression)

	case *Present:
		for _, candidate := range m.resolve(scope, basePath, node.Path) {
			if isPresent(candidate) {
				return true
			}
		}
		return false

	case *Comparison:
		fullPath := joinPath(basePath, node.Path)
		candidates := m.resolve(scope, basePath, node.Path)
		for _, candidate := range candidates {
			if m.compare(candidate, node, fullPath) {
				return true
			}
		}
		// "ne" uses DISTINCT semantics: an absent attribute differs from
		// any literal, matching the SQL compilation.
		if node.Operator == OpNe && len(candidates) == 0 {
			return true
		}
		return false

	case *Complex:
		values := m.resolve(scope, basePath, node.Attribute)
		for _, value := range values {
			switch element := value.(type) {
			case []any:
				for _, item := range element {
					if object, ok := item.(map[string]any); ok {
						if m.eval(object, joinPath(basePath, node.Attribute), node.Filter) {
							return true
						}
					}
				}
			case map[string]any:
				if m.eval(element, joinPath(basePath, node.Attribute), node.Filter) {
					return true
				}
			}
		}
		return false

	default:
		return false
	}
}

// resolve walks a dotted attribute path over the document, fanning out
// across arrays encountered mid-path.
//
// At document scope the path is resolved against the catalog first, so
// extension attributes descend through their schema-URN key exactly as the
// SQL compilation does. Inside a value-filter element scope (basePath set)
// the path is a relative sub-attribute name and is walked verbatim.
func (m *matcher) resolve(scope map[string]any, basePath, path string) []any {
	var segments []string
	if basePath == "" {
		if resolved, ok := schema.ResolveSQLPath(m.resourceType, path); ok {
			segments = resolved.Segments
		}
	}
	if segments == nil {
		segments = strings.Split(schema.StripURNPrefix(path), ".")
	}

	current := []any{scope}
	for _, segment := range segments {
		if segment == "" {
			return nil
		}
		var next []any
		for _, value := range current {
			switch typed := value.(type) {
			case map[string]any:
				if child, ok := lookupKey(typed, segment); ok {
					next = append(next, child)
				}
			case []any:
				for _, item := range typed {
					if object, ok := item.(map[string]any); ok {
						if child, ok := lookupKey(object, segment); ok {
							next = append(next, child)
						}
					}
				}
			}
		}
		current = next
	}

	return current
}

// compare applies a comparison operator to one resolved candidate.
func (m *matcher) compare(candidate any, node *Comparison, fullPath string) bool {
	// A bare multi-valued attribute addresses the first element's "value".
	if array, ok := candidate.([]any); ok {
		if len(array) == 0 {
			return false
		}
		candidate = array[0]
		if object, ok := candidate.(map[string]any); ok {
			inner, found := lookupKey(object, "value")
			if !found {
				return false
			}
			candidate = inner
		}
	}

	switch node.Operator {
	case OpEq:
		return m.equal(candidate, node.Value, fullPath)
	case OpNe:
		return !m.equal(candidate, node.Value, fullPath)
	case OpCo, OpSw, OpEw:
		return m.substring(candidate, node)
	case OpGt, OpGe, OpLt, OpLe:
		return m.ordered(candidate, node, fullPath)
	default:
		return false
	}
}

// equal implements eq with catalog-driven case handling.
func (m *matcher) equal(candidate, literal any, fullPath string) bool {
	if literal == nil {
		return candidate == nil
	}

	switch lit := literal.(type) {
	case string:
		str, ok := candidate.(string)
		if !ok {
			return false
		}
		if schema.IsCaseExact(m.resourceType, fullPath) {
			return str == lit
		}
		return m.folder.String(str) == m.folder.String(lit)

	case float64:
		num, ok := toNumber(candidate)
		return ok && num == lit

	case bool:
		b, ok := candidate.(bool)
		return ok && b == lit
	}

	return false
}

// substring implements co/sw/ew, always case-insensitively.
func (m *matcher) substring(candidate any, node *Comparison) bool {
	str, ok := candidate.(string)
	if !ok {
		return false
	}
	lit, ok := node.Value.(string)
	if !ok {
		return false
	}

	haystack := m.folder.String(str)
	needle := m.folder.String(lit)

	switch node.Operator {
	case OpCo:
		return strings.Contains(haystack, needle)
	case OpSw:
		return strings.HasPrefix(haystack, needle)
	case OpEw:
		return strings.HasSuffix(haystack, needle)
	}
	return false
}

// ordered implements gt/ge/lt/le for numbers and strings.
func (m *matcher) ordered(candidate any, node *Comparison, fullPath string) bool {
	if lit, ok := node.Value.(float64); ok {
		num, numOK := toNumber(candidate)
		if !numOK {
			return false
		}
		switch node.Operator {
		case OpGt:
			return num > lit
		case OpGe:
			return num >= lit
		case OpLt:
			return num < lit
		case OpLe:
			return num <= lit
		}
		return false
	}

	lit, ok := node.Value.(string)
	if !ok {
		return false
	}
	str, ok := candidate.(string)
	if !ok {
		return false
	}
	if !schema.IsCaseExact(m.resourceType, fullPath) {
		str = m.folder.String(str)
		lit = m.folder.String(lit)
	}

	switch node.Operator {
	case OpGt:
		return str > lit
	case OpGe:
		return str >= lit
	case OpLt:
		return str < lit
	case OpLe:
		return str <= lit
	}
	return false
}

// # Helpers

// lookupKey finds a map entry by case-insensitive key.
func lookupKey(object map[string]any, name string) (any, bool) {
	if value, ok := object[name]; ok {
		return value, true
	}
	for key, value := range object {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return nil, false
}

// isPresent implements the pr operator: non-null, non-empty value.
func isPresent(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case string:
		return typed != ""
	case []any:
		return len(typed) > 0
	case map[string]any:
		return len(typed) > 0
	default:
		return true
	}
}

// toNumber coerces JSON number representations to float64.
func toNumber(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	default:
		return 0, false
	}
}

// joinPath concatenates a scope prefix and a relative path.
func joinPath(base, path string) string {
	path = schema.StripURNPrefix(path)
	if base == "" {
		return path
	}
	return base + "." + path
}
