// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

/*
Package filter implements the SCIM 2.0 filter grammar (RFC 7644 §3.4.2.2).

It provides three pieces:

  - A parser that turns filter strings into a typed AST, scanning at the
    string level with quote and bracket awareness.
  - An unparser (the String methods) that renders an AST back into
    canonical filter syntax.
  - An in-memory evaluator that applies an AST to a resource document,
    used by the PATCH engine for valuePath selection.

The storage layer compiles the same AST into SQL; both evaluation paths
honor the catalog's case-exactness rules.
*/
package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// # Operators

// Comparison operators of the SCIM filter grammar.
const (
	OpEq = "eq"
	OpNe = "ne"
	OpCo = "co"
	OpSw = "sw"
	OpEw = "ew"
	OpGt = "gt"
	OpGe = "ge"
	OpLt = "lt"
	OpLe = "le"
	OpPr = "pr"
)

// Logical operators.
const (
	OpAnd = "and"
	OpOr  = "or"
)

// Expression is a node of the parsed filter tree.
type Expression interface {
	fmt.Stringer
	isExpression()
}

// Comparison is "attrPath op value" (e.g. userName eq "bjensen").
type Comparison struct {
	// Path is the dotted attribute path, schema-URN prefix preserved.
	Path string
	// Operator is one of eq, ne, co, sw, ew, gt, ge, lt, le.
	Operator string
	// Value is the typed literal: string, float64, bool, or nil.
	Value any
}

// Present is "attrPath pr".
type Present struct {
	Path string
}

// Logical joins two expressions with and/or.
type Logical struct {
	Operator string
	Left     Expression
	Right    Expression
}

// Not negates a parenthesized expression.
type Not struct {
	Expression Expression
}

// Complex is a value filter applied to a multi-valued attribute:
// attrPath[innerFilter] (e.g. emails[type eq "work"]).
type Complex struct {
	Attribute string
	Filter    Expression
}

func (*Comparison) isExpression() {}
func (*Present) isExpression()    {}
func (*Logical) isExpression()    {}
func (*Not) isExpression()        {}
func (*Complex) isExpression()    {}

// # Unparser

// String renders the comparison in canonical filter syntax.
func (c *Comparison) String() string {
	return c.Path + " " + c.Operator + " " + formatLiteral(c.Value)
}

func (p *Present) String() string {
	return p.Path + " pr"
}

func (l *Logical) String() string {
	return l.Left.String() + " " + l.Operator + " " + l.Right.String()
}

func (n *Not) String() string {
	return "not (" + n.Expression.String() + ")"
}

func (c *Complex) String() string {
	return c.Attribute + "[" + c.Filter.String() + "]"
}

// formatLiteral renders a typed literal as filter syntax.
func formatLiteral(value any) string {
	switch typed := value.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case string:
		return quoteString(typed)
	default:
		return fmt.Sprintf("%v", typed)
	}
}

// quoteString escapes and quotes a string literal.
func quoteString(s string) string {
	var builder strings.Builder
	builder.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			builder.WriteString(`\"`)
		case '\\':
			builder.WriteString(`\\`)
		default:
			builder.WriteRune(r)
		}
	}
	builder.WriteByte('"')
	return builder.String()
}
