// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

/*
Package path implements the SCIM 2.0 PATCH path grammar (RFC 7644 §3.5.2).

A path takes one of two forms:

	attrPath:  [urn:...:]attr(.subAttr)*
	valuePath: [urn:...:]attr[valueFilter](.subAttr)?

The schema URN prefix is split off before dot-splitting, because URNs
themselves contain dots ("...enterprise:2.0:User:manager.value").
*/
package path

import (
	"strings"
	"unicode"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
	"github.com/hiromu-dev/torii/internal/platform/constants"
	"github.com/hiromu-dev/torii/internal/scim/filter"
)

// Path is a parsed PATCH target.
type Path struct {
	// URN is the schema URN prefix without the trailing colon, or "".
	URN string

	// Segments are the attribute name segments. Empty only when the path
	// is a bare schema URN targeting a whole extension object.
	Segments []string

	// ValueFilter selects elements of a multi-valued attribute; nil for attrPath.
	ValueFilter filter.Expression

	// SubAttribute is the attribute following a value filter, or "".
	SubAttribute string
}

// HasValueFilter reports whether the path is a valuePath.
func (p *Path) HasValueFilter() bool {
	return p.ValueFilter != nil
}

// Attribute returns the dotted attribute path without the URN prefix.
func (p *Path) Attribute() string {
	return strings.Join(p.Segments, ".")
}

// String renders the path back into SCIM syntax.
func (p *Path) String() string {
	var builder strings.Builder
	if p.URN != "" {
		builder.WriteString(p.URN)
		builder.WriteByte(':')
	}
	builder.WriteString(p.Attribute())
	if p.ValueFilter != nil {
		builder.WriteByte('[')
		builder.WriteString(p.ValueFilter.String())
		builder.WriteByte(']')
	}
	if p.SubAttribute != "" {
		builder.WriteByte('.')
		builder.WriteString(p.SubAttribute)
	}
	return builder.String()
}

// Parse parses a PATCH path string.
func Parse(input string) (*Path, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, invalidPath("Path must not be empty")
	}

	open := indexUnquoted(trimmed, '[')
	if open < 0 {
		return parseAttrPath(trimmed)
	}
	return parseValuePath(trimmed, open)
}

// parseAttrPath handles the plain dotted form.
func parseAttrPath(input string) (*Path, error) {
	// A bare schema URN targets the whole extension object.
	if isKnownURN(input) {
		return &Path{URN: input}, nil
	}

	urn, attrPart := splitURN(input)

	segments, err := splitSegments(attrPart)
	if err != nil {
		return nil, err
	}

	return &Path{URN: urn, Segments: segments}, nil
}

// parseValuePath handles attr[filter] with an optional trailing sub-attribute.
func parseValuePath(input string, open int) (*Path, error) {
	closing := indexUnquoted(input, ']')
	if closing < 0 {
		return nil, invalidPath("Path is missing its closing bracket: " + input)
	}
	if closing < open {
		return nil, invalidPath("Malformed value filter in path: " + input)
	}

	urn, attrPart := splitURN(input[:open])
	segments, err := splitSegments(attrPart)
	if err != nil {
		return nil, err
	}

	inner := input[open+1 : closing]
	valueFilter, err := filter.Parse(inner)
	if err != nil {
		return nil, invalidPath("Invalid value filter in path: " + inner)
	}

	// Only "", or ".subAttr", may follow the bracket.
	subAttribute := ""
	rest := input[closing+1:]
	if rest != "" {
		if !strings.HasPrefix(rest, ".") || len(rest) == 1 {
			return nil, invalidPath("Unexpected content after value filter: " + rest)
		}
		subAttribute = rest[1:]
		if err := validateSegment(subAttribute); err != nil {
			return nil, err
		}
	}

	return &Path{
		URN:          urn,
		Segments:     segments,
		ValueFilter:  valueFilter,
		SubAttribute: subAttribute,
	}, nil
}

// splitURN separates a leading schema URN from the attribute part.
// The attribute follows the URN's last colon.
func splitURN(input string) (urn, attrPart string) {
	if !strings.HasPrefix(strings.ToLower(input), "urn:") {
		return "", input
	}

	idx := strings.LastIndex(input, ":")
	return input[:idx], input[idx+1:]
}

// isKnownURN reports whether the input is exactly one of the schema URNs
// this server serves.
func isKnownURN(input string) bool {
	return strings.EqualFold(input, constants.SchemaURNUser) ||
		strings.EqualFold(input, constants.SchemaURNGroup) ||
		strings.EqualFold(input, constants.SchemaURNEnterpriseUser)
}

// splitSegments dot-splits the attribute part and validates each segment.
func splitSegments(attrPart string) ([]string, error) {
	if attrPart == "" {
		return nil, invalidPath("Path has an empty attribute name")
	}

	segments := strings.Split(attrPart, ".")
	for _, segment := range segments {
		if err := validateSegment(segment); err != nil {
			return nil, err
		}
	}

	return segments, nil
}

// validateSegment enforces the attribute name character set.
func validateSegment(segment string) error {
	if segment == "" {
		return invalidPath("Path has an empty attribute name segment")
	}
	for _, r := range segment {
		valid := unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '$'
		if !valid {
			return invalidPath("Invalid character in path segment: " + segment)
		}
	}
	return nil
}

// indexUnquoted finds the first occurrence of target outside string literals.
func indexUnquoted(input string, target byte) int {
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
		case c == target:
			return i
		}
	}
	return -1
}

// invalidPath builds the canonical invalidPath error.
func invalidPath(detail string) error {
	return apperr.BadRequest(apperr.ScimTypeInvalidPath, detail)
}
