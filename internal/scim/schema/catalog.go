// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

/*
Package schema holds the static SCIM 2.0 attribute catalog and the
document normalizer built on top of it.

The catalog answers three questions the rest of the server keeps asking:

  - Is this attribute path known, and what are its characteristics?
  - Is its string value compared case-exactly or case-insensitively?
  - Is it single- or multi-valued, simple or complex?

Lookups are case-insensitive on attribute names, tolerate schema-URN
prefixes, and ignore array index segments, matching how SCIM paths appear
in filters and PATCH operations. Unknown attributes resolve to nothing;
callers treat them as case-insensitive single-valued strings.
*/
package schema

import (
	"strings"

	"github.com/hiromu-dev/torii/internal/platform/constants"
)

// # Attribute Characteristics

// Type enumerates the SCIM attribute data types.
type Type string

const (
	TypeString    Type = "string"
	TypeBoolean   Type = "boolean"
	TypeDecimal   Type = "decimal"
	TypeInteger   Type = "integer"
	TypeDateTime  Type = "dateTime"
	TypeReference Type = "reference"
	TypeComplex   Type = "complex"
)

// Mutability values per RFC 7643 §2.2.
const (
	MutabilityReadOnly  = "readOnly"
	MutabilityReadWrite = "readWrite"
	MutabilityImmutable = "immutable"
	MutabilityWriteOnly = "writeOnly"
)

// Returned values per RFC 7643 §2.2.
const (
	ReturnedAlways  = "always"
	ReturnedDefault = "default"
	ReturnedNever   = "never"
)

// Uniqueness values per RFC 7643 §2.2.
const (
	UniquenessNone   = "none"
	UniquenessServer = "server"
)

// Attribute describes one schema attribute and its sub-attributes.
type Attribute struct {
	Name            string
	Description     string
	Type            Type
	MultiValued     bool
	Required        bool
	CaseExact       bool
	Mutability      string
	Returned        string
	Uniqueness      string
	CanonicalValues []string
	ReferenceTypes  []string
	SubAttributes   []Attribute
}

// Schema is a full resource schema definition.
type Schema struct {
	ID          string
	Name        string
	Description string
	Attributes  []Attribute
}

// # Resource Kinds

const (
	// ResourceUser is the SCIM resource type name for users.
	ResourceUser = "User"
	// ResourceGroup is the SCIM resource type name for groups.
	ResourceGroup = "Group"
)

// # Common Attributes

// commonAttributes are present on every SCIM resource (RFC 7643 §3.1).
var commonAttributes = []Attribute{
	{
		Name: "schemas", Type: TypeString, MultiValued: true, Required: true,
		CaseExact: true, Mutability: MutabilityReadOnly, Returned: ReturnedAlways,
	},
	{
		Name: "id", Type: TypeString, Required: true, CaseExact: true,
		Mutability: MutabilityReadOnly, Returned: ReturnedAlways, Uniqueness: UniquenessServer,
	},
	{
		Name: "externalId", Type: TypeString, CaseExact: true,
		Mutability: MutabilityReadWrite, Returned: ReturnedDefault, Uniqueness: UniquenessServer,
	},
	{
		Name: "meta", Type: TypeComplex, Mutability: MutabilityReadOnly, Returned: ReturnedDefault,
		SubAttributes: []Attribute{
			{Name: "resourceType", Type: TypeString, CaseExact: true, Mutability: MutabilityReadOnly},
			{Name: "created", Type: TypeDateTime, Mutability: MutabilityReadOnly},
			{Name: "lastModified", Type: TypeDateTime, Mutability: MutabilityReadOnly},
			{Name: "location", Type: TypeReference, CaseExact: true, Mutability: MutabilityReadOnly},
			{Name: "version", Type: TypeString, CaseExact: true, Mutability: MutabilityReadOnly},
		},
	},
}

// SchemasFor returns the schema definitions that apply to a resource type,
// extension schemas included.
func SchemasFor(resourceType string) []*Schema {
	switch {
	case strings.EqualFold(resourceType, ResourceUser):
		return []*Schema{&UserSchema, &EnterpriseUserSchema}
	case strings.EqualFold(resourceType, ResourceGroup):
		return []*Schema{&GroupSchema}
	default:
		return nil
	}
}

// URNFor returns the primary schema URN of a resource type.
func URNFor(resourceType string) string {
	switch {
	case strings.EqualFold(resourceType, ResourceUser):
		return constants.SchemaURNUser
	case strings.EqualFold(resourceType, ResourceGroup):
		return constants.SchemaURNGroup
	default:
		return ""
	}
}

// # Path Lookup

// Lookup resolves a dotted attribute path to its definition.
//
// The path may carry a schema-URN prefix ("urn:...:User:name.givenName")
// and array index segments ("emails.0.value"), both of which are ignored
// for resolution purposes. The boolean result reports whether the path
// names a known attribute.
func Lookup(resourceType, path string) (*Attribute, bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, false
	}

	// Walk common attributes first, then each applicable schema.
	if attr, ok := walk(commonAttributes, segments); ok {
		return attr, true
	}
	for _, s := range SchemasFor(resourceType) {
		if attr, ok := walk(s.Attributes, segments); ok {
			return attr, true
		}
	}

	return nil, false
}

// IsCaseExact reports whether string values at the path compare case-exactly.
// Unknown attributes default to case-insensitive comparison.
func IsCaseExact(resourceType, path string) bool {
	attr, ok := Lookup(resourceType, path)
	if !ok {
		return false
	}
	return attr.CaseExact
}

// IsMultiValued reports whether the path names a multi-valued attribute.
func IsMultiValued(resourceType, path string) bool {
	attr, ok := Lookup(resourceType, path)
	if !ok {
		return false
	}
	return attr.MultiValued
}

// # SQL Path Resolution

// SQLPath is a filter attribute path resolved against the catalog for SQL
// compilation. Segments are the lowercased JSON keys inside data_norm,
// including the schema-URN key when the attribute lives in an extension.
type SQLPath struct {
	// Segments are the normalized JSON object keys, outermost first.
	Segments []string

	// Attribute is the resolved catalog definition of the final segment.
	Attribute *Attribute

	// MultiIndex is the position in Segments of the first multi-valued
	// attribute along the path, or -1 when the path crosses none.
	MultiIndex int
}

// ResolveSQLPath resolves a filter attribute path to its normalized JSON
// location. Unknown attributes resolve to false; the SQL compiler rejects
// them rather than interpolating arbitrary client identifiers.
func ResolveSQLPath(resourceType, path string) (*SQLPath, bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, false
	}

	if resolved, ok := resolveSQLSegments(commonAttributes, "", segments); ok {
		return resolved, true
	}
	primary := URNFor(resourceType)
	for _, s := range SchemasFor(resourceType) {
		prefix := ""
		if !strings.EqualFold(s.ID, primary) {
			prefix = strings.ToLower(s.ID)
		}
		if resolved, ok := resolveSQLSegments(s.Attributes, prefix, segments); ok {
			return resolved, true
		}
	}

	return nil, false
}

// resolveSQLSegments walks one attribute table, producing the normalized
// segment list. A non-empty prefix prepends the extension URN key.
func resolveSQLSegments(attributes []Attribute, prefix string, segments []string) (*SQLPath, bool) {
	resolved := &SQLPath{MultiIndex: -1}
	if prefix != "" {
		resolved.Segments = append(resolved.Segments, prefix)
	}

	current := attributes
	var found *Attribute

	for i, segment := range segments {
		found = nil
		for j := range current {
			if strings.EqualFold(current[j].Name, segment) {
				found = &current[j]
				break
			}
		}
		if found == nil {
			return nil, false
		}

		if found.MultiValued && resolved.MultiIndex < 0 {
			resolved.MultiIndex = len(resolved.Segments)
		}
		resolved.Segments = append(resolved.Segments, strings.ToLower(found.Name))

		if i < len(segments)-1 {
			if found.Type != TypeComplex {
				return nil, false
			}
			current = found.SubAttributes
		}
	}

	resolved.Attribute = found
	return resolved, true
}

// splitPath strips any schema-URN prefix and array indices, returning the
// lowercased attribute name segments.
func splitPath(path string) []string {
	path = StripURNPrefix(path)

	raw := strings.Split(path, ".")
	segments := make([]string, 0, len(raw))
	for _, segment := range raw {
		if segment == "" || isAllDigits(segment) {
			continue
		}
		segments = append(segments, segment)
	}
	return segments
}

// StripURNPrefix removes a leading schema URN ("urn:...:") from a path,
// leaving only the attribute portion.
func StripURNPrefix(path string) string {
	if !strings.HasPrefix(strings.ToLower(path), "urn:") {
		return path
	}
	// The attribute name follows the last colon of the URN.
	if idx := strings.LastIndex(path, ":"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// walk descends an attribute table along the path segments.
func walk(attributes []Attribute, segments []string) (*Attribute, bool) {
	current := attributes
	var found *Attribute

	for i, segment := range segments {
		found = nil
		for j := range current {
			if strings.EqualFold(current[j].Name, segment) {
				found = &current[j]
				break
			}
		}
		if found == nil {
			return nil, false
		}
		if i < len(segments)-1 {
			if found.Type != TypeComplex {
				return nil, false
			}
			current = found.SubAttributes
		}
	}

	return found, true
}

// isAllDigits reports whether the segment is an array index.
func isAllDigits(segment string) bool {
	for _, r := range segment {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(segment) > 0
}
