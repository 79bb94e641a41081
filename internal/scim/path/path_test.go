// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package path_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiromu-dev/torii/internal/scim/path"
)

/*
TestParse_AttrPath tests plain dotted attribute paths.
*/
func TestParse_AttrPath(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantURN      string
		wantSegments []string
	}{
		{"simple", "displayName", "", []string{"displayName"}},
		{"dotted", "name.familyName", "", []string{"name", "familyName"}},
		{"urn_prefixed", "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User:employeeNumber",
			"urn:ietf:params:scim:schemas:extension:enterprise:2.0:User", []string{"employeeNumber"}},
		{"urn_with_dotted_attr", "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User:manager.displayName",
			"urn:ietf:params:scim:schemas:extension:enterprise:2.0:User", []string{"manager", "displayName"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := path.Parse(tt.input)
			require.NoError(t, err)

			assert.Equal(t, tt.wantURN, parsed.URN)
			assert.Equal(t, tt.wantSegments, parsed.Segments)
			assert.False(t, parsed.HasValueFilter())
			assert.Empty(t, parsed.SubAttribute)
		})
	}
}

/*
TestParse_BareURN tests that a bare extension URN targets the whole
extension object.
*/
func TestParse_BareURN(t *testing.T) {
	parsed, err := path.Parse("urn:ietf:params:scim:schemas:extension:enterprise:2.0:User")
	require.NoError(t, err)

	assert.Equal(t, "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User", parsed.URN)
	assert.Empty(t, parsed.Segments)
}

/*
TestParse_ValuePath tests attr[valueFilter] with optional sub-attribute.
*/
func TestParse_ValuePath(t *testing.T) {
	tests := []struct {
		name             string
		input            string
		wantAttribute    string
		wantSubAttribute string
	}{
		{"bare_value_filter", `emails[type eq "work"]`, "emails", ""},
		{"with_sub_attribute", `emails[type eq "work"].value`, "emails", "value"},
		{"members_by_value", `members[value eq "2819c223"]`, "members", ""},
		{"bracket_inside_quotes", `members[display eq "x[0]"]`, "members", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := path.Parse(tt.input)
			require.NoError(t, err)

			assert.Equal(t, tt.wantAttribute, parsed.Attribute())
			assert.True(t, parsed.HasValueFilter())
			assert.Equal(t, tt.wantSubAttribute, parsed.SubAttribute)
		})
	}
}

/*
TestParse_Invalid tests malformed paths.
*/
func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"empty_segment", "name..familyName"},
		{"trailing_dot", "name."},
		{"missing_bracket_close", `emails[type eq "work"`},
		{"bad_inner_filter", `emails[type xx "work"]`},
		{"garbage_after_bracket", `emails[type eq "work"]value`},
		{"dot_then_nothing", `emails[type eq "work"].`},
		{"invalid_segment_chars", "name!bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := path.Parse(tt.input)
			assert.Error(t, err)
		})
	}
}

/*
TestPath_String tests that parsed paths render back to canonical syntax.
*/
func TestPath_String(t *testing.T) {
	inputs := []string{
		"displayName",
		"name.familyName",
		"urn:ietf:params:scim:schemas:extension:enterprise:2.0:User:manager.displayName",
		`emails[type eq "work"].value`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			parsed, err := path.Parse(input)
			require.NoError(t, err)

			reparsed, err := path.Parse(parsed.String())
			require.NoError(t, err)
			assert.Equal(t, parsed.Attribute(), reparsed.Attribute())
			assert.Equal(t, parsed.URN, reparsed.URN)
			assert.Equal(t, parsed.SubAttribute, reparsed.SubAttribute)
		})
	}
}
