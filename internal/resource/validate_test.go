// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package resource

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
)

/*
TestValidateUser tests the User payload rules.
*/
func TestValidateUser(t *testing.T) {
	tests := []struct {
		name     string
		document map[string]any
		wantAttr string
	}{
		{
			name:     "minimal_valid",
			document: map[string]any{"userName": "bjensen@example.com"},
		},
		{
			name:     "missing_username",
			document: map[string]any{"displayName": "Barbara"},
			wantAttr: "userName",
		},
		{
			name: "invalid_email",
			document: map[string]any{
				"userName": "bjensen",
				"emails":   []any{map[string]any{"value": "not an email"}},
			},
			wantAttr: "emails.value",
		},
		{
			name: "invalid_photo_url",
			document: map[string]any{
				"userName": "bjensen",
				"photos":   []any{map[string]any{"value": "not-a-url"}},
			},
			wantAttr: "photos.value",
		},
		{
			name: "invalid_locale",
			document: map[string]any{
				"userName": "bjensen",
				"locale":   "en_US",
			},
			wantAttr: "locale",
		},
		{
			name: "invalid_timezone",
			document: map[string]any{
				"userName": "bjensen",
				"timezone": "Mars/Olympus_Mons",
			},
			wantAttr: "timezone",
		},
		{
			name: "valid_timezone",
			document: map[string]any{
				"userName": "bjensen",
				"timezone": "America/Los_Angeles",
			},
		},
		{
			name: "offset_timezone",
			document: map[string]any{
				"userName": "bjensen",
				"timezone": "+09:00",
			},
		},
		{
			name: "negative_offset_timezone",
			document: map[string]any{
				"userName": "bjensen",
				"timezone": "-05:30",
			},
		},
		{
			name: "malformed_offset_timezone",
			document: map[string]any{
				"userName": "bjensen",
				"timezone": "+9:00",
			},
			wantAttr: "timezone",
		},
		{
			name: "certificate_not_base64",
			document: map[string]any{
				"userName":         "bjensen",
				"x509Certificates": []any{map[string]any{"value": "###"}},
			},
			wantAttr: "x509Certificates.value",
		},
		{
			name: "certificate_too_short",
			document: map[string]any{
				"userName":         "bjensen",
				"x509Certificates": []any{map[string]any{"value": strings.Repeat("TUlJ", 10)}},
			},
			wantAttr: "x509Certificates.value",
		},
		{
			name: "certificate_plausible",
			document: map[string]any{
				"userName":         "bjensen",
				"x509Certificates": []any{map[string]any{"value": strings.Repeat("TUlJ", 30)}},
			},
		},
		{
			name: "one_primary_is_fine",
			document: map[string]any{
				"userName": "bjensen",
				"emails": []any{
					map[string]any{"value": "a@example.com", "primary": true},
					map[string]any{"value": "b@example.com", "primary": false},
				},
			},
		},
		{
			name: "multi_valued_must_hold_objects",
			document: map[string]any{
				"userName": "bjensen",
				"emails":   []any{"a@example.com"},
			},
			wantAttr: "emails",
		},
		{
			name: "extension_must_be_object",
			document: map[string]any{
				"userName": "bjensen",
				"urn:ietf:params:scim:schemas:extension:enterprise:2.0:User": "Sales",
			},
			wantAttr: "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User",
		},
		{
			name: "manager_requires_value",
			document: map[string]any{
				"userName": "bjensen",
				"urn:ietf:params:scim:schemas:extension:enterprise:2.0:User": map[string]any{
					"manager": map[string]any{"displayName": "Boss"},
				},
			},
			wantAttr: "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User:manager.value",
		},
		{
			name: "full_enterprise_user",
			document: map[string]any{
				"userName": "bjensen",
				"urn:ietf:params:scim:schemas:extension:enterprise:2.0:User": map[string]any{
					"employeeNumber": "701984",
					"manager":        map[string]any{"value": "26118915-6090-4610-87e4-49d8ca9f808d"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDocument("User", tt.document)
			if tt.wantAttr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			appError := apperr.As(err)
			require.NotNil(t, appError)
			assert.Contains(t, appError.Message, tt.wantAttr)
		})
	}
}

/*
TestValidateUser_PrimaryDedup tests that a payload declaring several primary
elements is accepted with only the first primary kept.
*/
func TestValidateUser_PrimaryDedup(t *testing.T) {
	document := map[string]any{
		"userName": "bjensen",
		"emails": []any{
			map[string]any{"value": "a@example.com", "primary": true},
			map[string]any{"value": "b@example.com", "primary": true},
			map[string]any{"value": "c@example.com"},
		},
	}
	require.NoError(t, validateDocument("User", document))

	emails := document["emails"].([]any)
	assert.Equal(t, true, emails[0].(map[string]any)["primary"])
	assert.Equal(t, false, emails[1].(map[string]any)["primary"])
	_, declared := emails[2].(map[string]any)["primary"]
	assert.False(t, declared, "elements without primary stay untouched")
}

/*
TestValidateGroup tests the Group payload rules.
*/
func TestValidateGroup(t *testing.T) {
	tests := []struct {
		name     string
		document map[string]any
		wantAttr string
	}{
		{
			name:     "minimal_valid",
			document: map[string]any{"displayName": "Tour Guides"},
		},
		{
			name:     "missing_display_name",
			document: map[string]any{"members": []any{}},
			wantAttr: "displayName",
		},
		{
			name: "member_without_value",
			document: map[string]any{
				"displayName": "Tour Guides",
				"members":     []any{map[string]any{"display": "Barbara"}},
			},
			wantAttr: "members.value",
		},
		{
			name: "member_with_bad_type",
			document: map[string]any{
				"displayName": "Tour Guides",
				"members":     []any{map[string]any{"value": "u-1", "type": "Robot"}},
			},
			wantAttr: "members.type",
		},
		{
			name: "member_types_canonical",
			document: map[string]any{
				"displayName": "Tour Guides",
				"members": []any{
					map[string]any{"value": "u-1", "type": "user"},
					map[string]any{"value": "g-1", "type": "Group"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDocument("Group", tt.document)
			if tt.wantAttr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			appError := apperr.As(err)
			require.NotNil(t, appError)
			assert.Contains(t, appError.Message, tt.wantAttr)
		})
	}
}
