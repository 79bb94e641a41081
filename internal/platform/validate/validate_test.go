// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
	"github.com/hiromu-dev/torii/internal/platform/validate"
)

/*
TestValidator_Required tests the mandatory field validation logic.
*/
func TestValidator_Required(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		hasError bool
	}{
		{"valid_string", "alice@example.com", false},
		{"empty_string", "", true},
		{"whitespace_only", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			err := v.Required("userName", tt.value).Err()

			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

/*
TestValidator_MaxLen tests the Unicode character count limit.
*/
func TestValidator_MaxLen(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		max      int
		hasError bool
	}{
		{"under_limit", "short", 10, false},
		{"at_limit", "12345", 5, false},
		{"over_limit", "123456", 5, true},
		{"multibyte_counts_runes", "あいうえお", 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			err := v.MaxLen("displayName", tt.value, tt.max).Err()

			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

/*
TestValidator_Email tests RFC 5322 address parsing.
*/
func TestValidator_Email(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		hasError bool
	}{
		{"plain_address", "bob@example.com", false},
		{"display_name_form", "Bob <bob@example.com>", false},
		{"missing_domain", "bob@", true},
		{"not_an_address", "not-an-email", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			err := v.Email("emails.value", tt.value).Err()

			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

/*
TestValidator_URL tests that only absolute http(s) URLs pass.
*/
func TestValidator_URL(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		hasError bool
	}{
		{"https", "https://example.com/photo.png", false},
		{"http", "http://example.com", false},
		{"relative_path", "/photo.png", true},
		{"ftp_scheme", "ftp://example.com/file", true},
		{"garbage", "://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			err := v.URL("profileUrl", tt.value).Err()

			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

/*
TestValidator_Locale tests RFC 5646 language tag shapes.
*/
func TestValidator_Locale(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		hasError bool
	}{
		{"bare_language", "en", false},
		{"language_region", "en-US", false},
		{"script_and_region", "zh-Hant-TW", false},
		{"underscore_separator", "en_US", true},
		{"single_letter", "e", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			err := v.Locale("locale", tt.value).Err()

			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

/*
TestValidator_OneOf tests canonical value matching (case-insensitive).
*/
func TestValidator_OneOf(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		hasError bool
	}{
		{"exact_match", "User", false},
		{"case_insensitive_match", "GROUP", false},
		{"not_in_set", "Robot", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			err := v.OneOf("members.type", tt.value, "User", "Group").Err()

			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

/*
TestValidator_UUID tests UUID string validation.
*/
func TestValidator_UUID(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		hasError bool
	}{
		{"lowercase_uuid", "0191d1a0-7a9e-7cc8-9fd6-2f1c5a70e001", false},
		{"uppercase_uuid", "0191D1A0-7A9E-7CC8-9FD6-2F1C5A70E001", false},
		{"missing_segment", "0191d1a0-7a9e-7cc8-9fd6", true},
		{"not_a_uuid", "group-42", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			err := v.UUID("id", tt.value).Err()

			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

/*
TestValidator_Accumulates tests that multiple failures surface in one
invalidValue error listing every offending attribute.
*/
func TestValidator_Accumulates(t *testing.T) {
	v := &validate.Validator{}
	err := v.
		Required("userName", "").
		Email("emails.value", "broken").
		URL("profileUrl", "nope").
		Err()

	require.Error(t, err)

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, apperr.ScimTypeInvalidValue, appError.ScimType)
	assert.Contains(t, appError.Message, "userName")
	assert.Contains(t, appError.Message, "emails.value")
	assert.Contains(t, appError.Message, "profileUrl")

	assert.True(t, v.HasErrors())
}

/*
TestValidator_Custom tests conditional custom failures.
*/
func TestValidator_Custom(t *testing.T) {
	v := &validate.Validator{}
	assert.NoError(t, v.Custom("emails", false, "may declare at most one primary element").Err())

	v = &validate.Validator{}
	err := v.Custom("emails", true, "may declare at most one primary element").Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most one primary")
}
