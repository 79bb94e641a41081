// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiromu-dev/torii/internal/scim/schema"
)

/*
TestNormalize_KeysLowercased tests that every object key is lowercased at
every nesting level.
*/
func TestNormalize_KeysLowercased(t *testing.T) {
	normalizer := schema.NewNormalizer(schema.ResourceUser)

	result := normalizer.Normalize(map[string]any{
		"UserName": "MMouse",
		"Name": map[string]any{
			"GivenName": "Mandy",
		},
	})

	assert.Contains(t, result, "username")
	name, found := result["name"].(map[string]any)
	require.True(t, found)
	assert.Contains(t, name, "givenname")
}

/*
TestNormalize_CaseFolding tests that string values fold unless the catalog
marks their path case-exact.
*/
func TestNormalize_CaseFolding(t *testing.T) {
	normalizer := schema.NewNormalizer(schema.ResourceUser)

	result := normalizer.Normalize(map[string]any{
		"userName":   "MMouse@Example.COM",
		"externalId": "EXT-701984",
		"title":      "Tour Guide",
	})

	assert.Equal(t, "mmouse@example.com", result["username"])
	assert.Equal(t, "EXT-701984", result["externalid"], "case-exact values keep their casing")
	assert.Equal(t, "tour guide", result["title"])
}

/*
TestNormalize_NonStringsPassThrough tests numbers, booleans, and nulls.
*/
func TestNormalize_NonStringsPassThrough(t *testing.T) {
	normalizer := schema.NewNormalizer(schema.ResourceUser)

	result := normalizer.Normalize(map[string]any{
		"active":   true,
		"nickName": nil,
		"meta":     map[string]any{"version": float64(4)},
	})

	assert.Equal(t, true, result["active"])
	assert.Nil(t, result["nickname"])
	meta := result["meta"].(map[string]any)
	assert.Equal(t, float64(4), meta["version"])
}

/*
TestNormalize_Arrays tests folding inside multi-valued elements: element
sub-attribute paths are described under the attribute's own path.
*/
func TestNormalize_Arrays(t *testing.T) {
	normalizer := schema.NewNormalizer(schema.ResourceUser)

	result := normalizer.Normalize(map[string]any{
		"emails": []any{
			map[string]any{"Value": "BJensen@Example.com", "Type": "Work"},
		},
	})

	emails, found := result["emails"].([]any)
	require.True(t, found)
	element := emails[0].(map[string]any)
	assert.Equal(t, "bjensen@example.com", element["value"])
	assert.Equal(t, "work", element["type"])
}

/*
TestNormalize_DoesNotMutateInput tests that the original document survives.
*/
func TestNormalize_DoesNotMutateInput(t *testing.T) {
	normalizer := schema.NewNormalizer(schema.ResourceUser)
	document := map[string]any{
		"UserName": "MMouse",
		"Name":     map[string]any{"GivenName": "Mandy"},
	}

	_ = normalizer.Normalize(document)

	assert.Equal(t, "MMouse", document["UserName"])
	name := document["Name"].(map[string]any)
	assert.Equal(t, "Mandy", name["GivenName"])
}
