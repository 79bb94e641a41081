// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package message_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiromu-dev/torii/internal/scim/message"
)

/*
TestNewListResponse tests the query response envelope.
*/
func TestNewListResponse(t *testing.T) {
	t.Run("populated", func(t *testing.T) {
		resources := []map[string]any{
			{"id": "u-1"},
			{"id": "u-2"},
		}

		response := message.NewListResponse(10, 3, resources)

		assert.Equal(t, []string{"urn:ietf:params:scim:api:messages:2.0:ListResponse"}, response.Schemas)
		assert.Equal(t, 10, response.TotalResults)
		assert.Equal(t, 3, response.StartIndex)
		assert.Equal(t, 2, response.ItemsPerPage)
	})

	t.Run("empty_page_serializes_as_array", func(t *testing.T) {
		response := message.NewListResponse(0, 1, nil)

		encoded, err := json.Marshal(response)
		require.NoError(t, err)
		assert.Contains(t, string(encoded), `"Resources":[]`)
		assert.Equal(t, 0, response.ItemsPerPage)
	})
}

/*
TestPatchOp_Decode tests decoding a PATCH envelope with heterogeneous
operation values.
*/
func TestPatchOp_Decode(t *testing.T) {
	payload := `{
		"schemas": ["urn:ietf:params:scim:api:messages:2.0:PatchOp"],
		"Operations": [
			{"op": "replace", "path": "active", "value": false},
			{"op": "add", "value": {"title": "Tour Guide"}},
			{"op": "remove", "path": "nickName"}
		]
	}`

	var op message.PatchOp
	require.NoError(t, json.Unmarshal([]byte(payload), &op))

	require.Len(t, op.Operations, 3)
	assert.Equal(t, "replace", op.Operations[0].Op)
	assert.Equal(t, json.RawMessage(`false`), op.Operations[0].Value)
	assert.Equal(t, "add", op.Operations[1].Op)
	assert.Empty(t, op.Operations[1].Path)
	assert.Equal(t, "remove", op.Operations[2].Op)
	assert.Nil(t, op.Operations[2].Value)
}
