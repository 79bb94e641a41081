// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

/*
Package message defines the SCIM 2.0 protocol wire types shared by the
HTTP handlers and the resource layer.

These are the RFC 7644 message envelopes (ListResponse, PatchOp) rather than
resource documents. Resources themselves travel as map[string]any because
SCIM documents are schema-extensible and must round-trip unknown attributes.
*/
package message

import (
	"encoding/json"

	"github.com/hiromu-dev/torii/internal/platform/constants"
)

// ListResponse is the RFC 7644 §3.4.2 query response envelope.
type ListResponse struct {
	Schemas      []string         `json:"schemas"`
	TotalResults int              `json:"totalResults"`
	StartIndex   int              `json:"startIndex"`
	ItemsPerPage int              `json:"itemsPerPage"`
	Resources    []map[string]any `json:"Resources"`
}

// NewListResponse assembles a list envelope with the correct message URN.
//
// Resources is normalized to an empty slice so the JSON always contains
// "Resources": [] rather than null.
func NewListResponse(total, startIndex int, resources []map[string]any) ListResponse {
	if resources == nil {
		resources = []map[string]any{}
	}
	return ListResponse{
		Schemas:      []string{constants.MessageURNListResponse},
		TotalResults: total,
		StartIndex:   startIndex,
		ItemsPerPage: len(resources),
		Resources:    resources,
	}
}

// PatchOp is the RFC 7644 §3.5.2 PATCH request envelope.
type PatchOp struct {
	Schemas    []string         `json:"schemas"`
	Operations []PatchOperation `json:"Operations"`
}

// PatchOperation is a single entry of a PatchOp.
//
// Value stays raw JSON: the patch engine interprets it relative to the
// target path, and the shapes differ per operation.
type PatchOperation struct {
	Op    string          `json:"op"`
	Path  string          `json:"path,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}
