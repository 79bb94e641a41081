// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package schema

import (
	"strings"

	"golang.org/x/text/cases"
)

// Normalizer produces the lookup form of a SCIM document (the data_norm
// column): every object key lowercased, and every string value folded to
// lowercase unless the catalog marks its path case-exact.
//
// Numbers, booleans, and nulls pass through untouched. The input document
// is never mutated.
type Normalizer struct {
	resourceType string
}

// NewNormalizer creates a normalizer for one resource type.
func NewNormalizer(resourceType string) *Normalizer {
	return &Normalizer{resourceType: resourceType}
}

// Normalize returns the normalized deep copy of a document.
func (n *Normalizer) Normalize(document map[string]any) map[string]any {
	folder := cases.Fold()
	result := n.normalizeObject(document, nil, folder)
	return result
}

// normalizeObject lowercases keys and recurses into values.
func (n *Normalizer) normalizeObject(object map[string]any, path []string, folder cases.Caser) map[string]any {
	normalized := make(map[string]any, len(object))

	for key, value := range object {
		lowerKey := strings.ToLower(key)
		normalized[lowerKey] = n.normalizeValue(value, append(path, lowerKey), folder)
	}

	return normalized
}

// normalizeValue dispatches on the JSON value kind.
//
// Array traversal does not extend the path: the catalog describes elements
// of a multi-valued attribute under the attribute's own path.
func (n *Normalizer) normalizeValue(value any, path []string, folder cases.Caser) any {
	switch typed := value.(type) {
	case map[string]any:
		return n.normalizeObject(typed, path, folder)

	case []any:
		items := make([]any, len(typed))
		for i, item := range typed {
			items[i] = n.normalizeValue(item, path, folder)
		}
		return items

	case string:
		if IsCaseExact(n.resourceType, strings.Join(path, ".")) {
			return typed
		}
		return folder.String(typed)

	default:
		return value
	}
}
