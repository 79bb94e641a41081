// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

/*
Package projection shapes outgoing SCIM resources according to the
attributes / excludedAttributes query parameters (RFC 7644 §3.4.2.5) and
strips null and empty values from the response.

Rules:

  - attributes: only the listed attributes are returned, plus every
    attribute whose schema says returned=always (id, schemas). Listing a
    sub-attribute ("name.givenName") keeps its parent with only that key.
  - excludedAttributes: the listed attributes are dropped unless their
    schema says returned=always.
  - returned=never attributes (password) are dropped unconditionally.
  - null values, empty strings, empty arrays, and empty objects are
    stripped. Group "members" and User "groups" stay visible as [] when
    the tenant opts in.
*/
package projection

import (
	"strings"

	"github.com/hiromu-dev/torii/internal/scim/schema"
)

// Options carries the per-request projection parameters.
type Options struct {
	// Attributes is the parsed attributes query parameter (comma-separated).
	Attributes []string
	// ExcludedAttributes is the parsed excludedAttributes query parameter.
	ExcludedAttributes []string
	// ShowEmptyUserGroups keeps "groups": [] visible on Users.
	ShowEmptyUserGroups bool
	// ShowEmptyGroupMembers keeps "members": [] visible on Groups.
	ShowEmptyGroupMembers bool
}

// alwaysReturned attributes survive any projection.
var alwaysReturned = map[string]bool{
	"schemas": true,
	"id":      true,
}

// Apply projects and cleans a resource document, returning a new map.
// The input document is not modified.
func Apply(resourceType string, document map[string]any, options Options) map[string]any {
	result := cloneObject(document)

	dropNeverReturned(resourceType, result)

	if len(options.Attributes) > 0 {
		result = selectAttributes(result, parseAttributeList(options.Attributes))
	} else if len(options.ExcludedAttributes) > 0 {
		excludeAttributes(result, parseAttributeList(options.ExcludedAttributes))
	}

	stripEmpty(resourceType, result, options)
	return result
}

// # Attribute Selection

// attributeRequest maps a lowercased top-level key to its requested
// sub-attributes. An empty sub-set means the whole attribute.
type attributeRequest map[string]map[string]bool

// parseAttributeList turns requested attribute names into a request map.
// URN-prefixed names address extension attributes.
func parseAttributeList(names []string) attributeRequest {
	request := make(attributeRequest, len(names))

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		top, sub := splitRequestedAttribute(name)
		top = strings.ToLower(top)

		existing, found := request[top]
		if sub == "" {
			// Whole attribute requested: overrides any sub-attribute entries.
			request[top] = map[string]bool{}
			continue
		}
		if !found {
			existing = map[string]bool{}
			request[top] = existing
		} else if len(existing) == 0 && found {
			// Whole attribute already requested; sub-attribute is redundant.
			continue
		}
		existing[strings.ToLower(sub)] = true
	}

	return request
}

// splitRequestedAttribute separates "name.givenName" and URN-prefixed forms
// into their top-level key and optional sub-attribute.
func splitRequestedAttribute(name string) (top, sub string) {
	if strings.HasPrefix(strings.ToLower(name), "urn:") {
		idx := strings.LastIndex(name, ":")
		urn, attr := name[:idx], name[idx+1:]
		if attr == "" {
			return urn, ""
		}
		if dot := strings.Index(attr, "."); dot >= 0 {
			// Extension sub-attributes keep only the first path level.
			return urn, attr[:dot]
		}
		// The extension object is the top-level key; the attribute is the sub.
		if isSchemaURN(urn) {
			return urn, attr
		}
		return name, ""
	}

	if dot := strings.Index(name, "."); dot >= 0 {
		return name[:dot], name[dot+1:]
	}
	return name, ""
}

// isSchemaURN reports whether the value looks like a schema URN root.
func isSchemaURN(value string) bool {
	return strings.HasPrefix(strings.ToLower(value), "urn:")
}

// selectAttributes keeps only requested and always-returned attributes.
func selectAttributes(document map[string]any, request attributeRequest) map[string]any {
	result := make(map[string]any, len(document))

	for key, value := range document {
		lower := strings.ToLower(key)
		if alwaysReturned[lower] {
			result[key] = value
			continue
		}

		subs, requested := request[lower]
		if !requested {
			continue
		}
		if len(subs) == 0 {
			result[key] = value
			continue
		}
		result[key] = projectSub(value, subs)
	}

	return result
}

// projectSub narrows a complex value (object or array of objects) to the
// requested sub-attributes.
func projectSub(value any, subs map[string]bool) any {
	switch typed := value.(type) {
	case map[string]any:
		narrowed := make(map[string]any, len(subs))
		for key, entry := range typed {
			if subs[strings.ToLower(key)] {
				narrowed[key] = entry
			}
		}
		return narrowed

	case []any:
		items := make([]any, 0, len(typed))
		for _, item := range typed {
			items = append(items, projectSub(item, subs))
		}
		return items

	default:
		return value
	}
}

// excludeAttributes removes the listed attributes in place.
func excludeAttributes(document map[string]any, request attributeRequest) {
	for key := range document {
		lower := strings.ToLower(key)
		if alwaysReturned[lower] {
			continue
		}

		subs, excluded := request[lower]
		if !excluded {
			continue
		}
		if len(subs) == 0 {
			delete(document, key)
			continue
		}
		document[key] = removeSub(document[key], subs)
	}
}

// removeSub deletes sub-attributes from a complex value.
func removeSub(value any, subs map[string]bool) any {
	switch typed := value.(type) {
	case map[string]any:
		for key := range typed {
			if subs[strings.ToLower(key)] {
				delete(typed, key)
			}
		}
		return typed

	case []any:
		for _, item := range typed {
			removeSub(item, subs)
		}
		return typed

	default:
		return value
	}
}

// # Cleanup

// dropNeverReturned removes attributes whose schema marks returned=never.
func dropNeverReturned(resourceType string, document map[string]any) {
	for key := range document {
		attr, known := schema.Lookup(resourceType, key)
		if known && attr.Returned == schema.ReturnedNever {
			delete(document, key)
		}
	}
}

// stripEmpty removes null and empty values recursively, honoring the
// Group members and User groups visibility options.
func stripEmpty(resourceType string, document map[string]any, options Options) {
	for key, value := range document {
		cleaned, empty := cleanValue(value)
		if !empty {
			document[key] = cleaned
			continue
		}

		if keepWhenEmpty(resourceType, key, options) {
			document[key] = []any{}
			continue
		}
		delete(document, key)
	}
}

// keepWhenEmpty implements the empty-collection visibility exceptions.
func keepWhenEmpty(resourceType, key string, options Options) bool {
	if strings.EqualFold(resourceType, schema.ResourceGroup) && strings.EqualFold(key, "members") {
		return options.ShowEmptyGroupMembers
	}
	if strings.EqualFold(resourceType, schema.ResourceUser) && strings.EqualFold(key, "groups") {
		return options.ShowEmptyUserGroups
	}
	return false
}

// cleanValue strips empties recursively and reports whether the cleaned
// value is itself empty.
func cleanValue(value any) (any, bool) {
	switch typed := value.(type) {
	case nil:
		return nil, true

	case string:
		return typed, typed == ""

	case map[string]any:
		for key, entry := range typed {
			cleaned, empty := cleanValue(entry)
			if empty {
				delete(typed, key)
				continue
			}
			typed[key] = cleaned
		}
		return typed, len(typed) == 0

	case []any:
		items := typed[:0]
		for _, item := range typed {
			cleaned, empty := cleanValue(item)
			if !empty {
				items = append(items, cleaned)
			}
		}
		return items, len(items) == 0

	default:
		return value, false
	}
}

// cloneObject deep-copies a document so projection never mutates storage state.
func cloneObject(object map[string]any) map[string]any {
	clone := make(map[string]any, len(object))
	for key, value := range object {
		clone[key] = cloneValue(value)
	}
	return clone
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneObject(typed)
	case []any:
		items := make([]any, len(typed))
		for i, item := range typed {
			items[i] = cloneValue(item)
		}
		return items
	default:
		return value
	}
}
