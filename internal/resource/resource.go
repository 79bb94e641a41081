// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

/*
Package resource implements the SCIM resource lifecycle for Users and
Groups: create, read, replace, patch, delete, and filtered listing.

# Architecture

  - Service: Orchestrates validation, password hashing, version counters,
    group membership indexing, and persistence through [storage.Store].
  - Handler: Translates chi routes and SCIM query parameters into service
    calls and renders resources through the projection rules.
  - Documents: Resources are held as map[string]any documents end to end.
    The service owns the server-controlled parts (id, meta, version) and
    the storage layer keeps the original and normalized forms in sync.

Versioning follows RFC 7644 §3.14: every write bumps an integer version
rendered as a weak ETag (W/"3"), checked against If-Match / If-None-Match.
*/
package resource

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
	"github.com/hiromu-dev/torii/internal/scim/schema"
	"github.com/hiromu-dev/torii/internal/storage"
	"github.com/hiromu-dev/torii/internal/tenant"
)

// kindFor maps a SCIM resource type to its storage kind.
func kindFor(resourceType string) storage.Kind {
	if strings.EqualFold(resourceType, schema.ResourceGroup) {
		return storage.KindGroup
	}
	return storage.KindUser
}

// endpointFor returns the collection URL segment of a resource type.
func endpointFor(resourceType string) string {
	if strings.EqualFold(resourceType, schema.ResourceGroup) {
		return "Groups"
	}
	return "Users"
}

// # ETags

// FormatETag renders a version counter as a weak entity tag.
func FormatETag(version int64) string {
	return fmt.Sprintf(`W/"%d"`, version)
}

// parseETagVersion extracts the version from W/"3", "3", or a bare 3.
func parseETagVersion(header string) (int64, bool) {
	value := strings.TrimSpace(header)
	value = strings.TrimPrefix(value, "W/")
	value = strings.Trim(value, `"`)

	version, err := strconv.ParseInt(value, 10, 64)
	if err != nil || version < 1 {
		return 0, false
	}
	return version, true
}

// checkIfMatch enforces an If-Match precondition against the current
// version. An empty header or "*" always passes.
func checkIfMatch(header string, version int64) error {
	if header == "" || header == "*" {
		return nil
	}

	expected, ok := parseETagVersion(header)
	if !ok {
		return apperr.BadRequest(apperr.ScimTypeInvalidVers, "Invalid If-Match value: "+header)
	}
	if expected != version {
		return apperr.PreconditionFailed(
			fmt.Sprintf("Version mismatch: resource is at %s", FormatETag(version)))
	}
	return nil
}

// matchesIfNoneMatch reports whether an If-None-Match header matches the
// current version, meaning the client's copy is still fresh.
func matchesIfNoneMatch(header string, version int64) bool {
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	held, ok := parseETagVersion(header)
	return ok && held == version
}

// # Meta Attributes

// stampMeta writes the server-controlled meta block into a document.
func stampMeta(ten *tenant.Tenant, baseURL, resourceType, id string, created, modified time.Time, version int64) map[string]any {
	return map[string]any{
		"resourceType": canonicalType(resourceType),
		"created":      formatDatetime(ten, created),
		"lastModified": formatDatetime(ten, modified),
		"location":     locationFor(baseURL, ten, resourceType, id),
		"version":      FormatETag(version),
	}
}

// canonicalType returns "User" or "Group" with canonical casing.
func canonicalType(resourceType string) string {
	if strings.EqualFold(resourceType, schema.ResourceGroup) {
		return schema.ResourceGroup
	}
	return schema.ResourceUser
}

// formatDatetime renders a meta timestamp in the tenant's chosen format.
func formatDatetime(ten *tenant.Tenant, t time.Time) string {
	if ten.UsesEpochDatetime() {
		return strconv.FormatInt(t.UnixMilli(), 10)
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// locationFor builds the absolute resource URL.
func locationFor(baseURL string, ten *tenant.Tenant, resourceType, id string) string {
	return strings.TrimSuffix(baseURL, "/") + ten.BasePath() + "/" + endpointFor(resourceType) + "/" + id
}

// # Document Helpers

// lookupAttr finds a top-level attribute by case-insensitive name.
func lookupAttr(document map[string]any, name string) (any, bool) {
	if value, ok := document[name]; ok {
		return value, true
	}
	for key, value := range document {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return nil, false
}

// stringAttr returns a top-level string attribute, or "".
func stringAttr(document map[string]any, name string) string {
	value, ok := lookupAttr(document, name)
	if !ok {
		return ""
	}
	str, _ := value.(string)
	return str
}

// setAttr writes an attribute, reusing an existing key's casing.
func setAttr(document map[string]any, name string, value any) {
	for key := range document {
		if strings.EqualFold(key, name) {
			document[key] = value
			return
		}
	}
	document[name] = value
}

// deleteAttr removes an attribute by case-insensitive name.
func deleteAttr(document map[string]any, name string) {
	for key := range document {
		if strings.EqualFold(key, name) {
			delete(document, key)
		}
	}
}

// uniqueNameOf extracts and folds the resource's unique name (userName for
// Users, displayName for Groups).
func uniqueNameOf(resourceType string, document map[string]any) string {
	attr := "userName"
	if strings.EqualFold(resourceType, schema.ResourceGroup) {
		attr = "displayName"
	}
	return cases.Fold().String(stringAttr(document, attr))
}

// ensureSchemas rewrites the schemas array from the document's actual
// shape: the base URN plus any extension URN present as a top-level key.
func ensureSchemas(resourceType string, document map[string]any) {
	schemas := []any{schema.URNFor(resourceType)}
	for key := range document {
		if strings.HasPrefix(strings.ToLower(key), "urn:") {
			schemas = append(schemas, key)
		}
	}
	setAttr(document, "schemas", schemas)
}

// cloneDocument deep-copies a document.
func cloneDocument(document map[string]any) map[string]any {
	clone := make(map[string]any, len(document))
	for key, value := range document {
		clone[key] = cloneAny(value)
	}
	return clone
}

func cloneAny(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneDocument(typed)
	case []any:
		items := make([]any, len(typed))
		for i, item := range typed {
			items[i] = cloneAny(item)
		}
		return items
	default:
		return value
	}
}

