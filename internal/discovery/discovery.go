// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

/*
Package discovery serves the SCIM discovery endpoints (RFC 7644 §4):
ServiceProviderConfig, Schemas, and ResourceTypes.

The schema documents are rendered from the same static catalog the rest of
the server validates and normalizes against, so discovery always reflects
actual behavior.
*/
package discovery

import (
	"strings"

	"github.com/hiromu-dev/torii/internal/platform/constants"
	"github.com/hiromu-dev/torii/internal/scim/schema"
)

// serviceProviderConfig renders the server capability document.
func serviceProviderConfig(baseURL, basePath string) map[string]any {
	location := strings.TrimSuffix(baseURL, "/") + basePath + "/ServiceProviderConfig"

	return map[string]any{
		"schemas":          []string{constants.SchemaURNServiceProviderConfig},
		"documentationUri": "https://datatracker.ietf.org/doc/html/rfc7644",
		"patch":            map[string]any{"supported": true},
		"bulk": map[string]any{
			"supported":      false,
			"maxOperations":  0,
			"maxPayloadSize": 0,
		},
		"filter": map[string]any{
			"supported":  true,
			"maxResults": constants.MaxListCount,
		},
		"changePassword": map[string]any{"supported": true},
		"sort":           map[string]any{"supported": true},
		"etag":           map[string]any{"supported": true},
		"authenticationSchemes": []map[string]any{
			{
				"type":        "oauthbearertoken",
				"name":        "OAuth Bearer Token",
				"description": "Authentication scheme using a static or JWT bearer token",
			},
			{
				"type":        "httpbasic",
				"name":        "HTTP Basic",
				"description": "Authentication scheme using HTTP Basic credentials",
			},
		},
		"meta": map[string]any{
			"resourceType": "ServiceProviderConfig",
			"location":     location,
		},
	}
}

// resourceTypes renders the ResourceType documents for Users and Groups.
func resourceTypes(baseURL, basePath string) []map[string]any {
	prefix := strings.TrimSuffix(baseURL, "/") + basePath

	return []map[string]any{
		{
			"schemas":     []string{constants.SchemaURNResourceType},
			"id":          schema.ResourceUser,
			"name":        schema.ResourceUser,
			"endpoint":    "/Users",
			"description": "User Account",
			"schema":      constants.SchemaURNUser,
			"schemaExtensions": []map[string]any{
				{
					"schema":   constants.SchemaURNEnterpriseUser,
					"required": false,
				},
			},
			"meta": map[string]any{
				"resourceType": "ResourceType",
				"location":     prefix + "/ResourceTypes/" + schema.ResourceUser,
			},
		},
		{
			"schemas":     []string{constants.SchemaURNResourceType},
			"id":          schema.ResourceGroup,
			"name":        schema.ResourceGroup,
			"endpoint":    "/Groups",
			"description": "Group",
			"schema":      constants.SchemaURNGroup,
			"meta": map[string]any{
				"resourceType": "ResourceType",
				"location":     prefix + "/ResourceTypes/" + schema.ResourceGroup,
			},
		},
	}
}

// allSchemas renders every served schema definition.
func allSchemas(baseURL, basePath string) []map[string]any {
	documents := make([]map[string]any, 0, 3)
	for _, s := range []*schema.Schema{&schema.UserSchema, &schema.EnterpriseUserSchema, &schema.GroupSchema} {
		documents = append(documents, renderSchema(baseURL, basePath, s))
	}
	return documents
}

// renderSchema converts a catalog schema into its SCIM representation.
func renderSchema(baseURL, basePath string, s *schema.Schema) map[string]any {
	attributes := make([]map[string]any, 0, len(s.Attributes))
	for i := range s.Attributes {
		attributes = append(attributes, renderAttribute(&s.Attributes[i]))
	}

	return map[string]any{
		"schemas":     []string{constants.SchemaURNSchema},
		"id":          s.ID,
		"name":        s.Name,
		"description": s.Description,
		"attributes":  attributes,
		"meta": map[string]any{
			"resourceType": "Schema",
			"location":     strings.TrimSuffix(baseURL, "/") + basePath + "/Schemas/" + s.ID,
		},
	}
}

// renderAttribute converts one catalog attribute, recursing into
// sub-attributes of complex types.
func renderAttribute(attribute *schema.Attribute) map[string]any {
	rendered := map[string]any{
		"name":        attribute.Name,
		"type":        string(attribute.Type),
		"multiValued": attribute.MultiValued,
		"description": attribute.Description,
		"required":    attribute.Required,
		"caseExact":   attribute.CaseExact,
		"mutability":  mutabilityOrDefault(attribute.Mutability),
		"returned":    returnedOrDefault(attribute.Returned),
		"uniqueness":  uniquenessOrDefault(attribute.Uniqueness),
	}

	if len(attribute.CanonicalValues) > 0 {
		rendered["canonicalValues"] = attribute.CanonicalValues
	}
	if len(attribute.ReferenceTypes) > 0 {
		rendered["referenceTypes"] = attribute.ReferenceTypes
	}
	if attribute.Type == schema.TypeComplex && len(attribute.SubAttributes) > 0 {
		subAttributes := make([]map[string]any, 0, len(attribute.SubAttributes))
		for i := range attribute.SubAttributes {
			subAttributes = append(subAttributes, renderAttribute(&attribute.SubAttributes[i]))
		}
		rendered["subAttributes"] = subAttributes
	}

	return rendered
}

func mutabilityOrDefault(value string) string {
	if value == "" {
		return schema.MutabilityReadWrite
	}
	return value
}

func returnedOrDefault(value string) string {
	if value == "" {
		return schema.ReturnedDefault
	}
	return value
}

func uniquenessOrDefault(value string) string {
	if value == "" {
		return schema.UniquenessNone
	}
	return value
}
