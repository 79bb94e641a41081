// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package schema

import "github.com/hiromu-dev/torii/internal/platform/constants"

// multiValueSubAttributes is the standard sub-attribute set of RFC 7643
// multi-valued attributes (emails, phoneNumbers, addresses via override, ...).
func multiValueSubAttributes(valueCaseExact bool, referenceTypes ...string) []Attribute {
	value := Attribute{Name: "value", Type: TypeString, CaseExact: valueCaseExact, Mutability: MutabilityReadWrite}
	if len(referenceTypes) > 0 {
		value.Type = TypeReference
		value.ReferenceTypes = referenceTypes
		value.CaseExact = true
	}
	return []Attribute{
		value,
		{Name: "display", Type: TypeString, Mutability: MutabilityReadWrite},
		{Name: "type", Type: TypeString, Mutability: MutabilityReadWrite},
		{Name: "primary", Type: TypeBoolean, Mutability: MutabilityReadWrite},
	}
}

// UserSchema is the RFC 7643 §4.1 core User schema.
var UserSchema = Schema{
	ID:          constants.SchemaURNUser,
	Name:        "User",
	Description: "User Account",
	Attributes: []Attribute{
		{
			Name: "userName", Type: TypeString, Required: true,
			Mutability: MutabilityReadWrite, Returned: ReturnedDefault, Uniqueness: UniquenessServer,
			Description: "Unique identifier for the User, typically used to directly authenticate",
		},
		{
			Name: "name", Type: TypeComplex, Mutability: MutabilityReadWrite, Returned: ReturnedDefault,
			SubAttributes: []Attribute{
				{Name: "formatted", Type: TypeString},
				{Name: "familyName", Type: TypeString},
				{Name: "givenName", Type: TypeString},
				{Name: "middleName", Type: TypeString},
				{Name: "honorificPrefix", Type: TypeString},
				{Name: "honorificSuffix", Type: TypeString},
			},
		},
		{Name: "displayName", Type: TypeString, Mutability: MutabilityReadWrite, Returned: ReturnedDefault},
		{Name: "nickName", Type: TypeString},
		{Name: "profileUrl", Type: TypeReference, CaseExact: true, ReferenceTypes: []string{"external"}},
		{Name: "title", Type: TypeString},
		{Name: "userType", Type: TypeString},
		{Name: "preferredLanguage", Type: TypeString},
		{Name: "locale", Type: TypeString},
		{Name: "timezone", Type: TypeString},
		{Name: "active", Type: TypeBoolean},
		{
			Name: "password", Type: TypeString, CaseExact: true,
			Mutability: MutabilityWriteOnly, Returned: ReturnedNever,
		},
		{
			Name: "emails", Type: TypeComplex, MultiValued: true,
			SubAttributes:   multiValueSubAttributes(false),
			CanonicalValues: []string{"work", "home", "other"},
		},
		{
			Name: "phoneNumbers", Type: TypeComplex, MultiValued: true,
			SubAttributes:   multiValueSubAttributes(false),
			CanonicalValues: []string{"work", "home", "mobile", "fax", "pager", "other"},
		},
		{
			Name: "ims", Type: TypeComplex, MultiValued: true,
			SubAttributes: multiValueSubAttributes(false),
		},
		{
			Name: "photos", Type: TypeComplex, MultiValued: true,
			SubAttributes: multiValueSubAttributes(true),
		},
		{
			Name: "addresses", Type: TypeComplex, MultiValued: true,
			SubAttributes: []Attribute{
				{Name: "formatted", Type: TypeString},
				{Name: "streetAddress", Type: TypeString},
				{Name: "locality", Type: TypeString},
				{Name: "region", Type: TypeString},
				{Name: "postalCode", Type: TypeString},
				{Name: "country", Type: TypeString},
				{Name: "type", Type: TypeString},
				{Name: "primary", Type: TypeBoolean},
			},
			CanonicalValues: []string{"work", "home", "other"},
		},
		{
			Name: "groups", Type: TypeComplex, MultiValued: true, Mutability: MutabilityReadOnly,
			SubAttributes: []Attribute{
				{Name: "value", Type: TypeString, CaseExact: true, Mutability: MutabilityReadOnly},
				{Name: "$ref", Type: TypeReference, CaseExact: true, Mutability: MutabilityReadOnly, ReferenceTypes: []string{"Group"}},
				{Name: "display", Type: TypeString, Mutability: MutabilityReadOnly},
				{Name: "type", Type: TypeString, Mutability: MutabilityReadOnly},
			},
		},
		{
			Name: "entitlements", Type: TypeComplex, MultiValued: true,
			SubAttributes: multiValueSubAttributes(false),
		},
		{
			Name: "roles", Type: TypeComplex, MultiValued: true,
			SubAttributes: multiValueSubAttributes(false),
		},
		{
			Name: "x509Certificates", Type: TypeComplex, MultiValued: true,
			SubAttributes: multiValueSubAttributes(true),
		},
	},
}

// EnterpriseUserSchema is the RFC 7643 §4.3 Enterprise User extension.
var EnterpriseUserSchema = Schema{
	ID:          constants.SchemaURNEnterpriseUser,
	Name:        "EnterpriseUser",
	Description: "Enterprise User",
	Attributes: []Attribute{
		{Name: "employeeNumber", Type: TypeString},
		{Name: "costCenter", Type: TypeString},
		{Name: "organization", Type: TypeString},
		{Name: "division", Type: TypeString},
		{Name: "department", Type: TypeString},
		{
			Name: "manager", Type: TypeComplex,
			SubAttributes: []Attribute{
				{Name: "value", Type: TypeString, CaseExact: true},
				{Name: "$ref", Type: TypeReference, CaseExact: true, ReferenceTypes: []string{"User"}},
				{Name: "displayName", Type: TypeString, Mutability: MutabilityReadOnly},
			},
		},
	},
}
