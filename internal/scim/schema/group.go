// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package schema

import "github.com/hiromu-dev/torii/internal/platform/constants"

// GroupSchema is the RFC 7643 §4.2 core Group schema.
var GroupSchema = Schema{
	ID:          constants.SchemaURNGroup,
	Name:        "Group",
	Description: "Group",
	Attributes: []Attribute{
		{
			Name: "displayName", Type: TypeString, Required: true,
			Mutability: MutabilityReadWrite, Returned: ReturnedDefault, Uniqueness: UniquenessServer,
		},
		{
			Name: "members", Type: TypeComplex, MultiValued: true,
			SubAttributes: []Attribute{
				{Name: "value", Type: TypeString, CaseExact: true, Mutability: MutabilityImmutable},
				{Name: "$ref", Type: TypeReference, CaseExact: true, Mutability: MutabilityImmutable, ReferenceTypes: []string{"User", "Group"}},
				{Name: "display", Type: TypeString, Mutability: MutabilityReadOnly},
				{Name: "type", Type: TypeString, Mutability: MutabilityImmutable, CanonicalValues: []string{"User", "Group"}},
			},
		},
	},
}
