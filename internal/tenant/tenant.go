// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

/*
Package tenant defines the multi-tenant registry and per-tenant settings.

Each tenant is served under its own URL prefix (/{tenant}/scim/v2) and owns an
isolated set of database tables named with the t{ID}_ prefix. The registry is
loaded once at startup from a YAML file and is immutable afterwards.

Architecture:

  - Registry: Parses and indexes the YAML tenant list.
  - Tenant: Carries authentication settings and SCIM compatibility knobs.
  - Isolation: The numeric tenant ID drives physical table naming, so two
    tenants can never observe each other's resources.
*/
package tenant

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// # Authentication Types

const (
	// AuthBearer compares a static bearer token in constant time.
	AuthBearer = "bearer"
	// AuthBasic compares a static username/password pair in constant time.
	AuthBasic = "basic"
	// AuthJWT validates an HS256-signed bearer token.
	AuthJWT = "jwt"
	// AuthAnonymous disables authentication for the tenant.
	AuthAnonymous = "anonymous"
)

// # Meta Datetime Formats

const (
	// DatetimeRFC3339 renders meta timestamps as RFC 3339 with millisecond precision.
	DatetimeRFC3339 = "rfc3339"
	// DatetimeEpoch renders meta timestamps as epoch milliseconds in a JSON string.
	DatetimeEpoch = "epoch"
)

// AuthSettings holds the per-tenant authentication configuration.
type AuthSettings struct {
	// Type is one of bearer, basic, jwt, anonymous.
	Type string `yaml:"type"`

	// Token is the expected bearer token (type=bearer).
	Token string `yaml:"token,omitempty"`

	// Username and Password are the expected basic credentials (type=basic).
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// Secret is the HS256 signing secret (type=jwt).
	Secret string `yaml:"secret,omitempty"`
	// Issuer, when set, must match the token's iss claim (type=jwt).
	Issuer string `yaml:"issuer,omitempty"`
	// Audience, when set, must be present in the token's aud claim (type=jwt).
	Audience string `yaml:"audience,omitempty"`
}

// Tenant is a single provisioning domain with isolated storage.
type Tenant struct {
	// ID is the stable numeric identifier used for table naming. Never reuse IDs.
	ID int `yaml:"id"`

	// Name is the URL path segment the tenant is served under.
	Name string `yaml:"name"`

	// Auth configures how clients authenticate against this tenant.
	Auth AuthSettings `yaml:"auth"`

	// MetaDatetimeFormat selects rfc3339 (default) or epoch meta timestamps.
	MetaDatetimeFormat string `yaml:"meta_datetime_format,omitempty"`

	// SupportPatchReplaceEmptyValue enables the compatibility behavior where
	// a replace with [{"value":""}] clears the attribute instead of storing
	// the literal element.
	SupportPatchReplaceEmptyValue bool `yaml:"support_patch_replace_empty_value,omitempty"`

	// ShowEmptyGroupsMembers keeps "members": [] visible on Groups without members.
	ShowEmptyGroupsMembers bool `yaml:"show_empty_groups_members,omitempty"`

	// IncludeUserGroups hydrates the read-only "groups" attribute on User reads.
	IncludeUserGroups bool `yaml:"include_user_groups,omitempty"`
}

// TablePrefix returns the physical table name prefix for this tenant.
func (t *Tenant) TablePrefix() string {
	return fmt.Sprintf("t%d_", t.ID)
}

// BasePath returns the URL prefix all SCIM routes of this tenant live under.
func (t *Tenant) BasePath() string {
	return "/" + t.Name + "/scim/v2"
}

// UsesEpochDatetime reports whether meta timestamps render as epoch milliseconds.
func (t *Tenant) UsesEpochDatetime() bool {
	return t.MetaDatetimeFormat == DatetimeEpoch
}

// # Registry

// Registry indexes all configured tenants by name.
type Registry struct {
	tenants map[string]*Tenant
	ordered []*Tenant
}

// registryFile is the YAML document shape of the tenant registry.
type registryFile struct {
	Tenants []*Tenant `yaml:"tenants"`
}

// Load reads and validates the tenant registry from a YAML file.
//
// # Validation
//
// Tenant names must be unique, non-empty, and free of path separators.
// Tenant IDs must be unique and positive, because they name physical tables.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tenant: failed to read registry %s: %w", path, err)
	}

	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("tenant: failed to parse registry: %w", err)
	}

	if len(file.Tenants) == 0 {
		return nil, fmt.Errorf("tenant: registry %s defines no tenants", path)
	}

	registry := &Registry{tenants: make(map[string]*Tenant, len(file.Tenants))}
	seenIDs := make(map[int]string, len(file.Tenants))

	for _, t := range file.Tenants {
		if err := validateTenant(t); err != nil {
			return nil, err
		}

		if _, exists := registry.tenants[t.Name]; exists {
			return nil, fmt.Errorf("tenant: duplicate tenant name %q", t.Name)
		}
		if other, exists := seenIDs[t.ID]; exists {
			return nil, fmt.Errorf("tenant: id %d is shared by %q and %q", t.ID, other, t.Name)
		}

		if t.MetaDatetimeFormat == "" {
			t.MetaDatetimeFormat = DatetimeRFC3339
		}

		registry.tenants[t.Name] = t
		registry.ordered = append(registry.ordered, t)
		seenIDs[t.ID] = t.Name
	}

	return registry, nil
}

// Lookup returns the tenant registered under the given name, or nil.
func (r *Registry) Lookup(name string) *Tenant {
	return r.tenants[name]
}

// All returns every tenant in registry file order.
func (r *Registry) All() []*Tenant {
	return r.ordered
}

// validateTenant enforces the structural invariants of a single entry.
func validateTenant(t *Tenant) error {
	if t.ID <= 0 {
		return fmt.Errorf("tenant: %q has invalid id %d (must be positive)", t.Name, t.ID)
	}
	if t.Name == "" || strings.ContainsAny(t.Name, "/\\ ") {
		return fmt.Errorf("tenant: invalid tenant name %q", t.Name)
	}

	switch t.Auth.Type {
	case AuthBearer:
		if t.Auth.Token == "" {
			return fmt.Errorf("tenant: %q uses bearer auth but has no token", t.Name)
		}
	case AuthBasic:
		if t.Auth.Username == "" || t.Auth.Password == "" {
			return fmt.Errorf("tenant: %q uses basic auth but is missing credentials", t.Name)
		}
	case AuthJWT:
		if t.Auth.Secret == "" {
			return fmt.Errorf("tenant: %q uses jwt auth but has no secret", t.Name)
		}
	case AuthAnonymous:
		// no credentials required
	default:
		return fmt.Errorf("tenant: %q has unknown auth type %q", t.Name, t.Auth.Type)
	}

	switch t.MetaDatetimeFormat {
	case "", DatetimeRFC3339, DatetimeEpoch:
	default:
		return fmt.Errorf("tenant: %q has unknown meta_datetime_format %q", t.Name, t.MetaDatetimeFormat)
	}

	return nil
}
