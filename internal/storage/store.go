// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package storage

import (
	"context"
	"time"

	"github.com/hiromu-dev/torii/internal/scim/filter"
	"github.com/hiromu-dev/torii/internal/scim/schema"
)

// Kind selects which per-tenant table an operation targets.
type Kind string

const (
	KindUser  Kind = "User"
	KindGroup Kind = "Group"
)

// Record is one stored SCIM resource. Original carries the document with
// client-supplied casing intact; Normalized carries the lookup form with
// lowercased keys and folded values.
type Record struct {
	ID           string
	ExternalID   string
	UniqueName   string
	Version      int64
	Created      time.Time
	LastModified time.Time
	Original     map[string]any
	Normalized   map[string]any
}

// Member is one row of a group's membership index.
type Member struct {
	Value   string
	Type    string
	Display string
}

// GroupRef names a group a user belongs to.
type GroupRef struct {
	ID          string
	DisplayName string
}

// ListParams drives a paginated, filtered, sorted listing.
type ListParams struct {
	// Filter is the parsed filter expression, or nil for no filtering.
	Filter filter.Expression

	// SortBy is the catalog-resolved sort attribute, or nil for ID order.
	SortBy *schema.SQLPath

	// Descending flips the sort direction.
	Descending bool

	// StartIndex is the 1-based offset into the result set.
	StartIndex int

	// Count caps the page size. Zero returns the total only.
	Count int
}

// ListResult carries one page plus the unpaginated total.
type ListResult struct {
	Records      []*Record
	TotalResults int
}

// Store is the tenant-partitioned persistence contract shared by the
// PostgreSQL and SQLite backends.
type Store interface {
	// ProvisionTenant creates the tenant's tables and indexes if missing.
	ProvisionTenant(ctx context.Context, tenantID int) error

	// Insert stores a new resource. A uniqueness conflict on UniqueName
	// or ID surfaces as a duplicate error.
	Insert(ctx context.Context, tenantID int, kind Kind, record *Record) error

	// Get fetches a resource by ID, or a not-found error.
	Get(ctx context.Context, tenantID int, kind Kind, id string) (*Record, error)

	// Update replaces a resource's documents, bumping it to record.Version.
	// The write applies only if the stored version is record.Version-1;
	// otherwise a precondition-failed error is returned.
	Update(ctx context.Context, tenantID int, kind Kind, record *Record) error

	// Delete removes a resource by ID, or returns a not-found error.
	Delete(ctx context.Context, tenantID int, kind Kind, id string) error

	// List returns one page of resources matching the parameters.
	List(ctx context.Context, tenantID int, kind Kind, params ListParams) (*ListResult, error)

	// FindIDByUniqueName resolves a folded unique name (userName or
	// displayName) to a resource ID. Missing names return "", nil.
	FindIDByUniqueName(ctx context.Context, tenantID int, kind Kind, uniqueName string) (string, error)

	// FindIDByExternalID resolves an externalId to a resource ID.
	// Missing ids return "", nil.
	FindIDByExternalID(ctx context.Context, tenantID int, kind Kind, externalID string) (string, error)

	// InsertGroup stores a new group and writes its membership index in
	// the same transaction.
	InsertGroup(ctx context.Context, tenantID int, record *Record, members []Member) error

	// UpdateGroup replaces a group's documents and rewrites its membership
	// index in the same transaction, under the same version guard as Update.
	UpdateGroup(ctx context.Context, tenantID int, record *Record, members []Member) error

	// MembersOf lists a group's members with display names hydrated from
	// the referenced resources.
	MembersOf(ctx context.Context, tenantID int, groupID string) ([]Member, error)

	// GroupsFor lists the groups holding a direct membership for the resource.
	GroupsFor(ctx context.Context, tenantID int, memberID string) ([]GroupRef, error)

	// Close releases the underlying connections.
	Close()
}
