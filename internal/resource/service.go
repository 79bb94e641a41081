// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package resource

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
	"github.com/hiromu-dev/torii/internal/platform/redis"
	"github.com/hiromu-dev/torii/internal/platform/sec"
	"github.com/hiromu-dev/torii/internal/scim/filter"
	"github.com/hiromu-dev/torii/internal/scim/message"
	"github.com/hiromu-dev/torii/internal/scim/patch"
	"github.com/hiromu-dev/torii/internal/scim/schema"
	"github.com/hiromu-dev/torii/internal/storage"
	"github.com/hiromu-dev/torii/internal/tenant"
	"github.com/hiromu-dev/torii/pkg/uuidv7"
)

// Service implements the SCIM resource lifecycle on top of a [storage.Store].
type Service struct {
	store     storage.Store
	passwords *sec.PasswordManager
	versions  *redis.VersionCache
	logger    *slog.Logger
	baseURL   string
}

func NewService(store storage.Store, passwords *sec.PasswordManager, versions *redis.VersionCache, logger *slog.Logger, baseURL string) *Service {
	return &Service{
		store:     store,
		passwords: passwords,
		versions:  versions,
		logger:    logger,
		baseURL:   baseURL,
	}
}

// Stored is a resource document together with its version counter.
type Stored struct {
	Document map[string]any
	Version  int64
}

// ETag renders the stored version as a weak entity tag.
func (s *Stored) ETag() string {
	return FormatETag(s.Version)
}

// Location returns the document's meta.location, or "".
func (s *Stored) Location() string {
	meta, ok := lookupAttr(s.Document, "meta")
	if !ok {
		return ""
	}
	object, ok := meta.(map[string]any)
	if !ok {
		return ""
	}
	return stringAttr(object, "location")
}

// # Lifecycle

// Create validates and stores a new resource, returning it with version 1.
func (service *Service) Create(ctx context.Context, ten *tenant.Tenant, resourceType string, document map[string]any) (*Stored, error) {
	kind := kindFor(resourceType)
	doc := cloneDocument(document)

	// Server-controlled and read-only attributes are never taken from the client.
	deleteAttr(doc, "id")
	deleteAttr(doc, "meta")
	if kind == storage.KindUser {
		deleteAttr(doc, "groups")
	}

	if err := validateDocument(resourceType, doc); err != nil {
		return nil, err
	}
	if kind == storage.KindUser {
		if err := service.preparePassword(doc); err != nil {
			return nil, err
		}
	}
	ensureSchemas(resourceType, doc)

	uniqueName := uniqueNameOf(resourceType, doc)
	if existing, err := service.store.FindIDByUniqueName(ctx, ten.ID, kind, uniqueName); err != nil {
		return nil, err
	} else if existing != "" {
		return nil, apperr.Duplicate(duplicateDetail(resourceType))
	}
	if externalID := stringAttr(doc, "externalId"); externalID != "" {
		if existing, err := service.store.FindIDByExternalID(ctx, ten.ID, kind, externalID); err != nil {
			return nil, err
		} else if existing != "" {
			return nil, apperr.Duplicate("externalId is already in use")
		}
	}

	var members []storage.Member
	if kind == storage.KindGroup {
		resolved, err := service.resolveMembers(ctx, ten, doc)
		if err != nil {
			return nil, err
		}
		members = resolved
	}

	id := uuidv7.Must()
	now := time.Now()
	setAttr(doc, "id", id)
	setAttr(doc, "meta", stampMeta(ten, service.baseURL, resourceType, id, now, now, 1))

	record := &storage.Record{
		ID:           id,
		ExternalID:   stringAttr(doc, "externalId"),
		UniqueName:   uniqueName,
		Version:      1,
		Created:      now,
		LastModified: now,
		Original:     doc,
		Normalized:   service.normalize(resourceType, doc),
	}
	if kind == storage.KindGroup {
		// Group row and membership index land in one transaction.
		if err := service.store.InsertGroup(ctx, ten.ID, record, members); err != nil {
			return nil, err
		}
	} else if err := service.store.Insert(ctx, ten.ID, kind, record); err != nil {
		return nil, err
	}

	service.versions.Set(ctx, ten.ID, string(kind), id, 1)
	service.logger.Info(strings.ToLower(string(kind))+"_created",
		slog.String("tenant", ten.Name), slog.String("id", id))

	return &Stored{Document: doc, Version: 1}, nil
}

// Get fetches a resource. When ifNoneMatch names the current version, the
// second result is true and the document is nil.
func (service *Service) Get(ctx context.Context, ten *tenant.Tenant, resourceType, id, ifNoneMatch string) (*Stored, bool, error) {
	kind := kindFor(resourceType)

	// If-None-Match revalidation can often be answered from the version
	// cache without touching the database.
	if version, hit := service.versions.Get(ctx, ten.ID, string(kind), id); hit && matchesIfNoneMatch(ifNoneMatch, version) {
		return &Stored{Version: version}, true, nil
	}

	record, err := service.store.Get(ctx, ten.ID, kind, id)
	if err != nil {
		return nil, false, err
	}
	service.versions.Set(ctx, ten.ID, string(kind), id, record.Version)

	if matchesIfNoneMatch(ifNoneMatch, record.Version) {
		return &Stored{Version: record.Version}, true, nil
	}

	doc := record.Original
	if err := service.hydrate(ctx, ten, resourceType, doc, id); err != nil {
		return nil, false, err
	}
	return &Stored{Document: doc, Version: record.Version}, false, nil
}

// Replace overwrites a resource with a full new representation.
func (service *Service) Replace(ctx context.Context, ten *tenant.Tenant, resourceType, id string, document map[string]any, ifMatch string) (*Stored, error) {
	kind := kindFor(resourceType)

	record, err := service.store.Get(ctx, ten.ID, kind, id)
	if err != nil {
		return nil, err
	}
	if err := checkIfMatch(ifMatch, record.Version); err != nil {
		return nil, err
	}

	doc := cloneDocument(document)
	deleteAttr(doc, "id")
	deleteAttr(doc, "meta")
	if kind == storage.KindUser {
		deleteAttr(doc, "groups")
	}

	if err := validateDocument(resourceType, doc); err != nil {
		return nil, err
	}
	if kind == storage.KindUser {
		// A replace that omits the password keeps the stored hash; IdPs
		// routinely PUT user profiles without re-sending credentials.
		if stringAttr(doc, "password") == "" {
			if stored := stringAttr(record.Original, "password"); stored != "" {
				setAttr(doc, "password", stored)
			} else {
				deleteAttr(doc, "password")
			}
		} else if err := service.preparePassword(doc); err != nil {
			return nil, err
		}
	}
	ensureSchemas(resourceType, doc)

	return service.persistUpdate(ctx, ten, resourceType, record, doc)
}

// Patch applies RFC 7644 §3.5.2 operations to a resource.
func (service *Service) Patch(ctx context.Context, ten *tenant.Tenant, resourceType, id string, operations []message.PatchOperation, ifMatch string) (*Stored, error) {
	kind := kindFor(resourceType)

	record, err := service.store.Get(ctx, ten.ID, kind, id)
	if err != nil {
		return nil, err
	}
	if err := checkIfMatch(ifMatch, record.Version); err != nil {
		return nil, err
	}

	doc := cloneDocument(record.Original)
	applier := patch.NewApplier(canonicalType(resourceType), ten.SupportPatchReplaceEmptyValue)
	if err := applier.Apply(doc, operations); err != nil {
		return nil, err
	}

	// Server-controlled attributes survive any patch.
	setAttr(doc, "id", id)
	if kind == storage.KindUser {
		deleteAttr(doc, "groups")
		if err := service.preparePassword(doc); err != nil {
			return nil, err
		}
	}

	if err := validateDocument(resourceType, doc); err != nil {
		return nil, err
	}

	return service.persistUpdate(ctx, ten, resourceType, record, doc)
}

// persistUpdate finishes Replace and Patch: uniqueness, meta, members,
// optimistic write.
func (service *Service) persistUpdate(ctx context.Context, ten *tenant.Tenant, resourceType string, record *storage.Record, doc map[string]any) (*Stored, error) {
	kind := kindFor(resourceType)
	id := record.ID

	uniqueName := uniqueNameOf(resourceType, doc)
	if existing, err := service.store.FindIDByUniqueName(ctx, ten.ID, kind, uniqueName); err != nil {
		return nil, err
	} else if existing != "" && existing != id {
		return nil, apperr.Duplicate(duplicateDetail(resourceType))
	}
	if externalID := stringAttr(doc, "externalId"); externalID != "" {
		if existing, err := service.store.FindIDByExternalID(ctx, ten.ID, kind, externalID); err != nil {
			return nil, err
		} else if existing != "" && existing != id {
			return nil, apperr.Duplicate("externalId is already in use")
		}
	}

	var members []storage.Member
	if kind == storage.KindGroup {
		resolved, err := service.resolveMembers(ctx, ten, doc)
		if err != nil {
			return nil, err
		}
		members = resolved
	}

	now := time.Now()
	newVersion := record.Version + 1
	setAttr(doc, "meta", stampMeta(ten, service.baseURL, resourceType, id, record.Created, now, newVersion))

	updated := &storage.Record{
		ID:           id,
		ExternalID:   stringAttr(doc, "externalId"),
		UniqueName:   uniqueName,
		Version:      newVersion,
		Created:      record.Created,
		LastModified: now,
		Original:     doc,
		Normalized:   service.normalize(resourceType, doc),
	}
	if kind == storage.KindGroup {
		if err := service.store.UpdateGroup(ctx, ten.ID, updated, members); err != nil {
			return nil, err
		}
	} else if err := service.store.Update(ctx, ten.ID, kind, updated); err != nil {
		return nil, err
	}

	service.versions.Set(ctx, ten.ID, string(kind), id, newVersion)
	service.logger.Info(strings.ToLower(string(kind))+"_updated",
		slog.String("tenant", ten.Name), slog.String("id", id),
		slog.Int64("version", newVersion))

	return &Stored{Document: doc, Version: newVersion}, nil
}

// Delete removes a resource and detaches it from every group it belongs to.
func (service *Service) Delete(ctx context.Context, ten *tenant.Tenant, resourceType, id, ifMatch string) error {
	kind := kindFor(resourceType)

	if ifMatch != "" && ifMatch != "*" {
		record, err := service.store.Get(ctx, ten.ID, kind, id)
		if err != nil {
			return err
		}
		if err := checkIfMatch(ifMatch, record.Version); err != nil {
			return err
		}
	}

	// Membership references to the deleted resource disappear from the
	// owning group documents, not just from the index.
	refs, err := service.store.GroupsFor(ctx, ten.ID, id)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if err := service.detachMember(ctx, ten, ref.ID, id); err != nil {
			return err
		}
	}

	if err := service.store.Delete(ctx, ten.ID, kind, id); err != nil {
		return err
	}

	service.versions.Invalidate(ctx, ten.ID, string(kind), id)
	service.logger.Warn(strings.ToLower(string(kind))+"_deleted",
		slog.String("tenant", ten.Name), slog.String("id", id))
	return nil
}

// detachMember removes one member from a group document and its index.
func (service *Service) detachMember(ctx context.Context, ten *tenant.Tenant, groupID, memberID string) error {
	record, err := service.store.Get(ctx, ten.ID, storage.KindGroup, groupID)
	if err != nil {
		return err
	}

	doc := record.Original
	value, ok := lookupAttr(doc, "members")
	if ok {
		if array, isArray := value.([]any); isArray {
			kept := make([]any, 0, len(array))
			for _, item := range array {
				element, isObject := item.(map[string]any)
				if isObject && stringAttr(element, "value") == memberID {
					continue
				}
				kept = append(kept, item)
			}
			setAttr(doc, "members", kept)
		}
	}

	return service.writeGroupAfterDetach(ctx, ten, record, doc)
}

// writeGroupAfterDetach persists a group whose members changed server-side.
func (service *Service) writeGroupAfterDetach(ctx context.Context, ten *tenant.Tenant, record *storage.Record, doc map[string]any) error {
	now := time.Now()
	newVersion := record.Version + 1
	setAttr(doc, "meta", stampMeta(ten, service.baseURL, schema.ResourceGroup, record.ID, record.Created, now, newVersion))

	updated := &storage.Record{
		ID:           record.ID,
		ExternalID:   record.ExternalID,
		UniqueName:   record.UniqueName,
		Version:      newVersion,
		Created:      record.Created,
		LastModified: now,
		Original:     doc,
		Normalized:   service.normalize(schema.ResourceGroup, doc),
	}
	if err := service.store.UpdateGroup(ctx, ten.ID, updated, membersFromDocument(doc)); err != nil {
		return err
	}
	service.versions.Set(ctx, ten.ID, string(storage.KindGroup), record.ID, newVersion)
	return nil
}

// # Listing

// ListQuery carries the parsed list/query parameters.
type ListQuery struct {
	Filter     string
	SortBy     string
	SortOrder  string
	StartIndex int
	Count      int
}

// ListOutcome is one page of hydrated resource documents.
type ListOutcome struct {
	TotalResults int
	StartIndex   int
	Documents    []map[string]any
}

// List runs a filtered, sorted, paginated query.
func (service *Service) List(ctx context.Context, ten *tenant.Tenant, resourceType string, query ListQuery) (*ListOutcome, error) {
	kind := kindFor(resourceType)

	params := storage.ListParams{
		StartIndex: query.StartIndex,
		Count:      query.Count,
	}

	if query.Filter != "" {
		expr, err := filter.Parse(query.Filter)
		if err != nil {
			return nil, err
		}
		params.Filter = expr
	}

	if query.SortBy != "" {
		resolved, ok := schema.ResolveSQLPath(canonicalType(resourceType), query.SortBy)
		if !ok {
			return nil, apperr.BadRequest(apperr.ScimTypeInvalidValue, "Unknown sortBy attribute: "+query.SortBy)
		}
		params.SortBy = resolved
	}
	switch strings.ToLower(query.SortOrder) {
	case "", "ascending":
	case "descending":
		params.Descending = true
	default:
		return nil, apperr.BadRequest(apperr.ScimTypeInvalidValue, "Invalid sortOrder: "+query.SortOrder)
	}

	result, err := service.store.List(ctx, ten.ID, kind, params)
	if err != nil {
		return nil, err
	}

	outcome := &ListOutcome{
		TotalResults: result.TotalResults,
		StartIndex:   query.StartIndex,
	}
	for _, record := range result.Records {
		doc := record.Original
		if err := service.hydrate(ctx, ten, resourceType, doc, record.ID); err != nil {
			return nil, err
		}
		outcome.Documents = append(outcome.Documents, doc)
	}
	return outcome, nil
}

// # Hydration and Members

// hydrate fills server-derived reference attributes on read: a group's
// members (with display names) and, when the tenant opts in, a user's groups.
func (service *Service) hydrate(ctx context.Context, ten *tenant.Tenant, resourceType string, doc map[string]any, id string) error {
	kind := kindFor(resourceType)

	if kind == storage.KindGroup {
		members, err := service.store.MembersOf(ctx, ten.ID, id)
		if err != nil {
			return err
		}
		elements := make([]any, 0, len(members))
		for _, member := range members {
			elements = append(elements, service.memberElement(ten, member))
		}
		setAttr(doc, "members", elements)
		return nil
	}

	if !ten.IncludeUserGroups {
		return nil
	}
	refs, err := service.store.GroupsFor(ctx, ten.ID, id)
	if err != nil {
		return err
	}
	elements := make([]any, 0, len(refs))
	for _, ref := range refs {
		element := map[string]any{
			"value": ref.ID,
			"$ref":  locationFor(service.baseURL, ten, schema.ResourceGroup, ref.ID),
			"type":  "direct",
		}
		if ref.DisplayName != "" {
			element["display"] = ref.DisplayName
		}
		elements = append(elements, element)
	}
	setAttr(doc, "groups", elements)
	return nil
}

// memberElement renders one membership index row as a SCIM member.
func (service *Service) memberElement(ten *tenant.Tenant, member storage.Member) map[string]any {
	element := map[string]any{
		"value": member.Value,
		"type":  member.Type,
		"$ref":  locationFor(service.baseURL, ten, member.Type, member.Value),
	}
	if member.Display != "" {
		element["display"] = member.Display
	}
	return element
}

// resolveMembers validates a group document's members against existing
// resources, hydrates their display names in place, and returns the rows
// for the membership index. Duplicate values collapse to one entry.
func (service *Service) resolveMembers(ctx context.Context, ten *tenant.Tenant, doc map[string]any) ([]storage.Member, error) {
	value, ok := lookupAttr(doc, "members")
	if !ok || value == nil {
		return nil, nil
	}
	array, isArray := value.([]any)
	if !isArray {
		return nil, apperr.BadRequest(apperr.ScimTypeInvalidValue, "members must be an array")
	}

	seen := make(map[string]bool, len(array))
	members := make([]storage.Member, 0, len(array))
	elements := make([]any, 0, len(array))

	for _, item := range array {
		element, isObject := item.(map[string]any)
		if !isObject {
			return nil, apperr.BadRequest(apperr.ScimTypeInvalidValue, "members elements must be complex objects")
		}
		memberID := stringAttr(element, "value")
		if memberID == "" {
			return nil, apperr.BadRequest(apperr.ScimTypeInvalidValue, "members.value is required")
		}
		if seen[memberID] {
			continue
		}
		seen[memberID] = true

		member, err := service.lookupMember(ctx, ten, memberID, stringAttr(element, "type"))
		if err != nil {
			return nil, err
		}

		members = append(members, member)
		elements = append(elements, service.memberElement(ten, member))
	}

	setAttr(doc, "members", elements)
	return members, nil
}

// lookupMember resolves a member reference to an existing User or Group.
func (service *Service) lookupMember(ctx context.Context, ten *tenant.Tenant, memberID, declaredType string) (storage.Member, error) {
	kinds := []storage.Kind{storage.KindUser, storage.KindGroup}
	switch {
	case strings.EqualFold(declaredType, schema.ResourceGroup):
		kinds = []storage.Kind{storage.KindGroup}
	case strings.EqualFold(declaredType, schema.ResourceUser):
		kinds = []storage.Kind{storage.KindUser}
	}

	for _, kind := range kinds {
		record, err := service.store.Get(ctx, ten.ID, kind, memberID)
		if err != nil {
			if appError := apperr.As(err); appError != nil && appError.HTTPStatus == http.StatusNotFound {
				continue
			}
			return storage.Member{}, err
		}

		return storage.Member{
			Value:   memberID,
			Type:    string(kind),
			Display: memberDisplay(record.Original),
		}, nil
	}

	return storage.Member{}, apperr.BadRequest(apperr.ScimTypeInvalidValue,
		"Member does not exist: "+memberID)
}

// memberDisplay derives a member's display label: displayName, else the
// formatted name, else given and family names joined.
func memberDisplay(document map[string]any) string {
	if display := stringAttr(document, "displayName"); display != "" {
		return display
	}
	name, ok := lookupAttr(document, "name")
	if !ok {
		return ""
	}
	object, isObject := name.(map[string]any)
	if !isObject {
		return ""
	}
	if formatted := stringAttr(object, "formatted"); formatted != "" {
		return formatted
	}
	return strings.TrimSpace(strings.TrimSpace(stringAttr(object, "givenName")) + " " +
		strings.TrimSpace(stringAttr(object, "familyName")))
}

// membersFromDocument reads the membership index rows back out of a group
// document whose members were edited server-side.
func membersFromDocument(doc map[string]any) []storage.Member {
	value, ok := lookupAttr(doc, "members")
	if !ok {
		return nil
	}
	array, isArray := value.([]any)
	if !isArray {
		return nil
	}

	members := make([]storage.Member, 0, len(array))
	for _, item := range array {
		element, isObject := item.(map[string]any)
		if !isObject {
			continue
		}
		members = append(members, storage.Member{
			Value:   stringAttr(element, "value"),
			Type:    stringAttr(element, "type"),
			Display: stringAttr(element, "display"),
		})
	}
	return members
}

// # Internals

// preparePassword hashes a plaintext password in place. Stored hashes in a
// recognized format pass through untouched; an empty password is removed.
func (service *Service) preparePassword(document map[string]any) error {
	value, ok := lookupAttr(document, "password")
	if !ok {
		return nil
	}
	raw, isString := value.(string)
	if !isString {
		return apperr.BadRequest(apperr.ScimTypeInvalidValue, "password must be a string")
	}
	if raw == "" {
		deleteAttr(document, "password")
		return nil
	}

	hashed, err := service.passwords.Hash(raw)
	if err != nil {
		return err
	}
	setAttr(document, "password", hashed)
	return nil
}

// normalize produces the lookup form stored in data_norm.
func (service *Service) normalize(resourceType string, doc map[string]any) map[string]any {
	return schema.NewNormalizer(canonicalType(resourceType)).Normalize(doc)
}

// duplicateDetail names the unique attribute in conflict errors.
func duplicateDetail(resourceType string) string {
	if strings.EqualFold(resourceType, schema.ResourceGroup) {
		return "displayName is already in use"
	}
	return "userName is already in use"
}
