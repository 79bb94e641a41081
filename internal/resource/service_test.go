// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package resource

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
	"github.com/hiromu-dev/torii/internal/platform/sec"
	"github.com/hiromu-dev/torii/internal/scim/message"
	"github.com/hiromu-dev/torii/internal/storage"
	"github.com/hiromu-dev/torii/internal/tenant"
)

// fakeStore is an in-memory [storage.Store] for service tests.
type fakeStore struct {
	records map[storage.Kind]map[string]*storage.Record
	members map[string][]storage.Member
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: map[storage.Kind]map[string]*storage.Record{
			storage.KindUser:  {},
			storage.KindGroup: {},
		},
		members: map[string][]storage.Member{},
	}
}

func (s *fakeStore) ProvisionTenant(_ context.Context, _ int) error { return nil }

func (s *fakeStore) Insert(_ context.Context, _ int, kind storage.Kind, record *storage.Record) error {
	s.records[kind][record.ID] = record
	return nil
}

func (s *fakeStore) Get(_ context.Context, _ int, kind storage.Kind, id string) (*storage.Record, error) {
	record, ok := s.records[kind][id]
	if !ok {
		return nil, apperr.NotFound(string(kind))
	}
	return record, nil
}

func (s *fakeStore) Update(_ context.Context, _ int, kind storage.Kind, record *storage.Record) error {
	stored, ok := s.records[kind][record.ID]
	if !ok {
		return apperr.NotFound(string(kind))
	}
	if stored.Version != record.Version-1 {
		return apperr.PreconditionFailed("Resource was modified concurrently")
	}
	s.records[kind][record.ID] = record
	return nil
}

func (s *fakeStore) Delete(_ context.Context, _ int, kind storage.Kind, id string) error {
	if _, ok := s.records[kind][id]; !ok {
		return apperr.NotFound(string(kind))
	}
	delete(s.records[kind], id)
	return nil
}

func (s *fakeStore) List(_ context.Context, _ int, kind storage.Kind, _ storage.ListParams) (*storage.ListResult, error) {
	result := &storage.ListResult{}
	for _, record := range s.records[kind] {
		result.Records = append(result.Records, record)
	}
	result.TotalResults = len(result.Records)
	return result, nil
}

func (s *fakeStore) FindIDByUniqueName(_ context.Context, _ int, kind storage.Kind, uniqueName string) (string, error) {
	for id, record := range s.records[kind] {
		if record.UniqueName == uniqueName {
			return id, nil
		}
	}
	return "", nil
}

func (s *fakeStore) FindIDByExternalID(_ context.Context, _ int, kind storage.Kind, externalID string) (string, error) {
	for id, record := range s.records[kind] {
		if record.ExternalID == externalID {
			return id, nil
		}
	}
	return "", nil
}

func (s *fakeStore) InsertGroup(ctx context.Context, tenantID int, record *storage.Record, members []storage.Member) error {
	if err := s.Insert(ctx, tenantID, storage.KindGroup, record); err != nil {
		return err
	}
	s.members[record.ID] = members
	return nil
}

func (s *fakeStore) UpdateGroup(ctx context.Context, tenantID int, record *storage.Record, members []storage.Member) error {
	if err := s.Update(ctx, tenantID, storage.KindGroup, record); err != nil {
		return err
	}
	s.members[record.ID] = members
	return nil
}

func (s *fakeStore) MembersOf(_ context.Context, _ int, groupID string) ([]storage.Member, error) {
	return s.members[groupID], nil
}

func (s *fakeStore) GroupsFor(_ context.Context, _ int, memberID string) ([]storage.GroupRef, error) {
	var refs []storage.GroupRef
	for groupID, members := range s.members {
		for _, member := range members {
			if member.Value == memberID {
				display := ""
				if record, ok := s.records[storage.KindGroup][groupID]; ok {
					display = stringAttr(record.Original, "displayName")
				}
				refs = append(refs, storage.GroupRef{ID: groupID, DisplayName: display})
			}
		}
	}
	return refs, nil
}

func (s *fakeStore) Close() {}

func newTestService(store storage.Store) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, sec.NewPasswordManager(), nil, logger, "https://scim.example.com")
}

func testTenant() *tenant.Tenant {
	return &tenant.Tenant{ID: 1, Name: "acme"}
}

/*
TestService_Create tests user creation end to end against the store.
*/
func TestService_Create(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	service := newTestService(store)
	ten := testTenant()

	stored, err := service.Create(ctx, ten, "User", map[string]any{
		"id":       "client-chosen",
		"meta":     map[string]any{"version": `W/"9"`},
		"userName": "BJensen@Example.COM",
		"password": "t1meMa$heen",
	})
	require.NoError(t, err)

	id := stringAttr(stored.Document, "id")
	assert.NotEmpty(t, id)
	assert.NotEqual(t, "client-chosen", id, "client-supplied id is ignored")
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, `W/"1"`, stored.ETag())

	meta := stored.Document["meta"].(map[string]any)
	assert.Equal(t, "User", meta["resourceType"])
	assert.Equal(t, "https://scim.example.com/acme/scim/v2/Users/"+id, meta["location"])

	password := stringAttr(stored.Document, "password")
	assert.True(t, strings.HasPrefix(password, "$argon2id$"), "password is hashed at rest")

	record := store.records[storage.KindUser][id]
	require.NotNil(t, record)
	assert.Equal(t, "bjensen@example.com", record.UniqueName)
	assert.Contains(t, record.Normalized, "username")
}

/*
TestService_CreateDuplicate tests userName uniqueness.
*/
func TestService_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	service := newTestService(newFakeStore())
	ten := testTenant()

	_, err := service.Create(ctx, ten, "User", map[string]any{"userName": "mmouse"})
	require.NoError(t, err)

	_, err = service.Create(ctx, ten, "User", map[string]any{"userName": "MMOUSE"})
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 400, appError.HTTPStatus)
	assert.Equal(t, apperr.ScimTypeUniqueness, appError.ScimType)
	assert.Contains(t, appError.Message, "userName")
}

/*
TestService_CreateDuplicateExternalID tests externalId uniqueness per tenant.
*/
func TestService_CreateDuplicateExternalID(t *testing.T) {
	ctx := context.Background()
	service := newTestService(newFakeStore())
	ten := testTenant()

	_, err := service.Create(ctx, ten, "User", map[string]any{
		"userName":   "mmouse",
		"externalId": "hr-4711",
	})
	require.NoError(t, err)

	_, err = service.Create(ctx, ten, "User", map[string]any{
		"userName":   "dduck",
		"externalId": "hr-4711",
	})
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 400, appError.HTTPStatus)
	assert.Equal(t, apperr.ScimTypeUniqueness, appError.ScimType)
	assert.Contains(t, appError.Message, "externalId")

	// Users without an externalId never collide with each other.
	_, err = service.Create(ctx, ten, "User", map[string]any{"userName": "goofy"})
	require.NoError(t, err)
}

/*
TestService_CreatePrimaryDedup tests that a create carrying several primary
emails stores exactly one primary, the first.
*/
func TestService_CreatePrimaryDedup(t *testing.T) {
	ctx := context.Background()
	service := newTestService(newFakeStore())
	ten := testTenant()

	stored, err := service.Create(ctx, ten, "User", map[string]any{
		"userName": "mmouse",
		"emails": []any{
			map[string]any{"value": "a@example.com", "primary": true},
			map[string]any{"value": "b@example.com", "primary": true},
		},
	})
	require.NoError(t, err)

	emails := stored.Document["emails"].([]any)
	require.Len(t, emails, 2)
	assert.Equal(t, true, emails[0].(map[string]any)["primary"])
	assert.Equal(t, false, emails[1].(map[string]any)["primary"])
}

/*
TestService_Get tests reads and If-None-Match revalidation.
*/
func TestService_Get(t *testing.T) {
	ctx := context.Background()
	service := newTestService(newFakeStore())
	ten := testTenant()

	created, err := service.Create(ctx, ten, "User", map[string]any{"userName": "mmouse"})
	require.NoError(t, err)
	id := stringAttr(created.Document, "id")

	t.Run("found", func(t *testing.T) {
		stored, notModified, err := service.Get(ctx, ten, "User", id, "")
		require.NoError(t, err)
		assert.False(t, notModified)
		assert.Equal(t, "mmouse", stringAttr(stored.Document, "userName"))
	})

	t.Run("if_none_match_fresh", func(t *testing.T) {
		stored, notModified, err := service.Get(ctx, ten, "User", id, `W/"1"`)
		require.NoError(t, err)
		assert.True(t, notModified)
		assert.Equal(t, int64(1), stored.Version)
		assert.Nil(t, stored.Document)
	})

	t.Run("if_none_match_stale", func(t *testing.T) {
		_, notModified, err := service.Get(ctx, ten, "User", id, `W/"9"`)
		require.NoError(t, err)
		assert.False(t, notModified)
	})

	t.Run("missing", func(t *testing.T) {
		_, _, err := service.Get(ctx, ten, "User", "no-such-id", "")
		require.Error(t, err)
		assert.Equal(t, 404, apperr.As(err).HTTPStatus)
	})
}

/*
TestService_Replace tests full updates, version bumps, and preconditions.
*/
func TestService_Replace(t *testing.T) {
	ctx := context.Background()
	service := newTestService(newFakeStore())
	ten := testTenant()

	created, err := service.Create(ctx, ten, "User", map[string]any{
		"userName": "mmouse",
		"password": "t1meMa$heen",
	})
	require.NoError(t, err)
	id := stringAttr(created.Document, "id")
	storedHash := stringAttr(created.Document, "password")

	t.Run("bumps_version", func(t *testing.T) {
		updated, err := service.Replace(ctx, ten, "User", id, map[string]any{
			"userName": "mmouse",
			"title":    "Tour Guide",
		}, "")
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.Version)
		assert.Equal(t, "Tour Guide", stringAttr(updated.Document, "title"))
	})

	t.Run("omitted_password_keeps_stored_hash", func(t *testing.T) {
		updated, err := service.Replace(ctx, ten, "User", id, map[string]any{
			"userName": "mmouse",
		}, "")
		require.NoError(t, err)
		assert.Equal(t, storedHash, stringAttr(updated.Document, "password"))
	})

	t.Run("stale_if_match_rejected", func(t *testing.T) {
		_, err := service.Replace(ctx, ten, "User", id, map[string]any{
			"userName": "mmouse",
		}, `W/"1"`)
		require.Error(t, err)
		assert.Equal(t, 412, apperr.As(err).HTTPStatus)
	})
}

// racingStore simulates a concurrent writer landing between the service's
// read and its optimistic write.
type racingStore struct {
	*fakeStore
}

func (s *racingStore) Update(ctx context.Context, tenantID int, kind storage.Kind, record *storage.Record) error {
	if stored, ok := s.records[kind][record.ID]; ok {
		stored.Version++
	}
	return s.fakeStore.Update(ctx, tenantID, kind, record)
}

/*
TestService_ReplaceConcurrentWrite tests that a lost optimistic write
surfaces as 412 preconditionFailed.
*/
func TestService_ReplaceConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	service := newTestService(&racingStore{fakeStore: newFakeStore()})
	ten := testTenant()

	created, err := service.Create(ctx, ten, "User", map[string]any{"userName": "mmouse"})
	require.NoError(t, err)
	id := stringAttr(created.Document, "id")

	_, err = service.Replace(ctx, ten, "User", id, map[string]any{"userName": "mmouse"}, "")
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, 412, appError.HTTPStatus)
	assert.Equal(t, apperr.ScimTypePreconditionFailed, appError.ScimType)
}

/*
TestService_Patch tests the patch path through the service.
*/
func TestService_Patch(t *testing.T) {
	ctx := context.Background()
	service := newTestService(newFakeStore())
	ten := testTenant()

	created, err := service.Create(ctx, ten, "User", map[string]any{
		"userName": "mmouse",
		"active":   true,
	})
	require.NoError(t, err)
	id := stringAttr(created.Document, "id")

	operations := []message.PatchOperation{
		{Op: "replace", Path: "active", Value: []byte(`false`)},
	}
	updated, err := service.Patch(ctx, ten, "User", id, operations, "")
	require.NoError(t, err)

	assert.Equal(t, int64(2), updated.Version)
	value, _ := lookupAttr(updated.Document, "active")
	assert.Equal(t, false, value)
	assert.Equal(t, id, stringAttr(updated.Document, "id"))
}

/*
TestService_GroupMembers tests member resolution and hydration.
*/
func TestService_GroupMembers(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	service := newTestService(store)
	ten := testTenant()

	user, err := service.Create(ctx, ten, "User", map[string]any{
		"userName":    "mmouse",
		"displayName": "Mickey Mouse",
	})
	require.NoError(t, err)
	userID := stringAttr(user.Document, "id")

	t.Run("members_resolve_and_hydrate", func(t *testing.T) {
		group, err := service.Create(ctx, ten, "Group", map[string]any{
			"displayName": "Tour Guides",
			"members":     []any{map[string]any{"value": userID}},
		})
		require.NoError(t, err)

		members := group.Document["members"].([]any)
		require.Len(t, members, 1)
		element := members[0].(map[string]any)
		assert.Equal(t, userID, element["value"])
		assert.Equal(t, "User", element["type"])
		assert.Equal(t, "Mickey Mouse", element["display"])
		assert.Contains(t, element["$ref"], "/Users/"+userID)

		groupID := stringAttr(group.Document, "id")
		assert.Len(t, store.members[groupID], 1)
	})

	t.Run("unknown_member_rejected", func(t *testing.T) {
		_, err := service.Create(ctx, ten, "Group", map[string]any{
			"displayName": "Ghosts",
			"members":     []any{map[string]any{"value": "no-such-resource"}},
		})
		require.Error(t, err)
		assert.Equal(t, 400, apperr.As(err).HTTPStatus)
	})

	t.Run("display_falls_back_to_name", func(t *testing.T) {
		plain, err := service.Create(ctx, ten, "User", map[string]any{
			"userName": "bjensen",
			"name": map[string]any{
				"givenName":  "Barbara",
				"familyName": "Jensen",
			},
		})
		require.NoError(t, err)
		plainID := stringAttr(plain.Document, "id")

		group, err := service.Create(ctx, ten, "Group", map[string]any{
			"displayName": "Fallbacks",
			"members":     []any{map[string]any{"value": plainID}},
		})
		require.NoError(t, err)

		element := group.Document["members"].([]any)[0].(map[string]any)
		assert.Equal(t, "Barbara Jensen", element["display"])
	})

	t.Run("display_prefers_formatted_name", func(t *testing.T) {
		formatted, err := service.Create(ctx, ten, "User", map[string]any{
			"userName": "bbabs",
			"name": map[string]any{
				"formatted":  "Ms. Babs Jensen",
				"givenName":  "Babs",
				"familyName": "Jensen",
			},
		})
		require.NoError(t, err)
		formattedID := stringAttr(formatted.Document, "id")

		group, err := service.Create(ctx, ten, "Group", map[string]any{
			"displayName": "Formatted",
			"members":     []any{map[string]any{"value": formattedID}},
		})
		require.NoError(t, err)

		element := group.Document["members"].([]any)[0].(map[string]any)
		assert.Equal(t, "Ms. Babs Jensen", element["display"])
	})

	t.Run("duplicate_members_collapse", func(t *testing.T) {
		group, err := service.Create(ctx, ten, "Group", map[string]any{
			"displayName": "Deduplicated",
			"members": []any{
				map[string]any{"value": userID},
				map[string]any{"value": userID},
			},
		})
		require.NoError(t, err)
		assert.Len(t, group.Document["members"].([]any), 1)
	})
}

/*
TestService_DeleteDetachesMembers tests that deleting a user removes its
membership from owning groups.
*/
func TestService_DeleteDetachesMembers(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	service := newTestService(store)
	ten := testTenant()

	user, err := service.Create(ctx, ten, "User", map[string]any{"userName": "mmouse"})
	require.NoError(t, err)
	userID := stringAttr(user.Document, "id")

	group, err := service.Create(ctx, ten, "Group", map[string]any{
		"displayName": "Tour Guides",
		"members":     []any{map[string]any{"value": userID}},
	})
	require.NoError(t, err)
	groupID := stringAttr(group.Document, "id")

	require.NoError(t, service.Delete(ctx, ten, "User", userID, ""))

	_, _, err = service.Get(ctx, ten, "User", userID, "")
	require.Error(t, err)

	record := store.records[storage.KindGroup][groupID]
	require.NotNil(t, record)
	members, _ := lookupAttr(record.Original, "members")
	assert.Empty(t, members)
	assert.Equal(t, int64(2), record.Version, "detaching bumps the group version")
}

/*
TestService_List tests listing and query parameter validation.
*/
func TestService_List(t *testing.T) {
	ctx := context.Background()
	service := newTestService(newFakeStore())
	ten := testTenant()

	for _, name := range []string{"amouse", "bmouse"} {
		_, err := service.Create(ctx, ten, "User", map[string]any{"userName": name})
		require.NoError(t, err)
	}

	t.Run("returns_page", func(t *testing.T) {
		outcome, err := service.List(ctx, ten, "User", ListQuery{StartIndex: 1, Count: 10})
		require.NoError(t, err)
		assert.Equal(t, 2, outcome.TotalResults)
		assert.Len(t, outcome.Documents, 2)
	})

	t.Run("bad_filter_rejected", func(t *testing.T) {
		_, err := service.List(ctx, ten, "User", ListQuery{Filter: "userName eq"})
		assert.Error(t, err)
	})

	t.Run("unknown_sort_by_rejected", func(t *testing.T) {
		_, err := service.List(ctx, ten, "User", ListQuery{SortBy: "favoriteColor"})
		require.Error(t, err)
		assert.Equal(t, 400, apperr.As(err).HTTPStatus)
	})

	t.Run("bad_sort_order_rejected", func(t *testing.T) {
		_, err := service.List(ctx, ten, "User", ListQuery{SortOrder: "sideways"})
		require.Error(t, err)
		assert.Equal(t, 400, apperr.As(err).HTTPStatus)
	})
}
