// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
)

// stubStore serves a fixed record set for helper tests.
type stubStore struct {
	records map[string]*Record
}

func (s *stubStore) ProvisionTenant(context.Context, int) error       { return nil }
func (s *stubStore) Insert(context.Context, int, Kind, *Record) error { return nil }
func (s *stubStore) Update(context.Context, int, Kind, *Record) error { return nil }
func (s *stubStore) Delete(context.Context, int, Kind, string) error  { return nil }
func (s *stubStore) Close()                                           {}

func (s *stubStore) Get(_ context.Context, _ int, _ Kind, id string) (*Record, error) {
	record, ok := s.records[id]
	if !ok {
		return nil, apperr.NotFound("Resource")
	}
	return record, nil
}

func (s *stubStore) List(context.Context, int, Kind, ListParams) (*ListResult, error) {
	return &ListResult{}, nil
}

func (s *stubStore) FindIDByUniqueName(context.Context, int, Kind, string) (string, error) {
	return "", nil
}

func (s *stubStore) FindIDByExternalID(context.Context, int, Kind, string) (string, error) {
	return "", nil
}

func (s *stubStore) InsertGroup(context.Context, int, *Record, []Member) error { return nil }
func (s *stubStore) UpdateGroup(context.Context, int, *Record, []Member) error { return nil }

func (s *stubStore) MembersOf(context.Context, int, string) ([]Member, error) { return nil, nil }

func (s *stubStore) GroupsFor(context.Context, int, string) ([]GroupRef, error) { return nil, nil }

/*
TestStaleUpdateError tests the error mapping for optimistic writes that
affected no rows.
*/
func TestStaleUpdateError(t *testing.T) {
	store := &stubStore{records: map[string]*Record{
		"u-1": {ID: "u-1", Version: 2},
	}}

	t.Run("version_mismatch_is_precondition_failed", func(t *testing.T) {
		err := staleUpdateError(context.Background(), store, 1, KindUser, "u-1")
		require.Error(t, err)
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, 412, appError.HTTPStatus)
		assert.Equal(t, apperr.ScimTypePreconditionFailed, appError.ScimType)
	})

	t.Run("vanished_row_is_not_found", func(t *testing.T) {
		err := staleUpdateError(context.Background(), store, 1, KindUser, "gone")
		require.Error(t, err)
		assert.Equal(t, 404, apperr.As(err).HTTPStatus)
	})
}
