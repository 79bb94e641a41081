// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
	"github.com/hiromu-dev/torii/internal/platform/dberr"
)

// PostgresStore persists SCIM resources in per-tenant PostgreSQL tables.
type PostgresStore struct {
	db      *pgxpool.Pool
	dialect Dialect
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db, dialect: PostgresDialect{}}
}

func (store *PostgresStore) ProvisionTenant(ctx context.Context, tenantID int) error {
	for _, statement := range postgresDDL(tenantID) {
		if _, err := store.db.Exec(ctx, statement); err != nil {
			return dberr.Wrap(err, "provision_tenant")
		}
	}
	return nil
}

func (store *PostgresStore) Insert(ctx context.Context, tenantID int, kind Kind, record *Record) error {
	orig, norm, err := marshalDocuments(record)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, external_id, unique_name, version, created_at, updated_at, data_orig, data_norm)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, tableFor(tenantID, kind))

	_, err = store.db.Exec(ctx, query,
		record.ID, nullIfEmpty(record.ExternalID), record.UniqueName, record.Version,
		record.Created, record.LastModified, orig, norm,
	)
	return dberr.Wrap(err, "insert_"+strings.ToLower(string(kind)))
}

func (store *PostgresStore) Get(ctx context.Context, tenantID int, kind Kind, id string) (*Record, error) {
	query := fmt.Sprintf(`
		SELECT id, external_id, unique_name, version, created_at, updated_at, data_orig, data_norm
		FROM %s
		WHERE id = $1
	`, tableFor(tenantID, kind))

	record := &Record{}
	var externalID *string
	var orig, norm []byte

	err := store.db.QueryRow(ctx, query, id).Scan(
		&record.ID, &externalID, &record.UniqueName, &record.Version,
		&record.Created, &record.LastModified, &orig, &norm,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "get_"+strings.ToLower(string(kind)))
	}

	if externalID != nil {
		record.ExternalID = *externalID
	}
	if err := unmarshalDocuments(record, orig, norm); err != nil {
		return nil, err
	}
	return record, nil
}

func (store *PostgresStore) Update(ctx context.Context, tenantID int, kind Kind, record *Record) error {
	orig, norm, err := marshalDocuments(record)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET external_id = $2, unique_name = $3, version = $4, updated_at = $5, data_orig = $6, data_norm = $7
		WHERE id = $1 AND version = $8
	`, tableFor(tenantID, kind))

	cmd, err := store.db.Exec(ctx, query,
		record.ID, nullIfEmpty(record.ExternalID), record.UniqueName, record.Version,
		record.LastModified, orig, norm, record.Version-1,
	)
	if err != nil {
		return dberr.Wrap(err, "update_"+strings.ToLower(string(kind)))
	}
	if cmd.RowsAffected() == 0 {
		return staleUpdateError(ctx, store, tenantID, kind, record.ID)
	}
	return nil
}

func (store *PostgresStore) Delete(ctx context.Context, tenantID int, kind Kind, id string) error {
	tx, err := store.db.Begin(ctx)
	if err != nil {
		return dberr.Wrap(err, "begin_delete")
	}
	defer tx.Rollback(ctx)

	// Remove the resource's own memberships before the row; the group_id
	// side cascades from the groups table.
	memberQuery := fmt.Sprintf(`DELETE FROM %s WHERE member_id = $1`, membershipTable(tenantID))
	if _, err := tx.Exec(ctx, memberQuery, id); err != nil {
		return dberr.Wrap(err, "delete_memberships")
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, tableFor(tenantID, kind))
	cmd, err := tx.Exec(ctx, query, id)
	if err != nil {
		return dberr.Wrap(err, "delete_"+strings.ToLower(string(kind)))
	}
	if cmd.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}

	return dberr.Wrap(tx.Commit(ctx), "commit_delete")
}

func (store *PostgresStore) List(ctx context.Context, tenantID int, kind Kind, params ListParams) (*ListResult, error) {
	where, args, err := buildListWhere(store.dialect, kind, params)
	if err != nil {
		return nil, err
	}

	table := tableFor(tenantID, kind)
	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s%s`, table, where)

	result := &ListResult{}
	if err := store.db.QueryRow(ctx, countQuery, args...).Scan(&result.TotalResults); err != nil {
		return nil, dberr.Wrap(err, "count_"+strings.ToLower(string(kind)))
	}
	if params.Count <= 0 {
		return result, nil
	}

	query := fmt.Sprintf(`
		SELECT id, external_id, unique_name, version, created_at, updated_at, data_orig, data_norm
		FROM %s%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, table, where, buildOrderBy(store.dialect, params), len(args)+1, len(args)+2)
	args = append(args, params.Count, params.StartIndex-1)

	rows, err := store.db.Query(ctx, query, args...)
	if err != nil {
		return nil, dberr.Wrap(err, "list_"+strings.ToLower(string(kind)))
	}
	defer rows.Close()

	for rows.Next() {
		record := &Record{}
		var externalID *string
		var orig, norm []byte

		if err := rows.Scan(
			&record.ID, &externalID, &record.UniqueName, &record.Version,
			&record.Created, &record.LastModified, &orig, &norm,
		); err != nil {
			return nil, dberr.Wrap(err, "scan_"+strings.ToLower(string(kind)))
		}
		if externalID != nil {
			record.ExternalID = *externalID
		}
		if err := unmarshalDocuments(record, orig, norm); err != nil {
			return nil, err
		}
		result.Records = append(result.Records, record)
	}

	return result, nil
}

func (store *PostgresStore) FindIDByUniqueName(ctx context.Context, tenantID int, kind Kind, uniqueName string) (string, error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE unique_name = $1`, tableFor(tenantID, kind))

	var id string
	err := store.db.QueryRow(ctx, query, uniqueName).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", dberr.Wrap(err, "find_unique_name")
	}
	return id, nil
}

func (store *PostgresStore) FindIDByExternalID(ctx context.Context, tenantID int, kind Kind, externalID string) (string, error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE external_id = $1`, tableFor(tenantID, kind))

	var id string
	err := store.db.QueryRow(ctx, query, externalID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", dberr.Wrap(err, "find_external_id")
	}
	return id, nil
}

func (store *PostgresStore) InsertGroup(ctx context.Context, tenantID int, record *Record, members []Member) error {
	orig, norm, err := marshalDocuments(record)
	if err != nil {
		return err
	}

	tx, err := store.db.Begin(ctx)
	if err != nil {
		return dberr.Wrap(err, "begin_insert_group")
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		INSERT INTO %s (id, external_id, unique_name, version, created_at, updated_at, data_orig, data_norm)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, tableFor(tenantID, KindGroup))
	if _, err := tx.Exec(ctx, query,
		record.ID, nullIfEmpty(record.ExternalID), record.UniqueName, record.Version,
		record.Created, record.LastModified, orig, norm,
	); err != nil {
		return dberr.Wrap(err, "insert_group")
	}

	if err := replacePostgresMembers(ctx, tx, tenantID, record.ID, members); err != nil {
		return err
	}
	return dberr.Wrap(tx.Commit(ctx), "commit_insert_group")
}

func (store *PostgresStore) UpdateGroup(ctx context.Context, tenantID int, record *Record, members []Member) error {
	orig, norm, err := marshalDocuments(record)
	if err != nil {
		return err
	}

	tx, err := store.db.Begin(ctx)
	if err != nil {
		return dberr.Wrap(err, "begin_update_group")
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		UPDATE %s
		SET external_id = $2, unique_name = $3, version = $4, updated_at = $5, data_orig = $6, data_norm = $7
		WHERE id = $1 AND version = $8
	`, tableFor(tenantID, KindGroup))
	cmd, err := tx.Exec(ctx, query,
		record.ID, nullIfEmpty(record.ExternalID), record.UniqueName, record.Version,
		record.LastModified, orig, norm, record.Version-1,
	)
	if err != nil {
		return dberr.Wrap(err, "update_group")
	}
	if cmd.RowsAffected() == 0 {
		return staleUpdateError(ctx, store, tenantID, KindGroup, record.ID)
	}

	if err := replacePostgresMembers(ctx, tx, tenantID, record.ID, members); err != nil {
		return err
	}
	return dberr.Wrap(tx.Commit(ctx), "commit_update_group")
}

// replacePostgresMembers rewrites a group's membership index inside the
// caller's transaction.
func replacePostgresMembers(ctx context.Context, tx pgx.Tx, tenantID int, groupID string, members []Member) error {
	table := membershipTable(tenantID)
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE group_id = $1`, table), groupID); err != nil {
		return dberr.Wrap(err, "clear_members")
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (group_id, member_id, member_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, member_id) DO NOTHING
	`, table)
	for _, member := range members {
		if _, err := tx.Exec(ctx, insert, groupID, member.Value, member.Type); err != nil {
			return dberr.Wrap(err, "insert_member")
		}
	}
	return nil
}

func (store *PostgresStore) MembersOf(ctx context.Context, tenantID int, groupID string) ([]Member, error) {
	prefix := tablePrefix(tenantID)
	query := fmt.Sprintf(`
		SELECT m.member_id, m.member_type,
			COALESCE(
				NULLIF(u.data_orig #>> '{displayName}', ''),
				NULLIF(u.data_orig #>> '{name,formatted}', ''),
				NULLIF(TRIM(CONCAT_WS(' ', u.data_orig #>> '{name,givenName}', u.data_orig #>> '{name,familyName}')), ''),
				NULLIF(g.data_orig #>> '{displayName}', ''),
				'')
		FROM %s m
		LEFT JOIN %susers u ON m.member_type = 'User' AND u.id = m.member_id
		LEFT JOIN %sgroups g ON m.member_type = 'Group' AND g.id = m.member_id
		WHERE m.group_id = $1
		ORDER BY m.member_id
	`, membershipTable(tenantID), prefix, prefix)

	rows, err := store.db.Query(ctx, query, groupID)
	if err != nil {
		return nil, dberr.Wrap(err, "list_members")
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var member Member
		if err := rows.Scan(&member.Value, &member.Type, &member.Display); err != nil {
			return nil, dberr.Wrap(err, "scan_member")
		}
		members = append(members, member)
	}
	return members, nil
}

func (store *PostgresStore) GroupsFor(ctx context.Context, tenantID int, memberID string) ([]GroupRef, error) {
	query := fmt.Sprintf(`
		SELECT g.id, COALESCE(g.data_orig #>> '{displayName}', '')
		FROM %s m
		JOIN %sgroups g ON g.id = m.group_id
		WHERE m.member_id = $1
		ORDER BY g.id
	`, membershipTable(tenantID), tablePrefix(tenantID))

	rows, err := store.db.Query(ctx, query, memberID)
	if err != nil {
		return nil, dberr.Wrap(err, "list_groups_for_member")
	}
	defer rows.Close()

	var refs []GroupRef
	for rows.Next() {
		var ref GroupRef
		if err := rows.Scan(&ref.ID, &ref.DisplayName); err != nil {
			return nil, dberr.Wrap(err, "scan_group_ref")
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (store *PostgresStore) Close() {
	store.db.Close()
}

// # Shared Helpers

// buildListWhere compiles the optional filter into a WHERE clause.
func buildListWhere(dialect Dialect, kind Kind, params ListParams) (string, []any, error) {
	if params.Filter == nil {
		return "", nil, nil
	}
	predicate, args, err := CompileFilter(dialect, string(kind), params.Filter, 1)
	if err != nil {
		return "", nil, err
	}
	return " WHERE " + predicate, args, nil
}

// buildOrderBy renders the sort clause, falling back to insertion order.
// Resources with no value for the sort key sort last.
func buildOrderBy(dialect Dialect, params ListParams) string {
	direction := "ASC"
	if params.Descending {
		direction = "DESC"
	}
	if params.SortBy == nil {
		return "created_at " + direction + ", id " + direction
	}

	segments := params.SortBy.Segments
	if params.SortBy.MultiIndex == len(segments)-1 {
		// Sorting on a multi-valued attribute uses the first element's value.
		segments = append(append([]string{}, segments...), "0", "value")
	}
	return dialect.SortKeyExpr(normColumn, segments) + " " + direction + " NULLS LAST, id " + direction
}

// staleUpdateError distinguishes a vanished row from a version mismatch.
func staleUpdateError(ctx context.Context, store Store, tenantID int, kind Kind, id string) error {
	if _, err := store.Get(ctx, tenantID, kind, id); err != nil {
		return err
	}
	return apperr.PreconditionFailed("Resource was modified concurrently")
}

// marshalDocuments encodes both document forms for storage.
func marshalDocuments(record *Record) (orig, norm []byte, err error) {
	orig, err = json.Marshal(record.Original)
	if err != nil {
		return nil, nil, apperr.Internal(fmt.Errorf("encode resource document: %w", err))
	}
	norm, err = json.Marshal(record.Normalized)
	if err != nil {
		return nil, nil, apperr.Internal(fmt.Errorf("encode normalized document: %w", err))
	}
	return orig, norm, nil
}

// unmarshalDocuments decodes both stored document forms.
func unmarshalDocuments(record *Record, orig, norm []byte) error {
	if err := json.Unmarshal(orig, &record.Original); err != nil {
		return apperr.Internal(fmt.Errorf("decode resource document: %w", err))
	}
	if err := json.Unmarshal(norm, &record.Normalized); err != nil {
		return apperr.Internal(fmt.Errorf("decode normalized document: %w", err))
	}
	return nil
}

// nullIfEmpty maps "" to SQL NULL.
func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
