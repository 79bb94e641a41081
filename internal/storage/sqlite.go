// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
	"github.com/hiromu-dev/torii/internal/platform/dberr"
)

// SQLiteStore persists SCIM resources in per-tenant SQLite tables. It is
// the single-node counterpart of [PostgresStore] for development and
// small deployments.
type SQLiteStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, dialect: SQLiteDialect{}}
}

func (store *SQLiteStore) ProvisionTenant(ctx context.Context, tenantID int) error {
	for _, statement := range sqliteDDL(tenantID) {
		if _, err := store.db.ExecContext(ctx, statement); err != nil {
			return dberr.Wrap(err, "provision_tenant")
		}
	}
	return nil
}

func (store *SQLiteStore) Insert(ctx context.Context, tenantID int, kind Kind, record *Record) error {
	orig, norm, err := marshalDocuments(record)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, external_id, unique_name, version, created_at, updated_at, data_orig, data_norm)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, tableFor(tenantID, kind))

	_, err = store.db.ExecContext(ctx, query,
		record.ID, nullIfEmpty(record.ExternalID), record.UniqueName, record.Version,
		formatTime(record.Created), formatTime(record.LastModified), string(orig), string(norm),
	)
	return dberr.Wrap(err, "insert_"+strings.ToLower(string(kind)))
}

func (store *SQLiteStore) Get(ctx context.Context, tenantID int, kind Kind, id string) (*Record, error) {
	query := fmt.Sprintf(`
		SELECT id, external_id, unique_name, version, created_at, updated_at, data_orig, data_norm
		FROM %s
		WHERE id = ?
	`, tableFor(tenantID, kind))

	return scanSQLiteRecord(store.db.QueryRowContext(ctx, query, id), kind)
}

func (store *SQLiteStore) Update(ctx context.Context, tenantID int, kind Kind, record *Record) error {
	orig, norm, err := marshalDocuments(record)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET external_id = ?, unique_name = ?, version = ?, updated_at = ?, data_orig = ?, data_norm = ?
		WHERE id = ? AND version = ?
	`, tableFor(tenantID, kind))

	result, err := store.db.ExecContext(ctx, query,
		nullIfEmpty(record.ExternalID), record.UniqueName, record.Version,
		formatTime(record.LastModified), string(orig), string(norm),
		record.ID, record.Version-1,
	)
	if err != nil {
		return dberr.Wrap(err, "update_"+strings.ToLower(string(kind)))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return dberr.Wrap(err, "update_"+strings.ToLower(string(kind)))
	}
	if affected == 0 {
		return staleUpdateError(ctx, store, tenantID, kind, record.ID)
	}
	return nil
}

func (store *SQLiteStore) Delete(ctx context.Context, tenantID int, kind Kind, id string) error {
	tx, err := store.db.BeginTx(ctx, nil)
	if err != nil {
		return dberr.Wrap(err, "begin_delete")
	}
	defer tx.Rollback()

	memberQuery := fmt.Sprintf(`DELETE FROM %s WHERE member_id = ?`, membershipTable(tenantID))
	if _, err := tx.ExecContext(ctx, memberQuery, id); err != nil {
		return dberr.Wrap(err, "delete_memberships")
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, tableFor(tenantID, kind))
	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return dberr.Wrap(err, "delete_"+strings.ToLower(string(kind)))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return dberr.Wrap(err, "delete_"+strings.ToLower(string(kind)))
	}
	if affected == 0 {
		return dberr.ErrNotFound
	}

	return dberr.Wrap(tx.Commit(), "commit_delete")
}

func (store *SQLiteStore) List(ctx context.Context, tenantID int, kind Kind, params ListParams) (*ListResult, error) {
	where, args, err := buildListWhere(store.dialect, kind, params)
	if err != nil {
		return nil, err
	}

	table := tableFor(tenantID, kind)
	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s%s`, table, where)

	result := &ListResult{}
	if err := store.db.QueryRowContext(ctx, countQuery, args...).Scan(&result.TotalResults); err != nil {
		return nil, dberr.Wrap(err, "count_"+strings.ToLower(string(kind)))
	}
	if params.Count <= 0 {
		return result, nil
	}

	query := fmt.Sprintf(`
		SELECT id, external_id, unique_name, version, created_at, updated_at, data_orig, data_norm
		FROM %s%s
		ORDER BY %s
		LIMIT ? OFFSET ?
	`, table, where, buildOrderBy(store.dialect, params))
	args = append(args, params.Count, params.StartIndex-1)

	rows, err := store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dberr.Wrap(err, "list_"+strings.ToLower(string(kind)))
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanSQLiteRecord(rows, kind)
		if err != nil {
			return nil, err
		}
		result.Records = append(result.Records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "list_"+strings.ToLower(string(kind)))
	}

	return result, nil
}

func (store *SQLiteStore) FindIDByUniqueName(ctx context.Context, tenantID int, kind Kind, uniqueName string) (string, error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE unique_name = ?`, tableFor(tenantID, kind))

	var id string
	err := store.db.QueryRowContext(ctx, query, uniqueName).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", dberr.Wrap(err, "find_unique_name")
	}
	return id, nil
}

func (store *SQLiteStore) FindIDByExternalID(ctx context.Context, tenantID int, kind Kind, externalID string) (string, error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE external_id = ?`, tableFor(tenantID, kind))

	var id string
	err := store.db.QueryRowContext(ctx, query, externalID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", dberr.Wrap(err, "find_external_id")
	}
	return id, nil
}

func (store *SQLiteStore) InsertGroup(ctx context.Context, tenantID int, record *Record, members []Member) error {
	orig, norm, err := marshalDocuments(record)
	if err != nil {
		return err
	}

	tx, err := store.db.BeginTx(ctx, nil)
	if err != nil {
		return dberr.Wrap(err, "begin_insert_group")
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, external_id, unique_name, version, created_at, updated_at, data_orig, data_norm)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, tableFor(tenantID, KindGroup))
	if _, err := tx.ExecContext(ctx, query,
		record.ID, nullIfEmpty(record.ExternalID), record.UniqueName, record.Version,
		formatTime(record.Created), formatTime(record.LastModified), string(orig), string(norm),
	); err != nil {
		return dberr.Wrap(err, "insert_group")
	}

	if err := replaceSQLiteMembers(ctx, tx, tenantID, record.ID, members); err != nil {
		return err
	}
	return dberr.Wrap(tx.Commit(), "commit_insert_group")
}

func (store *SQLiteStore) UpdateGroup(ctx context.Context, tenantID int, record *Record, members []Member) error {
	orig, norm, err := marshalDocuments(record)
	if err != nil {
		return err
	}

	tx, err := store.db.BeginTx(ctx, nil)
	if err != nil {
		return dberr.Wrap(err, "begin_update_group")
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		UPDATE %s
		SET external_id = ?, unique_name = ?, version = ?, updated_at = ?, data_orig = ?, data_norm = ?
		WHERE id = ? AND version = ?
	`, tableFor(tenantID, KindGroup))
	result, err := tx.ExecContext(ctx, query,
		nullIfEmpty(record.ExternalID), record.UniqueName, record.Version,
		formatTime(record.LastModified), string(orig), string(norm),
		record.ID, record.Version-1,
	)
	if err != nil {
		return dberr.Wrap(err, "update_group")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return dberr.Wrap(err, "update_group")
	}
	if affected == 0 {
		return staleUpdateError(ctx, store, tenantID, KindGroup, record.ID)
	}

	if err := replaceSQLiteMembers(ctx, tx, tenantID, record.ID, members); err != nil {
		return err
	}
	return dberr.Wrap(tx.Commit(), "commit_update_group")
}

// replaceSQLiteMembers rewrites a group's membership index inside the
// caller's transaction.
func replaceSQLiteMembers(ctx context.Context, tx *sql.Tx, tenantID int, groupID string, members []Member) error {
	table := membershipTable(tenantID)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE group_id = ?`, table), groupID); err != nil {
		return dberr.Wrap(err, "clear_members")
	}

	insert := fmt.Sprintf(`
		INSERT OR IGNORE INTO %s (group_id, member_id, member_type)
		VALUES (?, ?, ?)
	`, table)
	for _, member := range members {
		if _, err := tx.ExecContext(ctx, insert, groupID, member.Value, member.Type); err != nil {
			return dberr.Wrap(err, "insert_member")
		}
	}
	return nil
}

func (store *SQLiteStore) MembersOf(ctx context.Context, tenantID int, groupID string) ([]Member, error) {
	prefix := tablePrefix(tenantID)
	query := fmt.Sprintf(`
		SELECT m.member_id, m.member_type,
			COALESCE(
				NULLIF(json_extract(u.data_orig, '$.displayName'), ''),
				NULLIF(json_extract(u.data_orig, '$.name.formatted'), ''),
				NULLIF(TRIM(
					COALESCE(json_extract(u.data_orig, '$.name.givenName'), '') || ' ' ||
					COALESCE(json_extract(u.data_orig, '$.name.familyName'), '')
				), ''),
				NULLIF(json_extract(g.data_orig, '$.displayName'), ''),
				''
			)
		FROM %s m
		LEFT JOIN %susers u ON m.member_type = 'User' AND u.id = m.member_id
		LEFT JOIN %sgroups g ON m.member_type = 'Group' AND g.id = m.member_id
		WHERE m.group_id = ?
		ORDER BY m.member_id
	`, membershipTable(tenantID), prefix, prefix)

	rows, err := store.db.QueryContext(ctx, query, groupID)
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
	return members, rows.Err()
}

func (store *SQLiteStore) GroupsFor(ctx context.Context, tenantID int, memberID string) ([]GroupRef, error) {
	query := fmt.Sprintf(`
		SELECT g.id, COALESCE(json_extract(g.data_orig, '$.displayName'), '')
		FROM %s m
		JOIN %sgroups g ON g.id = m.group_id
		WHERE m.member_id = ?
		ORDER BY g.id
	`, membershipTable(tenantID), tablePrefix(tenantID))

	rows, err := store.db.QueryContext(ctx, query, memberID)
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
	return refs, rows.Err()
}

func (store *SQLiteStore) Close() {
	store.db.Close()
}

// # SQLite Helpers

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner, kind Kind) (*Record, error) {
	record := &Record{}
	var externalID sql.NullString
	var createdAt, updatedAt, orig, norm string

	err := row.Scan(
		&record.ID, &externalID, &record.UniqueName, &record.Version,
		&createdAt, &updatedAt, &orig, &norm,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "get_"+strings.ToLower(string(kind)))
	}

	record.ExternalID = externalID.String
	if record.Created, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if record.LastModified, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalDocuments(record, []byte(orig), []byte(norm)); err != nil {
		return nil, err
	}
	return record, nil
}

// sqliteTimeLayout is RFC 3339 with a fixed-width fraction, keeping the
// stored strings lexically sortable.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, apperr.Internal(fmt.Errorf("parse stored timestamp %q: %w", value, err))
	}
	return t, nil
}
