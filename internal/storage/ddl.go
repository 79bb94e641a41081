// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package storage

import "fmt"

// tablePrefix mirrors tenant.TablePrefix without importing the package.
func tablePrefix(tenantID int) string {
	return fmt.Sprintf("t%d_", tenantID)
}

// postgresDDL returns the idempotent schema statements for one tenant.
func postgresDDL(tenantID int) []string {
	p := tablePrefix(tenantID)

	statements := make([]string, 0, 12)
	for _, table := range []string{"users", "groups"} {
		statements = append(statements,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s%[2]s (
				id TEXT PRIMARY KEY,
				external_id TEXT,
				unique_name TEXT NOT NULL,
				version BIGINT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL,
				data_orig JSONB NOT NULL,
				data_norm JSONB NOT NULL
			)`, p, table),
			fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %[1]s%[2]s_unique_name_key ON %[1]s%[2]s (unique_name)`, p, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s%[2]s_external_id_idx ON %[1]s%[2]s (external_id)`, p, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s%[2]s_created_at_idx ON %[1]s%[2]s (created_at)`, p, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s%[2]s_data_norm_idx ON %[1]s%[2]s USING GIN (data_norm)`, p, table),
		)
	}

	statements = append(statements,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]sgroup_memberships (
			group_id TEXT NOT NULL REFERENCES %[1]sgroups (id) ON DELETE CASCADE,
			member_id TEXT NOT NULL,
			member_type TEXT NOT NULL,
			PRIMARY KEY (group_id, member_id)
		)`, p),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]sgroup_memberships_member_idx ON %[1]sgroup_memberships (member_id)`, p),
	)

	return statements
}

// sqliteDDL returns the same schema in SQLite terms: JSON kept as TEXT,
// timestamps as RFC 3339 TEXT.
func sqliteDDL(tenantID int) []string {
	p := tablePrefix(tenantID)

	statements := make([]string, 0, 10)
	for _, table := range []string{"users", "groups"} {
		statements = append(statements,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s%[2]s (
				id TEXT PRIMARY KEY,
				external_id TEXT,
				unique_name TEXT NOT NULL,
				version INTEGER NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				data_orig TEXT NOT NULL,
				data_norm TEXT NOT NULL
			)`, p, table),
			fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %[1]s%[2]s_unique_name_key ON %[1]s%[2]s (unique_name)`, p, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s%[2]s_external_id_idx ON %[1]s%[2]s (external_id)`, p, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s%[2]s_created_at_idx ON %[1]s%[2]s (created_at)`, p, table),
		)
	}

	statements = append(statements,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]sgroup_memberships (
			group_id TEXT NOT NULL REFERENCES %[1]sgroups (id) ON DELETE CASCADE,
			member_id TEXT NOT NULL,
			member_type TEXT NOT NULL,
			PRIMARY KEY (group_id, member_id)
		)`, p),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]sgroup_memberships_member_idx ON %[1]sgroup_memberships (member_id)`, p),
	)

	return statements
}

// tableFor maps a resource kind to its tenant table name.
func tableFor(tenantID int, kind Kind) string {
	if kind == KindGroup {
		return tablePrefix(tenantID) + "groups"
	}
	return tablePrefix(tenantID) + "users"
}

// membershipTable names the tenant's membership index table.
func membershipTable(tenantID int) string {
	return tablePrefix(tenantID) + "group_memberships"
}
