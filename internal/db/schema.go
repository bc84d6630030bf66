package db

import (
	"database/sql"
	"fmt"
)

// schema is the base database schema. Timestamps are stored as fixed-width
// UTC text so that lexical order matches chronological order.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    username   TEXT PRIMARY KEY,
    role       TEXT NOT NULL,
    full_name  TEXT NOT NULL DEFAULT '',
    is_blocked INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS clients (
    phone        TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    email        TEXT NOT NULL DEFAULT '',
    bonus_points INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
    id                 TEXT PRIMARY KEY,
    code               TEXT NOT NULL,
    name               TEXT NOT NULL,
    department         TEXT NOT NULL CHECK (department IN ('documents', 'photos', 'other')),
    client_name        TEXT NOT NULL,
    client_phone       TEXT NOT NULL REFERENCES clients(phone),
    client_email       TEXT NOT NULL DEFAULT '',
    deposit_amount     INTEGER NOT NULL DEFAULT 0 CHECK (deposit_amount >= 0),
    return_amount      INTEGER NOT NULL DEFAULT 0 CHECK (return_amount >= 0),
    discount           INTEGER NOT NULL DEFAULT 0 CHECK (discount BETWEEN 0 AND 100),
    deposited_at       TEXT NOT NULL,
    expected_return_at TEXT,
    returned_at        TEXT,
    status             TEXT NOT NULL DEFAULT 'stored' CHECK (status IN ('stored', 'returned')),
    created_by         TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_items_code_stored
    ON items(code) WHERE status = 'stored';

CREATE INDEX IF NOT EXISTS idx_items_department_status
    ON items(department, status);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: session revocation list for logout.
	`CREATE TABLE IF NOT EXISTS revoked_tokens (
	     jti        TEXT PRIMARY KEY,
	     expires_at TEXT NOT NULL
	 )`,
	// Migration 2: per-client lookups for client-scoped listings.
	`CREATE INDEX IF NOT EXISTS idx_items_client_phone
	     ON items(client_phone, status)`,
}

// Migrate creates the schema and runs all migrations.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
