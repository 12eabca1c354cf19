package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS cron_jobs (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		scope         TEXT    NOT NULL DEFAULT 'all',
		creator       TEXT    NOT NULL DEFAULT '',
		schedule      TEXT    NOT NULL,
		task          TEXT    NOT NULL DEFAULT '',
		message       TEXT    NOT NULL,
		enabled       INTEGER NOT NULL DEFAULT 1,
		created_at    INTEGER NOT NULL,
		disabled_at   INTEGER,
		last_fired_at INTEGER
	)`,

	`CREATE INDEX IF NOT EXISTS idx_cron_jobs_enabled ON cron_jobs(enabled)`,

	`CREATE TABLE IF NOT EXISTS scheduler_state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS conversations (
		session_key TEXT    NOT NULL,
		seq         INTEGER NOT NULL,
		role        TEXT    NOT NULL,
		content     TEXT    NOT NULL DEFAULT '',
		tag         TEXT    NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL,
		PRIMARY KEY (session_key, seq)
	)`,

	`CREATE TABLE IF NOT EXISTS workspace_files (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		filename    TEXT    NOT NULL,
		description TEXT    NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL
	)`,
}

// migrate creates or updates the schema. All DDL is idempotent.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit migration: %w", err)
	}
	return nil
}
