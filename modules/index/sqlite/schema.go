package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS observed_messages (
		chat_id     INTEGER NOT NULL,
		message_id  INTEGER NOT NULL,
		thread_id   INTEGER NOT NULL DEFAULT 0,
		sender_id   INTEGER NOT NULL DEFAULT 0,
		sent_at     INTEGER NOT NULL DEFAULT 0,
		text        TEXT    NOT NULL DEFAULT '',
		video       INTEGER NOT NULL DEFAULT 0,
		photo       INTEGER NOT NULL DEFAULT 0,
		audio       INTEGER NOT NULL DEFAULT 0,
		has_doc     INTEGER NOT NULL DEFAULT 0,
		doc_mime    TEXT    NOT NULL DEFAULT '',
		doc_name    TEXT    NOT NULL DEFAULT '',
		other       INTEGER NOT NULL DEFAULT 0,
		observed_at INTEGER NOT NULL,
		PRIMARY KEY (chat_id, message_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_observed_at ON observed_messages(observed_at)`,
}

// migrate brings the schema to schemaVersion. Every statement is idempotent.
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

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}
	return nil
}
