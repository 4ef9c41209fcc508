package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// updated_at keeps millisecond precision so Watch can tell apart two
// commits landing in the same second.
const nowMillis = `strftime('%Y-%m-%d %H:%M:%f', 'now')`

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS options (
		site TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		autoload INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL DEFAULT (` + nowMillis + `),
		updated_at TEXT NOT NULL DEFAULT (` + nowMillis + `),
		PRIMARY KEY (site, name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_options_site_updated ON options (site, updated_at)`,
}

func applyPragmas(ctx context.Context, db *sql.DB, readOnly bool) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", int(defaultBusyTimeout.Milliseconds())),
		"PRAGMA foreign_keys = ON",
	}

	if !readOnly {
		pragmas = append(pragmas,
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA temp_store = MEMORY",
		)
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("config: apply pragma %q: %w", pragma, err)
		}
	}

	return nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("config: begin schema transaction: %w", err)
	}

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("config: apply schema statement %q: %w", abbreviate(stmt), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("config: commit schema transaction: %w", err)
	}

	return nil
}

func abbreviate(stmt string) string {
	stmt = strings.Join(strings.Fields(stmt), " ")
	if len(stmt) > 60 {
		return stmt[:57] + "..."
	}
	return stmt
}
