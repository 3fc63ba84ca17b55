package audit

import (
	"database/sql"
	"fmt"
)

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS classifier_audit (
			id          TEXT PRIMARY KEY,
			operation   TEXT NOT NULL,
			result      TEXT NOT NULL CHECK(result IN ('ok','partial','fallback','skipped')),
			items       INTEGER NOT NULL DEFAULT 0,
			records     INTEGER NOT NULL DEFAULT 0,
			discarded   INTEGER NOT NULL DEFAULT 0,
			repaired    INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			error       TEXT NOT NULL DEFAULT '',
			raw         TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS classifier_audit_created ON classifier_audit(created_at)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", truncate(s, 60), err)
		}
	}

	// Databases created before the raw column existed.
	var colName string
	row := db.QueryRow(`SELECT name FROM pragma_table_info('classifier_audit') WHERE name = 'raw'`)
	if err := row.Scan(&colName); err == sql.ErrNoRows {
		if _, err := db.Exec(`ALTER TABLE classifier_audit ADD COLUMN raw TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("add raw column: %w", err)
		}
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
