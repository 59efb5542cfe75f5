package sqlite

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the latest schema version applied by Migrate.
const SchemaVersion = 2

// Migrate brings the schema up to SchemaVersion. It is idempotent.
func Migrate(db *sql.DB) error {
	const migrationsTable = `
	CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version INTEGER NOT NULL UNIQUE,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(migrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to check migration version: %w", err)
	}

	steps := []struct {
		version int
		stmts   []string
	}{
		{1, []string{
			`CREATE TABLE inquiries (
				id TEXT PRIMARY KEY,
				graph TEXT NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);`,
			`CREATE TABLE responses (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT NOT NULL UNIQUE,
				inquiry_id TEXT NOT NULL REFERENCES inquiries(id),
				session_id TEXT NOT NULL,
				payload TEXT NOT NULL,
				submitted_at TIMESTAMP NOT NULL
			);`,
			`CREATE INDEX idx_responses_inquiry ON responses(inquiry_id, seq);`,
		}},
		{2, []string{
			`ALTER TABLE responses ADD COLUMN respondent_email TEXT;`,
			`CREATE INDEX idx_responses_email ON responses(respondent_email);`,
		}},
	}

	for _, step := range steps {
		if current >= step.version {
			continue
		}
		if err := apply(db, step.version, step.stmts); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", step.version, err)
		}
	}
	return nil
}

func apply(db *sql.DB, version int, stmts []string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}
