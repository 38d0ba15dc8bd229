package store

import "fmt"

// currentSchemaVersion is the latest schema version.
const currentSchemaVersion = 1

// Migrate runs forward migrations to bring the database schema up to date.
func (db *DB) Migrate() error {
	// Create the schema_version table if it does not exist.
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	version := 0
	row := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&version); err != nil {
		// No rows means version 0 (fresh database).
		version = 0
	}

	if version < 1 {
		if err := db.migrateV1(); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	return nil
}

// migrateV1 creates all initial tables and indexes.
func (db *DB) migrateV1() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS patterns (
			pattern_id    TEXT PRIMARY KEY,
			description   TEXT NOT NULL,
			files         TEXT NOT NULL,
			source_commit TEXT NOT NULL,
			created_at    TEXT NOT NULL,
			usage_count   INTEGER NOT NULL DEFAULT 0,
			tags          TEXT NOT NULL DEFAULT '[]'
		)`,

		`CREATE TABLE IF NOT EXISTS embeddings (
			pattern_id TEXT PRIMARY KEY REFERENCES patterns(pattern_id),
			dim        INTEGER NOT NULL,
			vector     BLOB NOT NULL,
			norm       REAL NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS metrics (
			pattern_id           TEXT PRIMARY KEY,
			success_rate         REAL NOT NULL,
			error_rate           REAL NOT NULL,
			avg_latency_ms       REAL NOT NULL,
			recommendation_count INTEGER NOT NULL,
			last_refreshed_at    TEXT NOT NULL
		)`,

		// Indexes.
		`CREATE INDEX IF NOT EXISTS idx_patterns_created ON patterns(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_patterns_commit ON patterns(source_commit)`,
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:40], err)
		}
	}

	// Set schema version.
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
		return err
	}

	return tx.Commit()
}
