package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// CreateSchema creates the database schema if it doesn't exist. The DDL is
// shared by SQLite and PostgreSQL.
func CreateSchema(db *sql.DB, d dialect) error {
	if err := createSchemaVersionTable(db, d); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	if err := createDeploymentsTable(db); err != nil {
		return fmt.Errorf("creating deployments table: %w", err)
	}

	return nil
}

func createSchemaVersionTable(db *sql.DB, d dialect) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Insert version if table is empty
	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count)
	if err != nil {
		return err
	}

	if count == 0 {
		_, err = db.Exec(d.rebind("INSERT INTO schema_version (version) VALUES (?)"), SchemaVersion)
		return err
	}

	return nil
}

func createDeploymentsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS deployments (
			id TEXT PRIMARY KEY NOT NULL,
			delivery_id TEXT,
			repo TEXT NOT NULL,
			ref TEXT NOT NULL,
			rev TEXT NOT NULL,
			previous_rev TEXT,
			status TEXT NOT NULL,
			message TEXT,
			flake_commit TEXT,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create index for newest-first listing
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_deployments_created_at ON deployments(created_at)
	`)
	return err
}

// GetSchemaVersion returns the stored schema version.
func GetSchemaVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}
