package models

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// db is the package-level handle for the offline notes database.
var db *sql.DB

// DDL for the offline_notes table. Keyed by note id with secondary indexes
// on sync_status (pending sweep query) and created_at (ordering).
const ddlCreateOfflineNotesTable = `
CREATE TABLE IF NOT EXISTS offline_notes (
	id          VARCHAR PRIMARY KEY,
	title       VARCHAR NOT NULL,
	content     VARCHAR NOT NULL,
	image_url   VARCHAR,
	is_starred  BOOLEAN DEFAULT false,
	is_shared   BOOLEAN DEFAULT false,
	tags        VARCHAR NOT NULL DEFAULT '[]',
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL,
	sync_status VARCHAR NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0
);
`

const ddlIndexOfflineNotesStatus = `
CREATE INDEX IF NOT EXISTS idx_offline_notes_sync_status ON offline_notes(sync_status);
`

const ddlIndexOfflineNotesCreatedAt = `
CREATE INDEX IF NOT EXISTS idx_offline_notes_created_at ON offline_notes(created_at);
`

// InitDB opens (or creates) the offline database at path and runs migrations.
func InitDB(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return serr.Wrap(err, "failed to create data directory")
		}
	}

	var err error
	db, err = sql.Open("duckdb", path)
	if err != nil {
		return serr.Wrap(err, "failed to open offline database")
	}

	if err := migrateDB(db); err != nil {
		return serr.Wrap(err, "failed to migrate offline database")
	}

	logger.Info("Offline database initialized", "path", path)
	return nil
}

// InitTestDB initializes the database at a throwaway path for tests.
// Identical to InitDB but kept separate so test call sites read clearly.
func InitTestDB(path string) error {
	return InitDB(path)
}

// CloseDB closes the database connection.
func CloseDB() {
	if db != nil {
		db.Close()
		db = nil
	}
}

// migrateDB creates the offline_notes table and its indexes.
func migrateDB(d *sql.DB) error {
	stmts := []string{
		ddlCreateOfflineNotesTable,
		ddlIndexOfflineNotesStatus,
		ddlIndexOfflineNotesCreatedAt,
	}
	for _, stmt := range stmts {
		if _, err := d.Exec(stmt); err != nil {
			return serr.Wrap(err, "migration statement failed")
		}
	}
	return nil
}
