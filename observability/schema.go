package observability

import "database/sql"

// Schema contains the DDL for the render ledger. Call Init(db) to apply it.
const Schema = `
CREATE TABLE IF NOT EXISTS render_events (
    event_id TEXT PRIMARY KEY,
    doc_number TEXT NOT NULL,
    revision_no INTEGER NOT NULL DEFAULT 0,
    source_path TEXT NOT NULL,
    source_digest TEXT,
    engine TEXT NOT NULL,
    artifact_path TEXT,
    page_count INTEGER NOT NULL DEFAULT 0,
    degraded INTEGER NOT NULL DEFAULT 0,
    controlled_copy TEXT,
    primary_error TEXT,
    error TEXT,
    success INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_render_events_doc
    ON render_events(doc_number, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_render_events_created
    ON render_events(created_at DESC);
`

// Init creates the ledger tables if they do not exist.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
