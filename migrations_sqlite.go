package signoff

import (
	"context"
	"database/sql"
	"fmt"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS workflows (
    id              TEXT PRIMARY KEY,
    file_id         TEXT NOT NULL,
    mode            TEXT NOT NULL,
    resolution_text TEXT,
    status          TEXT NOT NULL DEFAULT 'pending',
    created_by      TEXT NOT NULL,
    created_at      TIMESTAMP NOT NULL,
    updated_at      TIMESTAMP NOT NULL,
    completed_at    TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_workflows_file_id ON workflows (file_id);

CREATE TABLE IF NOT EXISTS steps (
    id               TEXT PRIMARY KEY,
    workflow_id      TEXT NOT NULL REFERENCES workflows (id) ON DELETE CASCADE,
    approver_user_id TEXT NOT NULL,
    order_index      INTEGER NOT NULL DEFAULT 0,
    decision         TEXT NOT NULL DEFAULT 'pending',
    comment          TEXT,
    decided_at       TIMESTAMP,
    created_at       TIMESTAMP NOT NULL,
    UNIQUE (workflow_id, order_index)
);

CREATE INDEX IF NOT EXISTS idx_steps_approver ON steps (approver_user_id, decision);

CREATE TABLE IF NOT EXISTS workflow_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    workflow_id TEXT NOT NULL REFERENCES workflows (id) ON DELETE CASCADE,
    step_id     TEXT,
    event_type  TEXT NOT NULL,
    payload     TEXT,
    created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS folder_rules (
    id                  TEXT PRIMARY KEY,
    folder_id           TEXT NOT NULL,
    mode                TEXT NOT NULL,
    resolution_text     TEXT,
    apply_to_subfolders INTEGER NOT NULL DEFAULT 0,
    active              INTEGER NOT NULL DEFAULT 1,
    created_by          TEXT NOT NULL,
    created_at          TIMESTAMP NOT NULL,
    updated_at          TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS folder_rule_approvers (
    rule_id     TEXT NOT NULL REFERENCES folder_rules (id) ON DELETE CASCADE,
    user_id     TEXT NOT NULL,
    order_index INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (rule_id, user_id)
);
`

// RunSQLiteMigrations initializes the SQLite schema.
func RunSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("apply sqlite schema: %w", err)
	}

	return nil
}
