// Package postgres provides PostgreSQL implementations of the storage
// interfaces, for deployments where several engine instances share one
// database.
package postgres

// Schema contains the SQL statements to create the database schema.
// All statements are idempotent so the schema can be applied on every open.
const Schema = `
-- Identities table: canonical person/vendor records
CREATE TABLE IF NOT EXISTS identities (
    id TEXT PRIMARY KEY,
    canonical_name TEXT NOT NULL,
    canonical_norm TEXT NOT NULL,
    kind TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'active',

    -- Append-only alias set (display forms); normalized lookup goes
    -- through the identity_aliases table.
    aliases JSONB NOT NULL DEFAULT '[]',

    -- Optional structured profile fields
    role TEXT NOT NULL DEFAULT '',
    rate TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    company TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    needs_profile_completion BOOLEAN NOT NULL DEFAULT FALSE,

    -- Statistics and provenance
    mention_count INTEGER NOT NULL DEFAULT 0,
    first_seen TIMESTAMPTZ,
    last_seen TIMESTAMPTZ,
    last_scope TEXT NOT NULL DEFAULT '',
    merged_into TEXT NOT NULL DEFAULT '',
    merged_from JSONB NOT NULL DEFAULT '[]',

    -- Optimistic concurrency
    version INTEGER NOT NULL DEFAULT 0,

    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_identities_canonical_norm ON identities(canonical_norm);
CREATE INDEX IF NOT EXISTS idx_identities_status ON identities(status);
CREATE INDEX IF NOT EXISTS idx_identities_kind ON identities(kind);

-- Normalized alias index for layer-2 lookups
CREATE TABLE IF NOT EXISTS identity_aliases (
    identity_id TEXT NOT NULL REFERENCES identities(id) ON DELETE CASCADE,
    alias TEXT NOT NULL,
    alias_norm TEXT NOT NULL,
    PRIMARY KEY (identity_id, alias_norm)
);

CREATE INDEX IF NOT EXISTS idx_identity_aliases_norm ON identity_aliases(alias_norm);

-- Mentions table: one row per resolved free-text reference
CREATE TABLE IF NOT EXISTS mentions (
    id TEXT PRIMARY KEY,
    raw_text TEXT NOT NULL,
    project_id TEXT NOT NULL DEFAULT '',
    report_id TEXT NOT NULL DEFAULT '',
    timestamp TIMESTAMPTZ,

    identity_id TEXT NOT NULL DEFAULT '',
    tier TEXT NOT NULL DEFAULT '',
    match_method TEXT NOT NULL DEFAULT '',
    match_score REAL NOT NULL DEFAULT 0,
    confidence REAL NOT NULL DEFAULT 0,

    needs_review BOOLEAN NOT NULL DEFAULT FALSE,
    suggested_matches JSONB,
    workflow_state TEXT NOT NULL DEFAULT '',
    field_category TEXT NOT NULL DEFAULT '',

    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_mentions_identity ON mentions(identity_id);
CREATE INDEX IF NOT EXISTS idx_mentions_workflow_state ON mentions(workflow_state);

-- Review tasks table: the human-review queue
CREATE TABLE IF NOT EXISTS review_tasks (
    id TEXT PRIMARY KEY,
    mention_id TEXT NOT NULL,
    identity_id TEXT NOT NULL DEFAULT '',
    reason TEXT NOT NULL DEFAULT '',
    priority TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'open',

    resolution TEXT NOT NULL DEFAULT '',
    resolved_by TEXT NOT NULL DEFAULT '',
    resolved_at TIMESTAMPTZ,

    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_review_tasks_status ON review_tasks(status);
CREATE INDEX IF NOT EXISTS idx_review_tasks_priority ON review_tasks(priority);
CREATE INDEX IF NOT EXISTS idx_review_tasks_mention ON review_tasks(mention_id);
`
