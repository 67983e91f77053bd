package store

const schemaVersionV1 = 1

var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	selector    TEXT NOT NULL,
	status      TEXT NOT NULL,
	cases       INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	archive     TEXT,
	error       TEXT,
	started_at  TEXT NOT NULL,
	ended_at    TEXT
);

CREATE TABLE IF NOT EXISTS outcomes (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	case_name   TEXT NOT NULL,
	exit_code   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	reason      TEXT,
	duration_ms INTEGER NOT NULL,
	bundle_dir  TEXT,
	files       INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, seq),
	UNIQUE (run_id, case_name)
);

CREATE TABLE IF NOT EXISTS archive_members (
	run_id  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	name    TEXT NOT NULL,
	sha256  TEXT NOT NULL,
	PRIMARY KEY (run_id, name)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`
