package state

// schema bootstraps the database. Idempotent: every statement is
// IF NOT EXISTS so reopening an existing store is safe.
const schema = `
CREATE TABLE IF NOT EXISTS packages (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS package_versions (
	id         INTEGER PRIMARY KEY,
	package_id INTEGER NOT NULL REFERENCES packages(id),
	version    TEXT NOT NULL,
	status     TEXT NOT NULL,
	ram_mb     INTEGER NOT NULL DEFAULT 0,
	cpu_cores  INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	UNIQUE (package_id, version)
);

CREATE TABLE IF NOT EXISTS dependency_edges (
	id                  INTEGER PRIMARY KEY,
	version_id          INTEGER NOT NULL REFERENCES package_versions(id),
	required_package_id INTEGER NOT NULL REFERENCES packages(id),
	constraint_expr     TEXT NOT NULL,
	kind                TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS build_queue (
	id          INTEGER PRIMARY KEY,
	version_id  INTEGER NOT NULL UNIQUE REFERENCES package_versions(id),
	priority    INTEGER NOT NULL,
	enqueued_at TIMESTAMP NOT NULL,
	status      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS build_records (
	id            INTEGER PRIMARY KEY,
	version_id    INTEGER NOT NULL REFERENCES package_versions(id),
	started_at    TIMESTAMP NOT NULL,
	finished_at   TIMESTAMP NOT NULL,
	success       INTEGER NOT NULL,
	checkpoint_id TEXT NOT NULL DEFAULT '',
	log_tail      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS state_transitions (
	id          INTEGER PRIMARY KEY,
	version_id  INTEGER NOT NULL REFERENCES package_versions(id),
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	at          TIMESTAMP NOT NULL,
	note        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_versions_status ON package_versions(status);
CREATE INDEX IF NOT EXISTS idx_transitions_version ON state_transitions(version_id);
`
