package db

import "context"

// schemaPostgres and schemaSQLite are intentionally near-identical: the
// domain model has no migrations (out of scope per spec §1), so the
// long-term schema-evolution story this pair would otherwise need doesn't
// exist. In the Postgres schema the state and status columns are TEXT with
// a CHECK constraint rather than a native enum type; the SQLite schema
// declares them as plain TEXT, and attack_mode and resource_type carry no
// CHECK in either.
const schemaPostgres = `
CREATE TABLE IF NOT EXISTS projects (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id           BIGSERIAL PRIMARY KEY,
	email        TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL,
	is_active    BOOLEAN NOT NULL DEFAULT TRUE,
	is_superuser BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS project_memberships (
	project_id BIGINT NOT NULL REFERENCES projects(id),
	user_id    BIGINT NOT NULL REFERENCES users(id),
	role       TEXT NOT NULL,
	PRIMARY KEY (project_id, user_id)
);

CREATE TABLE IF NOT EXISTS api_keys (
	id            BIGSERIAL PRIMARY KEY,
	user_id       BIGINT NOT NULL REFERENCES users(id),
	hashed_secret TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	revoked_at    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS hash_lists (
	id             BIGSERIAL PRIMARY KEY,
	project_id     BIGINT REFERENCES projects(id),
	name           TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	hash_type_id   INT NOT NULL,
	is_unavailable BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS hash_items (
	id           BIGSERIAL PRIMARY KEY,
	hash_list_id BIGINT NOT NULL REFERENCES hash_lists(id),
	hash         TEXT NOT NULL,
	salt         TEXT,
	plain_text   TEXT
);

CREATE TABLE IF NOT EXISTS campaigns (
	id          BIGSERIAL PRIMARY KEY,
	project_id  BIGINT NOT NULL REFERENCES projects(id),
	hash_list_id BIGINT NOT NULL REFERENCES hash_lists(id),
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	priority    INT NOT NULL DEFAULT 0,
	state       TEXT NOT NULL CHECK (state IN ('draft','active','paused','completed','archived','error')),
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS attacks (
	id                 BIGSERIAL PRIMARY KEY,
	campaign_id        BIGINT NOT NULL REFERENCES campaigns(id),
	name               TEXT NOT NULL,
	attack_mode        TEXT NOT NULL,
	position           INT NOT NULL DEFAULT 0,
	state              TEXT NOT NULL CHECK (state IN ('pending','running','paused','completed','failed','abandoned')),
	word_list_id       TEXT,
	rule_list_id       TEXT,
	mask_list_id       TEXT,
	left_rule          TEXT,
	hash_list_url      TEXT,
	hash_list_checksum TEXT,
	mask               TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS tasks (
	id             BIGSERIAL PRIMARY KEY,
	attack_id      BIGINT NOT NULL REFERENCES attacks(id),
	agent_id       BIGINT,
	status         TEXT NOT NULL CHECK (status IN ('PENDING','RUNNING','COMPLETED','FAILED','ABANDONED')),
	progress       DOUBLE PRECISION NOT NULL DEFAULT 0,
	keyspace_total BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS agents (
	id        BIGSERIAL PRIMARY KEY,
	host_name TEXT NOT NULL,
	enabled   BOOLEAN NOT NULL DEFAULT TRUE,
	state     TEXT NOT NULL CHECK (state IN ('active','idle','offline','error'))
);

CREATE TABLE IF NOT EXISTS attack_resource_files (
	id            TEXT PRIMARY KEY,
	project_id    BIGINT,
	file_name     TEXT NOT NULL,
	file_label    TEXT,
	resource_type TEXT NOT NULL,
	line_format   TEXT NOT NULL DEFAULT 'freeform',
	line_encoding TEXT NOT NULL DEFAULT 'utf-8',
	used_for_modes TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL DEFAULT 'upload',
	line_count    BIGINT NOT NULL DEFAULT 0,
	byte_size     BIGINT NOT NULL DEFAULT 0,
	checksum      TEXT NOT NULL DEFAULT '',
	guid          TEXT NOT NULL,
	is_uploaded   BOOLEAN NOT NULL DEFAULT FALSE,
	tags          TEXT NOT NULL DEFAULT '',
	content       TEXT,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
`

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS projects (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	email        TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL,
	is_active    BOOLEAN NOT NULL DEFAULT 1,
	is_superuser BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS project_memberships (
	project_id INTEGER NOT NULL,
	user_id    INTEGER NOT NULL,
	role       TEXT NOT NULL,
	PRIMARY KEY (project_id, user_id)
);

CREATE TABLE IF NOT EXISTS api_keys (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id       INTEGER NOT NULL,
	hashed_secret TEXT NOT NULL,
	created_at    DATETIME NOT NULL,
	revoked_at    DATETIME
);

CREATE TABLE IF NOT EXISTS hash_lists (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id     INTEGER,
	name           TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	hash_type_id   INTEGER NOT NULL,
	is_unavailable BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS hash_items (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	hash_list_id INTEGER NOT NULL,
	hash         TEXT NOT NULL,
	salt         TEXT,
	plain_text   TEXT
);

CREATE TABLE IF NOT EXISTS campaigns (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id   INTEGER NOT NULL,
	hash_list_id INTEGER NOT NULL,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	priority     INTEGER NOT NULL DEFAULT 0,
	state        TEXT NOT NULL,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS attacks (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	campaign_id        INTEGER NOT NULL,
	name               TEXT NOT NULL,
	attack_mode        TEXT NOT NULL,
	position           INTEGER NOT NULL DEFAULT 0,
	state              TEXT NOT NULL,
	word_list_id       TEXT,
	rule_list_id       TEXT,
	mask_list_id       TEXT,
	left_rule          TEXT,
	hash_list_url      TEXT,
	hash_list_checksum TEXT,
	mask               TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS tasks (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	attack_id      INTEGER NOT NULL,
	agent_id       INTEGER,
	status         TEXT NOT NULL,
	progress       REAL NOT NULL DEFAULT 0,
	keyspace_total INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS agents (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	host_name TEXT NOT NULL,
	enabled   BOOLEAN NOT NULL DEFAULT 1,
	state     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS attack_resource_files (
	id             TEXT PRIMARY KEY,
	project_id     INTEGER,
	file_name      TEXT NOT NULL,
	file_label     TEXT,
	resource_type  TEXT NOT NULL,
	line_format    TEXT NOT NULL DEFAULT 'freeform',
	line_encoding  TEXT NOT NULL DEFAULT 'utf-8',
	used_for_modes TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL DEFAULT 'upload',
	line_count     INTEGER NOT NULL DEFAULT 0,
	byte_size      INTEGER NOT NULL DEFAULT 0,
	checksum       TEXT NOT NULL DEFAULT '',
	guid           TEXT NOT NULL,
	is_uploaded    BOOLEAN NOT NULL DEFAULT 0,
	tags           TEXT NOT NULL DEFAULT '',
	content        TEXT,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);
`

// InitSchema creates every table if it does not already exist. Safe to call
// on every process start, the way NewPostgresLedger.Init does.
func (s *SQLStore) InitSchema(ctx context.Context) error {
	schema := schemaPostgres
	if s.dialect == DialectSQLite {
		schema = schemaSQLite
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
