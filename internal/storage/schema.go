package storage

// schema is applied on every successful connect; create-if-absent keeps it
// idempotent across restarts.
const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	hostname   TEXT NOT NULL,
	status     TEXT NOT NULL,
	rank       INTEGER NOT NULL DEFAULT 1,
	cpu        DOUBLE PRECISION NOT NULL DEFAULT 0,
	memory     DOUBLE PRECISION NOT NULL DEFAULT 0,
	threats    INTEGER NOT NULL DEFAULT 0,
	last_seen  TIMESTAMPTZ NOT NULL,
	ip_address TEXT NOT NULL,
	os_type    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS threats (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	type        TEXT NOT NULL,
	severity    TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	detected_at TIMESTAMPTZ NOT NULL,
	agent_id    TEXT REFERENCES agents (id),
	agent_info  JSONB
);

CREATE TABLE IF NOT EXISTS evidences (
	id          TEXT PRIMARY KEY,
	agent_id    TEXT NOT NULL REFERENCES agents (id),
	type        TEXT NOT NULL,
	severity    TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL,
	raw_data    JSONB NOT NULL DEFAULT '{}'::jsonb,
	status      TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	ts          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	severity    TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	agent_id    TEXT,
	ts          TIMESTAMPTZ NOT NULL,
	status      TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	details     JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE TABLE IF NOT EXISTS system_health (
	component      TEXT PRIMARY KEY,
	status         TEXT NOT NULL,
	cpu            DOUBLE PRECISION NOT NULL,
	memory         DOUBLE PRECISION NOT NULL,
	disk           DOUBLE PRECISION NOT NULL,
	network        DOUBLE PRECISION NOT NULL,
	uptime_seconds BIGINT NOT NULL,
	last_check     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_ts ON events (ts DESC);
CREATE INDEX IF NOT EXISTS idx_threats_agent ON threats (agent_id);
CREATE INDEX IF NOT EXISTS idx_evidences_agent ON evidences (agent_id);
`
