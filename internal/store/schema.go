package store

// schemaVersionV1 is the first results schema.
const schemaVersionV1 = 1

// schemaV1 is the results DDL. Seeds are stored bit-cast to INTEGER, since
// SQLite integers are signed 64-bit.
var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS experiments (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	config     TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	experiment_id         TEXT NOT NULL REFERENCES experiments(id),
	seed                  INTEGER NOT NULL,
	status                TEXT NOT NULL,
	invalid_reason        TEXT,
	failure_class         TEXT,
	aa_ppm                INTEGER NOT NULL DEFAULT 0,
	aaa_ppm               INTEGER NOT NULL DEFAULT 0,
	horizon_epochs        INTEGER NOT NULL DEFAULT 0,
	lapse_count           INTEGER NOT NULL DEFAULT 0,
	max_lapse_epochs      INTEGER NOT NULL DEFAULT 0,
	terminal_lapse_epochs INTEGER NOT NULL DEFAULT 0,
	total_flips           INTEGER NOT NULL DEFAULT 0,
	total_targets         INTEGER NOT NULL DEFAULT 0,
	trace_digest          TEXT,
	interference          TEXT,
	PRIMARY KEY (experiment_id, seed)
);

-- upper_bound is NULL for the unbounded last bucket.
CREATE TABLE IF NOT EXISTS rtd_buckets (
	experiment_id TEXT NOT NULL,
	seed          INTEGER NOT NULL,
	bucket        INTEGER NOT NULL,
	upper_bound   INTEGER,
	count         INTEGER NOT NULL,
	PRIMARY KEY (experiment_id, seed, bucket),
	FOREIGN KEY (experiment_id, seed) REFERENCES runs(experiment_id, seed)
);

CREATE TABLE IF NOT EXISTS epochs (
	experiment_id TEXT NOT NULL,
	seed          INTEGER NOT NULL,
	epoch         INTEGER NOT NULL,
	holder        TEXT,
	auth          INTEGER NOT NULL,
	raw_sem_pass  INTEGER,
	post_sem_pass INTEGER,
	phase         TEXT NOT NULL,
	targets       INTEGER NOT NULL,
	flips         INTEGER NOT NULL,
	streak        INTEGER NOT NULL,
	transition    TEXT NOT NULL,
	PRIMARY KEY (experiment_id, seed, epoch)
);
`
