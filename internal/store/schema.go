package store

// schema declares every table with its invariants. The CHECK and UNIQUE
// clauses are the authoritative enforcement of the data-model rules; the
// application layer treats violations as ErrConflict.
const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	repo_url TEXT NOT NULL,
	arxiv_id TEXT NOT NULL DEFAULT '',
	run_command TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'running', 'completed', 'failed')),
	error_message TEXT NOT NULL DEFAULT '',
	detected_environment TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL UNIQUE REFERENCES jobs(id),
	exit_code INTEGER NOT NULL,
	stdout_preview TEXT NOT NULL DEFAULT '',
	stderr_preview TEXT NOT NULL DEFAULT '',
	logs_path TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL,
	completed_at TEXT NOT NULL,
	duration_seconds REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS artifacts (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL REFERENCES jobs(id),
	type TEXT NOT NULL CHECK (type IN ('report', 'notebook', 'badge')),
	format TEXT NOT NULL DEFAULT '',
	content_path TEXT NOT NULL,
	content_size INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_artifacts_job_id ON artifacts(job_id);

CREATE TABLE IF NOT EXISTS reviews (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL DEFAULT '',
	doi TEXT NOT NULL DEFAULT '',
	pdf_file_path TEXT NOT NULL DEFAULT '',
	repo_url TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
	error_message TEXT NOT NULL DEFAULT '',
	paper_meta TEXT NOT NULL DEFAULT '',
	paper_text TEXT NOT NULL DEFAULT '',
	claims TEXT NOT NULL DEFAULT '',
	citations TEXT NOT NULL DEFAULT '',
	checklist TEXT NOT NULL DEFAULT '',
	quality_score TEXT NOT NULL DEFAULT '',
	badges TEXT NOT NULL DEFAULT '',
	html_report_path TEXT NOT NULL DEFAULT '',
	json_summary_path TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	CHECK (url != '' OR doi != '' OR pdf_file_path != '')
);

CREATE TABLE IF NOT EXISTS papers (
	id TEXT PRIMARY KEY,
	aid TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL DEFAULT '',
	repo_url TEXT NOT NULL DEFAULT '',
	visibility TEXT NOT NULL DEFAULT 'private'
		CHECK (visibility IN ('private', 'unlisted', 'public')),
	license TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	approved_public_at TEXT,
	deleted_at TEXT
);

CREATE TABLE IF NOT EXISTS paper_versions (
	id TEXT PRIMARY KEY,
	paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
	aid TEXT NOT NULL,
	version INTEGER NOT NULL CHECK (version >= 1),
	pdf_path TEXT NOT NULL,
	meta_json TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	deleted_at TEXT,
	UNIQUE (aid, version)
);
CREATE INDEX IF NOT EXISTS idx_paper_versions_paper_id ON paper_versions(paper_id);

CREATE TABLE IF NOT EXISTS paper_external_ids (
	id TEXT PRIMARY KEY,
	paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
	kind TEXT NOT NULL CHECK (kind IN ('doi', 'arxiv', 'pmid', 'url')),
	value TEXT NOT NULL,
	UNIQUE (paper_id, kind)
);

CREATE TABLE IF NOT EXISTS claims (
	id TEXT PRIMARY KEY,
	paper_version_id TEXT NOT NULL REFERENCES paper_versions(id) ON DELETE CASCADE,
	paper_id TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL CHECK (length(text) <= 5000),
	span_start INTEGER,
	span_end INTEGER,
	page INTEGER,
	bbox TEXT NOT NULL DEFAULT '',
	section TEXT NOT NULL DEFAULT '',
	confidence REAL CHECK (confidence IS NULL OR (confidence >= 0 AND confidence <= 1)),
	hash TEXT NOT NULL UNIQUE,
	text_hash TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	deleted_at TEXT,
	CHECK ((span_start IS NULL) = (span_end IS NULL))
);
CREATE INDEX IF NOT EXISTS idx_claims_paper_id ON claims(paper_id);
CREATE INDEX IF NOT EXISTS idx_claims_paper_version_id ON claims(paper_version_id);

CREATE TABLE IF NOT EXISTS claim_links (
	id TEXT PRIMARY KEY,
	claim_id TEXT NOT NULL REFERENCES claims(id) ON DELETE CASCADE,
	source_paper_id TEXT REFERENCES papers(id) ON DELETE SET NULL,
	source_doc_id TEXT,
	relation TEXT NOT NULL
		CHECK (relation IN ('equivalent', 'complementary', 'contradictory', 'unclear')),
	confidence REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
	context_excerpt TEXT NOT NULL DEFAULT '',
	reasoning_ref TEXT NOT NULL DEFAULT '',
	CHECK (source_paper_id IS NOT NULL OR source_doc_id IS NOT NULL)
);

CREATE TABLE IF NOT EXISTS quality_scores (
	id TEXT PRIMARY KEY,
	scope TEXT NOT NULL CHECK (scope IN ('paper', 'version')),
	paper_id TEXT REFERENCES papers(id) ON DELETE CASCADE,
	paper_version_id TEXT REFERENCES paper_versions(id) ON DELETE CASCADE,
	score INTEGER NOT NULL CHECK (score >= 0 AND score <= 100),
	signals TEXT NOT NULL DEFAULT '',
	rationale TEXT NOT NULL DEFAULT '',
	scoring_model_version TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	CHECK (
		(scope = 'paper' AND paper_id IS NOT NULL AND paper_version_id IS NULL) OR
		(scope = 'version' AND paper_version_id IS NOT NULL AND paper_id IS NULL)
	)
);
`
