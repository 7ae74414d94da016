package store

const schema = `
CREATE TABLE IF NOT EXISTS providers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	binary_path TEXT NOT NULL,
	description TEXT,
	response_schema TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	status TEXT DEFAULT 'active', -- active, broken
	last_success DATETIME,
	failure_count INTEGER DEFAULT 0,
	last_error TEXT
);

CREATE TABLE IF NOT EXISTS check_runs (
	id TEXT PRIMARY KEY, -- uuid
	provider TEXT NOT NULL,
	suite TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'running', -- running, passed, failed
	passed INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	started_at DATETIME NOT NULL,
	finished_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_check_runs_provider_started ON check_runs(provider, started_at);

CREATE TABLE IF NOT EXISTS case_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	case_name TEXT NOT NULL,
	passed BOOLEAN NOT NULL,
	exit_code INTEGER NOT NULL,
	stdout TEXT,
	stderr TEXT,
	detail TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(run_id) REFERENCES check_runs(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_case_results_run ON case_results(run_id);
`
