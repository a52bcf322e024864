package store

// baseSchema is applied on every startup; every statement is idempotent.
// Column additions that came after the original tables shipped live in
// columnBackfills instead, so existing data files pick them up safely.
var baseSchema = []string{
	`PRAGMA foreign_keys = ON`,

	`CREATE TABLE IF NOT EXISTS providers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		adapter_kind TEXT NOT NULL,
		base_url TEXT NOT NULL,
		credential TEXT,
		default_model_id TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS models (
		id TEXT PRIMARY KEY,
		provider_id TEXT NOT NULL REFERENCES providers(id) ON DELETE CASCADE,
		label TEXT NOT NULL,
		vendor_model_id TEXT NOT NULL,
		params TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_models_provider ON models(provider_id)`,

	`CREATE TABLE IF NOT EXISTS problem_sets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS problems (
		id TEXT PRIMARY KEY,
		problem_set_id TEXT NOT NULL REFERENCES problem_sets(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		prompt TEXT NOT NULL,
		expected TEXT,
		html_assets TEXT,
		scoring_hints TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_problems_set ON problems(problem_set_id)`,

	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		name TEXT,
		problem_set_id TEXT NOT NULL REFERENCES problem_sets(id) ON DELETE CASCADE,
		model_ids TEXT NOT NULL DEFAULT '[]',
		judge_model_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'queued',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_problem_set ON runs(problem_set_id)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,

	`CREATE TABLE IF NOT EXISTS run_results (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		problem_id TEXT NOT NULL,
		model_id TEXT NOT NULL,
		output TEXT,
		score INTEGER,
		status TEXT NOT NULL,
		judged_by TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_run_results_run ON run_results(run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_run_results_problem ON run_results(problem_id)`,
	`CREATE INDEX IF NOT EXISTS idx_run_results_model ON run_results(model_id)`,
}

// columnBackfill is one optional column that may be missing on a data file
// created before this column existed.
type columnBackfill struct {
	table      string
	column     string
	definition string
}

var columnBackfills = []columnBackfill{
	{"runs", "stream", "INTEGER NOT NULL DEFAULT 0"},
	{"runs", "cancelled_at", "DATETIME"},
	{"runs", "cancelled_by", "TEXT"},
	{"providers", "last_checked", "DATETIME"},
	{"problems", "created_at", "DATETIME"},
	{"run_results", "judge_reasoning", "TEXT"},
	{"run_results", "cancelled_at", "DATETIME"},
}
