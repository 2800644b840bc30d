package migrations

func init() {
	Register(Migration{
		Version:     "20260301-000000",
		Description: "initial schema: generation jobs, artifacts, billing, api keys",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS generation_jobs (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'processing',
				tier TEXT NOT NULL,
				cost_usd REAL NOT NULL DEFAULT 0,
				prompt TEXT NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				source_artifact_id TEXT,
				request_json TEXT,
				model_version TEXT,
				error_message TEXT,
				has_mask INTEGER NOT NULL DEFAULT 0,
				reference_count INTEGER NOT NULL DEFAULT 0,
				concurrent_at_submit INTEGER NOT NULL DEFAULT 0,
				duration_ms INTEGER NOT NULL DEFAULT 0,
				started_at TEXT,
				completed_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_generation_jobs_user ON generation_jobs(user_id, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_generation_jobs_claim ON generation_jobs(status, started_at, created_at)`,

			`CREATE TABLE IF NOT EXISTS artifacts (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				parent_id TEXT,
				title TEXT NOT NULL,
				version INTEGER NOT NULL DEFAULT 1,
				prompt TEXT,
				model_version TEXT,
				storage_key TEXT NOT NULL,
				width INTEGER NOT NULL DEFAULT 0,
				height INTEGER NOT NULL DEFAULT 0,
				real_width INTEGER NOT NULL DEFAULT 0,
				real_height INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_artifacts_user ON artifacts(user_id, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_artifacts_title ON artifacts(user_id, title)`,

			`CREATE TABLE IF NOT EXISTS user_balances (
				user_id TEXT PRIMARY KEY,
				balance_usd REAL NOT NULL DEFAULT 0,
				lifetime_added REAL NOT NULL DEFAULT 0,
				lifetime_spent REAL NOT NULL DEFAULT 0,
				updated_at TEXT NOT NULL
			)`,

			`CREATE TABLE IF NOT EXISTS credit_transactions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				type TEXT NOT NULL,
				amount_usd REAL NOT NULL,
				balance_after REAL NOT NULL,
				external_payment_id TEXT UNIQUE,
				job_id TEXT,
				description TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_credit_transactions_user ON credit_transactions(user_id, created_at DESC)`,

			`CREATE TABLE IF NOT EXISTS api_keys (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				key_hash TEXT NOT NULL UNIQUE,
				key_prefix TEXT NOT NULL,
				tier TEXT NOT NULL DEFAULT 'fast',
				unlimited INTEGER NOT NULL DEFAULT 0,
				last_used_at TEXT,
				created_at TEXT NOT NULL,
				revoked_at TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_api_keys_user ON api_keys(user_id)`,
		},
	})
}
