package persistence

import "context"

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		description TEXT NOT NULL,
		agent_role TEXT,
		priority INTEGER NOT NULL,
		retries INTEGER NOT NULL,
		state TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		result TEXT,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS task_dependencies (
		task_id TEXT NOT NULL,
		depends_on_id TEXT NOT NULL,
		PRIMARY KEY (task_id, depends_on_id),
		FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_task_dependencies_task_id ON task_dependencies(task_id);

	CREATE TABLE IF NOT EXISTS negotiations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		topic TEXT NOT NULL,
		winner TEXT NOT NULL,
		score REAL NOT NULL,
		simulated INTEGER NOT NULL,
		candidates TEXT NOT NULL,
		decided_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_negotiations_task_id ON negotiations(task_id);

	CREATE TABLE IF NOT EXISTS workflow_runs (
		id TEXT PRIMARY KEY,
		sop TEXT NOT NULL,
		task_id TEXT,
		success INTEGER NOT NULL,
		output TEXT,
		error TEXT,
		logs TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_workflow_runs_sop ON workflow_runs(sop);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
