package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// SaveTask upserts a task snapshot and replaces its dependency rows. Saves
// are idempotent so the runner can checkpoint after every state change.
func (s *SQLiteStore) SaveTask(ctx context.Context, rec TaskRecord) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, type, description, agent_role, priority, retries, state, attempts, result, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			description = excluded.description,
			agent_role = excluded.agent_role,
			priority = excluded.priority,
			retries = excluded.retries,
			state = excluded.state,
			attempts = excluded.attempts,
			result = excluded.result,
			error = excluded.error,
			updated_at = CURRENT_TIMESTAMP
	`, rec.ID, rec.Type, rec.Description, rec.AgentRole, rec.Priority, rec.Retries, rec.State, rec.Attempts, rec.Result, rec.Error)
	if err != nil {
		return fmt.Errorf("upserting task %s: %w", rec.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_dependencies WHERE task_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("clearing dependencies for %s: %w", rec.ID, err)
	}
	for _, depID := range rec.DependsOn {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO task_dependencies (task_id, depends_on_id) VALUES (?, ?)
		`, rec.ID, depID); err != nil {
			return fmt.Errorf("inserting dependency %s -> %s: %w", rec.ID, depID, err)
		}
	}

	return tx.Commit()
}

// UpdateTaskState updates state, attempts, result, and error for one task.
func (s *SQLiteStore) UpdateTaskState(ctx context.Context, taskID, state string, attempts int, result string, taskErr error) error {
	errorStr := ""
	if taskErr != nil {
		errorStr = taskErr.Error()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET state = ?, attempts = ?, result = ?, error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, state, attempts, result, errorStr, taskID)
	if err != nil {
		return fmt.Errorf("updating task %s: %w", taskID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update of %s: %w", taskID, err)
	}
	if rows == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}
	return nil
}

// GetTask loads one task snapshot with its dependencies.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*TaskRecord, error) {
	rec := &TaskRecord{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, description, agent_role, priority, retries, state, attempts, result, error, updated_at
		FROM tasks WHERE id = ?
	`, taskID).Scan(&rec.ID, &rec.Type, &rec.Description, &rec.AgentRole, &rec.Priority,
		&rec.Retries, &rec.State, &rec.Attempts, &rec.Result, &rec.Error, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found: %s", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying task %s: %w", taskID, err)
	}

	deps, err := s.taskDependencies(ctx, taskID)
	if err != nil {
		return nil, err
	}
	rec.DependsOn = deps
	return rec, nil
}

// ListTasks returns every task snapshot in creation order.
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]*TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, description, agent_role, priority, retries, state, attempts, result, error, updated_at
		FROM tasks ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var recs []*TaskRecord
	for rows.Next() {
		rec := &TaskRecord{}
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Description, &rec.AgentRole, &rec.Priority,
			&rec.Retries, &rec.State, &rec.Attempts, &rec.Result, &rec.Error, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}

	for _, rec := range recs {
		deps, err := s.taskDependencies(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		rec.DependsOn = deps
	}
	return recs, nil
}

func (s *SQLiteStore) taskDependencies(ctx context.Context, taskID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT depends_on_id FROM task_dependencies WHERE task_id = ? ORDER BY depends_on_id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("querying dependencies for %s: %w", taskID, err)
	}
	defer rows.Close()

	var deps []string
	for rows.Next() {
		var depID string
		if err := rows.Scan(&depID); err != nil {
			return nil, fmt.Errorf("scanning dependency: %w", err)
		}
		deps = append(deps, depID)
	}
	return deps, rows.Err()
}
