package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/hive/internal/workflow"
)

// SaveRun records a finished workflow run and returns its generated id.
func (s *SQLiteStore) SaveRun(ctx context.Context, sopName, taskID string, startedAt time.Time, res *workflow.Result) (string, error) {
	runID := uuid.NewString()

	logs, err := json.Marshal(res.Logs)
	if err != nil {
		return "", fmt.Errorf("encoding step logs: %w", err)
	}

	output := ""
	if res.Output != nil {
		raw, err := json.Marshal(res.Output)
		if err != nil {
			return "", fmt.Errorf("encoding run output: %w", err)
		}
		output = string(raw)
	}

	errorStr := ""
	if res.Err != nil {
		errorStr = res.Err.Error()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_runs (id, sop, task_id, success, output, error, logs, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, sopName, taskID, boolToInt(res.Success), output, errorStr, string(logs), startedAt, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("saving run of %q: %w", sopName, err)
	}
	return runID, nil
}

// GetRun loads one workflow run with its step logs decoded.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*RunRecord, []workflow.StepLog, error) {
	rec := &RunRecord{}
	var success int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sop, task_id, success, output, error, logs, started_at, finished_at
		FROM workflow_runs WHERE id = ?
	`, runID).Scan(&rec.ID, &rec.SOP, &rec.TaskID, &success, &rec.Output, &rec.Error, &rec.Logs, &rec.StartedAt, &rec.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying run %s: %w", runID, err)
	}
	rec.Success = success != 0

	var logs []workflow.StepLog
	if rec.Logs != "" {
		if err := json.Unmarshal([]byte(rec.Logs), &logs); err != nil {
			return nil, nil, fmt.Errorf("decoding step logs: %w", err)
		}
	}
	return rec, logs, nil
}

// ListRuns returns run summaries for one SOP, newest first. An empty sopName
// lists every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, sopName string) ([]*RunRecord, error) {
	query := `
		SELECT id, sop, task_id, success, output, error, logs, started_at, finished_at
		FROM workflow_runs`
	args := []any{}
	if sopName != "" {
		query += ` WHERE sop = ?`
		args = append(args, sopName)
	}
	query += ` ORDER BY started_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var recs []*RunRecord
	for rows.Next() {
		rec := &RunRecord{}
		var success int
		if err := rows.Scan(&rec.ID, &rec.SOP, &rec.TaskID, &success, &rec.Output, &rec.Error, &rec.Logs, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		rec.Success = success != 0
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
