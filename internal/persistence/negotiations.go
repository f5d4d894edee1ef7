package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aristath/hive/internal/negotiation"
)

// SaveDecision records a negotiation outcome. Candidate bids are stored as a
// JSON blob; they are only read back for display and audit, never queried.
// Satisfies negotiation.Memory.
func (s *SQLiteStore) SaveDecision(ctx context.Context, d *negotiation.Decision) error {
	candidates, err := json.Marshal(d.Candidates)
	if err != nil {
		return fmt.Errorf("encoding candidates: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO negotiations (task_id, topic, winner, score, simulated, candidates, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.TaskID, d.Topic, d.Winner.AgentID, d.Winner.Score(), boolToInt(d.Simulated), string(candidates), d.DecidedAt)
	if err != nil {
		return fmt.Errorf("saving decision for task %s: %w", d.TaskID, err)
	}
	return nil
}

// DecisionsForTask returns the recorded decisions for one task, newest first.
func (s *SQLiteStore) DecisionsForTask(ctx context.Context, taskID string) ([]*negotiation.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, topic, winner, simulated, candidates, decided_at
		FROM negotiations WHERE task_id = ? ORDER BY decided_at DESC, id DESC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("querying decisions for %s: %w", taskID, err)
	}
	defer rows.Close()

	var decisions []*negotiation.Decision
	for rows.Next() {
		d := &negotiation.Decision{}
		var winnerID, candidates string
		var simulated int
		if err := rows.Scan(&d.TaskID, &d.Topic, &winnerID, &simulated, &candidates, &d.DecidedAt); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		d.Simulated = simulated != 0

		if err := json.Unmarshal([]byte(candidates), &d.Candidates); err != nil {
			return nil, fmt.Errorf("decoding candidates: %w", err)
		}
		for _, bid := range d.Candidates {
			if bid.AgentID == winnerID {
				d.Winner = bid
				break
			}
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
