// Package negotiation implements the swarm bidding protocol: candidate
// workers offer cost/quality bids for a task and a deterministic scoring
// formula picks the winner. When no real workers exist yet, a simulation mode
// asks an LLM to invent candidate roles instead.
package negotiation

import (
	"errors"
	"time"
)

// Bid is a worker's self-assessed offer for a task. Cost and Quality are on a
// 1-100 scale: cost lower-better, quality higher-better. Bids are ephemeral;
// only the resulting Decision is ever persisted.
type Bid struct {
	AgentID   string  `json:"agent_id"`
	Cost      float64 `json:"cost"`
	Quality   float64 `json:"quality"`
	Rationale string  `json:"rationale"`
}

// Score is the bid's ranking value: quality minus half the cost.
func (b Bid) Score() float64 {
	return b.Quality - b.Cost/2
}

// ErrNoBids is returned when every solicited bid failed to parse. It is a
// normal outcome for the caller to handle, not a programmer error.
var ErrNoBids = errors.New("no valid bids received")

// SelectWinner returns the highest-scoring bid. Ties go to the earlier bid in
// the slice, which callers keep in original candidate order so the tie-break
// stays deterministic regardless of how bids were collected.
func SelectWinner(bids []Bid) (Bid, error) {
	if len(bids) == 0 {
		return Bid{}, ErrNoBids
	}

	winner := bids[0]
	for _, b := range bids[1:] {
		if b.Score() > winner.Score() {
			winner = b
		}
	}
	return winner, nil
}

// Decision is the durable outcome of one negotiation round.
type Decision struct {
	TaskID     string    `json:"task_id"`
	Topic      string    `json:"topic"` // task description the round was about
	Winner     Bid       `json:"winner"`
	Candidates []Bid     `json:"candidates"`
	Simulated  bool      `json:"simulated"`
	DecidedAt  time.Time `json:"decided_at"`
}
