package negotiation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

// Bidder is a candidate worker able to produce a free-text bid for a task.
// The reply must contain a JSON object with cost, quality, and rationale
// somewhere in it; everything around the object is tolerated.
type Bidder interface {
	ID() string
	PrepareBid(ctx context.Context, task string) (string, error)
}

// Deliberator is the one LLM call simulation mode needs: a completion for a
// system prompt plus user prompt.
type Deliberator interface {
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// Memory persists negotiation decisions for later staffing recall. Storage is
// fire-and-forget: a store failure never fails the negotiation.
type Memory interface {
	SaveDecision(ctx context.Context, d *Decision) error
}

// Negotiator runs bidding rounds and simulation rounds.
type Negotiator struct {
	llm    Deliberator
	memory Memory // optional
}

// New creates a Negotiator. memory may be nil to disable decision recording.
func New(llm Deliberator, memory Memory) *Negotiator {
	return &Negotiator{llm: llm, memory: memory}
}

// bidPayload is the JSON shape bidders are asked to produce.
type bidPayload struct {
	Cost      float64 `json:"cost"`
	Quality   float64 `json:"quality"`
	Rationale string  `json:"rationale"`
}

// Negotiate solicits bids from every candidate and picks the winner by score.
// Bids are solicited concurrently but collected into a slice indexed by
// candidate position, so scoring order — and therefore tie-breaking — follows
// the original candidate list, not completion order.
//
// A bidder whose reply cannot be parsed is skipped with a logged warning;
// only a round where every bid fails yields ErrNoBids.
func (n *Negotiator) Negotiate(ctx context.Context, taskID, task string, bidders []Bidder) (*Decision, error) {
	if len(bidders) == 0 {
		return nil, ErrNoBids
	}

	replies := make([]string, len(bidders))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range bidders {
		g.Go(func() error {
			reply, err := b.PrepareBid(gctx, task)
			if err != nil {
				log.Printf("WARNING: bidder %q failed to respond: %v", b.ID(), err)
				return nil // one silent bidder must not sink the round
			}
			replies[i] = reply
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bids := make([]Bid, 0, len(bidders))
	for i, reply := range replies {
		if reply == "" {
			continue
		}
		bid, ok := parseBid(bidders[i].ID(), reply)
		if !ok {
			log.Printf("WARNING: dropping unparseable bid from %q", bidders[i].ID())
			continue
		}
		bids = append(bids, bid)
	}

	winner, err := SelectWinner(bids)
	if err != nil {
		return nil, fmt.Errorf("negotiation for task %q: %w", taskID, err)
	}

	decision := &Decision{
		TaskID:     taskID,
		Topic:      task,
		Winner:     winner,
		Candidates: bids,
		DecidedAt:  time.Now().UTC(),
	}
	n.record(ctx, decision)
	return decision, nil
}

func parseBid(agentID, reply string) (Bid, bool) {
	raw, ok := extractJSONObject(reply)
	if !ok {
		return Bid{}, false
	}

	var p bidPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Bid{}, false
	}
	if p.Quality == 0 && p.Cost == 0 {
		// A JSON object that carries neither figure is not a bid.
		return Bid{}, false
	}

	return Bid{
		AgentID:   agentID,
		Cost:      p.Cost,
		Quality:   p.Quality,
		Rationale: p.Rationale,
	}, true
}

// simPayload is the JSON shape the deliberation prompt asks for.
type simPayload struct {
	Candidates []struct {
		Role     string  `json:"role"`
		Strategy string  `json:"strategy"`
		Score    float64 `json:"score"`
	} `json:"candidates"`
	Winner string `json:"winner"`
}

const simulateSystemPrompt = `You are a staffing coordinator for a team of AI specialists.
Given a task, propose 2-3 specialized roles that could own it. For each role
give a one-sentence strategy and a numeric score from 1 to 100 for how well
the role fits. Then choose the winning role.
Reply with a single JSON object:
{"candidates": [{"role": "...", "strategy": "...", "score": 0}], "winner": "..."}`

// Simulate asks the LLM to invent candidate roles for a task and pick among
// them. It degrades gracefully: any LLM or parse failure yields the fixed
// fallback decision rather than an error, so callers can always staff a task.
func (n *Negotiator) Simulate(ctx context.Context, taskID, task string) *Decision {
	decision := n.deliberate(ctx, taskID, task)
	if decision == nil {
		log.Printf("WARNING: role deliberation failed for task %q, using fallback role", taskID)
		decision = fallbackDecision(taskID, task)
	}
	n.record(ctx, decision)
	return decision
}

func (n *Negotiator) deliberate(ctx context.Context, taskID, task string) *Decision {
	if n.llm == nil {
		return nil
	}

	reply, err := n.llm.Complete(ctx, simulateSystemPrompt, task)
	if err != nil {
		log.Printf("WARNING: deliberation call failed: %v", err)
		return nil
	}

	raw, ok := extractJSONObject(reply)
	if !ok {
		return nil
	}
	var p simPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil || len(p.Candidates) == 0 {
		return nil
	}

	candidates := make([]Bid, 0, len(p.Candidates))
	for _, c := range p.Candidates {
		if c.Role == "" {
			continue
		}
		candidates = append(candidates, Bid{
			AgentID:   c.Role,
			Quality:   c.Score,
			Rationale: c.Strategy,
		})
	}
	if len(candidates) == 0 {
		return nil
	}

	// Honor the model's chosen winner when it names a real candidate;
	// otherwise fall back to the scoring formula.
	winner := candidates[0]
	found := false
	for _, c := range candidates {
		if c.AgentID == p.Winner {
			winner = c
			found = true
			break
		}
	}
	if !found {
		winner, _ = SelectWinner(candidates)
	}

	return &Decision{
		TaskID:     taskID,
		Topic:      task,
		Winner:     winner,
		Candidates: candidates,
		Simulated:  true,
		DecidedAt:  time.Now().UTC(),
	}
}

// fallbackDecision is the terminal degradation path: negotiation never throws
// past this boundary.
func fallbackDecision(taskID, task string) *Decision {
	candidates := []Bid{
		{AgentID: "Senior Developer", Quality: 70, Rationale: "generalist fallback when deliberation is unavailable"},
		{AgentID: "General Troubleshooter", Quality: 60, Rationale: "diagnostic fallback for unclear problem statements"},
	}
	return &Decision{
		TaskID:     taskID,
		Topic:      task,
		Winner:     candidates[0],
		Candidates: candidates,
		Simulated:  true,
		DecidedAt:  time.Now().UTC(),
	}
}

// record persists the decision when a memory collaborator is configured.
func (n *Negotiator) record(ctx context.Context, d *Decision) {
	if n.memory == nil {
		return
	}
	if err := n.memory.SaveDecision(ctx, d); err != nil {
		log.Printf("WARNING: failed to record negotiation decision for task %q: %v", d.TaskID, err)
	}
}
