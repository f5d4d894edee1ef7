package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/hive/internal/config"
	"github.com/aristath/hive/internal/events"
	"github.com/aristath/hive/internal/llm"
	"github.com/aristath/hive/internal/negotiation"
	"github.com/aristath/hive/internal/orchestrator"
	"github.com/aristath/hive/internal/persistence"
	"github.com/aristath/hive/internal/queue"
	"github.com/aristath/hive/internal/workspace"
)

const bidSystemPrompt = `You are bidding for ownership of a task. Estimate your
cost (effort, 1-100) and quality (expected outcome, 1-100) for completing it,
with a one-sentence rationale. Reply with a single JSON object:
{"cost": 0, "quality": 0, "rationale": "..."}`

// runDelegate negotiates an agent role for a task description, enqueues the
// task, and runs it to completion.
func runDelegate(ctx context.Context, cfg *config.Config, pm *llm.ProcessManager, args []string) int {
	fs := flag.NewFlagSet("delegate", flag.ExitOnError)
	taskType := fs.String("type", string(queue.TypeDevelopment), "task type")
	role := fs.String("role", "", "assign this agent role directly, skipping negotiation")
	retries := fs.Int("retries", 1, "retry budget for the task")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	description := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if description == "" {
		fmt.Fprintln(os.Stderr, "delegate: missing task description")
		return 2
	}

	store, err := persistence.NewSQLiteStore(ctx, cfg.Runner.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return 1
	}
	defer store.Close()

	bus := events.NewBus()
	defer bus.Close()

	factory := orchestrator.NewClientFactory(cfg.Providers, pm)
	delib, closeDelib := deliberator(cfg, factory)
	defer closeDelib()

	taskID := "task-" + uuid.NewString()[:8]
	agentRole := *role
	if agentRole == "" {
		agentRole = negotiateRole(ctx, cfg, delib, factory, store, bus, taskID, description, queue.TaskType(*taskType))
	}
	if _, ok := cfg.Agents[agentRole]; !ok {
		fmt.Fprintf(os.Stderr, "Error: no agent configured for role %q\n", agentRole)
		return 1
	}

	task := &queue.Task{
		ID:          taskID,
		Type:        queue.TaskType(*taskType),
		Description: description,
		AgentRole:   agentRole,
		Retries:     *retries,
	}

	q := queue.New()
	if err := q.Add(task); err != nil {
		fmt.Fprintf(os.Stderr, "Error enqueueing task: %v\n", err)
		return 1
	}
	bus.Publish(events.TaskQueued{ID: taskID, Type: *taskType, Priority: task.Priority, Timestamp: time.Now()})

	clar := orchestrator.NewClarificationChannel(2*cfg.Runner.Concurrency, clarificationAnswerer(delib, description))
	runner := orchestrator.NewRunner(q, orchestrator.NewLLMExecutor(cfg.Agents, factory, clar), orchestrator.Config{
		Concurrency:    cfg.Runner.Concurrency,
		Workspaces:     workspace.NewManager(cfg.Runner.WorkspaceDir),
		Store:          store,
		Bus:            bus,
		Clarifications: clar,
	})

	results, err := runner.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if failure, failed := q.Failures()[taskID]; failed {
		fmt.Fprintf(os.Stderr, "Task %s failed: %v\n", taskID, failure)
		return 1
	}

	fmt.Println(results[taskID])
	return 0
}

// negotiateRole picks an agent role for the task. In bidding mode every
// configured agent submits a bid; in simulate mode (and as the bidding
// fallback) one deliberation call invents and scores candidate roles. Either
// way the winner is mapped onto a configured agent role.
func negotiateRole(ctx context.Context, cfg *config.Config, delib negotiation.Deliberator, factory orchestrator.ClientFactory, store *persistence.SQLiteStore, bus *events.Bus, taskID, description string, taskType queue.TaskType) string {
	negotiator := negotiation.New(delib, store)

	var decision *negotiation.Decision
	if cfg.Negotiation.Mode == "bidding" {
		bidders, closeAll := agentBidders(cfg, factory)
		defer closeAll()

		var err error
		decision, err = negotiator.Negotiate(ctx, taskID, description, bidders)
		if err != nil {
			if !errors.Is(err, negotiation.ErrNoBids) {
				log.Printf("WARNING: bidding round failed: %v", err)
			}
			log.Printf("WARNING: falling back to simulated negotiation for task %s", taskID)
		}
	}
	if decision == nil {
		decision = negotiator.Simulate(ctx, taskID, description)
	}

	log.Printf("task %s assigned to %q (score %.1f)", taskID, decision.Winner.AgentID, decision.Winner.Score())
	bus.Publish(events.NegotiationDecided{
		ID:        taskID,
		Winner:    decision.Winner.AgentID,
		Score:     decision.Winner.Score(),
		Simulated: decision.Simulated,
		Timestamp: time.Now(),
	})
	return resolveRole(cfg, decision.Winner.AgentID, taskType)
}

// deliberator builds the simulation-mode LLM collaborator from the
// coordinator agent's provider. A broken provider config disables
// deliberation; the negotiator's own fallback covers that.
func deliberator(cfg *config.Config, factory orchestrator.ClientFactory) (negotiation.Deliberator, func()) {
	noop := func() {}

	coordinator, ok := cfg.Agents["coordinator"]
	if !ok {
		return nil, noop
	}
	client, err := factory(coordinator, "")
	if err != nil {
		log.Printf("WARNING: coordinator provider unavailable: %v", err)
		return nil, noop
	}
	return llm.Completer{Client: client}, func() {
		if err := client.Close(); err != nil {
			log.Printf("WARNING: closing coordinator client: %v", err)
		}
	}
}

const clarifySystemPrompt = `You are coordinating a team of agents working on a
plan. An agent is blocked on a question about its task. Answer concisely using
the plan context; if the plan does not settle it, make a reasonable call and
state it as a decision.`

// clarificationAnswerer answers agent questions through the coordinator's
// deliberation client. Without a coordinator the questions fail fast and the
// executor proceeds with the agent's own judgment.
func clarificationAnswerer(delib negotiation.Deliberator, planContext string) orchestrator.AnswerFunc {
	return func(ctx context.Context, taskID, question string) (string, error) {
		if delib == nil {
			return "", fmt.Errorf("no coordinator agent configured")
		}
		prompt := fmt.Sprintf("Plan: %s\n\nTask %s asks: %s", planContext, taskID, question)
		return delib.Complete(ctx, clarifySystemPrompt, prompt)
	}
}

// agentBidder adapts one configured agent into a negotiation bidder.
type agentBidder struct {
	role   string
	client llm.Client
}

func (b *agentBidder) ID() string { return b.role }

func (b *agentBidder) PrepareBid(ctx context.Context, task string) (string, error) {
	completion, err := b.client.Generate(ctx, llm.Request{
		SystemPrompt: bidSystemPrompt,
		Prompt:       task,
	})
	if err != nil {
		return "", err
	}
	return completion.Content, nil
}

// agentBidders builds a bidder per configured agent, sorted by the map's
// iteration-independent role names for stable tie-breaking.
func agentBidders(cfg *config.Config, factory orchestrator.ClientFactory) ([]negotiation.Bidder, func()) {
	roles := make([]string, 0, len(cfg.Agents))
	for role := range cfg.Agents {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	var bidders []negotiation.Bidder
	var clients []llm.Client
	for _, role := range roles {
		client, err := factory(cfg.Agents[role], "")
		if err != nil {
			log.Printf("WARNING: skipping bidder %q: %v", role, err)
			continue
		}
		bidders = append(bidders, &agentBidder{role: role, client: client})
		clients = append(clients, client)
	}

	closeAll := func() {
		for _, c := range clients {
			if err := c.Close(); err != nil {
				log.Printf("WARNING: closing bidder client: %v", err)
			}
		}
	}
	return bidders, closeAll
}

// resolveRole maps a negotiation winner onto a configured agent role. Bidding
// winners are role keys already; simulated winners are free-text role names,
// matched loosely and then by task type affinity.
func resolveRole(cfg *config.Config, winner string, taskType queue.TaskType) string {
	if _, ok := cfg.Agents[winner]; ok {
		return winner
	}

	lowered := strings.ToLower(winner)
	for role := range cfg.Agents {
		if strings.Contains(lowered, role) {
			return role
		}
	}

	for role, agent := range cfg.Agents {
		for _, t := range agent.TaskTypes {
			if t == string(taskType) {
				return role
			}
		}
	}
	return "developer"
}
