package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/hive/internal/config"
	"github.com/aristath/hive/internal/events"
	"github.com/aristath/hive/internal/llm"
	"github.com/aristath/hive/internal/persistence"
	"github.com/aristath/hive/internal/sop"
	"github.com/aristath/hive/internal/tools"
	"github.com/aristath/hive/internal/tui"
	"github.com/aristath/hive/internal/workflow"
)

const usage = `Usage: hive [command]

Commands:
  (none)               start the interactive TUI (-plan file.yaml runs a task plan)
  run <sop> [k=v ...]  execute a named SOP headless
  delegate <task...>   negotiate a role for a task and run it
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pm := llm.NewProcessManager()

	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	var exitCode int
	switch {
	case len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-"):
		exitCode = runTUI(ctx, stop, cfg, pm, os.Args[1:])
	case os.Args[1] == "run":
		exitCode = runSOP(ctx, cfg, os.Args[2:])
	case os.Args[1] == "delegate":
		exitCode = runDelegate(ctx, cfg, pm, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		exitCode = 2
	}

	if err := pm.KillAll(); err != nil {
		log.Printf("WARNING: killing subprocesses: %v", err)
	}
	os.Exit(exitCode)
}

// runTUI starts the interactive dashboard and blocks until it exits or a
// shutdown signal arrives. With -plan, the plan's tasks run in the background
// and feed the dashboard through the bus.
func runTUI(ctx context.Context, stop context.CancelFunc, cfg *config.Config, pm *llm.ProcessManager, args []string) int {
	fs := flag.NewFlagSet("hive", flag.ExitOnError)
	planPath := fs.String("plan", "", "YAML task plan to execute while the dashboard is open")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
		return 1
	}
	globalPath := filepath.Join(homeDir, ".hive", "config.json")
	projectPath := filepath.Join(".hive", "config.json")

	bus := events.NewBus()
	defer bus.Close()

	model := tui.New(bus, cfg, globalPath, projectPath)
	p := tea.NewProgram(model, tea.WithAltScreen())

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	if *planPath != "" {
		go func() {
			if err := runPlan(ctx, cfg, pm, bus, *planPath); err != nil {
				log.Printf("ERROR: plan %s: %v", *planPath, err)
			}
		}()
	}

	select {
	case err := <-errChan:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	case <-ctx.Done():
		// Restore default handling so a second Ctrl+C force-exits.
		stop()
		log.Println("Shutdown signal received, cleaning up...")

		if err := pm.KillAll(); err != nil {
			log.Printf("WARNING: killing subprocesses: %v", err)
		}
		p.Quit()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		select {
		case err := <-errChan:
			if err != nil {
				log.Printf("WARNING: TUI exit error: %v", err)
			}
		case <-shutdownCtx.Done():
			log.Println("Shutdown timeout exceeded, forcing exit")
		}
	}
	return 0
}

// runSOP executes a named SOP from the configured SOP directory. Trailing
// key=value arguments become the run's parameters.
func runSOP(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	sopDir := fs.String("sop-dir", cfg.Runner.SOPDir, "directory of SOP documents")
	dbPath := fs.String("db", cfg.Runner.DBPath, "path to the run database")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "run: missing SOP name")
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	name := fs.Arg(0)

	params := make(map[string]any)
	for _, arg := range fs.Args()[1:] {
		key, value, found := strings.Cut(arg, "=")
		if !found || key == "" {
			fmt.Fprintf(os.Stderr, "run: parameter %q is not key=value\n", arg)
			return 2
		}
		params[key] = value
	}

	registry := sop.NewRegistry()
	if err := registry.LoadDir(*sopDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading SOPs from %s: %v\n", *sopDir, err)
		return 1
	}
	doc, err := registry.Get(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v (available: %s)\n", err, strings.Join(registry.Names(), ", "))
		return 1
	}

	toolReg := tools.NewRegistry()
	if err := tools.RegisterBuiltins(toolReg); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering tools: %v\n", err)
		return 1
	}

	store, err := persistence.NewSQLiteStore(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return 1
	}
	defer store.Close()

	startedAt := time.Now().UTC()
	engine := workflow.NewEngine(toolReg)
	engine.Notify = func(entry workflow.StepLog) {
		fmt.Printf("%-10s %s\n", entry.Status, entry.Step)
	}
	res := engine.Execute(ctx, *doc, params)

	runID, err := store.SaveRun(ctx, name, "", startedAt, &res)
	if err != nil {
		log.Printf("WARNING: failed to record run: %v", err)
	} else {
		log.Printf("recorded run %s", runID)
	}

	if !res.Success {
		fmt.Fprintf(os.Stderr, "SOP %q failed: %v\n", name, res.Err)
		return 1
	}
	if res.Output != nil {
		out, _ := json.MarshalIndent(res.Output, "", "  ")
		fmt.Println(string(out))
	}
	return 0
}
