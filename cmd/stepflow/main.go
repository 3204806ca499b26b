package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rendis/stepflow/internal/actions"
	"github.com/rendis/stepflow/internal/engine"
	"github.com/rendis/stepflow/internal/logging"
	"github.com/rendis/stepflow/internal/store"
	"github.com/rendis/stepflow/internal/streaming"
	"github.com/rendis/stepflow/internal/validation"
)

const usage = `usage: stepflow <command> [flags]

commands:
  run <file> [--var k=v]...        run a workflow file
  validate <file>...               validate workflow files
  schedule add|list|remove|serve   manage cron-scheduled runs
  diagram <file|id> [--format f]   draw a workflow's block structure
  version                          print the version
`

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

func realMain(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg := loadConfig()
	var err error
	switch args[0] {
	case "run":
		err = runCmd(cfg, args[1:], stdout, stderr)
	case "validate":
		err = validateCmd(args[1:], stdout)
	case "schedule":
		err = scheduleCmd(cfg, args[1:], stdout, stderr)
	case "diagram":
		err = diagramCmd(cfg, args[1:], stdout, stderr)
	case "version", "--version", "-v":
		printVersion(stdout)
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usage)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if err != nil {
		if ee, ok := err.(exitError); ok {
			return int(ee)
		}
		fmt.Fprintln(stderr, "stepflow:", err)
		return 1
	}
	return 0
}

// exitError carries a process exit code for failures already reported.
type exitError int

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

// app is the set of services one CLI invocation shares.
type app struct {
	logger    *slog.Logger
	hub       *streaming.MemoryHub
	store     *store.LibSQLStore
	registry  *actions.Registry
	engine    *engine.Engine
	validator *validation.WorkflowValidator
}

// openApp opens the database and wires the engine. extra is consulted
// before the store when resolving workflow.call targets.
func openApp(ctx context.Context, cfg Config, stderr io.Writer, extra engine.MapSource) (*app, error) {
	logger := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s, err := store.NewLibSQLStore(cfg.dsn())
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	hub := streaming.NewMemoryHub()
	reg := actions.NewRegistry()
	if err := actions.RegisterBuiltins(reg, actions.Deps{Hub: hub, Logger: logger}); err != nil {
		s.Close()
		return nil, err
	}

	eng, err := engine.New(reg, engine.Config{
		Logger:       logger,
		Hub:          hub,
		EventLog:     store.NewEventLog(s),
		Store:        s,
		Workflows:    engine.ChainSource{extra, engine.StoreSource{Store: s}},
		PoolSize:     cfg.PoolSize,
		MaxCallDepth: cfg.MaxCallDepth,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	v, err := validation.NewWorkflowValidator(reg)
	if err != nil {
		s.Close()
		return nil, err
	}

	return &app{
		logger:    logger,
		hub:       hub,
		store:     s,
		registry:  reg,
		engine:    eng,
		validator: v,
	}, nil
}

func (a *app) Close() {
	a.engine.Shutdown()
	a.hub.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", "error", err)
	}
}
