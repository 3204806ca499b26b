package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rendis/stepflow/internal/engine"
	"github.com/rendis/stepflow/internal/scheduler"
	"github.com/rendis/stepflow/internal/store"
	"github.com/rendis/stepflow/pkg/schema"
)

const scheduleUsage = `usage: stepflow schedule <subcommand>

  add --cron <expr> [--var name=value]... <file|workflow-id>
  list [--workflow id]
  remove <job-id>
  serve [--interval d]
`

func scheduleCmd(cfg Config, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, scheduleUsage)
		return exitError(2)
	}
	switch args[0] {
	case "add":
		return scheduleAdd(cfg, args[1:], stdout, stderr)
	case "list":
		return scheduleList(cfg, args[1:], stdout, stderr)
	case "remove", "rm":
		return scheduleRemove(cfg, args[1:], stdout, stderr)
	case "serve":
		return scheduleServe(cfg, args[1:], stderr)
	}
	fmt.Fprintf(stderr, "unknown schedule subcommand %q\n\n%s", args[0], scheduleUsage)
	return exitError(2)
}

func scheduleAdd(cfg Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("schedule add", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cronExpr := fs.String("cron", "", "five-field cron expression")
	vars := varFlags{}
	fs.Var(vars, "var", "variable override name=value (repeatable)")

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return exitError(2)
	}
	if len(positional) != 1 || *cronExpr == "" {
		fmt.Fprint(stderr, scheduleUsage)
		return exitError(2)
	}

	ctx := context.Background()
	a, err := openApp(ctx, cfg, stderr, engine.MapSource{})
	if err != nil {
		return err
	}
	defer a.Close()

	workflowID := positional[0]
	if isWorkflowFile(workflowID) {
		def, err := schema.LoadDefinitionFile(workflowID)
		if err != nil {
			return err
		}
		if res := a.validator.Validate(def); !res.Valid() {
			printIssues(stderr, workflowID, res)
			return exitError(1)
		}
		if err := a.store.SaveWorkflow(ctx, &store.Workflow{Name: def.Name, Definition: *def}); err != nil {
			return fmt.Errorf("save workflow: %w", err)
		}
		workflowID = def.ID
	} else if _, err := a.store.GetWorkflow(ctx, workflowID); err != nil {
		return err
	}

	sched := scheduler.NewScheduler(a.store, a.engine, a.logger)
	job, err := sched.Schedule(ctx, workflowID, *cronExpr, vars)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "scheduled %s: workflow %s, next run %s\n",
		job.ID, job.WorkflowID, job.NextRunAt.Local().Format(time.RFC3339))
	return nil
}

func scheduleList(cfg Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("schedule list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	workflowID := fs.String("workflow", "", "only list jobs of this workflow")
	if err := fs.Parse(args); err != nil {
		return exitError(2)
	}

	ctx := context.Background()
	a, err := openApp(ctx, cfg, stderr, engine.MapSource{})
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.store.ListScheduledJobs(ctx, store.ScheduledJobFilter{WorkflowID: *workflowID})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWORKFLOW\tCRON\tENABLED\tNEXT RUN\tLAST STATUS")
	for _, j := range jobs {
		next := "-"
		if j.NextRunAt != nil {
			next = j.NextRunAt.Local().Format(time.RFC3339)
		}
		status := j.LastRunStatus
		if status == "" {
			status = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n", j.ID, j.WorkflowID, j.CronExpression, j.Enabled, next, status)
	}
	return tw.Flush()
}

func scheduleRemove(cfg Config, args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		fmt.Fprint(stderr, scheduleUsage)
		return exitError(2)
	}
	ctx := context.Background()
	a, err := openApp(ctx, cfg, stderr, engine.MapSource{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.DeleteScheduledJob(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "removed %s\n", args[0])
	return nil
}

func scheduleServe(cfg Config, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("schedule serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	interval := fs.Duration("interval", scheduler.DefaultInterval, "how often due jobs are checked")
	if err := fs.Parse(args); err != nil {
		return exitError(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, stderr, engine.MapSource{})
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.NewScheduler(a.store, a.engine, a.logger)
	sched.Interval = *interval
	if err := sched.RecoverMissed(ctx); err != nil {
		a.logger.Warn("recover missed jobs", "error", err)
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutting down")
	return sched.Stop()
}
