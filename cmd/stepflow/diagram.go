package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rendis/stepflow/internal/diagram"
	"github.com/rendis/stepflow/internal/engine"
	"github.com/rendis/stepflow/internal/store"
	"github.com/rendis/stepflow/pkg/schema"
)

func diagramCmd(cfg Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("diagram", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("format", "mermaid", "output format: mermaid, ascii or png")
	runID := fs.String("run", "", "overlay step statuses of this run")
	out := fs.String("o", "", "write to file instead of stdout (required for png)")

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return exitError(2)
	}
	if len(positional) != 1 {
		fmt.Fprintln(stderr, "usage: stepflow diagram <file|workflow-id> [--format mermaid|ascii|png] [--run id] [-o file]")
		return exitError(2)
	}
	if *format == "png" && *out == "" {
		return fmt.Errorf("png output needs -o")
	}

	ctx := context.Background()
	a, err := openApp(ctx, cfg, stderr, engine.MapSource{})
	if err != nil {
		return err
	}
	defer a.Close()

	var def *schema.WorkflowDefinition
	if isWorkflowFile(positional[0]) {
		def, err = schema.LoadDefinitionFile(positional[0])
	} else {
		def, err = engine.StoreSource{Store: a.store}.Workflow(ctx, positional[0])
	}
	if err != nil {
		return err
	}

	var trace *store.RunTrace
	if *runID != "" {
		trace, err = store.NewEventLog(a.store).ReplayRun(ctx, *runID)
		if err != nil {
			return err
		}
	}

	model, err := diagram.Build(def, a.registry.Behavior, trace)
	if err != nil {
		return err
	}

	var data []byte
	switch *format {
	case "mermaid":
		data = []byte(diagram.RenderMermaid(model))
	case "ascii":
		data = []byte(diagram.RenderASCII(model))
	case "png":
		data, err = diagram.RenderImage(ctx, model)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	if *out == "" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(*out, data, 0o644)
}
