package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rendis/stepflow/internal/engine"
	"github.com/rendis/stepflow/internal/store"
	"github.com/rendis/stepflow/internal/value"
	"github.com/rendis/stepflow/pkg/schema"
)

// varFlags collects repeated --var name=value flags. Values are decoded as
// JSON when possible and kept as strings otherwise.
type varFlags map[string]any

func (v varFlags) String() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func (v varFlags) Set(s string) error {
	name, raw, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	v[name] = decodeVarValue(raw)
	return nil
}

func decodeVarValue(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil || dec.More() {
		return raw
	}
	return out
}

func (v varFlags) values() map[string]value.Value {
	if len(v) == 0 {
		return nil
	}
	out := make(map[string]value.Value, len(v))
	for k, raw := range v {
		out[k] = value.FromAny(raw)
	}
	return out
}

// parseInterspersed parses flags that may appear before or after positional
// arguments and returns the positionals in order.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

// loadLibrary reads every workflow file in dir for use as workflow.call
// targets.
func loadLibrary(dir string) (engine.MapSource, error) {
	src := engine.MapSource{}
	if dir == "" {
		return src, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read library: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !isWorkflowFile(e.Name()) {
			continue
		}
		def, err := schema.LoadDefinitionFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		src.Add(def)
	}
	return src, nil
}

func isWorkflowFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func runCmd(cfg Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	vars := varFlags{}
	fs.Var(vars, "var", "variable override name=value (repeatable)")
	lib := fs.String("lib", "", "directory of workflows callable via workflow.call")
	timeout := fs.Duration("timeout", 0, "cancel the run after this duration")
	noSave := fs.Bool("no-save", false, "do not store the workflow definition")
	dbPath := fs.String("db", "", "database path (overrides config)")

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return exitError(2)
	}
	if len(positional) != 1 {
		fmt.Fprintln(stderr, "usage: stepflow run <file> [--var name=value]... [--lib dir] [--timeout d]")
		return exitError(2)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	def, err := schema.LoadDefinitionFile(positional[0])
	if err != nil {
		return err
	}
	library, err := loadLibrary(*lib)
	if err != nil {
		return err
	}
	library.Add(def)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, stderr, library)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.validator.Validate(def)
	if !res.Valid() {
		printIssues(stderr, positional[0], res)
		return exitError(1)
	}
	for _, w := range res.Warnings {
		a.logger.Warn("validation warning", "path", w.Path, "code", w.Code, "message", w.Message)
	}

	if !*noSave {
		if err := a.store.SaveWorkflow(ctx, &store.Workflow{Name: def.Name, Definition: *def}); err != nil {
			return fmt.Errorf("save workflow: %w", err)
		}
	}

	runCtx := context.WithoutCancel(ctx)
	if *timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, *timeout)
		defer cancel()
	}

	h, err := a.engine.RunAsync(runCtx, def, engine.RunOptions{Variables: vars.values()})
	if err != nil {
		return err
	}
	select {
	case <-h.Done():
	case <-ctx.Done():
		// First interrupt requests a graceful stop at the next step boundary.
		a.logger.Info("stop requested", "run_id", h.RunID)
		h.Stop()
	}
	outcome, err := h.Wait(context.Background())
	if err != nil {
		return err
	}

	if err := writeOutcome(stdout, outcome); err != nil {
		return err
	}
	if outcome.Status == schema.RunStatusFailed {
		return exitError(1)
	}
	return nil
}

// outcomeJSON is the printed form of a run outcome.
type outcomeJSON struct {
	*engine.Outcome
	Value     any                       `json:"value,omitempty"`
	Outputs   map[string]map[string]any `json:"outputs,omitempty"`
	Variables map[string]any            `json:"variables,omitempty"`
	Duration  string                    `json:"duration"`
}

func writeOutcome(w io.Writer, o *engine.Outcome) error {
	out := outcomeJSON{
		Outcome:  o,
		Duration: o.CompletedAt.Sub(o.StartedAt).Round(time.Microsecond).String(),
	}
	if o.Value != nil {
		out.Value = value.ToAny(o.Value)
	}
	if len(o.StepOutputs) > 0 {
		out.Outputs = make(map[string]map[string]any, len(o.StepOutputs))
		for step, outputs := range o.StepOutputs {
			m := make(map[string]any, len(outputs))
			for name, v := range outputs {
				m[name] = value.ToAny(v)
			}
			out.Outputs[step] = m
		}
	}
	if len(o.Variables) > 0 {
		out.Variables = make(map[string]any, len(o.Variables))
		for name, v := range o.Variables {
			out.Variables[name] = value.ToAny(v)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func printIssues(w io.Writer, file string, res *schema.ValidationResult) {
	for _, e := range res.Errors {
		fmt.Fprintf(w, "%s: error %s [%s]: %s\n", file, e.Path, e.Code, e.Message)
	}
	for _, wn := range res.Warnings {
		fmt.Fprintf(w, "%s: warning %s [%s]: %s\n", file, wn.Path, wn.Code, wn.Message)
	}
}
