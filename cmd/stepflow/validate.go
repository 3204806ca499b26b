package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/rendis/stepflow/internal/actions"
	"github.com/rendis/stepflow/internal/validation"
	"github.com/rendis/stepflow/pkg/schema"
)

func validateCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stdout)
	quiet := fs.Bool("q", false, "only report errors")
	files, err := parseInterspersed(fs, args)
	if err != nil {
		return exitError(2)
	}
	if len(files) == 0 {
		fmt.Fprintln(stdout, "usage: stepflow validate <file>...")
		return exitError(2)
	}

	reg := actions.NewRegistry()
	if err := actions.RegisterBuiltins(reg, actions.Deps{}); err != nil {
		return err
	}
	// Call targets are resolved at run time.
	if err := actions.RegisterWorkflowCall(reg, nil); err != nil {
		return err
	}
	v, err := validation.NewWorkflowValidator(reg)
	if err != nil {
		return err
	}

	failed := 0
	for _, file := range files {
		def, err := schema.LoadDefinitionFile(file)
		if err != nil {
			fmt.Fprintf(stdout, "%s: %v\n", file, err)
			failed++
			continue
		}
		res := v.Validate(def)
		if *quiet {
			res.Warnings = nil
		}
		printIssues(stdout, file, res)
		if !res.Valid() {
			failed++
			continue
		}
		if !*quiet {
			fmt.Fprintf(stdout, "%s: ok\n", file)
		}
	}
	if failed > 0 {
		return exitError(1)
	}
	return nil
}
