package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-onboard/pkg/schema"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a schema for problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.orchestrator()
			if err != nil {
				return err
			}
			sch, err := a.loadSchema(cmd.Context(), orch)
			if err != nil {
				problems := collect[*schema.FieldError](err)
				if len(problems) == 0 {
					return err
				}
				for _, problem := range problems {
					fmt.Fprintln(cmd.OutOrStdout(), problem.Error())
				}
				return fmt.Errorf("schema has %d problem(s)", len(problems))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema %q is valid: %d steps, %d fields\n", sch.ID, len(sch.Steps), len(sch.Fields()))
			return nil
		},
	}
}

// collect walks wrapped and joined errors and returns every T found.
func collect[T error](err error) []T {
	if err == nil {
		return nil
	}
	if match, ok := err.(T); ok {
		return []T{match}
	}
	switch wrapped := err.(type) {
	case interface{ Unwrap() []error }:
		var out []T
		for _, inner := range wrapped.Unwrap() {
			out = append(out, collect[T](inner)...)
		}
		return out
	case interface{ Unwrap() error }:
		return collect[T](wrapped.Unwrap())
	}
	return nil
}
