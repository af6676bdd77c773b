package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-onboard/pkg/openapi"
)

func newCheckPayloadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-payload <file|->",
		Short: "Validate a submitted payload against the schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			orch, err := a.orchestrator()
			if err != nil {
				return err
			}
			sch, err := a.loadSchema(cmd.Context(), orch)
			if err != nil {
				return err
			}
			contract, err := orch.Contract(sch)
			if err != nil {
				return err
			}

			if err := contract.Validate(data); err != nil {
				problems := collect[*openapi.PayloadError](err)
				if len(problems) == 0 {
					return err
				}
				for _, problem := range problems {
					fmt.Fprintln(cmd.OutOrStdout(), problem.Error())
				}
				return fmt.Errorf("payload has %d problem(s)", len(problems))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "payload is valid")
			return nil
		},
	}
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return data, nil
}
