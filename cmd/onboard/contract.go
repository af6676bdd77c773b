package main

import (
	"github.com/spf13/cobra"

	"github.com/goliatone/go-onboard/pkg/openapi"
)

func newContractCmd(a *app) *cobra.Command {
	var (
		asYAML  bool
		path    string
		version string
	)

	cmd := &cobra.Command{
		Use:   "contract",
		Short: "Print the OpenAPI contract of the submitted payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.orchestrator()
			if err != nil {
				return err
			}
			sch, err := a.loadSchema(cmd.Context(), orch)
			if err != nil {
				return err
			}

			var opts []openapi.Option
			if path != "" {
				opts = append(opts, openapi.WithPath(path))
			}
			if version != "" {
				opts = append(opts, openapi.WithVersion(version))
			}
			contract, err := orch.Contract(sch, opts...)
			if err != nil {
				return err
			}

			out := contract.JSON
			if asYAML {
				out = contract.YAML
			}
			data, err := out()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&asYAML, "yaml", false, "emit YAML instead of JSON")
	flags.StringVar(&path, "path", "", "path of the submit operation")
	flags.StringVar(&version, "version", "", "document version")
	return cmd
}
